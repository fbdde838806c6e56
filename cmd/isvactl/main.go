package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cuemby/isvactl/pkg/log"
	"github.com/cuemby/isvactl/pkg/metrics"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	root := newRootCmd()
	err := root.Execute()

	if path, _ := root.PersistentFlags().GetString("metrics-textfile"); path != "" {
		if werr := metrics.WriteTextfile(path); werr != nil {
			log.Logger.Warn().Err(werr).Str("path", path).Msg("failed to write metrics textfile")
		}
	}
	if err != nil {
		if rerr := writeFailure(root.OutOrStdout(), err); rerr != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "isvactl",
		Short: "isvactl - declarative configuration for IBM Security Verify Access",
		Long: `isvactl converges IBM Security Verify Access appliance subsystems to a
declared state through the appliance's management REST API.

Every command prints a JSON result on stdout. Only differing settings are
written, so running the same command twice reports changed=false the second
time.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level, _ := cmd.Flags().GetString("log-level")
			jsonOutput, _ := cmd.Flags().GetBool("log-json")
			log.Init(log.Config{
				Level:      log.ParseLevel(level),
				JSONOutput: jsonOutput,
				Output:     cmd.ErrOrStderr(),
			})
		},
	}

	root.SetVersionTemplate(fmt.Sprintf(
		"isvactl version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	flags := root.PersistentFlags()
	flags.String("provider", "", "Provider YAML file with the appliance connection settings")
	flags.String("server", "", "Appliance management interface host (ISVA_LMI_HOST)")
	flags.Int("port", 0, "Appliance management interface port (ISVA_LMI_PORT, default 443)")
	flags.String("user", "", "Management user (ISVA_USER)")
	flags.String("password", "", "Management password (ISVA_PASSWORD)")
	flags.Bool("validate-certs", true, "Verify the appliance certificate (ISVA_VALIDATE_CERTS)")
	flags.String("ca-cert", "", "PEM file with the CA that signed the appliance certificate")
	flags.Int("timeout", 0, "Request timeout in seconds (ISVA_TIMEOUT, default 30)")
	flags.Bool("check", false, "Dry run: report what would change without writing")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.Bool("log-json", false, "Write logs as JSON")
	flags.String("metrics-textfile", "", "Write Prometheus metrics to this file on exit")

	root.AddCommand(
		newGatherCmd(),
		newReplaceCmd(),
		newDeleteCmd(),
		newApplyCmd(),
		newSubsystemsCmd(),
		newFactsCmd(),
		newPendingCmd(),
		newDockerCmd(),
		newSharedVolumesCmd(),
		newDownloadsCmd(),
	)
	return root
}

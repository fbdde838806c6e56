package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/cuemby/isvactl/pkg/config"
	"github.com/cuemby/isvactl/pkg/reconciler"
	"github.com/cuemby/isvactl/pkg/subsystem"
	"github.com/cuemby/isvactl/pkg/types"
)

func newGatherCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gather SUBSYSTEM",
		Short: "Read the current configuration of a subsystem",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConverge(cmd, args[0], types.Invocation{Operation: types.OperationGathered})
		},
	}
	cmd.Flags().String("offering", "", "Offering of the activation subsystem (wga, mga, federation)")
	return cmd
}

func newReplaceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replace SUBSYSTEM -f FILE",
		Short: "Converge a subsystem to the desired state in FILE",
		Long: `Converge a subsystem to the desired state read from a YAML file.

Keys left out of the file are left unchanged on the appliance. Use - to read
the desired state from stdin.

Examples:
  # Set the session cache worker threads
  echo 'worker_threads: 32' | isvactl replace dsc -f -

  # Preview the change without writing
  isvactl replace database -f hvdb.yaml --check`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filename, _ := cmd.Flags().GetString("file")
			desired, err := readDesired(cmd, filename)
			if err != nil {
				return err
			}
			return runConverge(cmd, args[0], types.Invocation{Operation: types.OperationReplaced, Desired: desired})
		},
	}
	cmd.Flags().StringP("file", "f", "", "YAML file with the desired state (required)")
	cmd.Flags().String("offering", "", "Offering of the activation subsystem (wga, mga, federation)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete SUBSYSTEM",
		Short: "Reset a subsystem to its defaults or remove it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConverge(cmd, args[0], types.Invocation{Operation: types.OperationDeleted})
		},
	}
	cmd.Flags().String("offering", "", "Offering of the activation subsystem (wga, mga, federation)")
	return cmd
}

func readDesired(cmd *cobra.Command, filename string) (types.Record, error) {
	var r io.Reader = cmd.InOrStdin()
	if filename != "-" {
		f, err := os.Open(filename)
		if err != nil {
			return nil, fmt.Errorf("failed to read file: %w", err)
		}
		defer f.Close()
		r = f
	}
	return config.ParseDesired(r)
}

func runConverge(cmd *cobra.Command, name string, inv types.Invocation) error {
	offering, _ := cmd.Flags().GetString("offering")
	def, err := subsystem.Lookup(name, subsystem.Options{Offering: offering})
	if err != nil {
		return err
	}

	s, err := newSession(cmd, name, string(inv.Operation))
	if err != nil {
		return err
	}
	inv.DryRun = s.dryRun

	res, err := converge(cmd.Context(), s.reconciler(), def, inv)
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), res)
}

func converge(ctx context.Context, r *reconciler.Reconciler, def *reconciler.Definition, inv types.Invocation) (types.Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if inv.Operation == types.OperationGathered {
		return r.Gather(ctx, def)
	}
	return r.Converge(ctx, def, inv)
}

// applied is the outcome of one manifest
type applied struct {
	Name      string `json:"name"`
	Subsystem string `json:"subsystem"`
	State     string `json:"state"`
	types.Result
}

func newApplyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apply -f MANIFEST",
		Short: "Apply a manifest of desired subsystem states",
		Long: `Apply every document of a YAML manifest in order, stopping at the first
failure.

Examples:
  # Apply a manifest
  isvactl apply -f appliance.yaml

The manifest holds one document per subsystem:

  apiVersion: isvactl/v1
  kind: dsc
  state: replaced
  metadata:
    name: session-cache
  spec:
    worker_threads: 32`,
		Args: cobra.NoArgs,
		RunE: runApply,
	}
	cmd.Flags().StringP("file", "f", "", "YAML manifest to apply (required)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func runApply(cmd *cobra.Command, args []string) error {
	filename, _ := cmd.Flags().GetString("file")

	var r io.Reader = cmd.InOrStdin()
	if filename != "-" {
		f, err := os.Open(filename)
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}
		defer f.Close()
		r = f
	}

	manifests, err := config.ParseManifests(r)
	if err != nil {
		return err
	}

	type plan struct {
		manifest config.Manifest
		def      *reconciler.Definition
		inv      types.Invocation
	}
	// every manifest is checked before anything is sent
	plans := make([]plan, 0, len(manifests))
	for _, m := range manifests {
		inv, err := m.Invocation(false)
		if err != nil {
			return err
		}
		def, err := subsystem.Lookup(m.Subsystem(), subsystem.Options{Offering: m.Metadata.Offering})
		if err != nil {
			return err
		}
		if inv, err = reconciler.Prepare(def, inv); err != nil {
			return fmt.Errorf("%s: %w", m.Metadata.Name, err)
		}
		plans = append(plans, plan{manifest: m, def: def, inv: inv})
	}

	s, err := newSession(cmd, "apply", "apply")
	if err != nil {
		return err
	}

	changed := false
	results := make([]applied, 0, len(plans))
	for _, p := range plans {
		p.inv.DryRun = s.dryRun
		res, err := converge(cmd.Context(), s.invocation(p.def.Name, string(p.inv.Operation)), p.def, p.inv)
		if err != nil {
			return fmt.Errorf("%s: %w", p.manifest.Metadata.Name, err)
		}
		changed = changed || res.Changed
		results = append(results, applied{
			Name:      p.manifest.Metadata.Name,
			Subsystem: p.def.Name,
			State:     string(p.inv.Operation),
			Result:    res,
		})
	}

	return writeJSON(cmd.OutOrStdout(), map[string]any{
		"changed": changed,
		"results": results,
	})
}

func newSubsystemsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "subsystems",
		Short: "List the subsystems isvactl can manage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			type info struct {
				Name        string   `json:"name"`
				Description string   `json:"description"`
				Operations  []string `json:"operations"`
			}
			var out []info
			for _, name := range subsystem.Names() {
				def, err := subsystem.Lookup(name, subsystem.Options{Offering: subsystem.Offerings[0]})
				if err != nil {
					return err
				}
				i := info{Name: name, Description: def.Description}
				for _, op := range []types.Operation{types.OperationGathered, types.OperationReplaced, types.OperationDeleted} {
					if def.Supports(op) {
						i.Operations = append(i.Operations, string(op))
					}
				}
				out = append(out, i)
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}
}

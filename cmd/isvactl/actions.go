package main

import (
	"github.com/spf13/cobra"

	"github.com/cuemby/isvactl/pkg/diff"
	"github.com/cuemby/isvactl/pkg/isvaerr"
	"github.com/cuemby/isvactl/pkg/reconciler"
	"github.com/cuemby/isvactl/pkg/result"
	"github.com/cuemby/isvactl/pkg/subsystem"
	"github.com/cuemby/isvactl/pkg/types"
)

func newFactsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "facts",
		Short: "Report the product and firmware versions of the appliance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			minVersion, _ := cmd.Flags().GetString("min-version")

			s, err := newSession(cmd, "facts", string(types.OperationGathered))
			if err != nil {
				return err
			}
			res, err := s.reconciler().Gather(cmd.Context(), subsystem.Facts())
			if err != nil {
				return err
			}
			if minVersion != "" {
				items, _ := res.Gathered.([]types.Record)
				if err := checkMinVersion(items, minVersion); err != nil {
					return err
				}
			}
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().String("min-version", "", "Fail unless the firmware is at least this version (e.g. 10.0.6.0)")
	return cmd
}

// checkMinVersion fails when the active firmware is older than minVersion
func checkMinVersion(items []types.Record, minVersion string) error {
	for _, item := range items {
		v, _ := item["firmware_version"].(string)
		if v == "" {
			continue
		}
		cmp, err := diff.VersionCompare(v, minVersion)
		if err != nil {
			return isvaerr.Validation("cannot compare firmware version: %v", err)
		}
		if cmp < 0 {
			return isvaerr.Validation("firmware version %s is older than the required %s", v, minVersion)
		}
		return nil
	}
	return isvaerr.Mapping("the appliance reported no firmware version")
}

func newPendingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "Inspect, deploy or roll back pending configuration changes",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List the pending changes",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				s, err := newSession(cmd, "pending_changes", string(types.OperationGathered))
				if err != nil {
					return err
				}
				changes, err := s.reconciler().Fetch(cmd.Context(), subsystem.PendingChangesPath)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), result.Gathered(changes))
			},
		},
		&cobra.Command{
			Use:   "count",
			Short: "Count the pending changes",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				s, err := newSession(cmd, "pending_changes", string(types.OperationGathered))
				if err != nil {
					return err
				}
				n, err := subsystem.PendingCount(cmd.Context(), s.client)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), result.Gathered(map[string]int{"count": n}))
			},
		},
		actionCmd("deploy", "Deploy the pending changes", subsystem.DeployPending),
		actionCmd("rollback", "Discard the pending changes", subsystem.RollbackPending),
	)
	return cmd
}

func newDockerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "docker",
		Short: "Manage the configuration container",
	}
	cmd.AddCommand(
		actionCmd("publish", "Publish the configuration snapshot", subsystem.DockerPublish),
		actionCmd("stop", "Stop the configuration container", subsystem.DockerStop),
	)
	return cmd
}

func actionCmd(use, short string, action func() reconciler.Action) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := action()
			s, err := newSession(cmd, a.Name, "action")
			if err != nil {
				return err
			}
			res, err := s.reconciler().Run(cmd.Context(), a, s.dryRun)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}
}

package subsystem

import (
	"context"
	"net/http"

	"github.com/cuemby/isvactl/pkg/client"
	"github.com/cuemby/isvactl/pkg/isvaerr"
	"github.com/cuemby/isvactl/pkg/mapper"
	"github.com/cuemby/isvactl/pkg/reconciler"
	"github.com/cuemby/isvactl/pkg/types"
)

// PendingChangesPath lists the configuration changes not deployed yet
const PendingChangesPath = "/isam/pending_changes"

// PendingCount returns the number of changes waiting to be deployed
func PendingCount(ctx context.Context, c client.ApplianceClient) (int, error) {
	resp, err := c.Send(ctx, PendingChangesPath+"/count", http.MethodGet, nil, nil)
	if err != nil {
		return 0, err
	}
	if resp.Code != http.StatusOK {
		return 0, isvaerr.AppStatus(resp.Code, resp.Contents)
	}
	wire, err := mapper.Unwrap(resp.Contents)
	if err != nil {
		return 0, err
	}
	n, ok := asInt(wire["count"])
	if !ok {
		return 0, isvaerr.Mapping("pending change count: expected a number, got %T", wire["count"])
	}
	return n, nil
}

func hasPendingChanges(ctx context.Context, c client.ApplianceClient) (bool, error) {
	n, err := PendingCount(ctx, c)
	return n > 0, err
}

// DeployPending deploys every pending change. It does nothing when none are
// pending.
func DeployPending() reconciler.Action {
	return reconciler.Action{
		Name:     "pending_changes_deploy",
		Endpoint: reconciler.Endpoint{Method: http.MethodPut, Path: PendingChangesPath},
		Guard:    hasPendingChanges,
		DryRun:   types.Record{"deployed": true},
	}
}

// RollbackPending discards every pending change
func RollbackPending() reconciler.Action {
	return reconciler.Action{
		Name:     "pending_changes_rollback",
		Endpoint: reconciler.Endpoint{Method: http.MethodDelete, Path: PendingChangesPath},
		Guard:    hasPendingChanges,
		DryRun:   types.Record{"rolled_back": true},
	}
}

// DockerPublish publishes the configuration container snapshot
func DockerPublish() reconciler.Action {
	return reconciler.Action{
		Name:     "docker_publish",
		Endpoint: reconciler.Endpoint{Method: http.MethodPut, Path: "/docker/publish", Expect: http.StatusCreated},
		DryRun:   types.Record{"filename": "check_mode.snapshot"},
	}
}

// DockerStop stops the configuration container
func DockerStop() reconciler.Action {
	return reconciler.Action{
		Name:     "docker_stop",
		Endpoint: reconciler.Endpoint{Method: http.MethodPut, Path: "/docker/stop", Expect: http.StatusNoContent},
		DryRun:   types.Record{"stopped": true},
	}
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case interface{ Int64() (int64, error) }:
		i, err := n.Int64()
		return int(i), err == nil
	}
	return 0, false
}

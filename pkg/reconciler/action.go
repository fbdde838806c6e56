package reconciler

import (
	"context"

	"github.com/cuemby/isvactl/pkg/client"
	"github.com/cuemby/isvactl/pkg/metrics"
	"github.com/cuemby/isvactl/pkg/result"
	"github.com/cuemby/isvactl/pkg/types"
)

// Action is an imperative appliance call such as deploying pending changes.
// Actions are not idempotent; they report changed whenever they run.
type Action struct {
	Name     string
	Endpoint Endpoint
	// Guard decides whether there is anything to do. Nil means always run.
	Guard func(ctx context.Context, c client.ApplianceClient) (bool, error)
	// DryRun is reported as the after value when the call is skipped
	DryRun types.Record
}

// Run executes an action. The response body becomes the after value.
func (r *Reconciler) Run(ctx context.Context, a Action, dryRun bool) (res types.Result, err error) {
	defer func() {
		outcome := metrics.OutcomeUnchanged
		switch {
		case err != nil:
			outcome = metrics.OutcomeFailed
		case res.Changed:
			outcome = metrics.OutcomeChanged
		}
		metrics.ConvergenceTotal.WithLabelValues(a.Name, "action", outcome).Inc()
	}()

	if a.Guard != nil {
		r.enter(StateFetching)
		run, err := a.Guard(ctx, r.client)
		if err != nil {
			return types.Result{}, err
		}
		if !run {
			r.enter(StateShortCircuit)
			r.enter(StateDone)
			return result.Unchanged(), nil
		}
	}

	if dryRun {
		r.logger.Info().Str("action", a.Name).Msg("dry run, skipping action")
		r.enter(StateDone)
		return result.Assemble(true, nil, a.DryRun.Clone(), nil), nil
	}

	r.enter(StateWriting)
	resp, err := r.write(ctx, &Definition{Name: a.Name}, a.Endpoint, nil)
	if err != nil {
		return types.Result{}, err
	}

	r.enter(StateResponseMapping)
	var after types.Record
	if m, ok := types.AsMap(resp.Contents); ok {
		after = types.Record(m).Clone()
	}
	r.enter(StateDone)
	return result.Assemble(true, nil, after, result.ExtractWarnings(resp.Contents)), nil
}

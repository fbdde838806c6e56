package reconciler

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/cuemby/isvactl/pkg/client"
	"github.com/cuemby/isvactl/pkg/diff"
	"github.com/cuemby/isvactl/pkg/isvaerr"
	"github.com/cuemby/isvactl/pkg/mapper"
	"github.com/cuemby/isvactl/pkg/metrics"
	"github.com/cuemby/isvactl/pkg/result"
	"github.com/cuemby/isvactl/pkg/types"
)

// State is a step of one convergence run
type State string

const (
	StateFetching        State = "FETCHING"
	StateMapping         State = "MAPPING"
	StateDiffing         State = "DIFFING"
	StateShortCircuit    State = "SHORT_CIRCUIT"
	StateWriting         State = "WRITING"
	StateResponseMapping State = "RESPONSE_MAPPING"
	StateDone            State = "DONE"
)

// masked replaces write-only values in reported diffs
const masked = "********"

// Endpoint is one appliance call with its documented success code
type Endpoint struct {
	Method string
	Path   string
	// Expect is the success status code, 200 when zero
	Expect int
	// NoPayload endpoints are called without a body
	NoPayload bool
}

func (e Endpoint) expect() int {
	if e.Expect == 0 {
		return http.StatusOK
	}
	return e.Expect
}

// Definition describes one appliance subsystem as data: its field map, the
// endpoints to read and write it, and the record it returns to on delete.
type Definition struct {
	Name        string
	Description string
	Fields      mapper.FieldMap

	Read Endpoint
	// Optional subsystems answer 404 when they are not configured
	Optional bool
	// List subsystems read a collection of objects, found under ItemsKey or
	// as the response itself when ItemsKey is empty
	List     bool
	ItemsKey string

	// Update is used when the subsystem is configured, Create when it is not
	Update *Endpoint
	Create *Endpoint
	// Remove deletes the object for subsystems without a default
	Remove *Endpoint
	// Default is the record "deleted" converges to
	Default types.Record

	// Check runs extra validation on a normalized desired record
	Check func(want types.Record) error
}

// Supports reports whether the subsystem implements op
func (d *Definition) Supports(op types.Operation) bool {
	switch op {
	case types.OperationGathered:
		return d.Read.Path != ""
	case types.OperationReplaced:
		return !d.List && (d.Update != nil || d.Create != nil)
	case types.OperationDeleted:
		if d.List {
			return false
		}
		if d.Default != nil {
			return d.Update != nil || d.Create != nil
		}
		return d.Remove != nil
	default:
		return false
	}
}

// Reconciler converges one appliance subsystem per call. It holds no state
// between calls beyond its client and logger.
type Reconciler struct {
	client client.ApplianceClient
	logger zerolog.Logger
}

// NewReconciler creates a new reconciler
func NewReconciler(c client.ApplianceClient, logger zerolog.Logger) *Reconciler {
	return &Reconciler{
		client: c,
		logger: logger,
	}
}

// Converge runs one invocation against the subsystem described by def
func (r *Reconciler) Converge(ctx context.Context, def *Definition, inv types.Invocation) (res types.Result, err error) {
	timer := metrics.NewTimer()
	defer func() {
		timer.ObserveDurationVec(metrics.ConvergenceDuration, def.Name, string(inv.Operation))
		outcome := metrics.OutcomeUnchanged
		switch {
		case err != nil:
			outcome = metrics.OutcomeFailed
		case res.Changed:
			outcome = metrics.OutcomeChanged
		}
		metrics.ConvergenceTotal.WithLabelValues(def.Name, string(inv.Operation), outcome).Inc()
	}()

	prepared, err := Prepare(def, inv)
	if err != nil {
		return types.Result{}, err
	}

	switch prepared.Operation {
	case types.OperationGathered:
		return r.Gather(ctx, def)

	case types.OperationReplaced:
		return r.converge(ctx, def, prepared.Desired, prepared.DryRun)

	case types.OperationDeleted:
		if def.Default != nil {
			return r.converge(ctx, def, def.Default.Clone(), prepared.DryRun)
		}
		return r.remove(ctx, def, prepared.DryRun)
	}
	return types.Result{}, isvaerr.Validation("unknown operation %q", inv.Operation)
}

// Prepare checks an invocation against def without touching the network and
// returns it with the desired record validated and normalized. Converge calls
// it first; callers applying several invocations call it up front so that
// nothing is written when any of them is invalid.
func Prepare(def *Definition, inv types.Invocation) (types.Invocation, error) {
	if !def.Supports(inv.Operation) {
		return inv, isvaerr.Validation("subsystem %s does not support %s", def.Name, inv.Operation)
	}
	if inv.Operation != types.OperationReplaced {
		return inv, nil
	}
	if inv.Desired == nil {
		return inv, isvaerr.Validation("desired state is required for %s on %s", inv.Operation, def.Name)
	}

	if err := mapper.Validate(inv.Desired, def.Fields); err != nil {
		return inv, err
	}
	want, err := mapper.Normalize(inv.Desired, def.Fields)
	if err != nil {
		return inv, err
	}
	if def.Check != nil {
		if err := def.Check(want); err != nil {
			return inv, isvaerr.ValidationErr(err)
		}
	}
	inv.Desired = want
	return inv, nil
}

// Gather reads the current state of a subsystem. It never writes.
func (r *Reconciler) Gather(ctx context.Context, def *Definition) (types.Result, error) {
	if def.List {
		items, err := r.fetchList(ctx, def)
		if err != nil {
			return types.Result{}, err
		}
		r.enter(StateDone)
		return result.Gathered(items), nil
	}

	have, _, err := r.fetch(ctx, def)
	if err != nil {
		return types.Result{}, err
	}
	r.enter(StateDone)
	return result.Gathered(have), nil
}

// Fetch returns the raw decoded body of a GET that must answer 200
func (r *Reconciler) Fetch(ctx context.Context, path string) (any, error) {
	resp, err := r.client.Send(ctx, path, http.MethodGet, nil, nil)
	if err != nil {
		return nil, err
	}
	if resp.Code != http.StatusOK {
		return nil, isvaerr.AppStatus(resp.Code, resp.Contents)
	}
	return resp.Contents, nil
}

// fetch reads and maps a single-object subsystem. absent is true when the
// subsystem is not configured.
func (r *Reconciler) fetch(ctx context.Context, def *Definition) (types.Record, bool, error) {
	r.enter(StateFetching)
	resp, err := r.client.Send(ctx, def.Read.Path, http.MethodGet, nil, nil)
	if err != nil {
		return nil, false, err
	}

	r.enter(StateMapping)
	if resp.Code == http.StatusNotFound && def.Optional {
		have, err := mapper.ToCanonical(types.WireRecord{}, def.Fields)
		return have, true, err
	}
	if resp.Code != def.Read.expect() {
		return nil, false, isvaerr.AppStatus(resp.Code, resp.Contents)
	}

	wire, err := mapper.Unwrap(resp.Contents)
	if err != nil {
		return nil, false, err
	}
	have, err := mapper.ToCanonical(wire, def.Fields)
	if err != nil {
		return nil, false, err
	}
	return have, have.IsEmpty(), nil
}

func (r *Reconciler) fetchList(ctx context.Context, def *Definition) ([]types.Record, error) {
	r.enter(StateFetching)
	contents, err := r.Fetch(ctx, def.Read.Path)
	if err != nil {
		return nil, err
	}

	r.enter(StateMapping)
	raw := contents
	if def.ItemsKey != "" {
		m, ok := types.AsMap(contents)
		if !ok {
			return nil, isvaerr.Mapping("expected an object holding %s, got %T", def.ItemsKey, contents)
		}
		raw = m[def.ItemsKey]
	}
	if raw == nil {
		return []types.Record{}, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, isvaerr.Mapping("expected a list, got %T", raw)
	}

	items := make([]types.Record, 0, len(list))
	for i, e := range list {
		m, ok := types.AsMap(e)
		if !ok {
			return nil, isvaerr.Mapping("item %d: expected an object, got %T", i, e)
		}
		rec, err := mapper.ToCanonical(types.WireRecord(m), def.Fields)
		if err != nil {
			return nil, err
		}
		items = append(items, rec)
	}
	return items, nil
}

// converge drives the subsystem to want
func (r *Reconciler) converge(ctx context.Context, def *Definition, want types.Record, dryRun bool) (types.Result, error) {
	have, absent, err := r.fetch(ctx, def)
	if err != nil {
		return types.Result{}, err
	}

	r.enter(StateDiffing)
	create := absent && def.Create != nil
	var d types.Diff
	if create {
		d = creationDiff(want, def.Fields)
	} else {
		d = diff.Compute(have, want, def.Fields)
	}
	if (create && want.IsEmpty()) || (!create && d.Empty()) {
		r.enter(StateShortCircuit)
		r.enter(StateDone)
		return result.Unchanged(), nil
	}

	if dryRun {
		r.logger.Info().Msg("dry run, skipping write")
		r.enter(StateDone)
		return result.FromDiff(true, d, nil), nil
	}

	r.enter(StateWriting)
	ep := def.Update
	if create || ep == nil {
		ep = def.Create
	}
	var payload any
	if !ep.NoPayload {
		wire, err := mapper.ToWire(want, def.Fields)
		if err != nil {
			return types.Result{}, err
		}
		payload = wire
	}
	resp, err := r.write(ctx, def, *ep, payload)
	if err != nil {
		return types.Result{}, err
	}

	r.enter(StateResponseMapping)
	warnings := result.ExtractWarnings(resp.Contents)
	for _, w := range warnings {
		r.logger.Warn().Str("warning", w).Msg("appliance warning")
	}
	overlayResponse(d.After, resp.Contents, def.Fields)

	r.enter(StateDone)
	return result.FromDiff(true, d, warnings), nil
}

// remove deletes the object of a subsystem without a default record
func (r *Reconciler) remove(ctx context.Context, def *Definition, dryRun bool) (types.Result, error) {
	have, absent, err := r.fetch(ctx, def)
	if err != nil {
		return types.Result{}, err
	}

	r.enter(StateDiffing)
	if absent {
		r.enter(StateShortCircuit)
		r.enter(StateDone)
		return result.Unchanged(), nil
	}
	before := reportable(have, def.Fields)

	if dryRun {
		r.logger.Info().Msg("dry run, skipping delete")
		r.enter(StateDone)
		return result.Assemble(true, before, nil, nil), nil
	}

	r.enter(StateWriting)
	resp, err := r.write(ctx, def, *def.Remove, nil)
	if err != nil {
		return types.Result{}, err
	}

	r.enter(StateResponseMapping)
	warnings := result.ExtractWarnings(resp.Contents)
	r.enter(StateDone)
	return result.Assemble(true, before, nil, warnings), nil
}

// write issues one single-shot write and checks its success code
func (r *Reconciler) write(ctx context.Context, def *Definition, ep Endpoint, payload any) (*client.Response, error) {
	r.logger.Info().Str("method", ep.Method).Str("path", ep.Path).Msg("writing")
	metrics.WritesTotal.WithLabelValues(def.Name, ep.Method).Inc()

	resp, err := r.client.Send(ctx, ep.Path, ep.Method, payload, nil)
	if err != nil {
		return nil, err
	}
	if resp.Code != ep.expect() {
		return nil, isvaerr.WriteRejected(ep.Method, ep.Path, resp.Code, resp.Contents)
	}
	return resp, nil
}

func (r *Reconciler) enter(s State) {
	r.logger.Debug().Str("state", string(s)).Msg("entering state")
}

// creationDiff reports every desired value when the object does not exist yet
func creationDiff(want types.Record, fm mapper.FieldMap) types.Diff {
	d := types.Diff{Before: types.Record{}, After: types.Record{}}
	for _, f := range fm {
		if f.ReadOnly {
			continue
		}
		v, ok := want.Get(f.Canonical)
		if !ok || v == nil {
			continue
		}
		if f.WriteOnly {
			v = masked
		}
		d.After.Set(f.Canonical, types.CloneValue(v))
	}
	return d
}

// reportable keeps the comparable, non-nil values of a record
func reportable(rec types.Record, fm mapper.FieldMap) types.Record {
	out := types.Record{}
	for _, f := range fm {
		if f.WriteOnly {
			continue
		}
		v, ok := rec.Get(f.Canonical)
		if !ok || v == nil {
			continue
		}
		out.Set(f.Canonical, types.CloneValue(v))
	}
	return out
}

// overlayResponse replaces reported after values with what the appliance
// echoed back, for the keys that were part of the write
func overlayResponse(after types.Record, contents any, fm mapper.FieldMap) {
	m, ok := types.AsMap(contents)
	if !ok || len(m) == 0 {
		return
	}
	echoed, err := mapper.ToCanonical(types.WireRecord(m), fm)
	if err != nil {
		return
	}
	for _, f := range fm {
		if f.WriteOnly {
			continue
		}
		if _, sent := m[f.Wire]; !sent {
			continue
		}
		if _, inDiff := after.Get(f.Canonical); !inDiff {
			continue
		}
		if v, _ := echoed.Get(f.Canonical); v != nil {
			after.Set(f.Canonical, v)
		}
	}
}

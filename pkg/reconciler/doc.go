/*
Package reconciler converges one appliance subsystem to a declared state.

Every subsystem is described by a Definition: a field map, the endpoint
that reads it, the endpoints that write it and, for subsystems that can be
reset, a default record. A single Reconciler drives every Definition through
the same state machine, so adding a subsystem is a matter of adding data.

# Architecture

One invocation runs once, top to bottom, and never retries:

	┌────────────┐     ┌───────────┐     ┌───────────┐
	│  FETCHING  │────▶│  MAPPING  │────▶│  DIFFING  │
	│  GET read  │     │ wire ->   │     │ have vs   │
	│  endpoint  │     │ canonical │     │ want      │
	└────────────┘     └─────┬─────┘     └─────┬─────┘
	                         │                 │
	              gathered   │        no diff  │  diff
	                         ▼                 ▼
	                    ┌────────┐   ┌───────────────┐   ┌────────────┐
	                    │  DONE  │◀──│ SHORT_CIRCUIT │   │  WRITING   │
	                    └────────┘   └───────────────┘   │ PUT / POST │
	                         ▲                           └─────┬──────┘
	                         │                                 │
	                         │      ┌──────────────────┐       │
	                         └──────│ RESPONSE_MAPPING │◀──────┘
	                                │ warnings, echo   │
	                                └──────────────────┘

Each state is logged at debug level on the invocation logger as it is
entered.

# Operations

gathered reads the subsystem and returns the canonical record. An
unconfigured subsystem is not an error: every mapped key is reported as
null.

replaced validates the desired record against the field map before any
network call, then fetches, diffs and writes only when something differs.
Running it twice in a row reports changed=false the second time.

deleted converges to Definition.Default. Subsystems without a default but
with a Remove endpoint (activations) issue the remove call when the object
exists. Anything else rejects deleted with a validation error.

With DryRun set the diff is computed and reported, and changed is true when
a write would happen, but nothing is sent.

# Writes

The write uses the subsystem's exact verb and success code. Any other code
is a write_rejected error carrying the appliance's body. When the
subsystem is not configured and declares a Create endpoint, the create
endpoint is used instead of the update endpoint.

A "warning" field in the write response is surfaced in Result.Warnings.
Values the appliance echoes back for written keys replace the reported
after values.

# Actions

Run executes an Action: an imperative call such as deploying pending
changes or publishing a container snapshot. A Guard can short-circuit it
(nothing pending), otherwise it always reports changed.

# Metrics

	isvactl_convergence_total{subsystem,operation,outcome}
	isvactl_convergence_duration_seconds{subsystem,operation}
	isvactl_writes_total{subsystem,method}
*/
package reconciler

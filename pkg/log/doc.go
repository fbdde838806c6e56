/*
Package log provides structured logging for isvactl using zerolog.

A single global Logger is configured once by Init from the CLI flags. Every
convergence run gets a child logger from WithInvocation carrying the
invocation id, subsystem and operation, and that logger is handed to the
reconciler so each state transition can be traced back to one run:

	logger := log.WithInvocation(uuid.NewString(), "dsc", "replaced")
	logger.Debug().Str("state", "FETCHING").Msg("entering state")

Output goes to stderr. Standard output is reserved for the JSON result of
the command so that automation can parse it.

# Levels

	debug  state transitions, request paths and status codes
	info   writes issued, transfers performed
	warn   appliance warnings, skipped uploads
	error  failed invocations

Request and response payloads are never logged; they may carry passwords.
*/
package log

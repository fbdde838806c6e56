/*
Package subsystem declares the appliance subsystems isvactl can converge.

Each subsystem is data: a field map between canonical and wire keys, its
read and write endpoints and, when it can be reset, a default record. The
reconciler package does the rest. Lookup resolves a subsystem by the name
used in manifests and on the command line.

Imperative calls that do not fit the declarative model (deploying pending
changes, publishing the configuration container) are exposed as
reconciler.Action values.
*/
package subsystem

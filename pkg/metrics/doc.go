/*
Package metrics provides Prometheus metrics for isvactl.

Collectors are package globals registered with the default registry in
init(), and every component updates them directly:

	metrics.ConvergenceTotal.WithLabelValues("dsc", "replaced", metrics.OutcomeChanged).Inc()

	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.ConvergenceDuration, "dsc", "replaced")

# Metrics

	isvactl_convergence_total{subsystem,operation,outcome}    counter
	isvactl_convergence_duration_seconds{subsystem,operation}  histogram
	isvactl_writes_total{subsystem,method}                     counter
	isvactl_appliance_requests_total{method,code}              counter
	isvactl_appliance_request_duration_seconds{method}         histogram
	isvactl_blob_transfers_total{direction,outcome}            counter

isvactl runs once per invocation and exits, so there is nothing to scrape.
WriteTextfile dumps the registry for the node exporter textfile collector;
the CLI calls it when --metrics-textfile is set.
*/
package metrics

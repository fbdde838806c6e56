package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome label values for ConvergenceTotal and BlobTransfersTotal
const (
	OutcomeChanged   = "changed"
	OutcomeUnchanged = "unchanged"
	OutcomeFailed    = "failed"
)

var (
	// Convergence metrics
	ConvergenceTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "isvactl_convergence_total",
			Help: "Total number of convergence runs by subsystem, operation and outcome",
		},
		[]string{"subsystem", "operation", "outcome"},
	)

	ConvergenceDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "isvactl_convergence_duration_seconds",
			Help:    "Convergence run duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"subsystem", "operation"},
	)

	WritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "isvactl_writes_total",
			Help: "Total number of writes issued to the appliance by subsystem and method",
		},
		[]string{"subsystem", "method"},
	)

	// Appliance API metrics
	ApplianceRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "isvactl_appliance_requests_total",
			Help: "Total number of appliance API requests by method and status code",
		},
		[]string{"method", "code"},
	)

	ApplianceRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "isvactl_appliance_request_duration_seconds",
			Help:    "Appliance API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// Blob transfer metrics
	BlobTransfersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "isvactl_blob_transfers_total",
			Help: "Total number of file transfers by direction and outcome",
		},
		[]string{"direction", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(ConvergenceTotal)
	prometheus.MustRegister(ConvergenceDuration)
	prometheus.MustRegister(WritesTotal)
	prometheus.MustRegister(ApplianceRequestsTotal)
	prometheus.MustRegister(ApplianceRequestDuration)
	prometheus.MustRegister(BlobTransfersTotal)
}

// WriteTextfile dumps every registered metric to path in the text
// exposition format read by the node exporter textfile collector.
// The file is written atomically.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}

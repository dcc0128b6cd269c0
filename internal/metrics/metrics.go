// internal/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HttpRequestsTotal counts HTTP requests handled by the service.
	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of http requests handled by the service.",
		},
		[]string{"path", "method", "code"},
	)

	// SubmissionsTotal counts accepted submissions by form type.
	SubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "submissions_total",
			Help: "Total number of accepted form submissions.",
		},
		[]string{"form"},
	)

	// StageExecutionsTotal counts stage invocations by stage name and outcome.
	StageExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stage_executions_total",
			Help: "Total number of pipeline stage executions.",
		},
		[]string{"stage", "status"},
	)

	// ExecutionsTotal counts finished executions by terminal status.
	ExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "executions_total",
			Help: "Total number of pipeline executions that reached a terminal state.",
		},
		[]string{"status"},
	)

	// ExecutionsInFlight tracks executions currently running the stage chain.
	ExecutionsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "executions_in_flight",
			Help: "Number of pipeline executions currently running.",
		},
	)

	// ExecutionsPurgedTotal counts executions removed by the retention sweep.
	ExecutionsPurgedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "executions_purged_total",
			Help: "Total number of terminal executions purged by retention.",
		},
	)
)

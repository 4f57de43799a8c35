// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the fragmentd gateway.
package observability

import "github.com/prometheus/client_golang/prometheus"

// GenerationBuckets defines histogram buckets suited for model generation
// and sandbox provisioning latencies, ranging from 100ms to 120s.
var GenerationBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

var (
	// RequestsTotal counts all HTTP requests by method and status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fragmentd_requests_total",
			Help: "Total requests",
		},
		[]string{"method", "status"},
	)

	// RequestDuration records HTTP request duration in seconds by method.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fragmentd_request_duration_seconds",
			Help:    "Request duration",
			Buckets: GenerationBuckets,
		},
		[]string{"method"},
	)

	// StreamingConnections tracks the number of active SSE generation streams.
	StreamingConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fragmentd_streaming_connections_active",
			Help: "Active streaming connections",
		},
	)

	// GenerationsTotal counts generations by terminal outcome
	// (completed, failed, cancelled).
	GenerationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fragmentd_generations_total",
			Help: "Generations by outcome",
		},
		[]string{"outcome"},
	)

	// StreamErrorsTotal counts classified model-stream errors.
	StreamErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fragmentd_stream_errors_total",
			Help: "Classified stream errors",
		},
		[]string{"code"},
	)

	// SandboxProvisionsTotal counts sandbox provisioning attempts by
	// template and status.
	SandboxProvisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fragmentd_sandbox_provisions_total",
			Help: "Sandbox provisioning attempts",
		},
		[]string{"template", "status"},
	)

	// SandboxProvisionDuration records sandbox provisioning latency in
	// seconds by template.
	SandboxProvisionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fragmentd_sandbox_provision_duration_seconds",
			Help:    "Sandbox provisioning latency",
			Buckets: GenerationBuckets,
		},
		[]string{"template"},
	)

	// WorkspaceOperationsTotal counts workspace file operations by kind
	// (create, read, write, delete, list).
	WorkspaceOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fragmentd_workspace_operations_total",
			Help: "Workspace file operations",
		},
		[]string{"operation"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		StreamingConnections,
		GenerationsTotal,
		StreamErrorsTotal,
		SandboxProvisionsTotal,
		SandboxProvisionDuration,
		WorkspaceOperationsTotal,
	)
}

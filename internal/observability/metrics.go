package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsCollector holds all Prometheus metrics for opsbox.
// Uses a custom registry — no global state.
type MetricsCollector struct {
	Registry *prometheus.Registry

	// Command execution metrics.
	CommandExecutionsTotal   *prometheus.CounterVec
	CommandExecutionDuration prometheus.Histogram

	// Download metrics.
	DownloadsTotal  *prometheus.CounterVec
	DownloadedBytes prometheus.Counter

	// Log retrieval metrics.
	LogReadsTotal *prometheus.CounterVec

	// HTTP gateway metrics.
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// System metrics.
	ActiveRequests prometheus.Gauge
}

// NewMetricsCollector creates a MetricsCollector with all metrics registered
// on a custom prometheus.Registry.
func NewMetricsCollector() *MetricsCollector {
	reg := prometheus.NewRegistry()

	m := &MetricsCollector{
		Registry: reg,

		CommandExecutionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "opsbox",
			Subsystem: "command",
			Name:      "executions_total",
			Help:      "Total command executions.",
		}, []string{"status"}),

		CommandExecutionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "opsbox",
			Subsystem: "command",
			Name:      "execution_duration_seconds",
			Help:      "Command execution duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		}),

		DownloadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "opsbox",
			Subsystem: "download",
			Name:      "requests_total",
			Help:      "Total file download requests.",
		}, []string{"status"}),

		DownloadedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "opsbox",
			Subsystem: "download",
			Name:      "bytes_total",
			Help:      "Total bytes written by successful downloads.",
		}),

		LogReadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "opsbox",
			Subsystem: "logs",
			Name:      "reads_total",
			Help:      "Total log tail requests.",
		}, []string{"status"}),

		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "opsbox",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		}, []string{"method", "path", "status_code"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "opsbox",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),

		ActiveRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "opsbox",
			Name:      "active_requests",
			Help:      "Number of currently active requests.",
		}),
	}

	reg.MustRegister(
		m.CommandExecutionsTotal,
		m.CommandExecutionDuration,
		m.DownloadsTotal,
		m.DownloadedBytes,
		m.LogReadsTotal,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.ActiveRequests,
	)

	return m
}

// statusCode returns the HTTP status code as a string for metric labels.
func statusCode(code int) string {
	return strconv.Itoa(code)
}

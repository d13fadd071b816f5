// Package observability exposes Prometheus metrics for the diagnostic
// server. The MCP transport owns stdin/stdout, so exposition runs on a
// separate HTTP listener when enabled.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector holds all Prometheus metrics for sysdiag.
// Uses a custom registry, no global state.
type MetricsCollector struct {
	Registry *prometheus.Registry

	// Tool invocation metrics.
	ToolInvocationsTotal   *prometheus.CounterVec
	ToolInvocationDuration *prometheus.HistogramVec

	// Executor metrics.
	CommandExecutionsTotal   *prometheus.CounterVec
	CommandExecutionDuration *prometheus.HistogramVec

	// Safety engine metrics.
	RejectionsTotal *prometheus.CounterVec
}

// NewMetricsCollector creates a MetricsCollector with all metrics
// registered on a custom prometheus.Registry.
func NewMetricsCollector() *MetricsCollector {
	reg := prometheus.NewRegistry()

	m := &MetricsCollector{
		Registry: reg,

		ToolInvocationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sysdiag",
			Subsystem: "tool",
			Name:      "invocations_total",
			Help:      "Total diagnostic tool invocations.",
		}, []string{"tool", "status"}),

		ToolInvocationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sysdiag",
			Subsystem: "tool",
			Name:      "invocation_duration_seconds",
			Help:      "Diagnostic tool invocation duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tool"}),

		CommandExecutionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sysdiag",
			Subsystem: "executor",
			Name:      "executions_total",
			Help:      "Total external command executions by terminal outcome.",
		}, []string{"command", "outcome"}),

		CommandExecutionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sysdiag",
			Subsystem: "executor",
			Name:      "execution_duration_seconds",
			Help:      "External command execution duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"command"}),

		RejectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sysdiag",
			Subsystem: "safety",
			Name:      "rejections_total",
			Help:      "Requests rejected by the safety engine, by kind.",
		}, []string{"kind"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.ToolInvocationsTotal,
		m.ToolInvocationDuration,
		m.CommandExecutionsTotal,
		m.CommandExecutionDuration,
		m.RejectionsTotal,
	)

	return m
}

// Handler returns the exposition handler for the collector's registry.
func (m *MetricsCollector) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

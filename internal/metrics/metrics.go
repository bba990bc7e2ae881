package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	registry *prometheus.Registry

	// Dispatch metrics
	BatchesTotal    prometheus.Counter
	TasksTotal      *prometheus.CounterVec
	TaskDuration    *prometheus.HistogramVec
	TasksInFlight   prometheus.Gauge
	TaskPanicsTotal prometheus.Counter

	// Approval metrics
	ApprovalsTotal *prometheus.CounterVec

	// Tool metrics
	ToolInvocationsTotal *prometheus.CounterVec
	ToolDuration         *prometheus.HistogramVec

	// Model metrics
	ModelCallsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		BatchesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "taskgate_batches_total",
				Help: "Total number of dispatched batches",
			},
		),
		TasksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskgate_tasks_total",
				Help: "Total number of tasks by kind and result status",
			},
			[]string{"kind", "status"},
		),
		TaskDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "taskgate_task_duration_seconds",
				Help:    "Duration of tasks in seconds, approval wait included",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		TasksInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "taskgate_tasks_in_flight",
				Help: "Number of tasks currently held by a worker",
			},
		),
		TaskPanicsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "taskgate_task_panics_total",
				Help: "Total number of recovered task panics",
			},
		),

		ApprovalsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskgate_approvals_total",
				Help: "Total number of approval decisions by tool and status",
			},
			[]string{"tool_name", "status"},
		),

		ToolInvocationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskgate_tool_invocations_total",
				Help: "Total number of gated tool invocations by result status",
			},
			[]string{"tool_name", "status"},
		),
		ToolDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "taskgate_tool_duration_seconds",
				Help:    "Duration of tool collaborator calls in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"tool_name"},
		),

		ModelCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskgate_model_calls_total",
				Help: "Total number of model calls by model and result status",
			},
			[]string{"model", "status"},
		),
	}

	m.registerMetrics()

	return m
}

func (m *Metrics) registerMetrics() {
	m.registry.MustRegister(m.BatchesTotal)
	m.registry.MustRegister(m.TasksTotal)
	m.registry.MustRegister(m.TaskDuration)
	m.registry.MustRegister(m.TasksInFlight)
	m.registry.MustRegister(m.TaskPanicsTotal)

	m.registry.MustRegister(m.ApprovalsTotal)

	m.registry.MustRegister(m.ToolInvocationsTotal)
	m.registry.MustRegister(m.ToolDuration)

	m.registry.MustRegister(m.ModelCallsTotal)
}

// Handler returns an HTTP handler for the metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

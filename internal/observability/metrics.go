package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the pipeline's Prometheus collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	tasks        *prometheus.CounterVec
	taskDuration *prometheus.HistogramVec
	dispatches   *prometheus.CounterVec
	windows      *prometheus.CounterVec
	modelLoads   *prometheus.CounterVec
	extractions  *prometheus.CounterVec
	outcomes     *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on registry. A nil registry yields nil metrics.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		return nil
	}

	m := &Metrics{
		tasks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "study_engine_tasks_total",
				Help: "Total number of tasks by kind and terminal state",
			},
			[]string{"kind", "state"},
		),
		taskDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "study_engine_task_duration_seconds",
				Help:    "Task execution time by kind",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
			},
			[]string{"kind"},
		),
		dispatches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "study_engine_dispatches_total",
				Help: "Total number of model invocations by capability and result",
			},
			[]string{"capability", "result"},
		),
		windows: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "study_engine_windows_total",
				Help: "Text windows considered by summarization, by disposition",
			},
			[]string{"disposition"},
		),
		modelLoads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "study_engine_model_loads_total",
				Help: "Capability load attempts by capability and result",
			},
			[]string{"capability", "result"},
		),
		extractions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "study_engine_extractions_total",
				Help: "Document extractions by format and result",
			},
			[]string{"format", "result"},
		),
		outcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "study_engine_outcome_deliveries_total",
				Help: "Outcome record deliveries by sink and result",
			},
			[]string{"sink", "result"},
		),
	}

	registry.MustRegister(
		m.tasks,
		m.taskDuration,
		m.dispatches,
		m.windows,
		m.modelLoads,
		m.extractions,
		m.outcomes,
	)

	return m
}

// ObserveTask records a finished task.
func (m *Metrics) ObserveTask(kind, state string, d time.Duration) {
	if m == nil {
		return
	}
	m.tasks.WithLabelValues(kind, state).Inc()
	m.taskDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// IncDispatch records one model invocation.
func (m *Metrics) IncDispatch(capability string, err error) {
	if m == nil {
		return
	}
	m.dispatches.WithLabelValues(capability, resultLabel(err)).Inc()
}

// AddWindows records windows by disposition (summarized, skipped, dropped, failed).
func (m *Metrics) AddWindows(disposition string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.windows.WithLabelValues(disposition).Add(float64(n))
}

// IncModelLoad records one capability load attempt.
func (m *Metrics) IncModelLoad(capability string, err error) {
	if m == nil {
		return
	}
	m.modelLoads.WithLabelValues(capability, resultLabel(err)).Inc()
}

// IncExtraction records one extraction attempt.
func (m *Metrics) IncExtraction(format string, err error) {
	if m == nil {
		return
	}
	m.extractions.WithLabelValues(format, resultLabel(err)).Inc()
}

// IncOutcomeDelivery records one outcome delivery to sink (store or publish).
func (m *Metrics) IncOutcomeDelivery(sink string, err error) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(sink, resultLabel(err)).Inc()
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

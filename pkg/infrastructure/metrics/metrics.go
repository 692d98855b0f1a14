// Package metrics provides Prometheus metrics for planning runs.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics of the planner.
type Metrics struct {
	// Run metrics
	RunsTotal *prometheus.CounterVec

	// Window metrics
	WindowsSolved       *prometheus.CounterVec
	WindowsFailed       *prometheus.CounterVec
	WindowSolveDuration *prometheus.HistogramVec
	WindowVariables     prometheus.Histogram
	WindowGap           prometheus.Gauge

	// Plan outcome
	UnitsProduced prometheus.Counter
	UnitsShort    prometheus.Counter
	UnitsDisposed prometheus.Counter
}

// New registers the planner metrics with reg. Each registry may hold one set.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "freshplan"
	}
	factory := promauto.With(reg)

	return &Metrics{
		RunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Total number of planning runs by outcome",
			},
			[]string{"status"},
		),
		WindowsSolved: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "windows_solved_total",
				Help:      "Total number of windows solved, by solver status",
			},
			[]string{"solver", "status"},
		),
		WindowsFailed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "windows_failed_total",
				Help:      "Total number of windows without a usable solution, by cause",
			},
			[]string{"cause"},
		),
		WindowSolveDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "window_solve_duration_seconds",
				Help:      "Time spent in the solver per window",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 15), // 10ms to ~160s
			},
			[]string{"solver"},
		),
		WindowVariables: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "window_variables",
				Help:      "Number of model variables per window",
				Buckets:   prometheus.ExponentialBuckets(10, 4, 8), // 10 to ~160k
			},
		),
		WindowGap: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "window_gap",
				Help:      "Relative gap of the last solved window",
			},
		),
		UnitsProduced: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "units_produced_total",
				Help:      "Units of committed production",
			},
		),
		UnitsShort: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "units_short_total",
				Help:      "Units of committed demand left unserved",
			},
		),
		UnitsDisposed: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "units_disposed_total",
				Help:      "Units of committed stock disposed of at expiry",
			},
		),
	}
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// IncRuns increments the run counter for an outcome.
func (m *Metrics) IncRuns(status string) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(status).Inc()
}

// ObserveWindow records one solved window.
func (m *Metrics) ObserveWindow(solver, status string, seconds float64, variables int, gap float64) {
	if m == nil {
		return
	}
	m.WindowsSolved.WithLabelValues(solver, status).Inc()
	m.WindowSolveDuration.WithLabelValues(solver).Observe(seconds)
	m.WindowVariables.Observe(float64(variables))
	if gap >= 0 {
		m.WindowGap.Set(gap)
	}
}

// IncWindowsFailed increments the failed window counter for a cause.
func (m *Metrics) IncWindowsFailed(cause string) {
	if m == nil {
		return
	}
	m.WindowsFailed.WithLabelValues(cause).Inc()
}

// AddCommitted adds the outcome of a committed window.
func (m *Metrics) AddCommitted(produced, short, disposed float64) {
	if m == nil {
		return
	}
	m.UnitsProduced.Add(produced)
	m.UnitsShort.Add(short)
	m.UnitsDisposed.Add(disposed)
}

// Package metrics exposes Prometheus collectors for the execution plane.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the daemon's collectors. One instance is shared by the
// coordinator (writes) and the gateway (serves /metrics).
type Metrics struct {
	Registry *prometheus.Registry

	RunsStarted  prometheus.Counter
	RunsSkipped  prometheus.Counter
	RunsFinished *prometheus.CounterVec
	RunsInFlight prometheus.Gauge
	RunDuration  prometheus.Histogram
}

// New creates a Metrics with its own registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		RunsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "cronos_runs_started_total",
			Help: "Executions started, scheduled and manual combined.",
		}),
		RunsSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "cronos_runs_skipped_total",
			Help: "Triggers skipped because the job was already running.",
		}),
		RunsFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cronos_runs_finished_total",
			Help: "Finished executions by result.",
		}, []string{"result"}),
		RunsInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "cronos_runs_in_flight",
			Help: "Executions currently running.",
		}),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "cronos_run_duration_seconds",
			Help:    "Wall-clock duration of finished executions.",
			Buckets: prometheus.ExponentialBuckets(0.1, 4, 8),
		}),
	}
}

// ObserveFinished records one finished run.
func (m *Metrics) ObserveFinished(success bool, seconds float64) {
	result := "failure"
	if success {
		result = "success"
	}
	m.RunsFinished.WithLabelValues(result).Inc()
	m.RunDuration.Observe(seconds)
}

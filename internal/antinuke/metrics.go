package antinuke

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exports engine counters. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	outcomes    *prometheus.CounterVec
	punishments *prometheus.CounterVec
	failures    *prometheus.CounterVec
	notifyFails prometheus.Counter
	response    prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "antinuke",
			Name:      "incidents_total",
			Help:      "Evaluated incidents by module and outcome.",
		}, []string{"module", "outcome"}),
		punishments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "antinuke",
			Name:      "punishments_total",
			Help:      "Punishments carried out by kind.",
		}, []string{"kind"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "antinuke",
			Name:      "punishment_failures_total",
			Help:      "Punishments rejected by the platform, by kind.",
		}, []string{"kind"}),
		notifyFails: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "antinuke",
			Name:      "notification_failures_total",
			Help:      "Reports that reached neither the log channel nor the owner.",
		}),
		response: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "antinuke",
			Name:      "response_seconds",
			Help:      "Time from detection to completed punishment.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}),
	}
	if reg != nil {
		reg.MustRegister(m.outcomes, m.punishments, m.failures, m.notifyFails, m.response)
	}
	return m
}

func (m *Metrics) observeOutcome(module ModuleID, outcome Outcome) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(string(module), string(outcome)).Inc()
}

func (m *Metrics) observePunishment(kind Punishment, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.punishments.WithLabelValues(string(kind)).Inc()
	m.response.Observe(elapsed.Seconds())
}

func (m *Metrics) observeFailure(kind Punishment) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) observeNotifyFailure() {
	if m == nil {
		return
	}
	m.notifyFails.Inc()
}

// Package metrics exposes Prometheus instrumentation for detection.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Evaluations *prometheus.CounterVec
	RuleHits    *prometheus.CounterVec
	Failures    *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		Evaluations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "attest_detect_evaluations_total",
			Help: "Rule evaluations performed.",
		}, []string{"rule"}),
		RuleHits: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "attest_detect_hits_total",
			Help: "Evaluations that raised an alert.",
		}, []string{"rule"}),
		Failures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "attest_detect_failures_total",
			Help: "Rule evaluation or alert delivery failures.",
		}, []string{"rule"}),
	}
}

func (m *Metrics) IncEvaluation(rule string) {
	if m == nil {
		return
	}
	m.Evaluations.WithLabelValues(rule).Inc()
}

func (m *Metrics) IncHit(rule string) {
	if m == nil {
		return
	}
	m.RuleHits.WithLabelValues(rule).Inc()
}

func (m *Metrics) IncFailure(rule string) {
	if m == nil {
		return
	}
	m.Failures.WithLabelValues(rule).Inc()
}

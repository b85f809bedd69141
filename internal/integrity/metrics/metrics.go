// Package metrics exposes Prometheus instrumentation for integrity checks.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Verifications *prometheus.CounterVec
	Violations    *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		Verifications: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "attest_integrity_verifications_total",
			Help: "Integrity verifications performed, by entity and result.",
		}, []string{"entity", "result"}),
		Violations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "attest_integrity_violations_total",
			Help: "Tamper signals detected.",
		}, []string{"entity"}),
	}
}

func (m *Metrics) IncVerification(entity, result string) {
	if m == nil {
		return
	}
	m.Verifications.WithLabelValues(entity, result).Inc()
}

func (m *Metrics) IncViolation(entity string) {
	if m == nil {
		return
	}
	m.Violations.WithLabelValues(entity).Inc()
}

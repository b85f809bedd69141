// Package metrics exposes Prometheus instrumentation for alerting.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	AlertsRaised *prometheus.CounterVec
	Transitions  *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		AlertsRaised: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "attest_alerts_raised_total",
			Help: "Alerts raised, by kind and severity.",
		}, []string{"kind", "severity"}),
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "attest_alert_transitions_total",
			Help: "Alert lifecycle transitions.",
		}, []string{"to"}),
	}
}

func (m *Metrics) IncRaised(kind, severity string) {
	if m == nil {
		return
	}
	m.AlertsRaised.WithLabelValues(kind, severity).Inc()
}

func (m *Metrics) IncTransition(to string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(to).Inc()
}

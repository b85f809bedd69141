// Package metrics exposes Prometheus instrumentation for compliance
// assessments.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Assessments         *prometheus.CounterVec
	AssessmentDuration  prometheus.Histogram
	RequirementFailures prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		Assessments: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "attest_compliance_assessments_total",
			Help: "Completed assessments, by framework and outcome.",
		}, []string{"framework", "outcome"}),
		AssessmentDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "attest_compliance_assessment_duration_seconds",
			Help:    "Duration of full framework assessments.",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		RequirementFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "attest_compliance_requirement_failures_total",
			Help: "Requirement evaluations that failed and were scored as gaps.",
		}),
	}
}

func (m *Metrics) IncAssessment(framework, outcome string) {
	if m == nil {
		return
	}
	m.Assessments.WithLabelValues(framework, outcome).Inc()
}

func (m *Metrics) ObserveAssessment(d time.Duration) {
	if m == nil {
		return
	}
	m.AssessmentDuration.Observe(d.Seconds())
}

func (m *Metrics) IncRequirementFailure() {
	if m == nil {
		return
	}
	m.RequirementFailures.Inc()
}

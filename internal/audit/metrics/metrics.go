package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the audit module.
type Metrics struct {
	EventsRecorded    *prometheus.CounterVec
	RecordFailures    *prometheus.CounterVec
	RecordLatency     prometheus.Histogram
	EventsPurged      prometheus.Counter
	IndexEnqueueDrops prometheus.Counter
}

// New creates a Metrics instance with all audit module metrics registered.
func New() *Metrics {
	return &Metrics{
		EventsRecorded: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "attest_audit_events_recorded_total",
			Help: "Total audit events recorded by type and outcome",
		}, []string{"event_type", "outcome"}),

		RecordFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "attest_audit_record_failures_total",
			Help: "Total record failures by stage (validate, sign, persist)",
		}, []string{"stage"}),

		RecordLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "attest_audit_record_duration_seconds",
			Help:    "Duration of recordEvent including signing and persistence",
			Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
		}),

		EventsPurged: promauto.NewCounter(prometheus.CounterOpts{
			Name: "attest_audit_events_purged_total",
			Help: "Total audit events removed by the retention purge",
		}),

		IndexEnqueueDrops: promauto.NewCounter(prometheus.CounterOpts{
			Name: "attest_audit_index_enqueue_drops_total",
			Help: "Recorded events the indexing sink could not accept",
		}),
	}
}

// IncRecorded records a successful event write.
func (m *Metrics) IncRecorded(eventType, outcome string) {
	if m != nil {
		m.EventsRecorded.WithLabelValues(eventType, outcome).Inc()
	}
}

// IncFailure records a failed record attempt at a pipeline stage.
func (m *Metrics) IncFailure(stage string) {
	if m != nil {
		m.RecordFailures.WithLabelValues(stage).Inc()
	}
}

// ObserveRecordLatency records end-to-end record duration.
func (m *Metrics) ObserveRecordLatency(d time.Duration) {
	if m != nil {
		m.RecordLatency.Observe(d.Seconds())
	}
}

// AddPurged records retention purge volume.
func (m *Metrics) AddPurged(n int64) {
	if m != nil {
		m.EventsPurged.Add(float64(n))
	}
}

// IncEnqueueDrop records an index sink rejection.
func (m *Metrics) IncEnqueueDrop() {
	if m != nil {
		m.IndexEnqueueDrops.Inc()
	}
}

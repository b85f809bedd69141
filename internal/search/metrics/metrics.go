// Package metrics exposes Prometheus instrumentation for the search index.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	DocumentsIndexed prometheus.Counter
	IndexFailures    prometheus.Counter
	FlushLatency     prometheus.Histogram
	BufferDepth      prometheus.Gauge
	BufferDrops      prometheus.Counter
	SearchLatency    prometheus.Histogram
	BreakerOpen      prometheus.Gauge
}

func New() *Metrics {
	return &Metrics{
		DocumentsIndexed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "attest_search_documents_indexed_total",
			Help: "Audit documents successfully written to the search index.",
		}),
		IndexFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "attest_search_index_failures_total",
			Help: "Failed index flush attempts.",
		}),
		FlushLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "attest_search_flush_duration_seconds",
			Help:    "Duration of bulk index flushes.",
			Buckets: prometheus.DefBuckets,
		}),
		BufferDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "attest_search_buffer_depth",
			Help: "Events waiting in the index buffer.",
		}),
		BufferDrops: promauto.NewCounter(prometheus.CounterOpts{
			Name: "attest_search_buffer_drops_total",
			Help: "Events dropped because the index buffer was full.",
		}),
		SearchLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "attest_search_query_duration_seconds",
			Help:    "Duration of search queries.",
			Buckets: prometheus.DefBuckets,
		}),
		BreakerOpen: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "attest_search_breaker_open",
			Help: "1 when the index circuit breaker is open.",
		}),
	}
}

func (m *Metrics) AddIndexed(n int) {
	if m == nil {
		return
	}
	m.DocumentsIndexed.Add(float64(n))
}

func (m *Metrics) IncIndexFailure() {
	if m == nil {
		return
	}
	m.IndexFailures.Inc()
}

func (m *Metrics) ObserveFlush(d time.Duration) {
	if m == nil {
		return
	}
	m.FlushLatency.Observe(d.Seconds())
}

func (m *Metrics) SetBufferDepth(n int) {
	if m == nil {
		return
	}
	m.BufferDepth.Set(float64(n))
}

func (m *Metrics) IncBufferDrop() {
	if m == nil {
		return
	}
	m.BufferDrops.Inc()
}

func (m *Metrics) ObserveSearch(d time.Duration) {
	if m == nil {
		return
	}
	m.SearchLatency.Observe(d.Seconds())
}

func (m *Metrics) SetBreakerOpen(open bool) {
	if m == nil {
		return
	}
	if open {
		m.BreakerOpen.Set(1)
	} else {
		m.BreakerOpen.Set(0)
	}
}

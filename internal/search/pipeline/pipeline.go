// Package pipeline moves recorded audit events into the search index in
// batches. Indexing is asynchronous and best-effort: the primary store has
// already committed by the time an event reaches this package, so a full
// buffer or a dead backend never blocks or fails a write.
package pipeline

import (
	"context"
	"io"
	"log/slog"
	"time"

	"attest/internal/audit/models"
	"attest/internal/search"
	"attest/internal/search/metrics"
)

const (
	DefaultBatchSize     = 100
	DefaultFlushInterval = 2 * time.Second
)

// Pipeline buffers events and flushes them to an Indexer. It implements the
// recorder's IndexSink port.
type Pipeline struct {
	indexer search.Indexer
	buffer  *ringBuffer
	breaker *circuitBreaker
	logger  *slog.Logger
	metrics *metrics.Metrics

	batchSize     int
	flushInterval time.Duration

	flushNow chan struct{}
	done     chan struct{}
}

type Option func(*Pipeline)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

func WithBatchSize(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

func WithFlushInterval(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.flushInterval = d
		}
	}
}

func WithBufferCapacity(n int) Option {
	return func(p *Pipeline) { p.buffer = newRingBuffer(n) }
}

func WithBreaker(threshold int, cooldown time.Duration) Option {
	return func(p *Pipeline) { p.breaker = newCircuitBreaker(threshold, cooldown) }
}

func New(indexer search.Indexer, opts ...Option) *Pipeline {
	p := &Pipeline{
		indexer:       indexer,
		buffer:        newRingBuffer(0),
		breaker:       newCircuitBreaker(0, 0),
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		batchSize:     DefaultBatchSize,
		flushInterval: DefaultFlushInterval,
		flushNow:      make(chan struct{}, 1),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Enqueue stages one event for indexing. Returns false when the buffer is
// full; the event is then lost to the index but still safe in the store.
func (p *Pipeline) Enqueue(event models.AuditEvent) bool {
	ok := p.buffer.tryEnqueue(event)
	if !ok {
		p.metrics.IncBufferDrop()
	}
	p.metrics.SetBufferDepth(p.buffer.len())

	// Wake the flush loop early when a batch is ready.
	if p.buffer.len() >= p.batchSize {
		select {
		case p.flushNow <- struct{}{}:
		default:
		}
	}
	return ok
}

// Run drives the flush loop until ctx is cancelled, then drains what it can.
func (p *Pipeline) Run(ctx context.Context) {
	defer close(p.done)
	ticker := time.NewTicker(p.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.drain()
			return
		case <-ticker.C:
			p.flush(context.Background())
		case <-p.flushNow:
			p.flush(context.Background())
		}
	}
}

// Wait blocks until Run has returned.
func (p *Pipeline) Wait() { <-p.done }

// Dropped reports how many events were lost to buffer pressure.
func (p *Pipeline) Dropped() int64 { return p.buffer.droppedCount() }

func (p *Pipeline) flush(ctx context.Context) {
	if !p.breaker.allow() {
		p.metrics.SetBreakerOpen(true)
		return
	}
	p.metrics.SetBreakerOpen(false)

	for {
		batch := p.buffer.dequeueBatch(p.batchSize)
		if len(batch) == 0 {
			p.metrics.SetBufferDepth(0)
			return
		}

		started := time.Now()
		flushCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err := p.indexer.BulkIndex(flushCtx, batch)
		cancel()
		p.metrics.ObserveFlush(time.Since(started))

		if err != nil {
			p.breaker.recordFailure()
			p.metrics.IncIndexFailure()
			p.metrics.SetBreakerOpen(p.breaker.open())
			p.buffer.requeueFront(batch)
			p.logger.Warn("index flush failed, events requeued",
				"batch_size", len(batch),
				"buffered", p.buffer.len(),
				"error", err,
			)
			return
		}

		p.breaker.recordSuccess()
		p.metrics.AddIndexed(len(batch))
		p.metrics.SetBufferDepth(p.buffer.len())
	}
}

// drain makes a best-effort final flush on shutdown. Whatever the backend
// refuses is logged and abandoned; the store still holds every event.
func (p *Pipeline) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for {
		batch := p.buffer.dequeueBatch(p.batchSize)
		if len(batch) == 0 {
			return
		}
		if err := p.indexer.BulkIndex(ctx, batch); err != nil {
			p.logger.Warn("final index drain failed",
				"remaining", p.buffer.len()+len(batch),
				"error", err,
			)
			return
		}
		p.metrics.AddIndexed(len(batch))
	}
}

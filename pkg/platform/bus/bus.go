// Package bus provides a typed in-process event bus with named subscribers.
//
// Consumers register explicitly under a name, so the set of listeners for a
// topic is visible at wiring time rather than discovered at runtime. Each
// subscriber gets a bounded buffer; a slow subscriber drops its own messages
// instead of blocking the publisher or its peers.
package bus

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Handler processes one published value.
type Handler[T any] func(ctx context.Context, v T)

// Bus fans values out to named subscribers.
type Bus[T any] struct {
	mu     sync.RWMutex
	subs   []*subscriber[T]
	logger *slog.Logger
	closed bool
}

type subscriber[T any] struct {
	name    string
	ch      chan T
	dropped atomic.Int64
}

// Option configures the Bus.
type Option[T any] func(*Bus[T])

// WithLogger sets a logger for drop reporting.
func WithLogger[T any](logger *slog.Logger) Option[T] {
	return func(b *Bus[T]) { b.logger = logger }
}

// New creates an empty bus.
func New[T any](opts ...Option[T]) *Bus[T] {
	b := &Bus[T]{}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers a named handler with a bounded buffer and starts its
// delivery goroutine. The goroutine exits when ctx is cancelled.
func (b *Bus[T]) Subscribe(ctx context.Context, name string, buffer int, h Handler[T]) {
	if buffer <= 0 {
		buffer = 256
	}
	sub := &subscriber[T]{name: name, ch: make(chan T, buffer)}

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case v := <-sub.ch:
				h(ctx, v)
			}
		}
	}()
}

// Publish delivers v to every subscriber without blocking. Subscribers whose
// buffer is full drop the value; drops are counted per subscriber.
func (b *Bus[T]) Publish(ctx context.Context, v T) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, sub := range b.subs {
		select {
		case sub.ch <- v:
		default:
			n := sub.dropped.Add(1)
			if b.logger != nil {
				b.logger.WarnContext(ctx, "bus subscriber buffer full, dropping",
					"subscriber", sub.name,
					"dropped_total", n,
				)
			}
		}
	}
}

// Dropped returns the number of values dropped for a named subscriber.
func (b *Bus[T]) Dropped(name string) int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if sub.name == name {
			return sub.dropped.Load()
		}
	}
	return 0
}

// Close stops accepting publishes. Subscriber goroutines stop via their
// subscription contexts.
func (b *Bus[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
}

package pipeline

import (
	"sync"

	"attest/internal/audit/models"
)

// ringBuffer is a bounded, thread-safe staging buffer for events awaiting
// indexing. When full, new events are rejected rather than silently dropped;
// the caller decides whether a rejection matters.
type ringBuffer struct {
	mu       sync.Mutex
	events   []models.AuditEvent
	head     int // next write position
	tail     int // next read position
	count    int
	capacity int

	dropped int64
}

func newRingBuffer(capacity int) *ringBuffer {
	if capacity <= 0 {
		capacity = 10000
	}
	return &ringBuffer{
		events:   make([]models.AuditEvent, capacity),
		capacity: capacity,
	}
}

// tryEnqueue adds an event, returning false when the buffer is full.
func (b *ringBuffer) tryEnqueue(event models.AuditEvent) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count >= b.capacity {
		b.dropped++
		return false
	}

	b.events[b.head] = event
	b.head = (b.head + 1) % b.capacity
	b.count++
	return true
}

// requeueFront puts events back at the read side after a failed flush so
// ordering is preserved on retry. Events that no longer fit are dropped.
func (b *ringBuffer) requeueFront(events []models.AuditEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i := len(events) - 1; i >= 0; i-- {
		if b.count >= b.capacity {
			b.dropped += int64(i + 1)
			return
		}
		b.tail = (b.tail - 1 + b.capacity) % b.capacity
		b.events[b.tail] = events[i]
		b.count++
	}
}

// dequeueBatch removes up to n events from the buffer.
func (b *ringBuffer) dequeueBatch(n int) []models.AuditEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == 0 {
		return nil
	}
	if n > b.count {
		n = b.count
	}

	result := make([]models.AuditEvent, n)
	for i := 0; i < n; i++ {
		result[i] = b.events[b.tail]
		b.tail = (b.tail + 1) % b.capacity
	}
	b.count -= n
	return result
}

func (b *ringBuffer) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

func (b *ringBuffer) droppedCount() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

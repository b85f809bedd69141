package detect

import (
	"context"
	"time"
)

// WindowStore tracks per-key activity in a sliding window and carries the
// one-shot latch the frequency rule uses to avoid re-alerting on every event
// past the threshold.
type WindowStore interface {
	// Add records one occurrence at ts and returns how many occurrences
	// fall inside [ts-window, ts].
	Add(ctx context.Context, key string, ts time.Time, window time.Duration) (int64, error)

	// TryLatch sets the latch for key if it is not already set, returning
	// true when this caller acquired it. The latch expires after ttl.
	TryLatch(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Unlatch clears the latch so the next breach alerts again.
	Unlatch(ctx context.Context, key string) error
}

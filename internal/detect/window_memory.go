package detect

import (
	"context"
	"sync"
	"time"
)

// MemoryWindowStore keeps sliding windows as timestamp slices. Suitable for
// a single node; use the redis store when detection runs on several.
type MemoryWindowStore struct {
	mu      sync.Mutex
	windows map[string][]time.Time
	latches map[string]time.Time // key -> expiry
}

func NewMemoryWindowStore() *MemoryWindowStore {
	return &MemoryWindowStore{
		windows: make(map[string][]time.Time),
		latches: make(map[string]time.Time),
	}
}

func (s *MemoryWindowStore) Add(_ context.Context, key string, ts time.Time, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := ts.Add(-window)
	kept := s.windows[key][:0]
	for _, t := range s.windows[key] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	kept = append(kept, ts)
	s.windows[key] = kept
	return int64(len(kept)), nil
}

func (s *MemoryWindowStore) TryLatch(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if expiry, ok := s.latches[key]; ok && time.Now().Before(expiry) {
		return false, nil
	}
	s.latches[key] = time.Now().Add(ttl)
	return true, nil
}

func (s *MemoryWindowStore) Unlatch(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.latches, key)
	return nil
}

package event

import (
	"context"
	"sort"
	"sync"
	"time"

	"attest/internal/audit/models"
	id "attest/pkg/domain"
	"attest/pkg/platform/sentinel"
)

// InMemoryStore is an append-only in-memory event store for tests and
// single-process deployments. For production, use the postgres store.
type InMemoryStore struct {
	mu     sync.RWMutex
	events map[id.EventID]models.AuditEvent
}

// NewInMemoryStore creates an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{events: make(map[id.EventID]models.AuditEvent)}
}

// Append stores an event. Re-appending an existing ID is a conflict: events
// are written exactly once.
func (s *InMemoryStore) Append(_ context.Context, event models.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.events[event.EventID]; exists {
		return sentinel.ErrConflict
	}
	s.events[event.EventID] = event
	return nil
}

// GetByID loads a stored event.
func (s *InMemoryStore) GetByID(_ context.Context, eventID id.EventID) (models.AuditEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	event, ok := s.events[eventID]
	if !ok {
		return models.AuditEvent{}, sentinel.ErrNotFound
	}
	return event, nil
}

// ListByCompany returns a tenant's events in [from, to], newest first.
func (s *InMemoryStore) ListByCompany(_ context.Context, companyID id.CompanyID, from, to time.Time, limit int) ([]models.AuditEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.AuditEvent
	for _, event := range s.events {
		if event.CompanyID != companyID {
			continue
		}
		if event.Timestamp.Before(from) || event.Timestamp.After(to) {
			continue
		}
		out = append(out, event)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// PurgeBefore removes a tenant's events older than cutoff.
func (s *InMemoryStore) PurgeBefore(_ context.Context, companyID id.CompanyID, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var purged int64
	for eventID, event := range s.events {
		if event.CompanyID == companyID && event.Timestamp.Before(cutoff) {
			delete(s.events, eventID)
			purged++
		}
	}
	return purged, nil
}

// Tamper overwrites a stored event out-of-band. Only for integrity tests:
// production code has no mutation path.
func (s *InMemoryStore) Tamper(eventID id.EventID, mutate func(*models.AuditEvent)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	event, ok := s.events[eventID]
	if !ok {
		return false
	}
	mutate(&event)
	s.events[eventID] = event
	return true
}

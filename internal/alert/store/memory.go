package store

import (
	"context"
	"sort"
	"sync"

	"attest/internal/alert/models"
	id "attest/pkg/domain"
	"attest/pkg/platform/sentinel"
)

// InMemory is a map-backed alert store for tests and single-node setups.
type InMemory struct {
	mu     sync.RWMutex
	alerts map[id.AlertID]models.Alert
}

func NewInMemory() *InMemory {
	return &InMemory{alerts: make(map[id.AlertID]models.Alert)}
}

func (s *InMemory) Create(_ context.Context, alert models.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.alerts[alert.AlertID]; exists {
		return sentinel.ErrConflict
	}
	s.alerts[alert.AlertID] = alert
	return nil
}

func (s *InMemory) GetByID(_ context.Context, alertID id.AlertID) (models.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	alert, ok := s.alerts[alertID]
	if !ok {
		return models.Alert{}, sentinel.ErrNotFound
	}
	return alert, nil
}

func (s *InMemory) Update(_ context.Context, alert models.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.alerts[alert.AlertID]; !ok {
		return sentinel.ErrNotFound
	}
	s.alerts[alert.AlertID] = alert
	return nil
}

func (s *InMemory) ListByCompany(_ context.Context, companyID id.CompanyID, status models.Status, limit int) ([]models.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Alert
	for _, alert := range s.alerts {
		if alert.CompanyID != companyID {
			continue
		}
		if status != "" && alert.Status != status {
			continue
		}
		out = append(out, alert)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

package store

import (
	"context"
	"sort"
	"sync"

	"attest/internal/compliance/models"
	id "attest/pkg/domain"
	"attest/pkg/platform/sentinel"
)

// MemoryReportStore is a map-backed report store with the same transition
// guards as the postgres implementation.
type MemoryReportStore struct {
	mu      sync.Mutex
	reports map[id.ReportID]models.Report
}

func NewMemoryReportStore() *MemoryReportStore {
	return &MemoryReportStore{reports: make(map[id.ReportID]models.Report)}
}

func (s *MemoryReportStore) Create(_ context.Context, report models.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.reports[report.ReportID]; exists {
		return sentinel.ErrConflict
	}
	s.reports[report.ReportID] = report
	return nil
}

func (s *MemoryReportStore) GetByID(_ context.Context, reportID id.ReportID) (models.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	report, ok := s.reports[reportID]
	if !ok {
		return models.Report{}, sentinel.ErrNotFound
	}
	return report, nil
}

// Finalize replaces the stored report iff it is still DRAFT.
func (s *MemoryReportStore) Finalize(_ context.Context, report models.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.reports[report.ReportID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if stored.Status != models.ReportDraft {
		return sentinel.ErrInvalidState
	}
	s.reports[report.ReportID] = report
	return nil
}

// MarkSubmitted moves a FINAL report to SUBMITTED without touching content.
func (s *MemoryReportStore) MarkSubmitted(_ context.Context, reportID id.ReportID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.reports[reportID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if stored.Status != models.ReportFinal {
		return sentinel.ErrInvalidState
	}
	stored.Status = models.ReportSubmitted
	s.reports[reportID] = stored
	return nil
}

func (s *MemoryReportStore) ListByCompany(_ context.Context, companyID id.CompanyID, limit int) ([]models.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Report
	for _, report := range s.reports {
		if report.CompanyID == companyID {
			out = append(out, report)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GeneratedAt.After(out[j].GeneratedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Tamper mutates a stored report in place, bypassing the transition guards.
// Only for integrity tests: production code has no mutation path.
func (s *MemoryReportStore) Tamper(reportID id.ReportID, mutate func(*models.Report)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	report, ok := s.reports[reportID]
	if !ok {
		return false
	}
	mutate(&report)
	s.reports[reportID] = report
	return true
}

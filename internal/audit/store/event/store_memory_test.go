package event

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"attest/internal/audit/models"
	id "attest/pkg/domain"
	"attest/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store   *InMemoryStore
	ctx     context.Context
	company id.CompanyID
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.ctx = context.Background()
	s.company = id.CompanyID(uuid.New())
}

func (s *InMemoryStoreSuite) newEvent(ts time.Time) models.AuditEvent {
	return models.AuditEvent{
		EventID:     id.NewEventID(),
		Timestamp:   models.NormalizeTimestamp(ts),
		CompanyID:   s.company,
		EventType:   models.EventTypeAccess,
		Category:    "DATA_ACCESS",
		Severity:    models.SeverityInfo,
		Action:      "VIEW",
		Description: "viewed document",
		Outcome:     models.OutcomeSuccess,
	}
}

func (s *InMemoryStoreSuite) TestAppendAndGet() {
	event := s.newEvent(time.Now())
	s.Require().NoError(s.store.Append(s.ctx, event))

	got, err := s.store.GetByID(s.ctx, event.EventID)
	s.Require().NoError(err)
	s.Equal(event, got)
}

func (s *InMemoryStoreSuite) TestAppendDuplicateIDConflicts() {
	event := s.newEvent(time.Now())
	s.Require().NoError(s.store.Append(s.ctx, event))
	s.ErrorIs(s.store.Append(s.ctx, event), sentinel.ErrConflict)
}

func (s *InMemoryStoreSuite) TestGetMissingReturnsNotFound() {
	_, err := s.store.GetByID(s.ctx, id.NewEventID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemoryStoreSuite) TestListByCompanyOrdersNewestFirst() {
	base := time.Now().Add(-time.Hour)
	older := s.newEvent(base)
	newer := s.newEvent(base.Add(30 * time.Minute))
	s.Require().NoError(s.store.Append(s.ctx, older))
	s.Require().NoError(s.store.Append(s.ctx, newer))

	// An event from another tenant must not leak in.
	other := s.newEvent(base.Add(10 * time.Minute))
	other.CompanyID = id.CompanyID(uuid.New())
	s.Require().NoError(s.store.Append(s.ctx, other))

	got, err := s.store.ListByCompany(s.ctx, s.company, base.Add(-time.Minute), time.Now(), 10)
	s.Require().NoError(err)
	s.Require().Len(got, 2)
	s.Equal(newer.EventID, got[0].EventID)
	s.Equal(older.EventID, got[1].EventID)
}

func (s *InMemoryStoreSuite) TestListRespectsLimit() {
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		s.Require().NoError(s.store.Append(s.ctx, s.newEvent(base.Add(time.Duration(i)*time.Minute))))
	}
	got, err := s.store.ListByCompany(s.ctx, s.company, base.Add(-time.Minute), time.Now(), 3)
	s.Require().NoError(err)
	s.Len(got, 3)
}

func (s *InMemoryStoreSuite) TestPurgeBefore() {
	cutoff := time.Now().Add(-24 * time.Hour)
	old := s.newEvent(cutoff.Add(-time.Hour))
	recent := s.newEvent(time.Now())
	s.Require().NoError(s.store.Append(s.ctx, old))
	s.Require().NoError(s.store.Append(s.ctx, recent))

	purged, err := s.store.PurgeBefore(s.ctx, s.company, cutoff)
	s.Require().NoError(err)
	s.Equal(int64(1), purged)

	_, err = s.store.GetByID(s.ctx, old.EventID)
	s.ErrorIs(err, sentinel.ErrNotFound)
	_, err = s.store.GetByID(s.ctx, recent.EventID)
	s.NoError(err)
}

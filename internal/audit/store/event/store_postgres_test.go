package event

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/suite"

	"attest/internal/audit/models"
	"attest/internal/signing"
	id "attest/pkg/domain"
	"attest/pkg/platform/sentinel"
)

// Runs only against a real database; set ATTEST_TEST_DATABASE_URL to enable.
type PostgresStoreSuite struct {
	suite.Suite
	pool    *pgxpool.Pool
	store   *PostgresStore
	company id.CompanyID
}

func TestPostgresStoreSuite(t *testing.T) {
	if os.Getenv("ATTEST_TEST_DATABASE_URL") == "" {
		t.Skip("ATTEST_TEST_DATABASE_URL not set")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	pool, err := pgxpool.New(context.Background(), os.Getenv("ATTEST_TEST_DATABASE_URL"))
	s.Require().NoError(err)
	_, err = pool.Exec(context.Background(), Schema)
	s.Require().NoError(err)
	s.pool = pool
	s.store = NewPostgresStore(pool)
}

func (s *PostgresStoreSuite) TearDownSuite() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *PostgresStoreSuite) SetupTest() {
	s.company = id.CompanyID(uuid.New())
}

func (s *PostgresStoreSuite) signedEvent(action string, at time.Time) models.AuditEvent {
	event := models.AuditEvent{
		EventID:           id.NewEventID(),
		Timestamp:         models.NormalizeTimestamp(at),
		CompanyID:         s.company,
		EventType:         models.EventTypeAccess,
		Category:          "DATA_ACCESS",
		Severity:          models.SeverityInfo,
		Action:            action,
		Description:       "postgres round-trip",
		Outcome:           models.OutcomeSuccess,
		SigningKeyVersion: "v1",
	}
	canonical, err := signing.Canonicalize(event, "checksum", "digitalSignature")
	s.Require().NoError(err)
	event.Checksum = signing.Checksum(canonical)
	event.DigitalSignature = "sig-" + event.Checksum[:16]
	return event
}

// The payload column must reproduce the signed document byte-for-byte after
// a round-trip, otherwise every stored event would verify as tampered.
func (s *PostgresStoreSuite) TestRoundTripPreservesCanonicalForm() {
	event := s.signedEvent("VIEW", time.Now())
	s.Require().NoError(s.store.Append(context.Background(), event))

	loaded, err := s.store.GetByID(context.Background(), event.EventID)
	s.Require().NoError(err)

	canonical, err := signing.Canonicalize(loaded, "checksum", "digitalSignature")
	s.Require().NoError(err)
	s.Equal(event.Checksum, signing.Checksum(canonical))
	s.Equal(event.DigitalSignature, loaded.DigitalSignature)
	s.Equal(event.Timestamp, loaded.Timestamp)
}

func (s *PostgresStoreSuite) TestGetMissingReturnsNotFound() {
	_, err := s.store.GetByID(context.Background(), id.NewEventID())
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestListIsTenantScopedAndNewestFirst() {
	base := time.Now().Add(-time.Hour)
	older := s.signedEvent("VIEW", base)
	newer := s.signedEvent("DOWNLOAD", base.Add(10*time.Minute))
	s.Require().NoError(s.store.Append(context.Background(), older))
	s.Require().NoError(s.store.Append(context.Background(), newer))

	foreign := s.signedEvent("VIEW", base)
	foreign.EventID = id.NewEventID()
	foreign.CompanyID = id.CompanyID(uuid.New())
	s.Require().NoError(s.store.Append(context.Background(), foreign))

	events, err := s.store.ListByCompany(context.Background(), s.company, base.Add(-time.Minute), time.Now(), 10)
	s.Require().NoError(err)
	s.Require().Len(events, 2)
	s.Equal(newer.EventID, events[0].EventID)
	s.Equal(older.EventID, events[1].EventID)
}

func (s *PostgresStoreSuite) TestPurgeBeforeCountsDeletions() {
	base := time.Now().Add(-48 * time.Hour)
	s.Require().NoError(s.store.Append(context.Background(), s.signedEvent("VIEW", base)))
	s.Require().NoError(s.store.Append(context.Background(), s.signedEvent("VIEW", time.Now())))

	purged, err := s.store.PurgeBefore(context.Background(), s.company, time.Now().Add(-24*time.Hour))
	s.Require().NoError(err)
	s.Equal(int64(1), purged)

	events, err := s.store.ListByCompany(context.Background(), s.company, time.Time{}, time.Now(), 10)
	s.Require().NoError(err)
	s.Len(events, 1)
}

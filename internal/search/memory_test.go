package search

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attest/internal/audit/models"
	id "attest/pkg/domain"
	dErrors "attest/pkg/domain-errors"
)

func testEvent(company id.CompanyID, ts time.Time) models.AuditEvent {
	return models.AuditEvent{
		EventID:     id.NewEventID(),
		Timestamp:   models.NormalizeTimestamp(ts),
		CompanyID:   company,
		EventType:   models.EventTypeAccess,
		Category:    "DATA_ACCESS",
		Severity:    models.SeverityInfo,
		Action:      "VIEW",
		Description: "viewed quarterly report",
		Outcome:     models.OutcomeSuccess,
	}
}

func TestSearchRequiresCompanyID(t *testing.T) {
	indexer := NewMemoryIndexer()
	_, err := indexer.Search(context.Background(), Criteria{})
	require.Error(t, err)
	assert.Equal(t, dErrors.CodeInvalidInput, dErrors.CodeOf(err))
}

func TestBulkIndexIsIdempotent(t *testing.T) {
	indexer := NewMemoryIndexer()
	company := id.CompanyID(uuid.New())

	events := []models.AuditEvent{
		testEvent(company, time.Now()),
		testEvent(company, time.Now().Add(time.Minute)),
		testEvent(company, time.Now().Add(2*time.Minute)),
	}
	require.NoError(t, indexer.BulkIndex(context.Background(), events))
	require.NoError(t, indexer.BulkIndex(context.Background(), events))
	require.NoError(t, indexer.Index(context.Background(), events[0]))

	assert.Equal(t, 3, indexer.Size())

	result, err := indexer.Search(context.Background(), Criteria{CompanyID: company})
	require.NoError(t, err)
	assert.Equal(t, int64(3), result.Total)
}

func TestSearchFiltersAndTenantIsolation(t *testing.T) {
	indexer := NewMemoryIndexer()
	company := id.CompanyID(uuid.New())
	other := id.CompanyID(uuid.New())

	mine := testEvent(company, time.Now())
	mine.Severity = models.SeverityHigh
	theirs := testEvent(other, time.Now())
	theirs.Severity = models.SeverityHigh
	require.NoError(t, indexer.BulkIndex(context.Background(), []models.AuditEvent{mine, theirs}))

	result, err := indexer.Search(context.Background(), Criteria{
		CompanyID:  company,
		Severities: []models.Severity{models.SeverityHigh},
	})
	require.NoError(t, err)
	require.Len(t, result.Hits, 1)
	assert.Equal(t, mine.EventID, result.Hits[0].EventID)
}

func TestSearchFreeTextAndPeriod(t *testing.T) {
	indexer := NewMemoryIndexer()
	company := id.CompanyID(uuid.New())
	base := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

	hit := testEvent(company, base)
	hit.Description = "exported customer ledger"
	miss := testEvent(company, base.Add(48*time.Hour))
	miss.Description = "exported customer ledger"
	require.NoError(t, indexer.BulkIndex(context.Background(), []models.AuditEvent{hit, miss}))

	result, err := indexer.Search(context.Background(), Criteria{
		CompanyID: company,
		FreeText:  "ledger",
		Period:    Period{Start: base.Add(-time.Hour), End: base.Add(time.Hour)},
	})
	require.NoError(t, err)
	require.Len(t, result.Hits, 1)
	assert.Equal(t, hit.EventID, result.Hits[0].EventID)
}

func TestSearchOrdersNewestFirstAndPaginates(t *testing.T) {
	indexer := NewMemoryIndexer()
	company := id.CompanyID(uuid.New())
	base := time.Now().Add(-time.Hour)

	for i := 0; i < 5; i++ {
		require.NoError(t, indexer.Index(context.Background(), testEvent(company, base.Add(time.Duration(i)*time.Minute))))
	}

	result, err := indexer.Search(context.Background(), Criteria{CompanyID: company, Size: 2, From: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(5), result.Total)
	require.Len(t, result.Hits, 2)
	assert.True(t, result.Hits[0].Timestamp.After(result.Hits[1].Timestamp))
}

func TestAggregations(t *testing.T) {
	indexer := NewMemoryIndexer()
	company := id.CompanyID(uuid.New())

	userA := id.UserID(uuid.New())
	userB := id.UserID(uuid.New())
	for i, user := range []id.UserID{userA, userA, userB} {
		e := testEvent(company, time.Date(2026, 5, 10+i%2, 9, 0, 0, 0, time.UTC))
		e.UserID = user
		if i == 2 {
			e.Action = "DOWNLOAD"
		}
		require.NoError(t, indexer.Index(context.Background(), e))
	}

	result, err := indexer.Search(context.Background(), Criteria{
		CompanyID: company,
		Aggregations: []AggregationRequest{
			{Name: "by_action", Type: AggTerms, Field: "action"},
			{Name: "by_day", Type: AggDateHistogram, Interval: "1d"},
			{Name: "actors", Type: AggCardinality, Field: "userId"},
		},
	})
	require.NoError(t, err)

	byAction := result.Aggregations["by_action"]
	require.Len(t, byAction.Buckets, 2)
	assert.Equal(t, Bucket{Key: "VIEW", Count: 2}, byAction.Buckets[0])

	assert.Len(t, result.Aggregations["by_day"].Buckets, 2)
	assert.Equal(t, int64(2), result.Aggregations["actors"].Value)
}

func TestDocumentDerivedFields(t *testing.T) {
	ts := time.Date(2026, 8, 28, 22, 15, 0, 0, time.UTC) // a Friday
	doc := NewDocument(testEvent(id.CompanyID(uuid.New()), ts))
	assert.Equal(t, "2026-08-28", doc.Day)
	assert.Equal(t, 22, doc.Hour)
	assert.Equal(t, "Friday", doc.DayOfWeek)
}

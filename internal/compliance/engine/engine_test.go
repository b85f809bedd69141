package engine

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auditmodels "attest/internal/audit/models"
	auditservice "attest/internal/audit/service"
	"attest/internal/audit/store/event"
	"attest/internal/compliance/models"
	"attest/internal/compliance/registry"
	compliancestore "attest/internal/compliance/store"
	"attest/internal/integrity"
	"attest/internal/search"
	"attest/internal/signing"
	id "attest/pkg/domain"
	dErrors "attest/pkg/domain-errors"
	"attest/pkg/platform/sentinel"
)

func newSigner(t *testing.T) *signing.Signer {
	t.Helper()
	keyring, err := signing.NewKeyring(map[string]string{"v1": strings.Repeat("ef", 32)}, "v1")
	require.NoError(t, err)
	return signing.NewSigner(keyring)
}

type harness struct {
	registry *registry.Registry
	indexer  *search.MemoryIndexer
	reports  *compliancestore.MemoryReportStore
	signer   *signing.Signer
	engine   *Engine
	company  id.CompanyID
	period   models.Period
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	reg, err := registry.New(registry.NewMemoryStore(), 0)
	require.NoError(t, err)

	h := &harness{
		registry: reg,
		indexer:  search.NewMemoryIndexer(),
		reports:  compliancestore.NewMemoryReportStore(),
		signer:   newSigner(t),
		company:  id.CompanyID(uuid.New()),
		period: models.Period{
			Start: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2026, 3, 31, 23, 59, 59, 0, time.UTC),
		},
	}
	h.engine, err = New(reg, h.indexer, h.signer, h.reports, opts...)
	require.NoError(t, err)
	return h
}

func (h *harness) index(t *testing.T, eventType auditmodels.EventType, category string) {
	t.Helper()
	require.NoError(t, h.indexer.Index(context.Background(), auditmodels.AuditEvent{
		EventID:     id.NewEventID(),
		Timestamp:   auditmodels.NormalizeTimestamp(h.period.Start.Add(24 * time.Hour)),
		CompanyID:   h.company,
		EventType:   eventType,
		Category:    category,
		Severity:    auditmodels.SeverityInfo,
		Action:      "SCAN",
		Description: "automated control evidence",
		Outcome:     auditmodels.OutcomeSuccess,
	}))
}

func twoCriteriaFramework(mandatory bool) models.Framework {
	return models.Framework{
		Name:    "BOUNDARY",
		Version: "1",
		Requirements: []models.Requirement{
			{
				ID:        "REQ-1",
				Title:     "two independent controls",
				Mandatory: mandatory,
				Criteria: []models.AuditCriteria{
					{EventTypes: []auditmodels.EventType{auditmodels.EventTypeSecurity}, Categories: []string{"MET"}},
					{EventTypes: []auditmodels.EventType{auditmodels.EventTypeSecurity}, Categories: []string{"UNMET"}},
				},
			},
		},
	}
}

func TestScoreBoundaries(t *testing.T) {
	t.Run("one of two criteria met scores 50 and is non-compliant", func(t *testing.T) {
		h := newHarness(t)
		require.NoError(t, h.registry.Register(context.Background(), twoCriteriaFramework(false)))
		h.index(t, auditmodels.EventTypeSecurity, "MET")

		report, err := h.engine.Assess(context.Background(), h.company, "BOUNDARY", h.period, "auditor")
		require.NoError(t, err)
		require.Len(t, report.Findings, 1)
		assert.Equal(t, 50.0, report.Findings[0].Score)
		assert.Equal(t, models.StatusNonCompliant, report.Findings[0].Status)
		assert.Equal(t, 50.0, report.OverallScore)
	})

	t.Run("both criteria met scores 100 and is compliant", func(t *testing.T) {
		h := newHarness(t)
		require.NoError(t, h.registry.Register(context.Background(), twoCriteriaFramework(false)))
		h.index(t, auditmodels.EventTypeSecurity, "MET")
		h.index(t, auditmodels.EventTypeSecurity, "UNMET")

		report, err := h.engine.Assess(context.Background(), h.company, "BOUNDARY", h.period, "auditor")
		require.NoError(t, err)
		assert.Equal(t, 100.0, report.Findings[0].Score)
		assert.Equal(t, models.StatusCompliant, report.Findings[0].Status)
		assert.Equal(t, 100.0, report.OverallScore)
	})

	t.Run("band bounds are inclusive", func(t *testing.T) {
		assert.Equal(t, models.StatusCompliant, models.StatusForScore(95))
		assert.Equal(t, models.StatusPartiallyCompliant, models.StatusForScore(94.99))
		assert.Equal(t, models.StatusPartiallyCompliant, models.StatusForScore(70))
		assert.Equal(t, models.StatusNonCompliant, models.StatusForScore(69.99))
	})
}

func TestMandatoryNonCompliantIsAlwaysCritical(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.registry.Register(context.Background(), twoCriteriaFramework(true)))
	h.index(t, auditmodels.EventTypeSecurity, "MET")

	report, err := h.engine.Assess(context.Background(), h.company, "BOUNDARY", h.period, "auditor")
	require.NoError(t, err)
	finding := report.Findings[0]
	assert.Equal(t, models.StatusNonCompliant, finding.Status)
	assert.Equal(t, models.RiskCritical, finding.RiskLevel, "mandatory non-compliance overrides the score band")
	assert.Equal(t, 50.0, finding.Score)
}

func TestRiskBands(t *testing.T) {
	assert.Equal(t, models.RiskLow, models.RiskFor(false, models.StatusPartiallyCompliant, 70))
	assert.Equal(t, models.RiskMedium, models.RiskFor(false, models.StatusNonCompliant, 50))
	assert.Equal(t, models.RiskHigh, models.RiskFor(false, models.StatusNonCompliant, 49))
	assert.Equal(t, models.RiskCritical, models.RiskFor(true, models.StatusNonCompliant, 69))
}

type failingSearcher struct {
	*search.MemoryIndexer
	failCategory string
}

func (f *failingSearcher) Search(ctx context.Context, criteria search.Criteria) (*search.Result, error) {
	for _, category := range criteria.Categories {
		if category == f.failCategory {
			return nil, dErrors.New(dErrors.CodeIndexUnavailable, "shard down")
		}
	}
	return f.MemoryIndexer.Search(ctx, criteria)
}

func TestRequirementFailureIsIsolated(t *testing.T) {
	reg, err := registry.New(registry.NewMemoryStore(), 0)
	require.NoError(t, err)
	indexer := search.NewMemoryIndexer()
	reports := compliancestore.NewMemoryReportStore()
	signer := newSigner(t)
	engine, err := New(reg, &failingSearcher{MemoryIndexer: indexer, failCategory: "BROKEN"}, signer, reports)
	require.NoError(t, err)

	company := id.CompanyID(uuid.New())
	period := models.Period{Start: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), End: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, reg.Register(context.Background(), models.Framework{
		Name:    "MIXED",
		Version: "1",
		Requirements: []models.Requirement{
			{ID: "OK-1", Title: "healthy requirement", Criteria: []models.AuditCriteria{
				{EventTypes: []auditmodels.EventType{auditmodels.EventTypeSecurity}, Categories: []string{"FINE"}},
			}},
			{ID: "BAD-1", Title: "broken requirement", Criteria: []models.AuditCriteria{
				{EventTypes: []auditmodels.EventType{auditmodels.EventTypeSecurity}, Categories: []string{"BROKEN"}},
			}},
		},
	}))
	require.NoError(t, indexer.Index(context.Background(), auditmodels.AuditEvent{
		EventID:   id.NewEventID(),
		Timestamp: period.Start.Add(time.Hour),
		CompanyID: company,
		EventType: auditmodels.EventTypeSecurity,
		Category:  "FINE",
	}))

	report, err := engine.Assess(context.Background(), company, "MIXED", period, "auditor")
	require.NoError(t, err, "one broken requirement must not abort the assessment")
	require.Len(t, report.Findings, 2)

	byID := map[string]models.Finding{}
	for _, finding := range report.Findings {
		byID[finding.RequirementID] = finding
	}
	assert.Equal(t, models.StatusCompliant, byID["OK-1"].Status)
	assert.Equal(t, models.StatusNonCompliant, byID["BAD-1"].Status)
	require.NotEmpty(t, byID["BAD-1"].Gaps)
	assert.Contains(t, byID["BAD-1"].Gaps[0], "evaluation failed")
	assert.Equal(t, 50.0, report.OverallScore)
}

func TestCancelledAssessmentIsTypedErrorNeverZeroScore(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.registry.Register(context.Background(), twoCriteriaFramework(false)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := h.engine.Assess(ctx, h.company, "BOUNDARY", h.period, "auditor")
	require.Error(t, err)
	assert.Equal(t, dErrors.CodeAssessmentFailed, dErrors.CodeOf(err))
}

func TestFinalizationIsOneWay(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.registry.Register(context.Background(), twoCriteriaFramework(false)))

	report, err := h.engine.Assess(context.Background(), h.company, "BOUNDARY", h.period, "auditor")
	require.NoError(t, err)
	assert.Equal(t, models.ReportFinal, report.Status)

	// A second finalize attempt on the same row loses the guard.
	err = h.reports.Finalize(context.Background(), report)
	assert.ErrorIs(t, err, sentinel.ErrInvalidState)

	submitted, err := h.engine.Submit(context.Background(), report.ReportID)
	require.NoError(t, err)
	assert.Equal(t, models.ReportSubmitted, submitted.Status)

	// SUBMITTED is terminal.
	_, err = h.engine.Submit(context.Background(), report.ReportID)
	require.Error(t, err)
	assert.Equal(t, dErrors.CodeInvalidState, dErrors.CodeOf(err))
}

func TestUnknownFramework(t *testing.T) {
	h := newHarness(t)
	_, err := h.engine.Assess(context.Background(), h.company, "NOPE", h.period, "auditor")
	require.Error(t, err)
	assert.Equal(t, dErrors.CodeNotFound, dErrors.CodeOf(err))
}

// End-to-end: record a matching event through the full signing path, assess
// GDPR, and verify the produced report's signature.
func TestGDPRAssessmentEndToEnd(t *testing.T) {
	events := event.NewInMemoryStore()
	indexer := search.NewMemoryIndexer()
	reports := compliancestore.NewMemoryReportStore()
	signer := newSigner(t)

	reg, err := registry.New(registry.NewMemoryStore(), 0)
	require.NoError(t, err)
	require.NoError(t, reg.Register(context.Background(), models.Framework{
		Name:    "GDPR",
		Version: "2016/679",
		Requirements: []models.Requirement{
			{
				ID:        "GDPR-32",
				Title:     "Security of processing",
				Mandatory: true,
				Criteria: []models.AuditCriteria{
					{
						EventTypes: []auditmodels.EventType{auditmodels.EventTypeSecurity},
						Categories: []string{"DATA_ACCESS"},
					},
				},
			},
		},
	}))

	recorder, err := auditservice.New(events, signer, auditservice.WithIndexSink(syncSink{indexer}))
	require.NoError(t, err)

	company := id.CompanyID(uuid.New())
	_, err = recorder.Record(context.Background(), auditmodels.RecordInput{
		CompanyID:   company,
		EventType:   auditmodels.EventTypeSecurity,
		Category:    "DATA_ACCESS",
		Action:      "ENCRYPTION_CHECK",
		Description: "verified encryption at rest for customer store",
	})
	require.NoError(t, err)

	eng, err := New(reg, indexer, signer, reports)
	require.NoError(t, err)
	period := models.Period{Start: time.Now().Add(-time.Hour), End: time.Now().Add(time.Hour)}
	report, err := eng.Assess(context.Background(), company, "GDPR", period, "auditor@example.com")
	require.NoError(t, err)

	require.Len(t, report.Findings, 1)
	assert.Equal(t, 100.0, report.Findings[0].Score)
	assert.Equal(t, models.StatusCompliant, report.Findings[0].Status)
	assert.Equal(t, 100.0, report.OverallScore)
	assert.NotEmpty(t, report.Checksum)
	assert.NotEmpty(t, report.DigitalSignature)
	require.NotEmpty(t, report.Findings[0].Evidence)
	assert.NotEmpty(t, report.Findings[0].Evidence[0].ContentHash)

	verifier, err := integrity.New(events, reports, signer)
	require.NoError(t, err)
	ok, err := verifier.VerifyReport(context.Background(), report.ReportID)
	require.NoError(t, err)
	assert.True(t, ok)
}

// syncSink indexes inline so the test needs no flush loop.
type syncSink struct {
	indexer *search.MemoryIndexer
}

func (s syncSink) Enqueue(e auditmodels.AuditEvent) bool {
	return s.indexer.Index(context.Background(), e) == nil
}

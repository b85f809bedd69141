// Package engine assesses a tenant's audit trail against a compliance
// framework and produces a signed report.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	auditmodels "attest/internal/audit/models"
	"attest/internal/compliance/metrics"
	"attest/internal/compliance/models"
	"attest/internal/compliance/ports"
	"attest/internal/compliance/registry"
	"attest/internal/search"
	"attest/internal/signing"
	id "attest/pkg/domain"
	dErrors "attest/pkg/domain-errors"
	"attest/pkg/platform/sentinel"
)

const (
	DefaultConcurrency          = 4
	DefaultRequirementThreshold = 1

	// evidenceLimit caps evidence attached per criterion; the full hit set
	// remains queryable through the index.
	evidenceLimit = 10

	// criterionQuerySize bounds how many hits a criterion evaluation pulls
	// for client-side condition filtering.
	criterionQuerySize = 500
)

// Engine runs assessments. Requirement evaluations fan out concurrently,
// bounded so one assessment cannot saturate the search backend.
type Engine struct {
	frameworks *registry.Registry
	searcher   search.Searcher
	signer     *signing.Signer
	reports    ports.ReportStore
	logger     *slog.Logger
	metrics    *metrics.Metrics

	concurrency      int
	defaultThreshold int
	now              func() time.Time
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

func WithConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

func WithDefaultThreshold(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.defaultThreshold = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func New(frameworks *registry.Registry, searcher search.Searcher, signer *signing.Signer, reports ports.ReportStore, opts ...Option) (*Engine, error) {
	if signer == nil {
		return nil, dErrors.New(dErrors.CodeSigningKeyMissing, "assessment engine requires a signer")
	}
	e := &Engine{
		frameworks:       frameworks,
		searcher:         searcher,
		signer:           signer,
		reports:          reports,
		logger:           slog.New(slog.NewTextHandler(io.Discard, nil)),
		concurrency:      DefaultConcurrency,
		defaultThreshold: DefaultRequirementThreshold,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Assess evaluates every requirement of the named framework over the period
// and returns the finalized, signed report.
func (e *Engine) Assess(ctx context.Context, companyID id.CompanyID, frameworkName string, period models.Period, assessedBy string) (models.Report, error) {
	if companyID.IsNil() {
		return models.Report{}, dErrors.New(dErrors.CodeInvalidInput, "companyId is required")
	}
	if period.Start.IsZero() || period.End.IsZero() || period.End.Before(period.Start) {
		return models.Report{}, dErrors.New(dErrors.CodeInvalidInput, "report period is invalid")
	}

	framework, err := e.frameworks.Get(ctx, frameworkName)
	if err != nil {
		return models.Report{}, err
	}

	started := e.now()
	report := models.Report{
		ReportID:         id.NewReportID(),
		Framework:        framework.Name,
		FrameworkVersion: framework.Version,
		ReportPeriod:     period,
		GeneratedAt:      auditmodels.NormalizeTimestamp(started),
		GeneratedBy:      assessedBy,
		CompanyID:        companyID,
		Status:           models.ReportDraft,
	}
	if err := e.reports.Create(ctx, report); err != nil {
		return models.Report{}, dErrors.Wrap(err, dErrors.CodePersistenceFailure, "create draft report")
	}

	findings := make([]models.Finding, len(framework.Requirements))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, requirement := range framework.Requirements {
		i, requirement := i, requirement
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			findings[i] = e.evaluateRequirement(gctx, companyID, period, requirement)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		// A cancelled or timed-out assessment must never masquerade as a
		// scored report.
		e.metrics.IncAssessment(framework.Name, "aborted")
		return models.Report{}, dErrors.Wrap(err, dErrors.CodeAssessmentFailed, "assessment aborted before all requirements were evaluated")
	}

	report.Findings = findings
	report.OverallScore = overallScore(findings)
	report.Recommendations = recommendations(findings)

	if err := e.finalize(ctx, &report); err != nil {
		e.metrics.IncAssessment(framework.Name, "error")
		return models.Report{}, err
	}

	e.metrics.IncAssessment(framework.Name, "completed")
	e.metrics.ObserveAssessment(e.now().Sub(started))
	e.logger.Info("assessment completed",
		"report_id", report.ReportID,
		"company_id", companyID,
		"framework", framework.Name,
		"overall_score", report.OverallScore,
		"requirements", len(findings),
	)
	return report, nil
}

// evaluateRequirement scores one requirement. Failures are scoped here: a
// broken query yields a NON_COMPLIANT finding with an explicit gap instead
// of aborting the assessment.
func (e *Engine) evaluateRequirement(ctx context.Context, companyID id.CompanyID, period models.Period, requirement models.Requirement) models.Finding {
	finding := models.Finding{
		RequirementID: requirement.ID,
		Title:         requirement.Title,
	}

	if len(requirement.Criteria) == 0 {
		finding.Status = models.StatusNotApplicable
		finding.Score = 100
		finding.RiskLevel = models.RiskLow
		return finding
	}

	met := 0
	for i, criteria := range requirement.Criteria {
		count, evidence, err := e.evaluateCriterion(ctx, companyID, period, criteria)
		if err != nil {
			e.metrics.IncRequirementFailure()
			e.logger.Warn("requirement evaluation failed",
				"requirement", requirement.ID,
				"criterion", i+1,
				"error", err,
			)
			return models.Finding{
				RequirementID: requirement.ID,
				Title:         requirement.Title,
				Status:        models.StatusNonCompliant,
				Score:         0,
				Gaps:          []string{fmt.Sprintf("evaluation failed for criterion %d: %s", i+1, dErrors.MessageOf(err))},
				RiskLevel:     models.RiskFor(requirement.Mandatory, models.StatusNonCompliant, 0),
				Remediation:   []string{"investigate assessment infrastructure failure and re-run"},
			}
		}

		threshold := criteria.Threshold
		if threshold <= 0 {
			threshold = e.defaultThreshold
		}
		if count >= threshold {
			met++
			finding.Evidence = append(finding.Evidence, evidence...)
		} else {
			finding.Gaps = append(finding.Gaps,
				fmt.Sprintf("criterion %d not met: %d matching events, need at least %d", i+1, count, threshold))
		}
	}

	finding.Score = float64(met) / float64(len(requirement.Criteria)) * 100
	finding.Status = models.StatusForScore(finding.Score)
	finding.RiskLevel = models.RiskFor(requirement.Mandatory, finding.Status, finding.Score)
	if finding.Status != models.StatusCompliant {
		finding.Remediation = append(finding.Remediation,
			fmt.Sprintf("produce audit evidence satisfying %q", requirement.Title))
	}
	return finding
}

// evaluateCriterion queries the index and applies field conditions
// client-side, returning the matching count and capped evidence.
func (e *Engine) evaluateCriterion(ctx context.Context, companyID id.CompanyID, period models.Period, criteria models.AuditCriteria) (int, []models.Evidence, error) {
	result, err := e.searcher.Search(ctx, search.Criteria{
		CompanyID:  companyID,
		Period:     search.Period{Start: period.Start, End: period.End},
		EventTypes: criteria.EventTypes,
		Categories: criteria.Categories,
		Size:       criterionQuerySize,
	})
	if err != nil {
		return 0, nil, err
	}

	count := 0
	var evidence []models.Evidence
	for _, hit := range result.Hits {
		if !conditionsMatch(hit, criteria.Conditions) {
			continue
		}
		count++
		if len(evidence) < evidenceLimit {
			evidence = append(evidence, newEvidence(hit))
		}
	}
	return count, evidence, nil
}

func conditionsMatch(doc search.Document, conditions []models.Condition) bool {
	for _, condition := range conditions {
		if !condition.Matches(fieldValue(doc, condition.Field)) {
			return false
		}
	}
	return true
}

func fieldValue(doc search.Document, field string) any {
	if name, ok := strings.CutPrefix(field, "metadata."); ok {
		return doc.Metadata[name]
	}
	switch field {
	case "eventType":
		return string(doc.EventType)
	case "category":
		return doc.Category
	case "severity":
		return string(doc.Severity)
	case "action":
		return doc.Action
	case "outcome":
		return string(doc.Outcome)
	case "description":
		return doc.Description
	case "resourceType":
		return doc.ResourceType
	case "resourceId":
		return doc.ResourceID
	case "userEmail":
		return doc.UserEmail
	case "tags":
		return strings.Join(doc.Tags, " ")
	default:
		return nil
	}
}

// newEvidence hashes the event's canonical form for chain-of-custody. The
// hash covers the signed fields too, so evidence pins the exact record.
func newEvidence(doc search.Document) models.Evidence {
	hash := ""
	if canonical, err := signing.Canonicalize(doc.AuditEvent); err == nil {
		hash = signing.Checksum(canonical)
	}
	return models.Evidence{
		EventID:     doc.EventID,
		Timestamp:   doc.Timestamp,
		Description: doc.Description,
		ContentHash: hash,
	}
}

func overallScore(findings []models.Finding) float64 {
	if len(findings) == 0 {
		return 0
	}
	sum := 0.0
	for _, finding := range findings {
		sum += finding.Score
	}
	return sum / float64(len(findings))
}

func recommendations(findings []models.Finding) []string {
	var out []string
	for _, finding := range findings {
		if finding.Status == models.StatusNonCompliant || finding.Status == models.StatusPartiallyCompliant {
			out = append(out, fmt.Sprintf("remediate %s (%s, score %.0f)", finding.RequirementID, finding.Status, finding.Score))
		}
	}
	sort.Strings(out)
	return out
}

// finalize signs the completed content and performs the guarded DRAFT ->
// FINAL transition.
func (e *Engine) finalize(ctx context.Context, report *models.Report) error {
	report.Status = models.ReportFinal
	report.SigningKeyVersion = e.signer.ActiveKeyVersion()

	canonical, err := signing.Canonicalize(*report, models.CanonicalExclusions...)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "canonicalize report")
	}
	report.Checksum = signing.Checksum(canonical)
	report.DigitalSignature, err = e.signer.Sign(report.Checksum, report.SigningKeyVersion)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeSigningKeyMissing, "sign report")
	}

	if err := e.reports.Finalize(ctx, *report); err != nil {
		if errors.Is(err, sentinel.ErrInvalidState) {
			return dErrors.Wrap(err, dErrors.CodeInvalidState, "report is no longer a draft")
		}
		return dErrors.Wrap(err, dErrors.CodePersistenceFailure, "finalize report")
	}
	return nil
}

// Submit moves a FINAL report to SUBMITTED. Content and signature are
// untouched; status is outside the canonical form.
func (e *Engine) Submit(ctx context.Context, reportID id.ReportID) (models.Report, error) {
	if err := e.reports.MarkSubmitted(ctx, reportID); err != nil {
		if errors.Is(err, sentinel.ErrInvalidState) {
			return models.Report{}, dErrors.Wrap(err, dErrors.CodeInvalidState, "only a FINAL report can be submitted")
		}
		return models.Report{}, dErrors.Wrap(err, dErrors.CodeNotFound, "report not found")
	}
	return e.GetReport(ctx, reportID)
}

// GetReport returns one report.
func (e *Engine) GetReport(ctx context.Context, reportID id.ReportID) (models.Report, error) {
	report, err := e.reports.GetByID(ctx, reportID)
	if err != nil {
		return models.Report{}, dErrors.Wrap(err, dErrors.CodeNotFound, "report not found")
	}
	return report, nil
}

// ListReports returns a tenant's reports, newest first.
func (e *Engine) ListReports(ctx context.Context, companyID id.CompanyID, limit int) ([]models.Report, error) {
	if companyID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "companyId is required")
	}
	return e.reports.ListByCompany(ctx, companyID, limit)
}

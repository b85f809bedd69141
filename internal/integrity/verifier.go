// Package integrity re-derives checksums and signatures for stored records
// and compares them byte-for-byte against what was persisted at signing
// time. A mismatch is a tamper signal: it is surfaced as a CRITICAL alert
// and the offending record is left untouched for forensic review.
package integrity

import (
	"context"
	"crypto/hmac"
	"io"
	"log/slog"
	"time"

	alertmodels "attest/internal/alert/models"
	auditmodels "attest/internal/audit/models"
	compliancemodels "attest/internal/compliance/models"
	"attest/internal/integrity/metrics"
	"attest/internal/signing"
	id "attest/pkg/domain"
	dErrors "attest/pkg/domain-errors"
)

// EventLoader is the slice of the event store the verifier reads from.
type EventLoader interface {
	GetByID(ctx context.Context, eventID id.EventID) (auditmodels.AuditEvent, error)
}

// ReportLoader is the slice of the report store the verifier reads from.
type ReportLoader interface {
	GetByID(ctx context.Context, reportID id.ReportID) (compliancemodels.Report, error)
}

// AlertRaiser raises the IntegrityViolation alert on a mismatch.
type AlertRaiser interface {
	Raise(ctx context.Context, in alertmodels.RaiseInput) (alertmodels.Alert, error)
}

// EntityKind names what a tamper report refers to.
type EntityKind string

const (
	EntityEvent  EntityKind = "event"
	EntityReport EntityKind = "report"
)

// TamperReport is the structured result of a failed verification.
type TamperReport struct {
	Entity           EntityKind   `json:"entity"`
	EntityID         string       `json:"entityId"`
	CompanyID        id.CompanyID `json:"companyId"`
	DetectedAt       time.Time    `json:"detectedAt"`
	StoredChecksum   string       `json:"storedChecksum"`
	ComputedChecksum string       `json:"computedChecksum"`
	SignatureMatches bool         `json:"signatureMatches"`
}

// Verifier recomputes and compares signatures.
type Verifier struct {
	events  EventLoader
	reports ReportLoader
	signer  *signing.Signer
	alerts  AlertRaiser
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

type Option func(*Verifier)

func WithLogger(logger *slog.Logger) Option {
	return func(v *Verifier) { v.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(v *Verifier) { v.metrics = m }
}

func WithAlerts(alerts AlertRaiser) Option {
	return func(v *Verifier) { v.alerts = alerts }
}

func WithClock(now func() time.Time) Option {
	return func(v *Verifier) { v.now = now }
}

func New(events EventLoader, reports ReportLoader, signer *signing.Signer, opts ...Option) (*Verifier, error) {
	if signer == nil {
		return nil, dErrors.New(dErrors.CodeSigningKeyMissing, "verifier requires a signer")
	}
	v := &Verifier{
		events:  events,
		reports: reports,
		signer:  signer,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// VerifyEvent reports whether a stored event still matches its signature.
// A mismatch returns (false, nil): tampering is a result, not an error.
func (v *Verifier) VerifyEvent(ctx context.Context, eventID id.EventID) (bool, error) {
	event, err := v.events.GetByID(ctx, eventID)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeNotFound, "event not found")
	}

	tamper, err := v.checkEvent(event)
	if err != nil {
		v.metrics.IncVerification(string(EntityEvent), "error")
		return false, err
	}
	if tamper != nil {
		v.onViolation(ctx, *tamper)
		return false, nil
	}
	v.metrics.IncVerification(string(EntityEvent), "ok")
	return true, nil
}

// VerifyReport is the same algorithm over a compliance report. Only FINAL
// and SUBMITTED reports carry a signature; a DRAFT cannot be verified.
func (v *Verifier) VerifyReport(ctx context.Context, reportID id.ReportID) (bool, error) {
	report, err := v.reports.GetByID(ctx, reportID)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeNotFound, "report not found")
	}
	if report.Status == compliancemodels.ReportDraft {
		return false, dErrors.New(dErrors.CodeInvalidState, "draft reports are unsigned and cannot be verified")
	}

	tamper, err := v.checkReport(report)
	if err != nil {
		v.metrics.IncVerification(string(EntityReport), "error")
		return false, err
	}
	if tamper != nil {
		v.onViolation(ctx, *tamper)
		return false, nil
	}
	v.metrics.IncVerification(string(EntityReport), "ok")
	return true, nil
}

// DetectTampering verifies and, on mismatch, returns a structured tamper
// report. A nil report means the record is intact.
func (v *Verifier) DetectTampering(ctx context.Context, entity EntityKind, entityID string) (*TamperReport, error) {
	switch entity {
	case EntityEvent:
		eventID, err := id.ParseEventID(entityID)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid event id")
		}
		event, err := v.events.GetByID(ctx, eventID)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "event not found")
		}
		tamper, err := v.checkEvent(event)
		if err != nil {
			return nil, err
		}
		if tamper != nil {
			v.onViolation(ctx, *tamper)
		}
		return tamper, nil
	case EntityReport:
		reportID, err := id.ParseReportID(entityID)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid report id")
		}
		report, err := v.reports.GetByID(ctx, reportID)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "report not found")
		}
		if report.Status == compliancemodels.ReportDraft {
			return nil, dErrors.New(dErrors.CodeInvalidState, "draft reports are unsigned and cannot be verified")
		}
		tamper, err := v.checkReport(report)
		if err != nil {
			return nil, err
		}
		if tamper != nil {
			v.onViolation(ctx, *tamper)
		}
		return tamper, nil
	default:
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "unknown entity kind %q", entity)
	}
}

func (v *Verifier) checkEvent(event auditmodels.AuditEvent) (*TamperReport, error) {
	canonical, err := signing.Canonicalize(event, auditmodels.CanonicalExclusions...)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeVerificationFailed, "canonicalize event")
	}
	return v.compare(EntityEvent, event.EventID.String(), event.CompanyID, canonical,
		event.Checksum, event.DigitalSignature, event.SigningKeyVersion)
}

func (v *Verifier) checkReport(report compliancemodels.Report) (*TamperReport, error) {
	canonical, err := signing.Canonicalize(report, compliancemodels.CanonicalExclusions...)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeVerificationFailed, "canonicalize report")
	}
	return v.compare(EntityReport, report.ReportID.String(), report.CompanyID, canonical,
		report.Checksum, report.DigitalSignature, report.SigningKeyVersion)
}

// compare recomputes checksum and signature with the recorded key version
// and matches both byte-for-byte. A nil result means intact.
func (v *Verifier) compare(entity EntityKind, entityID string, companyID id.CompanyID, canonical []byte, storedChecksum, storedSignature, keyVersion string) (*TamperReport, error) {
	computedChecksum := signing.Checksum(canonical)
	computedSignature, err := v.signer.Sign(computedChecksum, keyVersion)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeVerificationFailed, "recompute signature")
	}

	checksumOK := hmac.Equal([]byte(computedChecksum), []byte(storedChecksum))
	signatureOK := hmac.Equal([]byte(computedSignature), []byte(storedSignature))
	if checksumOK && signatureOK {
		return nil, nil
	}
	return &TamperReport{
		Entity:           entity,
		EntityID:         entityID,
		CompanyID:        companyID,
		DetectedAt:       v.now().UTC(),
		StoredChecksum:   storedChecksum,
		ComputedChecksum: computedChecksum,
		SignatureMatches: signatureOK,
	}, nil
}

// onViolation surfaces the tamper signal. The alert carries checksums only;
// key material never leaves the signer.
func (v *Verifier) onViolation(ctx context.Context, tamper TamperReport) {
	v.metrics.IncVerification(string(tamper.Entity), "tampered")
	v.metrics.IncViolation(string(tamper.Entity))
	v.logger.Error("integrity violation detected",
		"entity", tamper.Entity,
		"entity_id", tamper.EntityID,
		"company_id", tamper.CompanyID,
	)
	if v.alerts == nil {
		return
	}
	_, err := v.alerts.Raise(ctx, alertmodels.RaiseInput{
		CompanyID:   tamper.CompanyID,
		Kind:        alertmodels.KindIntegrityViolation,
		Severity:    alertmodels.SeverityCritical,
		Title:       "Integrity violation detected",
		Description: "stored checksum or signature does not match recomputation",
		Details: map[string]any{
			"entity":           string(tamper.Entity),
			"entityId":         tamper.EntityID,
			"storedChecksum":   tamper.StoredChecksum,
			"computedChecksum": tamper.ComputedChecksum,
			"detectedAt":       tamper.DetectedAt,
		},
	})
	if err != nil {
		v.logger.Error("raising integrity alert failed", "entity_id", tamper.EntityID, "error", err)
	}
}

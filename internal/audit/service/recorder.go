// Package service implements the event recorder, the single write path for
// the audit trail.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"attest/internal/audit/metrics"
	"attest/internal/audit/models"
	"attest/internal/audit/ports"
	"attest/internal/signing"
	id "attest/pkg/domain"
	dErrors "attest/pkg/domain-errors"
)

// Recorder appends signed, checksummed audit events.
//
// A successful Record means the event is durably signed and stored; it does
// not mean the event is searchable yet. Indexing and detection are fanned
// out after the write and never fail it.
type Recorder struct {
	store     ports.Store
	signer    *signing.Signer
	indexSink ports.IndexSink
	publisher ports.EventPublisher
	logger    *slog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

// Option configures the Recorder.
type Option func(*Recorder)

// WithLogger sets a logger for error reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Recorder) { r.logger = logger }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Recorder) { r.metrics = m }
}

// WithIndexSink sets the asynchronous indexing sink.
func WithIndexSink(sink ports.IndexSink) Option {
	return func(r *Recorder) { r.indexSink = sink }
}

// WithPublisher sets the in-process fan-out for recorded events.
func WithPublisher(p ports.EventPublisher) Option {
	return func(r *Recorder) { r.publisher = p }
}

// WithClock overrides the timestamp source. For tests.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) { r.now = now }
}

// New creates a Recorder. The signer is mandatory: this service must never
// persist an unsigned event.
func New(store ports.Store, signer *signing.Signer, opts ...Option) (*Recorder, error) {
	if store == nil {
		return nil, fmt.Errorf("audit store is required")
	}
	if signer == nil {
		return nil, dErrors.New(dErrors.CodeSigningKeyMissing, "signer is required")
	}
	r := &Recorder{
		store:  store,
		signer: signer,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Record validates, signs, and persists one audit event, then hands it to
// the indexing sink and the in-process bus. Returns the new event ID.
func (r *Recorder) Record(ctx context.Context, in models.RecordInput) (id.EventID, error) {
	start := time.Now()

	if err := in.Validate(); err != nil {
		r.metrics.IncFailure("validate")
		return id.EventID{}, err
	}

	event := r.build(in)

	canonical, err := signing.Canonicalize(event, models.CanonicalExclusions...)
	if err != nil {
		r.metrics.IncFailure("sign")
		return id.EventID{}, dErrors.Wrap(err, dErrors.CodeInternal, "canonicalize event")
	}
	event.Checksum = signing.Checksum(canonical)
	event.DigitalSignature, err = r.signer.Sign(event.Checksum, event.SigningKeyVersion)
	if err != nil {
		r.metrics.IncFailure("sign")
		return id.EventID{}, err
	}

	if err := r.store.Append(ctx, event); err != nil {
		r.metrics.IncFailure("persist")
		if r.logger != nil {
			r.logger.ErrorContext(ctx, "CRITICAL: audit persistence failed",
				"action", event.Action,
				"company_id", event.CompanyID,
				"error", err,
			)
		}
		return id.EventID{}, dErrors.Wrap(err, dErrors.CodePersistenceFailure, "audit event persistence failed")
	}

	r.metrics.IncRecorded(string(event.EventType), string(event.Outcome))
	r.metrics.ObserveRecordLatency(time.Since(start))

	// Post-commit fan-out. Neither path may fail the write.
	if r.indexSink != nil {
		if !r.indexSink.Enqueue(event) {
			r.metrics.IncEnqueueDrop()
			if r.logger != nil {
				r.logger.WarnContext(ctx, "index sink rejected event",
					"event_id", event.EventID,
				)
			}
		}
	}
	if r.publisher != nil {
		r.publisher.Publish(ctx, event)
	}

	return event.EventID, nil
}

// GetEvent loads one stored event by ID.
func (r *Recorder) GetEvent(ctx context.Context, eventID id.EventID) (models.AuditEvent, error) {
	event, err := r.store.GetByID(ctx, eventID)
	if err != nil {
		return models.AuditEvent{}, dErrors.Wrap(err, dErrors.CodeNotFound, "audit event not found")
	}
	return event, nil
}

// ListEvents returns a tenant's events in [from, to], newest first.
func (r *Recorder) ListEvents(ctx context.Context, companyID id.CompanyID, from, to time.Time, limit int) ([]models.AuditEvent, error) {
	if companyID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "companyId is required")
	}
	events, err := r.store.ListByCompany(ctx, companyID, from, to, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodePersistenceFailure, "list audit events")
	}
	return events, nil
}

// PurgeBefore runs the administrative retention purge and records the purge
// itself as a SYSTEM_EVENT, so trail truncation is never silent.
func (r *Recorder) PurgeBefore(ctx context.Context, companyID id.CompanyID, cutoff time.Time, purgedBy string) (int64, error) {
	purged, err := r.store.PurgeBefore(ctx, companyID, cutoff)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodePersistenceFailure, "retention purge failed")
	}
	r.metrics.AddPurged(purged)

	_, err = r.Record(ctx, models.RecordInput{
		CompanyID:   companyID,
		EventType:   models.EventTypeSystem,
		Category:    "RETENTION",
		Severity:    models.SeverityInfo,
		Outcome:     models.OutcomeSuccess,
		Action:      "RETENTION_PURGE",
		Description: fmt.Sprintf("retention purge removed %d events older than %s", purged, cutoff.UTC().Format(time.RFC3339)),
		Metadata: map[string]any{
			"purgedBy":    purgedBy,
			"purgedCount": purged,
			"cutoff":      cutoff.UTC().Format(time.RFC3339),
		},
	})
	if err != nil && r.logger != nil {
		r.logger.ErrorContext(ctx, "failed to record retention purge event", "error", err)
	}
	return purged, nil
}

func (r *Recorder) build(in models.RecordInput) models.AuditEvent {
	ts := in.Timestamp
	if ts.IsZero() {
		ts = r.now()
	}
	severity := in.Severity
	if severity == "" {
		severity = models.SeverityInfo
	}
	outcome := in.Outcome
	if outcome == "" {
		outcome = models.OutcomeSuccess
	}
	return models.AuditEvent{
		EventID:           id.NewEventID(),
		Timestamp:         models.NormalizeTimestamp(ts),
		CompanyID:         in.CompanyID,
		UserID:            in.UserID,
		UserEmail:         in.UserEmail,
		EventType:         in.EventType,
		Category:          in.Category,
		Severity:          severity,
		Action:            in.Action,
		Description:       in.Description,
		Outcome:           outcome,
		ResourceType:      in.ResourceType,
		ResourceID:        in.ResourceID,
		OldValues:         in.OldValues,
		NewValues:         in.NewValues,
		ChangedFields:     in.ChangedFields,
		Tags:              in.Tags,
		Metadata:          in.Metadata,
		SigningKeyVersion: r.signer.ActiveKeyVersion(),
	}
}

// Package service implements the alert lifecycle.
package service

import (
	"context"
	"io"
	"log/slog"
	"time"

	"attest/internal/alert/metrics"
	"attest/internal/alert/models"
	"attest/internal/alert/ports"
	id "attest/pkg/domain"
	dErrors "attest/pkg/domain-errors"
)

// Service raises and manages alerts. Raising is durable first, notification
// second: a dead notification channel never loses the alert itself.
type Service struct {
	store    ports.Store
	notifier ports.Notifier
	logger   *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithNotifier(n ports.Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(store ports.Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.notifier == nil {
		s.notifier = LogNotifier{Logger: s.logger}
	}
	return s
}

// Raise persists a new OPEN alert and notifies asynchronously.
func (s *Service) Raise(ctx context.Context, in models.RaiseInput) (models.Alert, error) {
	if err := in.Validate(); err != nil {
		return models.Alert{}, err
	}

	alert := models.Alert{
		AlertID:     id.NewAlertID(),
		CompanyID:   in.CompanyID,
		Kind:        in.Kind,
		Rule:        in.Rule,
		Severity:    in.Severity,
		Title:       in.Title,
		Description: in.Description,
		UserID:      in.UserID,
		EventIDs:    in.EventIDs,
		Details:     in.Details,
		Status:      models.StatusOpen,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.store.Create(ctx, alert); err != nil {
		return models.Alert{}, dErrors.Wrap(err, dErrors.CodePersistenceFailure, "persist alert")
	}

	s.metrics.IncRaised(string(alert.Kind), string(alert.Severity))
	s.logger.Warn("alert raised",
		"alert_id", alert.AlertID,
		"company_id", alert.CompanyID,
		"kind", alert.Kind,
		"rule", alert.Rule,
		"severity", alert.Severity,
	)

	go s.notifier.Notify(context.WithoutCancel(ctx), alert)
	return alert, nil
}

// Acknowledge moves an OPEN alert to ACKNOWLEDGED.
func (s *Service) Acknowledge(ctx context.Context, alertID id.AlertID, actor string) (models.Alert, error) {
	return s.transition(ctx, alertID, models.StatusAcknowledged, func(a *models.Alert) {
		a.AcknowledgedAt = s.now().UTC()
		a.AcknowledgedBy = actor
	})
}

// Resolve moves an ACKNOWLEDGED alert to RESOLVED.
func (s *Service) Resolve(ctx context.Context, alertID id.AlertID, actor, resolution string) (models.Alert, error) {
	return s.transition(ctx, alertID, models.StatusResolved, func(a *models.Alert) {
		a.ResolvedAt = s.now().UTC()
		a.ResolvedBy = actor
		a.Resolution = resolution
	})
}

func (s *Service) transition(ctx context.Context, alertID id.AlertID, to models.Status, apply func(*models.Alert)) (models.Alert, error) {
	alert, err := s.store.GetByID(ctx, alertID)
	if err != nil {
		return models.Alert{}, dErrors.Wrap(err, dErrors.CodeNotFound, "alert not found")
	}
	if !models.CanTransition(alert.Status, to) {
		return models.Alert{}, dErrors.Newf(dErrors.CodeInvalidState, "cannot move alert from %s to %s", alert.Status, to)
	}

	alert.Status = to
	apply(&alert)
	if err := s.store.Update(ctx, alert); err != nil {
		return models.Alert{}, dErrors.Wrap(err, dErrors.CodePersistenceFailure, "update alert")
	}
	s.metrics.IncTransition(string(to))
	return alert, nil
}

// Get returns one alert.
func (s *Service) Get(ctx context.Context, alertID id.AlertID) (models.Alert, error) {
	alert, err := s.store.GetByID(ctx, alertID)
	if err != nil {
		return models.Alert{}, dErrors.Wrap(err, dErrors.CodeNotFound, "alert not found")
	}
	return alert, nil
}

// List returns a tenant's alerts, optionally filtered by status.
func (s *Service) List(ctx context.Context, companyID id.CompanyID, status models.Status, limit int) ([]models.Alert, error) {
	if companyID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "companyId is required")
	}
	return s.store.ListByCompany(ctx, companyID, status, limit)
}

// LogNotifier writes alerts to the structured log. It is the default channel
// when no external notifier is configured.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) Notify(_ context.Context, alert models.Alert) {
	if n.Logger == nil {
		return
	}
	n.Logger.Warn("alert notification",
		"alert_id", alert.AlertID,
		"title", alert.Title,
		"severity", alert.Severity,
	)
}

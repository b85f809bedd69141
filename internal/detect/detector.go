package detect

import (
	"context"
	"io"
	"log/slog"

	alertmodels "attest/internal/alert/models"
	"attest/internal/audit/models"
	"attest/internal/detect/metrics"
	"attest/pkg/platform/bus"
)

// AlertRaiser is the slice of the alert service the detector needs.
type AlertRaiser interface {
	Raise(ctx context.Context, in alertmodels.RaiseInput) (alertmodels.Alert, error)
}

// Detector runs every registered rule against each recorded event. Rules are
// independent: one rule failing is logged and counted, the rest still run.
type Detector struct {
	rules   []Rule
	alerts  AlertRaiser
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Detector)

func WithLogger(logger *slog.Logger) Option {
	return func(d *Detector) { d.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Detector) { d.metrics = m }
}

func New(alerts AlertRaiser, rules []Rule, opts ...Option) *Detector {
	d := &Detector{
		rules:  rules,
		alerts: alerts,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Subscribe attaches the detector to the recorded-event bus.
func (d *Detector) Subscribe(ctx context.Context, events *bus.Bus[models.AuditEvent]) {
	events.Subscribe(ctx, "detector", 256, d.Inspect)
}

// Inspect evaluates one event against all rules.
func (d *Detector) Inspect(ctx context.Context, event models.AuditEvent) {
	for _, rule := range d.rules {
		d.metrics.IncEvaluation(rule.Name())

		input, err := rule.Evaluate(ctx, event)
		if err != nil {
			d.metrics.IncFailure(rule.Name())
			d.logger.Error("rule evaluation failed",
				"rule", rule.Name(),
				"event_id", event.EventID,
				"error", err,
			)
			continue
		}
		if input == nil {
			continue
		}

		if _, err := d.alerts.Raise(ctx, *input); err != nil {
			d.metrics.IncFailure(rule.Name())
			d.logger.Error("raising alert failed",
				"rule", rule.Name(),
				"event_id", event.EventID,
				"error", err,
			)
			continue
		}
		d.metrics.IncHit(rule.Name())
	}
}

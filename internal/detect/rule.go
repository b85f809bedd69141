// Package detect evaluates recorded audit events against suspicious
// activity rules and raises alerts through the alert service.
package detect

import (
	"context"

	alertmodels "attest/internal/alert/models"
	"attest/internal/audit/models"
)

// Rule inspects one event and decides whether to raise an alert. A nil
// result means the event is unremarkable. Rules must be safe for concurrent
// use; the detector fans events in from the bus.
type Rule interface {
	Name() string
	Evaluate(ctx context.Context, event models.AuditEvent) (*alertmodels.RaiseInput, error)
}

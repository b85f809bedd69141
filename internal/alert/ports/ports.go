package ports

import (
	"context"

	"attest/internal/alert/models"
	id "attest/pkg/domain"
)

// Store persists alerts.
type Store interface {
	Create(ctx context.Context, alert models.Alert) error
	GetByID(ctx context.Context, alertID id.AlertID) (models.Alert, error)
	Update(ctx context.Context, alert models.Alert) error
	ListByCompany(ctx context.Context, companyID id.CompanyID, status models.Status, limit int) ([]models.Alert, error)
}

// Notifier pushes a freshly raised alert to an external channel. Delivery is
// fire-and-forget: a notifier failure never rolls back the alert.
type Notifier interface {
	Notify(ctx context.Context, alert models.Alert)
}

package ports

import (
	"context"

	"attest/internal/compliance/models"
	id "attest/pkg/domain"
)

// ReportStore persists compliance reports.
//
// Finalize and MarkSubmitted are guarded transitions: they succeed only when
// the stored status still matches the expected predecessor, so exactly one
// concurrent finalizer wins and a FINAL report's content is never replaced.
type ReportStore interface {
	Create(ctx context.Context, report models.Report) error
	GetByID(ctx context.Context, reportID id.ReportID) (models.Report, error)
	Finalize(ctx context.Context, report models.Report) error
	MarkSubmitted(ctx context.Context, reportID id.ReportID) error
	ListByCompany(ctx context.Context, companyID id.CompanyID, limit int) ([]models.Report, error)
}

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"attest/internal/compliance/models"
	id "attest/pkg/domain"
	"attest/pkg/platform/sentinel"
)

// PostgresReportStore persists reports with the full signed document in a
// jsonb payload column. Transition guards are conditional updates on the
// status column, so concurrent finalizers race on the database row and
// exactly one wins.
type PostgresReportStore struct {
	pool *pgxpool.Pool
}

func NewPostgresReportStore(pool *pgxpool.Pool) *PostgresReportStore {
	return &PostgresReportStore{pool: pool}
}

// Schema is the expected table layout, applied by migrations out-of-band.
const Schema = `
CREATE TABLE IF NOT EXISTS compliance_reports (
    id           UUID PRIMARY KEY,
    company_id   UUID NOT NULL,
    framework    TEXT NOT NULL,
    status       TEXT NOT NULL,
    generated_at TIMESTAMPTZ NOT NULL,
    payload      JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS compliance_reports_company_idx
    ON compliance_reports (company_id, generated_at DESC);
`

func (s *PostgresReportStore) Create(ctx context.Context, report models.Report) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO compliance_reports (id, company_id, framework, status, generated_at, payload)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.UUID(report.ReportID),
		uuid.UUID(report.CompanyID),
		report.Framework,
		string(report.Status),
		report.GeneratedAt,
		payload,
	)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

func (s *PostgresReportStore) GetByID(ctx context.Context, reportID id.ReportID) (models.Report, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx,
		`SELECT payload FROM compliance_reports WHERE id = $1`,
		uuid.UUID(reportID),
	).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Report{}, sentinel.ErrNotFound
	}
	if err != nil {
		return models.Report{}, fmt.Errorf("select report: %w", err)
	}

	var report models.Report
	if err := json.Unmarshal(payload, &report); err != nil {
		return models.Report{}, fmt.Errorf("unmarshal report: %w", err)
	}
	return report, nil
}

func (s *PostgresReportStore) Finalize(ctx context.Context, report models.Report) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE compliance_reports
		SET status = $2, payload = $3
		WHERE id = $1 AND status = 'DRAFT'`,
		uuid.UUID(report.ReportID),
		string(report.Status),
		payload,
	)
	if err != nil {
		return fmt.Errorf("finalize report: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.transitionFailure(ctx, report.ReportID)
	}
	return nil
}

func (s *PostgresReportStore) MarkSubmitted(ctx context.Context, reportID id.ReportID) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE compliance_reports
		SET status = 'SUBMITTED',
		    payload = jsonb_set(payload, '{status}', '"SUBMITTED"')
		WHERE id = $1 AND status = 'FINAL'`,
		uuid.UUID(reportID),
	)
	if err != nil {
		return fmt.Errorf("submit report: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.transitionFailure(ctx, reportID)
	}
	return nil
}

// transitionFailure distinguishes a missing row from a guard miss.
func (s *PostgresReportStore) transitionFailure(ctx context.Context, reportID id.ReportID) error {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM compliance_reports WHERE id = $1)`,
		uuid.UUID(reportID),
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check report existence: %w", err)
	}
	if !exists {
		return sentinel.ErrNotFound
	}
	return sentinel.ErrInvalidState
}

func (s *PostgresReportStore) ListByCompany(ctx context.Context, companyID id.CompanyID, limit int) ([]models.Report, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT payload FROM compliance_reports
		WHERE company_id = $1
		ORDER BY generated_at DESC
		LIMIT $2`,
		uuid.UUID(companyID), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	defer rows.Close()

	var out []models.Report
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		var report models.Report
		if err := json.Unmarshal(payload, &report); err != nil {
			return nil, fmt.Errorf("unmarshal report: %w", err)
		}
		out = append(out, report)
	}
	return out, rows.Err()
}

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"attest/internal/alert/models"
	id "attest/pkg/domain"
	"attest/pkg/platform/sentinel"
)

// Postgres persists alerts with the full document in a jsonb payload column,
// mirroring the audit event store.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Schema is the expected table layout, applied by migrations out-of-band.
const Schema = `
CREATE TABLE IF NOT EXISTS alerts (
    id          UUID PRIMARY KEY,
    company_id  UUID NOT NULL,
    status      TEXT NOT NULL,
    severity    TEXT NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL,
    payload     JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS alerts_company_status_idx
    ON alerts (company_id, status, created_at DESC);
`

func (s *Postgres) Create(ctx context.Context, alert models.Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO alerts (id, company_id, status, severity, created_at, payload)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.UUID(alert.AlertID),
		uuid.UUID(alert.CompanyID),
		string(alert.Status),
		string(alert.Severity),
		alert.CreatedAt,
		payload,
	)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

func (s *Postgres) GetByID(ctx context.Context, alertID id.AlertID) (models.Alert, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx,
		`SELECT payload FROM alerts WHERE id = $1`,
		uuid.UUID(alertID),
	).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Alert{}, sentinel.ErrNotFound
	}
	if err != nil {
		return models.Alert{}, fmt.Errorf("select alert: %w", err)
	}

	var alert models.Alert
	if err := json.Unmarshal(payload, &alert); err != nil {
		return models.Alert{}, fmt.Errorf("unmarshal alert: %w", err)
	}
	return alert, nil
}

func (s *Postgres) Update(ctx context.Context, alert models.Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE alerts SET status = $2, payload = $3 WHERE id = $1`,
		uuid.UUID(alert.AlertID),
		string(alert.Status),
		payload,
	)
	if err != nil {
		return fmt.Errorf("update alert: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) ListByCompany(ctx context.Context, companyID id.CompanyID, status models.Status, limit int) ([]models.Alert, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT payload FROM alerts WHERE company_id = $1`
	args := []any{uuid.UUID(companyID)}
	if status != "" {
		query += ` AND status = $2`
		args = append(args, string(status))
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d`, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	var out []models.Alert
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		var alert models.Alert
		if err := json.Unmarshal(payload, &alert); err != nil {
			return nil, fmt.Errorf("unmarshal alert: %w", err)
		}
		out = append(out, alert)
	}
	return out, rows.Err()
}

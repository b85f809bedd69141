package event

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"attest/internal/audit/models"
	id "attest/pkg/domain"
	"attest/pkg/platform/sentinel"
)

// PostgresStore persists audit events append-only. The full signed document
// lives in a jsonb payload column so a read returns exactly the bytes that
// were signed; the extracted columns exist only for range scans.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a postgres-backed event store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Schema is the expected table layout, applied by migrations out-of-band.
const Schema = `
CREATE TABLE IF NOT EXISTS audit_events (
    id           UUID PRIMARY KEY,
    company_id   UUID NOT NULL,
    user_id      UUID,
    event_type   TEXT NOT NULL,
    category     TEXT NOT NULL,
    severity     TEXT NOT NULL,
    action       TEXT NOT NULL,
    occurred_at  TIMESTAMPTZ NOT NULL,
    payload      JSONB NOT NULL,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS audit_events_company_time_idx
    ON audit_events (company_id, occurred_at DESC);
`

// Append inserts one event. The primary key makes duplicate IDs impossible;
// a conflict means the generator was misused, not that a retry is safe.
func (s *PostgresStore) Append(ctx context.Context, event models.AuditEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	var userID *uuid.UUID
	if !event.UserID.IsNil() {
		u := uuid.UUID(event.UserID)
		userID = &u
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO audit_events (id, company_id, user_id, event_type, category, severity, action, occurred_at, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		uuid.UUID(event.EventID),
		uuid.UUID(event.CompanyID),
		userID,
		string(event.EventType),
		event.Category,
		string(event.Severity),
		event.Action,
		event.Timestamp,
		payload,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// GetByID loads the signed payload for one event.
func (s *PostgresStore) GetByID(ctx context.Context, eventID id.EventID) (models.AuditEvent, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx,
		`SELECT payload FROM audit_events WHERE id = $1`,
		uuid.UUID(eventID),
	).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.AuditEvent{}, sentinel.ErrNotFound
	}
	if err != nil {
		return models.AuditEvent{}, fmt.Errorf("select audit event: %w", err)
	}

	var event models.AuditEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return models.AuditEvent{}, fmt.Errorf("unmarshal audit payload: %w", err)
	}
	return event, nil
}

// ListByCompany returns a tenant's events in [from, to], newest first.
func (s *PostgresStore) ListByCompany(ctx context.Context, companyID id.CompanyID, from, to time.Time, limit int) ([]models.AuditEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT payload FROM audit_events
		WHERE company_id = $1 AND occurred_at >= $2 AND occurred_at <= $3
		ORDER BY occurred_at DESC
		LIMIT $4`,
		uuid.UUID(companyID), from, to, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var out []models.AuditEvent
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		var event models.AuditEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			return nil, fmt.Errorf("unmarshal audit payload: %w", err)
		}
		out = append(out, event)
	}
	return out, rows.Err()
}

// PurgeBefore deletes a tenant's events older than cutoff.
func (s *PostgresStore) PurgeBefore(ctx context.Context, companyID id.CompanyID, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM audit_events WHERE company_id = $1 AND occurred_at < $2`,
		uuid.UUID(companyID), cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("purge audit events: %w", err)
	}
	return tag.RowsAffected(), nil
}

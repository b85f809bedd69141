// Package ports defines the interfaces the audit module depends on.
// Interfaces live here when consumed by multiple services to avoid
// duplication.
package ports

import (
	"context"
	"time"

	"attest/internal/audit/models"
	id "attest/pkg/domain"
)

// Store is the append-only persistence boundary for audit events.
// No update path exists; PurgeBefore is the administrative retention hook
// and callers are responsible for recording the purge as its own event.
type Store interface {
	// Append persists an event atomically. A returned error means nothing
	// was written.
	Append(ctx context.Context, event models.AuditEvent) error

	// GetByID loads a stored event. Returns sentinel.ErrNotFound when absent.
	GetByID(ctx context.Context, eventID id.EventID) (models.AuditEvent, error)

	// ListByCompany returns events for a tenant in a bounded time range,
	// newest first, capped at limit.
	ListByCompany(ctx context.Context, companyID id.CompanyID, from, to time.Time, limit int) ([]models.AuditEvent, error)

	// PurgeBefore deletes events older than cutoff for a tenant and reports
	// how many were removed.
	PurgeBefore(ctx context.Context, companyID id.CompanyID, cutoff time.Time) (int64, error)
}

// IndexSink accepts recorded events for asynchronous indexing.
// Enqueue must never block; a false return means the event was not accepted
// and will be picked up by reconciliation, not by failing the write.
type IndexSink interface {
	Enqueue(event models.AuditEvent) bool
}

// EventPublisher fans a recorded event out to in-process consumers
// (the suspicious-activity detector). Non-blocking.
type EventPublisher interface {
	Publish(ctx context.Context, event models.AuditEvent)
}

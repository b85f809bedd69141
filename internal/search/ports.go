package search

import (
	"context"

	"attest/internal/audit/models"
)

// Indexer is the adapter boundary to the search backend.
//
// Index and BulkIndex are idempotent upserts keyed by event ID: re-indexing
// the same event must not create a duplicate document. Search failures on an
// unreachable backend surface as CodeIndexUnavailable.
type Indexer interface {
	Index(ctx context.Context, event models.AuditEvent) error
	BulkIndex(ctx context.Context, events []models.AuditEvent) error
	Search(ctx context.Context, criteria Criteria) (*Result, error)
}

// Searcher is the read-only view consumed by the assessment engine.
type Searcher interface {
	Search(ctx context.Context, criteria Criteria) (*Result, error)
}

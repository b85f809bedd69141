// Package search defines the indexing and query boundary for audit events.
//
// The index is a derived, eventually consistent view of the trail: the
// primary store remains the source of truth, and nothing in this package is
// consulted for integrity verification.
package search

import (
	"time"

	"attest/internal/audit/models"
	id "attest/pkg/domain"
	dErrors "attest/pkg/domain-errors"
)

// Document is an audit event enriched with time-bucket fields so dashboards
// can aggregate without re-deriving on every query.
type Document struct {
	models.AuditEvent

	Day       string `json:"day"`       // "2026-08-28"
	Hour      int    `json:"hour"`      // 0-23, UTC
	DayOfWeek string `json:"dayOfWeek"` // "Monday".."Sunday"
}

// NewDocument derives the enriched form of an event.
func NewDocument(event models.AuditEvent) Document {
	ts := event.Timestamp.UTC()
	return Document{
		AuditEvent: event,
		Day:        ts.Format("2006-01-02"),
		Hour:       ts.Hour(),
		DayOfWeek:  ts.Weekday().String(),
	}
}

// Period is a closed time range.
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// IsZero reports whether no range was given.
func (p Period) IsZero() bool { return p.Start.IsZero() && p.End.IsZero() }

// Contains reports whether t falls inside the period; zero bounds are open.
func (p Period) Contains(t time.Time) bool {
	if !p.Start.IsZero() && t.Before(p.Start) {
		return false
	}
	if !p.End.IsZero() && t.After(p.End) {
		return false
	}
	return true
}

// AggregationType enumerates the supported aggregations.
type AggregationType string

const (
	AggTerms         AggregationType = "terms"
	AggDateHistogram AggregationType = "date_histogram"
	AggCardinality   AggregationType = "cardinality"
)

// AggregationRequest asks the backend for one named aggregation.
type AggregationRequest struct {
	Name     string          `json:"name"`
	Type     AggregationType `json:"type"`
	Field    string          `json:"field"`
	Interval string          `json:"interval,omitempty"` // date_histogram only, e.g. "1d"
}

// Criteria is one search request. CompanyID is mandatory: every query is
// tenant-scoped, there is no cross-tenant read path.
type Criteria struct {
	CompanyID    id.CompanyID
	Period       Period
	EventTypes   []models.EventType
	Categories   []string
	Severities   []models.Severity
	UserID       id.UserID
	ResourceType string
	FreeText     string

	Aggregations []AggregationRequest

	// Pagination; default sort is timestamp descending.
	Size int
	From int
}

// Validate enforces the mandatory tenant filter.
func (c Criteria) Validate() error {
	if c.CompanyID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "companyId filter is required")
	}
	return nil
}

// Bucket is one aggregation bucket.
type Bucket struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

// AggregationResult carries either buckets (terms, date_histogram) or a
// single value (cardinality).
type AggregationResult struct {
	Buckets []Bucket `json:"buckets,omitempty"`
	Value   int64    `json:"value,omitempty"`
}

// Result is one search response.
type Result struct {
	Hits         []Document                   `json:"hits"`
	Total        int64                        `json:"total"`
	Aggregations map[string]AggregationResult `json:"aggregations,omitempty"`
	TookMs       int64                        `json:"tookMs"`
}

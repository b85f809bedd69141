package search

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"attest/internal/audit/models"
	id "attest/pkg/domain"
)

// MemoryIndexer is a map-backed Indexer for tests and single-node setups.
// Upserts are keyed by event ID, matching the backend contract.
type MemoryIndexer struct {
	mu   sync.RWMutex
	docs map[id.EventID]Document
}

func NewMemoryIndexer() *MemoryIndexer {
	return &MemoryIndexer{docs: make(map[id.EventID]Document)}
}

func (m *MemoryIndexer) Index(_ context.Context, event models.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[event.EventID] = NewDocument(event)
	return nil
}

func (m *MemoryIndexer) BulkIndex(_ context.Context, events []models.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, event := range events {
		m.docs[event.EventID] = NewDocument(event)
	}
	return nil
}

// Size reports the number of distinct documents in the index.
func (m *MemoryIndexer) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}

func (m *MemoryIndexer) Search(_ context.Context, criteria Criteria) (*Result, error) {
	if err := criteria.Validate(); err != nil {
		return nil, err
	}
	started := time.Now()

	m.mu.RLock()
	var matched []Document
	for _, doc := range m.docs {
		if matches(doc, criteria) {
			matched = append(matched, doc)
		}
	}
	m.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})

	result := &Result{
		Total:        int64(len(matched)),
		Aggregations: aggregate(matched, criteria.Aggregations),
	}

	size := criteria.Size
	if size <= 0 {
		size = 50
	}
	from := criteria.From
	if from > len(matched) {
		from = len(matched)
	}
	end := from + size
	if end > len(matched) {
		end = len(matched)
	}
	result.Hits = matched[from:end]
	result.TookMs = time.Since(started).Milliseconds()
	return result, nil
}

func matches(doc Document, c Criteria) bool {
	if doc.CompanyID != c.CompanyID {
		return false
	}
	if !c.Period.IsZero() && !c.Period.Contains(doc.Timestamp) {
		return false
	}
	if len(c.EventTypes) > 0 && !contains(c.EventTypes, doc.EventType) {
		return false
	}
	if len(c.Categories) > 0 && !contains(c.Categories, doc.Category) {
		return false
	}
	if len(c.Severities) > 0 && !contains(c.Severities, doc.Severity) {
		return false
	}
	if !c.UserID.IsNil() && doc.UserID != c.UserID {
		return false
	}
	if c.ResourceType != "" && doc.ResourceType != c.ResourceType {
		return false
	}
	if c.FreeText != "" {
		needle := strings.ToLower(c.FreeText)
		haystack := strings.ToLower(doc.Description + " " + doc.Action + " " + strings.Join(doc.Tags, " "))
		if !strings.Contains(haystack, needle) {
			return false
		}
	}
	return true
}

func contains[T comparable](list []T, v T) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func aggregate(docs []Document, requests []AggregationRequest) map[string]AggregationResult {
	if len(requests) == 0 {
		return nil
	}
	out := make(map[string]AggregationResult, len(requests))
	for _, req := range requests {
		switch req.Type {
		case AggTerms:
			out[req.Name] = termsAgg(docs, req.Field)
		case AggDateHistogram:
			out[req.Name] = dateHistogramAgg(docs, req.Interval)
		case AggCardinality:
			out[req.Name] = cardinalityAgg(docs, req.Field)
		}
	}
	return out
}

func termsAgg(docs []Document, field string) AggregationResult {
	counts := make(map[string]int64)
	for _, doc := range docs {
		if key := fieldValue(doc, field); key != "" {
			counts[key]++
		}
	}
	return AggregationResult{Buckets: sortedBuckets(counts)}
}

func dateHistogramAgg(docs []Document, interval string) AggregationResult {
	layout := "2006-01-02"
	if interval == "1h" {
		layout = "2006-01-02T15"
	}
	counts := make(map[string]int64)
	for _, doc := range docs {
		counts[doc.Timestamp.UTC().Format(layout)]++
	}
	buckets := sortedBuckets(counts)
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].Key < buckets[j].Key })
	return AggregationResult{Buckets: buckets}
}

func cardinalityAgg(docs []Document, field string) AggregationResult {
	seen := make(map[string]struct{})
	for _, doc := range docs {
		if key := fieldValue(doc, field); key != "" {
			seen[key] = struct{}{}
		}
	}
	return AggregationResult{Value: int64(len(seen))}
}

func fieldValue(doc Document, field string) string {
	switch field {
	case "eventType":
		return string(doc.EventType)
	case "category":
		return doc.Category
	case "severity":
		return string(doc.Severity)
	case "action":
		return doc.Action
	case "outcome":
		return string(doc.Outcome)
	case "resourceType":
		return doc.ResourceType
	case "userId":
		if doc.UserID.IsNil() {
			return ""
		}
		return doc.UserID.String()
	case "dayOfWeek":
		return doc.DayOfWeek
	default:
		return ""
	}
}

func sortedBuckets(counts map[string]int64) []Bucket {
	buckets := make([]Bucket, 0, len(counts))
	for key, count := range counts {
		buckets = append(buckets, Bucket{Key: key, Count: count})
	}
	sort.Slice(buckets, func(i, j int) bool {
		if buckets[i].Count != buckets[j].Count {
			return buckets[i].Count > buckets[j].Count
		}
		return buckets[i].Key < buckets[j].Key
	})
	return buckets
}

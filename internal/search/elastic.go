package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"

	"attest/internal/audit/models"
	dErrors "attest/pkg/domain-errors"
)

// ElasticIndexer indexes audit documents into Elasticsearch. Documents are
// upserted with the event ID as _id, so replays from the pipeline or the
// Kafka consumer never duplicate a hit.
type ElasticIndexer struct {
	client *elasticsearch.Client
	index  string
}

// NewElasticIndexer connects to the given addresses. The index name defaults
// to "audit-events".
func NewElasticIndexer(addresses []string, index string) (*ElasticIndexer, error) {
	if index == "" {
		index = "audit-events"
	}
	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: addresses})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeIndexUnavailable, "create elasticsearch client")
	}
	return &ElasticIndexer{client: client, index: index}, nil
}

func (e *ElasticIndexer) Index(ctx context.Context, event models.AuditEvent) error {
	body, err := json.Marshal(NewDocument(event))
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}

	res, err := e.client.Index(
		e.index,
		bytes.NewReader(body),
		e.client.Index.WithDocumentID(event.EventID.String()),
		e.client.Index.WithContext(ctx),
	)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeIndexUnavailable, "index document")
	}
	defer res.Body.Close()
	if res.IsError() {
		return dErrors.Newf(dErrors.CodeIndexUnavailable, "index document: %s", res.Status())
	}
	return nil
}

func (e *ElasticIndexer) BulkIndex(ctx context.Context, events []models.AuditEvent) error {
	if len(events) == 0 {
		return nil
	}

	var buf bytes.Buffer
	for _, event := range events {
		meta := fmt.Sprintf(`{"index":{"_index":%q,"_id":%q}}`, e.index, event.EventID.String())
		doc, err := json.Marshal(NewDocument(event))
		if err != nil {
			return fmt.Errorf("marshal document: %w", err)
		}
		buf.WriteString(meta)
		buf.WriteByte('\n')
		buf.Write(doc)
		buf.WriteByte('\n')
	}

	res, err := e.client.Bulk(bytes.NewReader(buf.Bytes()), e.client.Bulk.WithContext(ctx))
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeIndexUnavailable, "bulk index")
	}
	defer res.Body.Close()
	if res.IsError() {
		return dErrors.Newf(dErrors.CodeIndexUnavailable, "bulk index: %s", res.Status())
	}

	var bulk struct {
		Errors bool `json:"errors"`
		Items  []map[string]struct {
			Status int `json:"status"`
			Error  *struct {
				Reason string `json:"reason"`
			} `json:"error"`
		} `json:"items"`
	}
	if err := json.NewDecoder(res.Body).Decode(&bulk); err != nil {
		return fmt.Errorf("decode bulk response: %w", err)
	}
	if bulk.Errors {
		for _, item := range bulk.Items {
			for _, op := range item {
				if op.Error != nil {
					return dErrors.Newf(dErrors.CodeIndexUnavailable, "bulk index item failed: %s", op.Error.Reason)
				}
			}
		}
		return dErrors.New(dErrors.CodeIndexUnavailable, "bulk index reported errors")
	}
	return nil
}

func (e *ElasticIndexer) Search(ctx context.Context, criteria Criteria) (*Result, error) {
	if err := criteria.Validate(); err != nil {
		return nil, err
	}

	query, err := json.Marshal(buildQuery(criteria))
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}

	res, err := e.client.Search(
		e.client.Search.WithContext(ctx),
		e.client.Search.WithIndex(e.index),
		e.client.Search.WithBody(bytes.NewReader(query)),
		e.client.Search.WithTrackTotalHits(true),
	)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeIndexUnavailable, "search")
	}
	defer res.Body.Close()
	if res.IsError() {
		msg, _ := io.ReadAll(res.Body)
		return nil, dErrors.Newf(dErrors.CodeIndexUnavailable, "search: %s: %s", res.Status(), strings.TrimSpace(string(msg)))
	}

	return decodeSearchResponse(res.Body, criteria.Aggregations)
}

func buildQuery(c Criteria) map[string]any {
	filters := []map[string]any{
		{"term": map[string]any{"companyId": c.CompanyID.String()}},
	}
	if !c.Period.IsZero() {
		rng := map[string]any{}
		if !c.Period.Start.IsZero() {
			rng["gte"] = c.Period.Start
		}
		if !c.Period.End.IsZero() {
			rng["lte"] = c.Period.End
		}
		filters = append(filters, map[string]any{"range": map[string]any{"timestamp": rng}})
	}
	if len(c.EventTypes) > 0 {
		filters = append(filters, map[string]any{"terms": map[string]any{"eventType": c.EventTypes}})
	}
	if len(c.Categories) > 0 {
		filters = append(filters, map[string]any{"terms": map[string]any{"category": c.Categories}})
	}
	if len(c.Severities) > 0 {
		filters = append(filters, map[string]any{"terms": map[string]any{"severity": c.Severities}})
	}
	if !c.UserID.IsNil() {
		filters = append(filters, map[string]any{"term": map[string]any{"userId": c.UserID.String()}})
	}
	if c.ResourceType != "" {
		filters = append(filters, map[string]any{"term": map[string]any{"resourceType": c.ResourceType}})
	}

	boolQuery := map[string]any{"filter": filters}
	if c.FreeText != "" {
		boolQuery["must"] = []map[string]any{
			{"multi_match": map[string]any{
				"query":  c.FreeText,
				"fields": []string{"description", "action", "tags"},
			}},
		}
	}

	size := c.Size
	if size <= 0 {
		size = 50
	}
	query := map[string]any{
		"query": map[string]any{"bool": boolQuery},
		"sort":  []map[string]any{{"timestamp": map[string]any{"order": "desc"}}},
		"size":  size,
		"from":  c.From,
	}
	if aggs := buildAggregations(c.Aggregations); len(aggs) > 0 {
		query["aggs"] = aggs
	}
	return query
}

func buildAggregations(requests []AggregationRequest) map[string]any {
	aggs := make(map[string]any, len(requests))
	for _, req := range requests {
		switch req.Type {
		case AggTerms:
			aggs[req.Name] = map[string]any{"terms": map[string]any{"field": req.Field}}
		case AggDateHistogram:
			interval := req.Interval
			if interval == "" {
				interval = "1d"
			}
			aggs[req.Name] = map[string]any{"date_histogram": map[string]any{
				"field":          "timestamp",
				"fixed_interval": interval,
			}}
		case AggCardinality:
			aggs[req.Name] = map[string]any{"cardinality": map[string]any{"field": req.Field}}
		}
	}
	return aggs
}

func decodeSearchResponse(body io.Reader, requests []AggregationRequest) (*Result, error) {
	var raw struct {
		Took int64 `json:"took"`
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source Document `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
		Aggregations map[string]struct {
			Value   float64 `json:"value"`
			Buckets []struct {
				Key         any    `json:"key"`
				KeyAsString string `json:"key_as_string"`
				DocCount    int64  `json:"doc_count"`
			} `json:"buckets"`
		} `json:"aggregations"`
	}
	if err := json.NewDecoder(body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	result := &Result{
		Total:  raw.Hits.Total.Value,
		TookMs: raw.Took,
		Hits:   make([]Document, 0, len(raw.Hits.Hits)),
	}
	for _, hit := range raw.Hits.Hits {
		result.Hits = append(result.Hits, hit.Source)
	}

	if len(raw.Aggregations) > 0 {
		result.Aggregations = make(map[string]AggregationResult, len(raw.Aggregations))
		byName := make(map[string]AggregationType, len(requests))
		for _, req := range requests {
			byName[req.Name] = req.Type
		}
		for name, agg := range raw.Aggregations {
			if byName[name] == AggCardinality {
				result.Aggregations[name] = AggregationResult{Value: int64(agg.Value)}
				continue
			}
			buckets := make([]Bucket, 0, len(agg.Buckets))
			for _, b := range agg.Buckets {
				key := b.KeyAsString
				if key == "" {
					key = fmt.Sprintf("%v", b.Key)
				}
				buckets = append(buckets, Bucket{Key: key, Count: b.DocCount})
			}
			result.Aggregations[name] = AggregationResult{Buckets: buckets}
		}
	}
	return result, nil
}

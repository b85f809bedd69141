// Package kafka carries audit events to the search index through a Kafka
// topic, decoupling indexing from the write path across processes. Records
// are keyed by event ID so replays after a consumer restart stay idempotent
// on the backend's upsert semantics.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"attest/internal/audit/models"
	"attest/internal/search"
)

const DefaultTopic = "attest.audit-events"

// Publisher produces recorded events onto the index topic. It implements the
// recorder's IndexSink port; produce errors are logged, never surfaced to the
// write path.
type Publisher struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

func NewPublisher(brokers []string, topic string, logger *slog.Logger) (*Publisher, error) {
	if topic == "" {
		topic = DefaultTopic
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return &Publisher{client: client, topic: topic, logger: logger}, nil
}

// Enqueue produces one event asynchronously.
func (p *Publisher) Enqueue(event models.AuditEvent) bool {
	value, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("marshal event for kafka", "event_id", event.EventID, "error", err)
		return false
	}

	record := &kgo.Record{
		Key:   []byte(event.EventID.String()),
		Value: value,
	}
	p.client.Produce(context.Background(), record, func(_ *kgo.Record, err error) {
		if err != nil {
			p.logger.Warn("kafka produce failed", "event_id", event.EventID, "error", err)
		}
	})
	return true
}

// Close flushes outstanding produces and releases the client.
func (p *Publisher) Close(ctx context.Context) error {
	if err := p.client.Flush(ctx); err != nil {
		return fmt.Errorf("flush kafka producer: %w", err)
	}
	p.client.Close()
	return nil
}

// Consumer materializes the index topic into an Indexer as part of a
// consumer group. Offsets are committed only after a successful bulk index,
// so a backend outage replays rather than loses events.
type Consumer struct {
	client  *kgo.Client
	indexer search.Indexer
	logger  *slog.Logger
}

func NewConsumer(brokers []string, topic, group string, indexer search.Indexer, logger *slog.Logger) (*Consumer, error) {
	if topic == "" {
		topic = DefaultTopic
	}
	if group == "" {
		group = "attest-indexer"
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumerGroup(group),
		kgo.DisableAutoCommit(),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer: %w", err)
	}
	return &Consumer{client: client, indexer: indexer, logger: logger}, nil
}

// Run polls until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) {
	defer c.client.Close()

	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			c.logger.Warn("kafka fetch error", "topic", topic, "partition", partition, "error", err)
		})

		var batch []models.AuditEvent
		fetches.EachRecord(func(record *kgo.Record) {
			var event models.AuditEvent
			if err := json.Unmarshal(record.Value, &event); err != nil {
				// A malformed record would wedge the partition if we retried it.
				c.logger.Error("skipping malformed index record", "offset", record.Offset, "error", err)
				return
			}
			batch = append(batch, event)
		})
		if len(batch) == 0 {
			if err := c.client.CommitUncommittedOffsets(ctx); err != nil && ctx.Err() == nil {
				c.logger.Warn("kafka commit failed", "error", err)
			}
			continue
		}

		if err := c.indexBatch(ctx, batch); err != nil {
			c.logger.Warn("bulk index from kafka failed, offsets not committed", "batch_size", len(batch), "error", err)
			continue
		}
		if err := c.client.CommitUncommittedOffsets(ctx); err != nil && ctx.Err() == nil {
			c.logger.Warn("kafka commit failed", "error", err)
		}
	}
}

func (c *Consumer) indexBatch(ctx context.Context, batch []models.AuditEvent) error {
	backoff := 500 * time.Millisecond
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		if err = c.indexer.BulkIndex(ctx, batch); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return err
}

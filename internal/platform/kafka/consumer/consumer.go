// Package consumer runs a Kafka consumer group loop and hands each record
// to a handler. Redelivery on failure is the broker's job; a failed record
// blocks the commit of everything after it on the same partition so the
// broker's watermark never passes it.
package consumer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"prisoner-search/internal/platform/config"
)

// Message is one consumed record, decoupled from the client library so
// handlers stay testable.
type Message struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
	Timestamp time.Time
}

// Handler starts processing a message and returns the channel its outcome
// will arrive on. Submissions happen in record order, so handlers that need
// per-key ordering can rely on it; the results may complete concurrently.
// An outcome error leaves the message uncommitted for redelivery.
type Handler interface {
	Submit(ctx context.Context, msg *Message) (<-chan error, error)
}

// Consumer polls the configured topics as part of a consumer group.
type Consumer struct {
	client  *kgo.Client
	handler Handler
	logger  *slog.Logger
}

// New creates a consumer group member for the given topics.
func New(cfg config.KafkaConfig, topics []string, handler Handler, logger *slog.Logger) (*Consumer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumerGroup(cfg.ConsumerGroup),
		kgo.ConsumeTopics(topics...),
		kgo.DisableAutoCommit(),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer: %w", err)
	}
	return &Consumer{client: client, handler: handler, logger: logger}, nil
}

// outcome pairs a record with its handling result.
type outcome struct {
	record *kgo.Record
	err    error
}

// Run polls until the context is cancelled. Each batch is dispatched to the
// handler in record order, then offsets are committed per partition only up
// to the first failure, giving at-least-once delivery downstream.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		fetches := c.client.PollFetches(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errs := fetches.Errors(); len(errs) > 0 {
			for _, fe := range errs {
				c.logger.Error("kafka fetch failed",
					"topic", fe.Topic,
					"partition", fe.Partition,
					"error", fe.Err,
				)
			}
			continue
		}

		type pending struct {
			record *kgo.Record
			result <-chan error
		}
		var pendings []pending
		fetches.EachRecord(func(record *kgo.Record) {
			msg := &Message{
				Topic:     record.Topic,
				Partition: record.Partition,
				Offset:    record.Offset,
				Key:       record.Key,
				Value:     record.Value,
				Timestamp: record.Timestamp,
			}
			result, err := c.handler.Submit(ctx, msg)
			if err != nil {
				result = resolved(err)
			}
			pendings = append(pendings, pending{record: record, result: result})
		})

		outcomes := make([]outcome, 0, len(pendings))
		for _, p := range pendings {
			outcomes = append(outcomes, outcome{record: p.record, err: <-p.result})
		}

		for _, o := range outcomes {
			if o.err != nil {
				c.logger.Error("message handling failed, leaving uncommitted",
					"topic", o.record.Topic,
					"key", string(o.record.Key),
					"offset", o.record.Offset,
					"error", o.err,
				)
			}
		}

		if commit := committable(outcomes); len(commit) > 0 {
			if err := c.client.CommitRecords(ctx, commit...); err != nil {
				c.logger.Error("offset commit failed", "error", err)
			}
		}
	}
}

// committable returns the records safe to commit: on each partition, only
// those strictly before the first failure. Kafka tracks a single watermark
// per partition, so committing any record after a failed one would
// implicitly commit the failure and it would never be redelivered.
func committable(outcomes []outcome) []*kgo.Record {
	type partition struct {
		topic     string
		partition int32
	}
	blocked := make(map[partition]bool)

	var commit []*kgo.Record
	for _, o := range outcomes {
		key := partition{topic: o.record.Topic, partition: o.record.Partition}
		if blocked[key] {
			continue
		}
		if o.err != nil {
			blocked[key] = true
			continue
		}
		commit = append(commit, o.record)
	}
	return commit
}

func resolved(err error) <-chan error {
	ch := make(chan error, 1)
	ch <- err
	return ch
}

// Close leaves the group and releases the client.
func (c *Consumer) Close() {
	c.client.Close()
}

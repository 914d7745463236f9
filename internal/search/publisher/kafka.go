// Package publisher emits domain events to the outbound Kafka topic.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"prisoner-search/internal/platform/kafka"
	"prisoner-search/internal/search/events"
)

// Kafka publishes event envelopes as JSON records. Records are keyed by
// prisoner number so every event for one identity lands on the same
// partition and consumers observe them in order.
type Kafka struct {
	producer *kafka.Producer
	topic    string
	logger   *slog.Logger
}

// NewKafka wraps a producer for the given topic.
func NewKafka(producer *kafka.Producer, topic string, logger *slog.Logger) *Kafka {
	return &Kafka{producer: producer, topic: topic, logger: logger}
}

// Publish sends one envelope and waits for the broker acknowledgement.
func (k *Kafka) Publish(ctx context.Context, envelope events.Envelope) error {
	value, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	key := partitionKey(envelope)
	if err := k.producer.Produce(ctx, k.topic, key, value); err != nil {
		return fmt.Errorf("publish %s: %w", envelope.EventType, err)
	}

	k.logger.DebugContext(ctx, "event published",
		"eventType", envelope.EventType,
		"eventID", envelope.EventID,
	)
	return nil
}

func partitionKey(envelope events.Envelope) []byte {
	switch info := envelope.AdditionalInformation.(type) {
	case *events.AlertsUpdated:
		return []byte(info.PrisonerNumber)
	case events.ReceivedInformation:
		return []byte(info.PrisonerNumber)
	default:
		return []byte(envelope.EventID)
	}
}

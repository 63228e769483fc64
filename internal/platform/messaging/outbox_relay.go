package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	contractsv1 "adreel/contracts/gen/events/v1"
)

// OutboxMessage is one stored envelope waiting to be published.
type OutboxMessage struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
}

// OutboxSource is a context's outbox seen from the relay. The composition
// root adapts each context's outbox port to it.
type OutboxSource interface {
	ListPending(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
}

type Publisher interface {
	Publish(ctx context.Context, topic string, event contractsv1.Envelope) error
}

type Clock interface {
	Now() time.Time
}

// TopicRouter names the topic an event type is published to.
type TopicRouter func(eventType string) string

// PrefixTopics routes every event type to prefix+eventType unless an
// override names a topic for it.
func PrefixTopics(prefix string, overrides map[string]string) TopicRouter {
	return func(eventType string) string {
		if topic, ok := overrides[eventType]; ok {
			return topic
		}
		return prefix + eventType
	}
}

// OutboxRelay moves pending envelopes from one outbox to the broker. Rows
// are published in order and marked one at a time, so a failed publish
// leaves it and everything after it for the next run.
type OutboxRelay struct {
	Name      string
	Source    OutboxSource
	Publisher Publisher
	Topics    TopicRouter
	Clock     Clock
	BatchSize int
	Logger    *slog.Logger
}

// RunOnce publishes one batch and reports how many rows it shipped.
func (r OutboxRelay) RunOnce(ctx context.Context) (int, error) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	limit := r.BatchSize
	if limit <= 0 {
		limit = 100
	}
	pending, err := r.Source.ListPending(ctx, limit)
	if err != nil {
		return 0, err
	}

	published := 0
	for _, row := range pending {
		event, err := decodeOutboxEnvelope(row)
		if err != nil {
			logger.Error("outbox envelope unreadable",
				"event", "outbox_decode_failed",
				"module", "internal/platform/messaging",
				"layer", "worker",
				"outbox", r.Name,
				"outbox_id", row.OutboxID,
				"error", err.Error(),
			)
			return published, err
		}
		topic := r.topic(event.EventType)
		if err := r.Publisher.Publish(ctx, topic, event); err != nil {
			logger.Error("outbox publish failed",
				"event", "outbox_publish_failed",
				"module", "internal/platform/messaging",
				"layer", "worker",
				"outbox", r.Name,
				"outbox_id", row.OutboxID,
				"topic", topic,
				"error", err.Error(),
			)
			return published, err
		}
		if err := r.Source.MarkPublished(ctx, row.OutboxID, r.now()); err != nil {
			return published, err
		}
		published++
	}
	return published, nil
}

func (r OutboxRelay) topic(eventType string) string {
	if r.Topics == nil {
		return eventType
	}
	return r.Topics(eventType)
}

func (r OutboxRelay) now() time.Time {
	if r.Clock == nil {
		return time.Now().UTC()
	}
	return r.Clock.Now().UTC()
}

// decodeOutboxEnvelope fills the routing fields an older row may lack from
// the outbox columns.
func decodeOutboxEnvelope(row OutboxMessage) (contractsv1.Envelope, error) {
	var event contractsv1.Envelope
	if err := json.Unmarshal(row.Payload, &event); err != nil {
		return contractsv1.Envelope{}, fmt.Errorf("decode outbox %s: %w", row.OutboxID, err)
	}
	if strings.TrimSpace(event.EventType) == "" {
		event.EventType = row.EventType
	}
	if strings.TrimSpace(event.PartitionKey) == "" {
		event.PartitionKey = row.PartitionKey
	}
	if strings.TrimSpace(event.PartitionKey) == "" {
		event.PartitionKey = event.EventID
	}
	return event, nil
}

package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	contractsv1 "adreel/contracts/gen/events/v1"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Kafka publishes audit envelopes to the broker. Records are keyed by the
// envelope partition key so one entity's events stay ordered.
type Kafka struct {
	client *kgo.Client
	logger *slog.Logger
}

func NewKafka(brokers []string, clientID string, logger *slog.Logger) (*Kafka, error) {
	if len(brokers) == 0 {
		return nil, errors.New("at least one kafka broker is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ClientID(clientID),
		kgo.ProducerLinger(10*time.Millisecond),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.AllowAutoTopicCreation(),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &Kafka{client: client, logger: logger}, nil
}

func (k *Kafka) Publish(ctx context.Context, topic string, event contractsv1.Envelope) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	key := event.PartitionKey
	if key == "" {
		key = event.EventID
	}
	record := &kgo.Record{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "source_service", Value: []byte(event.SourceService)},
			{Key: "schema_version", Value: []byte(fmt.Sprintf("%d", event.SchemaVersion))},
		},
	}

	produceCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := k.client.ProduceSync(produceCtx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce to %s: %w", topic, err)
	}

	k.logger.Info("event published",
		"event", "kafka_publish",
		"module", "internal/platform/messaging",
		"layer", "platform",
		"topic", topic,
		"event_id", event.EventID,
		"event_type", event.EventType,
	)
	return nil
}

func (k *Kafka) Ping(ctx context.Context) error {
	return k.client.Ping(ctx)
}

func (k *Kafka) Close() {
	k.client.Close()
}

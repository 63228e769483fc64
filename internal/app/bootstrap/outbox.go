package bootstrap

import (
	"context"
	"log/slog"
	"time"

	paymentports "adreel/contexts/billing/payment-ledger/ports"
	campaignports "adreel/contexts/campaign-lifecycle/campaign-service/ports"
	"adreel/internal/platform/messaging"
)

// campaignOutbox and paymentOutbox adapt each context's outbox port to the
// shared relay.

type campaignOutbox struct {
	outbox campaignports.OutboxRepository
}

func (o campaignOutbox) ListPending(ctx context.Context, limit int) ([]messaging.OutboxMessage, error) {
	rows, err := o.outbox.ListPendingOutbox(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]messaging.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		out = append(out, messaging.OutboxMessage{
			OutboxID:     row.OutboxID,
			EventType:    row.EventType,
			PartitionKey: row.PartitionKey,
			Payload:      row.Payload,
		})
	}
	return out, nil
}

func (o campaignOutbox) MarkPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	return o.outbox.MarkOutboxPublished(ctx, outboxID, publishedAt)
}

type paymentOutbox struct {
	outbox paymentports.OutboxRepository
}

func (o paymentOutbox) ListPending(ctx context.Context, limit int) ([]messaging.OutboxMessage, error) {
	rows, err := o.outbox.ListPendingOutbox(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]messaging.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		out = append(out, messaging.OutboxMessage{
			OutboxID:     row.OutboxID,
			EventType:    row.EventType,
			PartitionKey: row.PartitionKey,
			Payload:      row.Payload,
		})
	}
	return out, nil
}

func (o paymentOutbox) MarkPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	return o.outbox.MarkOutboxPublished(ctx, outboxID, publishedAt)
}

// outboxRelays builds one relay per context outbox. All of them share the
// publisher and the topic routing.
func outboxRelays(b *Backends, publisher messaging.Publisher, topicPrefix string, logger *slog.Logger) []messaging.OutboxRelay {
	topics := messaging.PrefixTopics(topicPrefix, nil)
	return []messaging.OutboxRelay{
		{
			Name:      "campaign",
			Source:    campaignOutbox{outbox: b.Campaigns},
			Publisher: publisher,
			Topics:    topics,
			BatchSize: 100,
			Logger:    logger,
		},
		{
			Name:      "billing",
			Source:    paymentOutbox{outbox: b.Payments},
			Publisher: publisher,
			Topics:    topics,
			BatchSize: 100,
			Logger:    logger,
		},
	}
}

package commands

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"adreel/contexts/campaign-lifecycle/campaign-service/ports"
	contractsv1 "adreel/contracts/gen/events/v1"
)

const auditEventType = "campaign.audit"

type auditEntry struct {
	Action     string
	CampaignID string
	ActorID    string
	OccurredAt time.Time
	OldValues  map[string]any
	NewValues  map[string]any
}

func newCampaignEnvelope(
	eventID string,
	eventType string,
	campaignID string,
	occurredAt time.Time,
	data any,
) (ports.EventEnvelope, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return ports.EventEnvelope{}, err
	}
	return ports.EventEnvelope{
		EventID:          eventID,
		EventType:        eventType,
		OccurredAt:       occurredAt.UTC(),
		SourceService:    "campaign-service",
		TraceID:          eventID,
		SchemaVersion:    1,
		PartitionKeyPath: "resource_id",
		PartitionKey:     campaignID,
		Data:             payload,
	}, nil
}

// emitAudit never fails the caller: the transition is already committed.
func emitAudit(
	ctx context.Context,
	outbox ports.OutboxWriter,
	ids ports.IDGenerator,
	logger *slog.Logger,
	entry auditEntry,
) {
	if outbox == nil {
		return
	}
	err := func() error {
		eventID, err := ids.NewID(ctx)
		if err != nil {
			return err
		}
		envelope, err := newCampaignEnvelope(eventID, auditEventType, entry.CampaignID, entry.OccurredAt, contractsv1.AuditRecord{
			Action:     entry.Action,
			Resource:   "campaign",
			ResourceID: entry.CampaignID,
			ActorID:    entry.ActorID,
			OldValues:  entry.OldValues,
			NewValues:  entry.NewValues,
		})
		if err != nil {
			return err
		}
		return outbox.AppendOutbox(ctx, envelope)
	}()
	if err != nil {
		logger.Warn("campaign audit emission failed",
			"event", "campaign_audit_emit_failed",
			"module", "campaign-lifecycle/campaign-service",
			"layer", "application",
			"campaign_id", entry.CampaignID,
			"action", entry.Action,
			"error", err.Error(),
		)
	}
}

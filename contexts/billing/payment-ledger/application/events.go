package application

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"adreel/contexts/billing/payment-ledger/domain/entities"
	contractsv1 "adreel/contracts/gen/events/v1"
)

const auditEventType = "billing.audit"

func ResolveLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}

// emitAudit is best-effort: the ledger write has already committed.
func (s Service) emitAudit(
	ctx context.Context,
	action string,
	payment entities.Payment,
	actorID string,
	previous entities.PaymentStatus,
	at time.Time,
) {
	if s.Outbox == nil || s.IDGenerator == nil {
		return
	}
	err := func() error {
		eventID, err := s.IDGenerator.NewID(ctx)
		if err != nil {
			return err
		}
		data, err := json.Marshal(contractsv1.AuditRecord{
			Action:     action,
			Resource:   "payment",
			ResourceID: payment.PaymentID,
			ActorID:    actorID,
			OldValues:  map[string]any{"status": string(previous)},
			NewValues:  map[string]any{"status": string(payment.Status)},
		})
		if err != nil {
			return err
		}
		return s.Outbox.AppendOutbox(ctx, contractsv1.Envelope{
			EventID:          eventID,
			EventType:        auditEventType,
			OccurredAt:       at.UTC(),
			SourceService:    "payment-ledger",
			TraceID:          eventID,
			SchemaVersion:    1,
			PartitionKeyPath: "resource_id",
			PartitionKey:     payment.PaymentID,
			Data:             data,
		})
	}()
	if err != nil {
		ResolveLogger(s.Logger).Warn("payment audit emission failed",
			"event", "billing_audit_emit_failed",
			"module", "billing/payment-ledger",
			"layer", "application",
			"payment_id", payment.PaymentID,
			"action", action,
			"error", err.Error(),
		)
	}
}

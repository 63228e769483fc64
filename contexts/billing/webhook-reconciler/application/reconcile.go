package application

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	domainerrors "adreel/contexts/billing/webhook-reconciler/domain/errors"
	"adreel/contexts/billing/webhook-reconciler/domain/events"
	"adreel/contexts/billing/webhook-reconciler/ports"
)

type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeIgnored   Outcome = "ignored"
	OutcomeFailed    Outcome = "failed"
	OutcomeRejected  Outcome = "rejected"
	OutcomeInFlight  Outcome = "in_flight"
)

const (
	defaultDedupTTL = 30 * 24 * time.Hour
	claimTTL        = time.Minute
)

type ReconcileResult struct {
	EventID         string
	EventType       string
	Outcome         Outcome
	QueuedCampaigns []string
}

// ReconcileEventUseCase applies processor notifications to the ledger and the
// campaign lifecycle. The event id is recorded only after every step
// succeeded; a failure is returned so the processor redelivers, and the
// redelivery re-runs steps that are each idempotent.
type ReconcileEventUseCase struct {
	Decoder   ports.EventDecoder
	Ledger    ports.Ledger
	Campaigns ports.CampaignQueue
	Dedup     ports.DedupStore
	Metrics   ports.Metrics
	Clock     ports.Clock
	DedupTTL  time.Duration
	Logger    *slog.Logger
}

// HandleDelivery verifies and decodes a raw delivery, then reconciles it.
func (uc ReconcileEventUseCase) HandleDelivery(ctx context.Context, payload []byte, signature string) (ReconcileResult, error) {
	logger := ResolveLogger(uc.Logger)
	event, err := uc.Decoder.Decode(payload, signature)
	if err != nil {
		if errors.Is(err, domainerrors.ErrInvalidSignature) && uc.Metrics != nil {
			uc.Metrics.SignatureFailure()
		}
		logger.Warn("webhook delivery rejected",
			"event", "webhook_delivery_rejected",
			"module", "billing/webhook-reconciler",
			"layer", "application",
			"error", err.Error(),
		)
		return ReconcileResult{Outcome: OutcomeRejected}, err
	}
	return uc.execute(ctx, event, hashPayload(payload))
}

func (uc ReconcileEventUseCase) Execute(ctx context.Context, event events.Event) (ReconcileResult, error) {
	return uc.execute(ctx, event, "")
}

func (uc ReconcileEventUseCase) execute(ctx context.Context, event events.Event, payloadHash string) (ReconcileResult, error) {
	logger := ResolveLogger(uc.Logger)
	started := uc.now()
	meta := event.Metadata()
	result := ReconcileResult{EventID: meta.EventID, EventType: meta.Type}

	processed, err := uc.Dedup.IsProcessed(ctx, meta.EventID)
	if err != nil {
		return uc.finish(event, result, OutcomeFailed, started, err)
	}
	if processed {
		logger.Info("webhook event already processed",
			"event", "webhook_event_duplicate",
			"module", "billing/webhook-reconciler",
			"layer", "application",
			"event_id", meta.EventID,
			"event_type", meta.Type,
		)
		return uc.finish(event, result, OutcomeDuplicate, started, nil)
	}
	claimed, err := uc.Dedup.Claim(ctx, meta.EventID, started.Add(claimTTL))
	if err != nil {
		return uc.finish(event, result, OutcomeFailed, started, err)
	}
	if !claimed {
		// The holder may have finished between the two checks.
		if processed, err := uc.Dedup.IsProcessed(ctx, meta.EventID); err == nil && processed {
			return uc.finish(event, result, OutcomeDuplicate, started, nil)
		}
		return uc.finish(event, result, OutcomeInFlight, started, domainerrors.ErrEventInFlight)
	}
	defer uc.releaseClaim(meta.EventID)

	outcome := OutcomeApplied
	switch e := event.(type) {
	case events.CheckoutCompleted:
		if !e.Paid {
			outcome = OutcomeIgnored
			break
		}
		queued, err := uc.applyCheckoutCompleted(ctx, e)
		if err != nil {
			return uc.finish(event, result, OutcomeFailed, started, err)
		}
		result.QueuedCampaigns = queued
	case events.PaymentSucceeded:
		if _, err := uc.Ledger.MarkPaidByIntent(ctx, e.IntentID, ports.PaymentHint{UserID: e.UserID, CampaignIDs: e.CampaignIDs}); err != nil {
			return uc.finish(event, result, OutcomeFailed, started, err)
		}
	case events.PaymentFailed:
		if _, err := uc.Ledger.MarkFailed(ctx, e.IntentID, e.Reason, ports.PaymentHint{UserID: e.UserID, CampaignIDs: e.CampaignIDs}); err != nil {
			return uc.finish(event, result, OutcomeFailed, started, err)
		}
	case events.InvoiceFinalized:
		if e.IntentID == "" {
			outcome = OutcomeIgnored
			break
		}
		if _, err := uc.Ledger.AttachInvoice(ctx, e.IntentID, e.InvoiceNumber, e.InvoiceURL); err != nil {
			return uc.finish(event, result, OutcomeFailed, started, err)
		}
	default:
		outcome = OutcomeIgnored
		logger.Info("webhook event type not handled",
			"event", "webhook_event_unhandled",
			"module", "billing/webhook-reconciler",
			"layer", "application",
			"event_id", meta.EventID,
			"event_type", meta.Type,
		)
	}

	now := uc.now()
	if err := uc.Dedup.MarkProcessed(ctx, ports.ProcessedEvent{
		EventID:     meta.EventID,
		EventType:   meta.Type,
		PayloadHash: payloadHash,
		ProcessedAt: now,
		ExpiresAt:   now.Add(uc.dedupTTL()),
	}); err != nil {
		return uc.finish(event, result, OutcomeFailed, started, err)
	}
	return uc.finish(event, result, outcome, started, nil)
}

// releaseClaim runs detached from the request context so a cancelled
// delivery still frees the event for the redelivery.
func (uc ReconcileEventUseCase) releaseClaim(eventID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := uc.Dedup.Release(ctx, eventID); err != nil {
		ResolveLogger(uc.Logger).Warn("webhook claim release failed",
			"event", "webhook_claim_release_failed",
			"module", "billing/webhook-reconciler",
			"layer", "application",
			"event_id", eventID,
			"error", err.Error(),
		)
	}
}

func (uc ReconcileEventUseCase) applyCheckoutCompleted(ctx context.Context, e events.CheckoutCompleted) ([]string, error) {
	logger := ResolveLogger(uc.Logger)
	payments, err := uc.Ledger.MarkPaidBySession(ctx, e.UserID, e.SessionID, e.IntentID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(payments))
	queued := make([]string, 0, len(payments))
	for _, payment := range payments {
		if payment.Status != "PAID" || payment.CampaignID == "" {
			continue
		}
		if _, dup := seen[payment.CampaignID]; dup {
			continue
		}
		seen[payment.CampaignID] = struct{}{}

		applied, err := uc.Campaigns.QueuePaid(ctx, payment.CampaignID)
		if errors.Is(err, domainerrors.ErrCampaignNotFound) {
			logger.Warn("paid campaign no longer exists",
				"event", "webhook_paid_campaign_missing",
				"module", "billing/webhook-reconciler",
				"layer", "application",
				"campaign_id", payment.CampaignID,
				"payment_id", payment.PaymentID,
			)
			continue
		}
		if err != nil {
			return queued, err
		}
		if applied {
			queued = append(queued, payment.CampaignID)
		}
	}
	return queued, nil
}

func (uc ReconcileEventUseCase) finish(
	event events.Event,
	result ReconcileResult,
	outcome Outcome,
	started time.Time,
	err error,
) (ReconcileResult, error) {
	result.Outcome = outcome
	if uc.Metrics != nil {
		uc.Metrics.ObserveEvent(event.Kind(), string(outcome), uc.now().Sub(started))
	}
	logger := ResolveLogger(uc.Logger)
	if err != nil {
		logger.Error("webhook event reconcile failed",
			"event", "webhook_event_failed",
			"module", "billing/webhook-reconciler",
			"layer", "application",
			"event_id", result.EventID,
			"event_type", result.EventType,
			"error", err.Error(),
		)
		return result, err
	}
	logger.Info("webhook event reconciled",
		"event", "webhook_event_reconciled",
		"module", "billing/webhook-reconciler",
		"layer", "application",
		"event_id", result.EventID,
		"event_type", result.EventType,
		"outcome", string(outcome),
		"queued_count", len(result.QueuedCampaigns),
	)
	return result, nil
}

func (uc ReconcileEventUseCase) now() time.Time {
	if uc.Clock == nil {
		return time.Now().UTC()
	}
	return uc.Clock.Now().UTC()
}

func (uc ReconcileEventUseCase) dedupTTL() time.Duration {
	if uc.DedupTTL <= 0 {
		return defaultDedupTTL
	}
	return uc.DedupTTL
}

func ResolveLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}

func hashPayload(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

package httpadapter

import (
	"context"
	"log/slog"

	"adreel/contexts/billing/webhook-reconciler/application"
	httptransport "adreel/contexts/billing/webhook-reconciler/transport/http"
)

type Handler struct {
	Reconcile application.ReconcileEventUseCase
	Logger    *slog.Logger
}

func (h Handler) StripeWebhookHandler(
	ctx context.Context,
	payload []byte,
	signature string,
) (httptransport.WebhookAckResponse, error) {
	result, err := h.Reconcile.HandleDelivery(ctx, payload, signature)
	if err != nil {
		return httptransport.WebhookAckResponse{}, err
	}
	return httptransport.WebhookAckResponse{
		Received:        true,
		EventID:         result.EventID,
		EventType:       result.EventType,
		Outcome:         string(result.Outcome),
		QueuedCampaigns: result.QueuedCampaigns,
	}, nil
}

package httpserver

import (
	"errors"
	"io"
	"net/http"

	webhookerrors "adreel/contexts/billing/webhook-reconciler/domain/errors"
	webhookhttp "adreel/contexts/billing/webhook-reconciler/transport/http"
)

// handleStripeWebhook must see the body byte-for-byte; the signature covers it.
func (s *Server) handleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes))
	if err != nil {
		writeWebhookError(w, http.StatusRequestEntityTooLarge, "payload_too_large", "webhook payload exceeds the size limit")
		return
	}
	resp, err := s.modules.Webhooks.Handler.StripeWebhookHandler(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		writeWebhookDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeWebhookError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, webhookhttp.ErrorResponse{Code: code, Message: message})
}

// Anything but a 2xx makes the processor redeliver, which is what a
// processing failure needs.
func writeWebhookDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, webhookerrors.ErrInvalidSignature):
		writeWebhookError(w, http.StatusBadRequest, "invalid_signature", err.Error())
	case errors.Is(err, webhookerrors.ErrMalformedEvent):
		writeWebhookError(w, http.StatusBadRequest, "malformed_event", err.Error())
	case errors.Is(err, webhookerrors.ErrEventInFlight):
		writeWebhookError(w, http.StatusConflict, "event_in_flight", err.Error())
	case errors.Is(err, webhookerrors.ErrWebhookNotEnabled):
		writeWebhookError(w, http.StatusServiceUnavailable, "webhook_disabled", err.Error())
	default:
		writeWebhookError(w, http.StatusInternalServerError, "processing_failed", "webhook processing failed")
	}
}

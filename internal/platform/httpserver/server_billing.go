package httpserver

import (
	"errors"
	"net/http"
	"strings"

	paymenterrors "adreel/contexts/billing/payment-ledger/domain/errors"
	paymenthttp "adreel/contexts/billing/payment-ledger/transport/http"
)

const adminRole = "ADMIN"

func (s *Server) handleCreateCheckout(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req paymenthttp.CreateCheckoutRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.modules.Payments.Handler.CreateCheckoutHandler(
		r.Context(),
		strings.TrimSpace(r.Header.Get("Idempotency-Key")),
		userID,
		req,
	)
	if err != nil {
		writePaymentDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleListPayments(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	page, limit, ok := parsePaging(w, r)
	if !ok {
		return
	}
	resp, err := s.modules.Payments.Handler.ListPaymentsHandler(r.Context(), userID, r.URL.Query().Get("status"), page, limit)
	if err != nil {
		writePaymentDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleBillingStats(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	resp, err := s.modules.Payments.Handler.StatsHandler(r.Context(), userID)
	if err != nil {
		writePaymentDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleInvoice(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	resp, err := s.modules.Payments.Handler.InvoiceHandler(r.Context(), userID, r.PathValue("payment_id"))
	if err != nil {
		writePaymentDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRefund(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	if !strings.EqualFold(strings.TrimSpace(r.Header.Get("X-User-Role")), adminRole) {
		writePaymentError(w, http.StatusForbidden, "forbidden", "refunds require the ADMIN role")
		return
	}
	resp, err := s.modules.Payments.Handler.RefundHandler(r.Context(), userID, r.PathValue("payment_id"))
	if err != nil {
		writePaymentDomainError(w, err)
		return
	}
	s.logger.Info("payment refund recorded",
		"event", "http_payment_refunded",
		"module", "internal/platform/httpserver",
		"layer", "transport",
		"payment_id", resp.Payment.PaymentID,
		"actor_id", userID,
	)
	writeJSON(w, http.StatusOK, resp)
}

func writePaymentError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, paymenthttp.ErrorResponse{Code: code, Message: message})
}

func writePaymentDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, paymenterrors.ErrPaymentNotFound),
		errors.Is(err, paymenterrors.ErrCampaignNotFound),
		errors.Is(err, paymenterrors.ErrInvoiceUnavailable):
		writePaymentError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, paymenterrors.ErrCampaignForbidden),
		errors.Is(err, paymenterrors.ErrPaymentForbidden):
		writePaymentError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, paymenterrors.ErrInvalidCheckoutRequest),
		errors.Is(err, paymenterrors.ErrInvalidListFilter):
		writePaymentError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, paymenterrors.ErrCampaignNotPayable),
		errors.Is(err, paymenterrors.ErrInvalidPaymentState),
		errors.Is(err, paymenterrors.ErrIdempotencyConflict),
		errors.Is(err, paymenterrors.ErrIdempotencyInFlight):
		writePaymentError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, paymenterrors.ErrSettlementFailed):
		writePaymentError(w, http.StatusInternalServerError, "settlement_failed", err.Error())
	case errors.Is(err, paymenterrors.ErrCheckoutUnavailable):
		writePaymentError(w, http.StatusBadGateway, "checkout_unavailable", err.Error())
	default:
		writePaymentError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

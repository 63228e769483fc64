package httpadapter

import (
	"context"
	"log/slog"
	"time"

	"adreel/contexts/billing/payment-ledger/application"
	"adreel/contexts/billing/payment-ledger/domain/entities"
	httptransport "adreel/contexts/billing/payment-ledger/transport/http"
)

type Handler struct {
	Service application.Service
	Logger  *slog.Logger
}

func (h Handler) CreateCheckoutHandler(
	ctx context.Context,
	idempotencyKey string,
	userID string,
	req httptransport.CreateCheckoutRequest,
) (httptransport.CreateCheckoutResponse, error) {
	result, err := h.Service.CreateCheckout(ctx, idempotencyKey, userID, req.CampaignIDs)
	if err != nil {
		return httptransport.CreateCheckoutResponse{}, err
	}
	resp := httptransport.CreateCheckoutResponse{
		SessionID:   result.SessionID,
		CheckoutURL: result.CheckoutURL,
		AmountCents: result.AmountCents,
		VATCents:    result.VATCents,
		TotalCents:  result.TotalCents,
		Payments:    make([]httptransport.PaymentDTO, 0, len(result.Payments)),
	}
	for _, payment := range result.Payments {
		resp.Payments = append(resp.Payments, mapPayment(payment))
	}
	return resp, nil
}

func (h Handler) ListPaymentsHandler(
	ctx context.Context,
	userID string,
	status string,
	page int,
	limit int,
) (httptransport.ListPaymentsResponse, error) {
	result, err := h.Service.ListPayments(ctx, application.ListPaymentsQuery{
		UserID: userID,
		Status: status,
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		return httptransport.ListPaymentsResponse{}, err
	}
	resp := httptransport.ListPaymentsResponse{
		Items: make([]httptransport.PaymentDTO, 0, len(result.Items)),
		Pagination: httptransport.PaginationDTO{
			Page:  result.Page,
			Limit: result.Limit,
			Total: result.Total,
			Pages: result.Pages,
		},
	}
	for _, payment := range result.Items {
		resp.Items = append(resp.Items, mapPayment(payment))
	}
	return resp, nil
}

func (h Handler) StatsHandler(ctx context.Context, userID string) (httptransport.StatsResponse, error) {
	stats, err := h.Service.StatsForUser(ctx, userID)
	if err != nil {
		return httptransport.StatsResponse{}, err
	}
	return httptransport.StatsResponse{
		TotalSpentCents:   stats.TotalSpentCents,
		MonthlySpendCents: stats.MonthlySpendCents,
		PendingPayments:   stats.PendingPayments,
		PaidPayments:      stats.PaidPayments,
		Currency:          stats.Currency,
	}, nil
}

func (h Handler) InvoiceHandler(ctx context.Context, userID string, paymentID string) (httptransport.InvoiceResponse, error) {
	invoice, err := h.Service.InvoiceFor(ctx, userID, paymentID)
	if err != nil {
		return httptransport.InvoiceResponse{}, err
	}
	return httptransport.InvoiceResponse{
		PaymentID:     invoice.PaymentID,
		InvoiceNumber: invoice.InvoiceNumber,
		InvoiceURL:    invoice.InvoiceURL,
		TotalCents:    invoice.TotalCents,
		Currency:      invoice.Currency,
		PaidAt:        formatOptionalTime(invoice.PaidAt),
	}, nil
}

func (h Handler) RefundHandler(ctx context.Context, actorID string, paymentID string) (httptransport.RefundResponse, error) {
	payment, err := h.Service.Refund(ctx, actorID, paymentID)
	if err != nil {
		return httptransport.RefundResponse{}, err
	}
	return httptransport.RefundResponse{Payment: mapPayment(payment)}, nil
}

func mapPayment(payment entities.Payment) httptransport.PaymentDTO {
	return httptransport.PaymentDTO{
		PaymentID:       payment.PaymentID,
		CampaignID:      payment.CampaignID,
		AmountCents:     payment.AmountCents,
		VATRate:         payment.VATRate,
		VATCents:        payment.VATCents,
		TotalCents:      payment.TotalCents,
		Currency:        payment.Currency,
		Status:          string(payment.Status),
		StripeSessionID: payment.StripeSessionID,
		StripePaymentID: payment.StripePaymentID,
		PaidAt:          formatOptionalTime(payment.PaidAt),
		RefundedAt:      formatOptionalTime(payment.RefundedAt),
		InvoiceNumber:   payment.InvoiceNumber,
		FailureReason:   payment.FailureReason,
		CreatedAt:       payment.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func formatOptionalTime(value *time.Time) string {
	if value == nil {
		return ""
	}
	return value.UTC().Format(time.RFC3339)
}

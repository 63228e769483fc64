package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type CreateCheckoutRequest struct {
	CampaignIDs []string `json:"campaign_ids"`
}

type CreateCheckoutResponse struct {
	SessionID   string       `json:"session_id"`
	CheckoutURL string       `json:"checkout_url"`
	AmountCents int64        `json:"amount_cents"`
	VATCents    int64        `json:"vat_cents"`
	TotalCents  int64        `json:"total_cents"`
	Payments    []PaymentDTO `json:"payments"`
}

type PaymentDTO struct {
	PaymentID       string  `json:"payment_id"`
	CampaignID      string  `json:"campaign_id,omitempty"`
	AmountCents     int64   `json:"amount_cents"`
	VATRate         float64 `json:"vat_rate"`
	VATCents        int64   `json:"vat_cents"`
	TotalCents      int64   `json:"total_cents"`
	Currency        string  `json:"currency"`
	Status          string  `json:"status"`
	StripeSessionID string  `json:"stripe_session_id,omitempty"`
	StripePaymentID string  `json:"stripe_payment_id,omitempty"`
	PaidAt          string  `json:"paid_at,omitempty"`
	RefundedAt      string  `json:"refunded_at,omitempty"`
	InvoiceNumber   string  `json:"invoice_number,omitempty"`
	FailureReason   string  `json:"failure_reason,omitempty"`
	CreatedAt       string  `json:"created_at"`
}

type ListPaymentsResponse struct {
	Items      []PaymentDTO  `json:"items"`
	Pagination PaginationDTO `json:"pagination"`
}

type PaginationDTO struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

type StatsResponse struct {
	TotalSpentCents   int64  `json:"total_spent_cents"`
	MonthlySpendCents int64  `json:"monthly_spend_cents"`
	PendingPayments   int    `json:"pending_payments"`
	PaidPayments      int    `json:"paid_payments"`
	Currency          string `json:"currency"`
}

type InvoiceResponse struct {
	PaymentID     string `json:"payment_id"`
	InvoiceNumber string `json:"invoice_number"`
	InvoiceURL    string `json:"invoice_url,omitempty"`
	TotalCents    int64  `json:"total_cents"`
	Currency      string `json:"currency"`
	PaidAt        string `json:"paid_at,omitempty"`
}

type RefundResponse struct {
	Payment PaymentDTO `json:"payment"`
}

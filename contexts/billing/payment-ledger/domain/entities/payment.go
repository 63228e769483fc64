package entities

import (
	"fmt"
	"math"
	"strings"
	"time"
)

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "PENDING"
	PaymentStatusPaid     PaymentStatus = "PAID"
	PaymentStatusFailed   PaymentStatus = "FAILED"
	PaymentStatusRefunded PaymentStatus = "REFUNDED"
)

const DefaultCurrency = "EUR"

func ParsePaymentStatus(raw string) (PaymentStatus, bool) {
	switch value := PaymentStatus(strings.ToUpper(strings.TrimSpace(raw))); value {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusFailed, PaymentStatusRefunded:
		return value, true
	default:
		return "", false
	}
}

type Payment struct {
	PaymentID       string
	UserID          string
	CampaignID      string
	AmountCents     int64
	VATRate         float64
	VATCents        int64
	TotalCents      int64
	Currency        string
	Status          PaymentStatus
	StripeSessionID string
	StripePaymentID string
	PaidAt          *time.Time
	RefundedAt      *time.Time
	InvoiceNumber   string
	InvoiceURL      string
	FailureReason   string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type Amounts struct {
	AmountCents int64
	VATCents    int64
	TotalCents  int64
}

// ComputeAmounts rounds VAT half away from zero so that
// AmountCents+VATCents always equals TotalCents.
func ComputeAmounts(amountCents int64, vatRate float64) Amounts {
	vat := int64(math.Round(float64(amountCents) * vatRate))
	return Amounts{
		AmountCents: amountCents,
		VATCents:    vat,
		TotalCents:  amountCents + vat,
	}
}

// DerivedInvoiceNumber is the display number used until the processor attaches its own.
func (p Payment) DerivedInvoiceNumber() string {
	if strings.TrimSpace(p.InvoiceNumber) != "" {
		return p.InvoiceNumber
	}
	id := strings.ReplaceAll(p.PaymentID, "-", "")
	if len(id) > 6 {
		id = id[len(id)-6:]
	}
	return fmt.Sprintf("INV-%s-%s", p.CreatedAt.UTC().Format("200601"), strings.ToUpper(id))
}

// PaymentHint carries the checkout metadata echoed back on intent events.
// It is used only when no payment is bound to the intent yet.
type PaymentHint struct {
	UserID      string
	CampaignIDs []string
}

func (h PaymentHint) Present() bool {
	return strings.TrimSpace(h.UserID) != "" && len(h.CampaignIDs) > 0
}

type Stats struct {
	TotalSpentCents   int64
	MonthlySpendCents int64
	PendingPayments   int
	PaidPayments      int
	Currency          string
}

// ComputeStats derives spend figures from the user's payments.
func ComputeStats(payments []Payment, now time.Time) Stats {
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	stats := Stats{Currency: DefaultCurrency}
	for _, payment := range payments {
		switch payment.Status {
		case PaymentStatusPaid:
			stats.PaidPayments++
			stats.TotalSpentCents += payment.TotalCents
			paidAt := payment.CreatedAt
			if payment.PaidAt != nil {
				paidAt = *payment.PaidAt
			}
			if !paidAt.Before(monthStart) {
				stats.MonthlySpendCents += payment.TotalCents
			}
		case PaymentStatusPending:
			stats.PendingPayments++
		}
	}
	return stats
}

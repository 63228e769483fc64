package stripeadapter

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"adreel/contexts/billing/payment-ledger/domain/entities"
	"adreel/contexts/billing/payment-ledger/ports"

	"github.com/stripe/stripe-go/v82"
	checkoutsession "github.com/stripe/stripe-go/v82/checkout/session"
)

// CheckoutGateway opens Stripe Checkout sessions in payment mode. VAT is added
// as its own line so the session total matches the ledger amounts.
type CheckoutGateway struct {
	logger *slog.Logger
}

func NewCheckoutGateway(secretKey string, logger *slog.Logger) *CheckoutGateway {
	stripe.Key = secretKey
	if logger == nil {
		logger = slog.Default()
	}
	return &CheckoutGateway{logger: logger}
}

func (g *CheckoutGateway) OpenSession(ctx context.Context, req ports.CheckoutRequest) (ports.CheckoutSession, error) {
	params := buildSessionParams(req)
	params.Context = ctx
	if key := strings.TrimSpace(req.IdempotencyKey); key != "" {
		params.SetIdempotencyKey("checkout-" + key)
	}

	sess, err := checkoutsession.New(params)
	if err != nil {
		return ports.CheckoutSession{}, fmt.Errorf("failed to create stripe checkout session: %w", err)
	}

	expiresAt := time.Now().Add(24 * time.Hour).UTC()
	if sess.ExpiresAt > 0 {
		expiresAt = time.Unix(sess.ExpiresAt, 0).UTC()
	}
	g.logger.Info("stripe checkout session created",
		"event", "billing_stripe_session_created",
		"module", "billing/payment-ledger",
		"layer", "adapter",
		"session_id", sess.ID,
		"user_id", req.UserID,
		"line_count", len(req.Lines),
	)
	return ports.CheckoutSession{
		SessionID:   sess.ID,
		CheckoutURL: sess.URL,
		ExpiresAt:   expiresAt,
	}, nil
}

func buildSessionParams(req ports.CheckoutRequest) *stripe.CheckoutSessionParams {
	currency := strings.ToLower(req.Currency)
	if currency == "" {
		currency = "eur"
	}
	quantity := int64(len(req.Lines))

	name := fmt.Sprintf("%d YouTube Ads campaigns", quantity)
	if quantity == 1 {
		title := strings.TrimSpace(req.Lines[0].Title)
		if title == "" {
			title = "Untitled"
		}
		name = "YouTube Ads campaign - " + title
	}

	lineItems := []*stripe.CheckoutSessionLineItemParams{
		{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(currency),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(name),
					Metadata: map[string]string{
						"type": "youtube_ads_campaign",
					},
				},
				UnitAmount:  stripe.Int64(req.UnitAmountCents),
				TaxBehavior: stripe.String("exclusive"),
			},
			Quantity: stripe.Int64(quantity),
		},
	}
	if vat := entities.ComputeAmounts(req.UnitAmountCents, req.VATRate).VATCents; vat > 0 {
		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(currency),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(fmt.Sprintf("VAT %.0f%%", req.VATRate*100)),
				},
				UnitAmount: stripe.Int64(vat),
			},
			Quantity: stripe.Int64(quantity),
		})
	}

	return &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
		LineItems:  lineItems,
		Metadata:   req.SessionMetadata,
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: req.PaymentIntentMeta,
		},
		InvoiceCreation: &stripe.CheckoutSessionInvoiceCreationParams{
			Enabled: stripe.Bool(true),
			InvoiceData: &stripe.CheckoutSessionInvoiceCreationInvoiceDataParams{
				Metadata: req.SessionMetadata,
			},
		},
	}
}

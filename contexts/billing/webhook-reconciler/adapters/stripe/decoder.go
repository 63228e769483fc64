package stripeadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	domainerrors "adreel/contexts/billing/webhook-reconciler/domain/errors"
	"adreel/contexts/billing/webhook-reconciler/domain/events"
)

const (
	metadataUserID      = "user_id"
	metadataCampaignIDs = "campaign_ids"
)

// Decoder verifies the Stripe-Signature header against the endpoint secret
// and maps the event payload onto the reconciler's event variants.
type Decoder struct {
	secret string
}

func NewDecoder(secret string) *Decoder {
	return &Decoder{secret: strings.TrimSpace(secret)}
}

func (d *Decoder) Decode(payload []byte, signature string) (events.Event, error) {
	if d == nil || d.secret == "" {
		return nil, domainerrors.ErrWebhookNotEnabled
	}
	if strings.TrimSpace(signature) == "" {
		return nil, domainerrors.ErrInvalidSignature
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, d.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		if isSignatureError(err) {
			return nil, fmt.Errorf("%w: %v", domainerrors.ErrInvalidSignature, err)
		}
		return nil, fmt.Errorf("%w: %v", domainerrors.ErrMalformedEvent, err)
	}
	if strings.TrimSpace(event.ID) == "" {
		return nil, fmt.Errorf("%w: missing event id", domainerrors.ErrMalformedEvent)
	}

	meta := events.Meta{EventID: event.ID, Type: string(event.Type)}
	if event.Data == nil {
		return nil, fmt.Errorf("%w: missing event data", domainerrors.ErrMalformedEvent)
	}

	switch meta.Type {
	case events.TypeCheckoutCompleted, events.TypeCheckoutAsyncSucceeded:
		return decodeCheckout(meta, event.Data.Raw)
	case events.TypePaymentIntentSucceeded:
		intent, err := decodeIntent(event.Data.Raw)
		if err != nil {
			return nil, err
		}
		userID, campaignIDs := hintFromMetadata(intent.Metadata)
		return events.PaymentSucceeded{
			Meta:        meta,
			IntentID:    intent.ID,
			UserID:      userID,
			CampaignIDs: campaignIDs,
		}, nil
	case events.TypePaymentIntentFailed:
		intent, err := decodeIntent(event.Data.Raw)
		if err != nil {
			return nil, err
		}
		userID, campaignIDs := hintFromMetadata(intent.Metadata)
		return events.PaymentFailed{
			Meta:        meta,
			IntentID:    intent.ID,
			UserID:      userID,
			CampaignIDs: campaignIDs,
			Reason:      failureReason(intent),
		}, nil
	case events.TypeInvoiceFinalized:
		return decodeInvoice(meta, event.Data.Raw)
	default:
		return events.Unknown{Meta: meta}, nil
	}
}

func decodeCheckout(meta events.Meta, raw json.RawMessage) (events.Event, error) {
	var session stripe.CheckoutSession
	if err := session.UnmarshalJSON(raw); err != nil {
		return nil, fmt.Errorf("%w: checkout session: %v", domainerrors.ErrMalformedEvent, err)
	}
	if session.ID == "" {
		return nil, fmt.Errorf("%w: checkout session id missing", domainerrors.ErrMalformedEvent)
	}
	userID, campaignIDs := hintFromMetadata(session.Metadata)
	if userID == "" || len(campaignIDs) == 0 {
		return nil, fmt.Errorf("%w: checkout session metadata missing", domainerrors.ErrMalformedEvent)
	}

	intentID := ""
	if session.PaymentIntent != nil {
		intentID = session.PaymentIntent.ID
	}
	return events.CheckoutCompleted{
		Meta:        meta,
		SessionID:   session.ID,
		IntentID:    intentID,
		UserID:      userID,
		CampaignIDs: campaignIDs,
		Paid:        session.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
	}, nil
}

func decodeIntent(raw json.RawMessage) (*stripe.PaymentIntent, error) {
	var intent stripe.PaymentIntent
	if err := intent.UnmarshalJSON(raw); err != nil {
		return nil, fmt.Errorf("%w: payment intent: %v", domainerrors.ErrMalformedEvent, err)
	}
	if intent.ID == "" {
		return nil, fmt.Errorf("%w: payment intent id missing", domainerrors.ErrMalformedEvent)
	}
	return &intent, nil
}

// invoiceWire carries the invoice fields the reconciler needs. Newer API
// versions moved the intent under payments; both shapes are accepted.
type invoiceWire struct {
	ID               string `json:"id"`
	Number           string `json:"number"`
	InvoicePDF       string `json:"invoice_pdf"`
	HostedInvoiceURL string `json:"hosted_invoice_url"`
	PaymentIntent    any    `json:"payment_intent"`
	Payments         *struct {
		Data []struct {
			Payment struct {
				PaymentIntent any `json:"payment_intent"`
			} `json:"payment"`
		} `json:"data"`
	} `json:"payments"`
}

func decodeInvoice(meta events.Meta, raw json.RawMessage) (events.Event, error) {
	var invoice invoiceWire
	if err := json.Unmarshal(raw, &invoice); err != nil {
		return nil, fmt.Errorf("%w: invoice: %v", domainerrors.ErrMalformedEvent, err)
	}
	if invoice.ID == "" {
		return nil, fmt.Errorf("%w: invoice id missing", domainerrors.ErrMalformedEvent)
	}

	intentID := expandableID(invoice.PaymentIntent)
	if intentID == "" && invoice.Payments != nil {
		for _, item := range invoice.Payments.Data {
			if id := expandableID(item.Payment.PaymentIntent); id != "" {
				intentID = id
				break
			}
		}
	}
	url := invoice.InvoicePDF
	if url == "" {
		url = invoice.HostedInvoiceURL
	}
	return events.InvoiceFinalized{
		Meta:          meta,
		InvoiceID:     invoice.ID,
		IntentID:      intentID,
		InvoiceNumber: invoice.Number,
		InvoiceURL:    url,
	}, nil
}

// expandableID reads a field that is either an id string or an expanded
// object carrying an id.
func expandableID(value any) string {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case map[string]any:
		if id, ok := v["id"].(string); ok {
			return strings.TrimSpace(id)
		}
	}
	return ""
}

func hintFromMetadata(metadata map[string]string) (string, []string) {
	if metadata == nil {
		return "", nil
	}
	userID := strings.TrimSpace(metadata[metadataUserID])
	var campaignIDs []string
	for _, part := range strings.Split(metadata[metadataCampaignIDs], ",") {
		if id := strings.TrimSpace(part); id != "" {
			campaignIDs = append(campaignIDs, id)
		}
	}
	return userID, campaignIDs
}

func failureReason(intent *stripe.PaymentIntent) string {
	if intent.LastPaymentError == nil {
		return "payment_failed"
	}
	if msg := strings.TrimSpace(intent.LastPaymentError.Msg); msg != "" {
		return msg
	}
	if code := strings.TrimSpace(string(intent.LastPaymentError.Code)); code != "" {
		return code
	}
	return "payment_failed"
}

func isSignatureError(err error) bool {
	return errors.Is(err, webhook.ErrNotSigned) ||
		errors.Is(err, webhook.ErrInvalidHeader) ||
		errors.Is(err, webhook.ErrNoValidSignature) ||
		errors.Is(err, webhook.ErrTooOld)
}

// Package events is the closed set of processor notifications the
// reconciler acts on. Decoding happens at the boundary; the reconciler only
// switches over these variants.
package events

const (
	TypeCheckoutCompleted      = "checkout.session.completed"
	TypeCheckoutAsyncSucceeded = "checkout.session.async_payment_succeeded"
	TypePaymentIntentSucceeded = "payment_intent.succeeded"
	TypePaymentIntentFailed    = "payment_intent.payment_failed"
	TypeInvoiceFinalized       = "invoice.finalized"
)

type Meta struct {
	EventID string
	Type    string
}

type Event interface {
	Metadata() Meta
	Kind() string
	sealed()
}

type CheckoutCompleted struct {
	Meta
	SessionID   string
	IntentID    string
	UserID      string
	CampaignIDs []string
	// Paid is false for asynchronous payment methods still settling.
	Paid bool
}

type PaymentSucceeded struct {
	Meta
	IntentID    string
	UserID      string
	CampaignIDs []string
}

type PaymentFailed struct {
	Meta
	IntentID    string
	UserID      string
	CampaignIDs []string
	Reason      string
}

type InvoiceFinalized struct {
	Meta
	InvoiceID     string
	IntentID      string
	InvoiceNumber string
	InvoiceURL    string
}

type Unknown struct {
	Meta
}

func (m Meta) Metadata() Meta { return m }

func (CheckoutCompleted) Kind() string { return "checkout_completed" }
func (PaymentSucceeded) Kind() string  { return "payment_succeeded" }
func (PaymentFailed) Kind() string     { return "payment_failed" }
func (InvoiceFinalized) Kind() string  { return "invoice_finalized" }
func (Unknown) Kind() string           { return "unknown" }

func (CheckoutCompleted) sealed() {}
func (PaymentSucceeded) sealed()  {}
func (PaymentFailed) sealed()     {}
func (InvoiceFinalized) sealed()  {}
func (Unknown) sealed()           {}

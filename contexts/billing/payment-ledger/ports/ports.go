package ports

import (
	"context"
	"time"

	"adreel/contexts/billing/payment-ledger/domain/entities"
	contractsv1 "adreel/contracts/gen/events/v1"
)

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

type IdempotencyRecord struct {
	Key         string
	RequestHash string
	Payload     []byte
	ExpiresAt   time.Time
}

// IdempotencyStore claims a key before the work runs. A claimed record has
// no payload until Complete stores the response; Release drops an
// unfinished claim so the caller can retry.
type IdempotencyStore interface {
	// Reserve inserts the record unless a live one holds the key, in which
	// case it returns that record and false.
	Reserve(ctx context.Context, record IdempotencyRecord, now time.Time) (IdempotencyRecord, bool, error)
	Complete(ctx context.Context, record IdempotencyRecord) error
	Release(ctx context.Context, key string) error
}

type PaymentFilter struct {
	UserID string
	Status entities.PaymentStatus
	Offset int
	Limit  int
}

type PaymentPage struct {
	Items []entities.Payment
	Total int
}

// PaymentRepository persists payments. Every status write is a bulk
// conditional update whose predicate names the allowed prior statuses, so a
// replayed or reordered event that no longer matches changes nothing.
type PaymentRepository interface {
	CreatePayments(ctx context.Context, payments []entities.Payment) error
	GetPayment(ctx context.Context, paymentID string) (entities.Payment, error)
	ListPayments(ctx context.Context, filter PaymentFilter) (PaymentPage, error)
	ListBySession(ctx context.Context, sessionID string) ([]entities.Payment, error)
	ListByIntent(ctx context.Context, intentID string) ([]entities.Payment, error)
	LatestPending(ctx context.Context, userID string, campaignID string) (entities.Payment, bool, error)
	HasPaidPayment(ctx context.Context, campaignID string) (bool, error)

	// MarkSessionPaid flips PENDING/FAILED rows of the session (and user, when set).
	MarkSessionPaid(ctx context.Context, sessionID string, userID string, intentID string, at time.Time) (int, error)
	// MarkIntentPaid flips PENDING/FAILED rows already bound to the intent.
	MarkIntentPaid(ctx context.Context, intentID string, at time.Time) (int, error)
	// BindIntent binds an unbound PENDING row to the intent and sets status.
	BindIntent(ctx context.Context, paymentID string, intentID string, status entities.PaymentStatus, reason string, at time.Time) (bool, error)
	MarkIntentFailed(ctx context.Context, intentID string, reason string, at time.Time) (int, error)
	AttachInvoice(ctx context.Context, intentID string, invoiceNumber string, invoiceURL string, at time.Time) (int, error)
	MarkRefunded(ctx context.Context, paymentID string, at time.Time) (bool, error)
}

type CampaignSummary struct {
	CampaignID string
	UserID     string
	Title      string
	Status     string
}

// CampaignCatalog reads campaigns owned by the lifecycle context.
type CampaignCatalog interface {
	GetCampaign(ctx context.Context, campaignID string) (CampaignSummary, error)
}

// CampaignSettlement tells the lifecycle context that a campaign lost a PAID
// payment. It withdraws the campaign when no PAID payment is left and reports
// whether it did.
type CampaignSettlement interface {
	PaymentRevoked(ctx context.Context, campaignID string) (bool, error)
}

type CheckoutLine struct {
	CampaignID string
	Title      string
}

type CheckoutRequest struct {
	UserID            string
	Lines             []CheckoutLine
	UnitAmountCents   int64
	VATRate           float64
	Currency          string
	IdempotencyKey    string
	SuccessURL        string
	CancelURL         string
	SessionMetadata   map[string]string
	PaymentIntentMeta map[string]string
}

type CheckoutSession struct {
	SessionID   string
	CheckoutURL string
	ExpiresAt   time.Time
}

// CheckoutGateway opens a hosted checkout session with the payment processor.
type CheckoutGateway interface {
	OpenSession(ctx context.Context, req CheckoutRequest) (CheckoutSession, error)
}

type EventEnvelope = contractsv1.Envelope

type OutboxMessage struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
}

type OutboxWriter interface {
	AppendOutbox(ctx context.Context, envelope EventEnvelope) error
}

type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
}

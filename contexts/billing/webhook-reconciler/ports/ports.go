package ports

import (
	"context"
	"time"

	"adreel/contexts/billing/webhook-reconciler/domain/events"
)

// EventDecoder verifies the signature over the raw body and decodes the
// notification into one of the closed event variants.
type EventDecoder interface {
	Decode(payload []byte, signature string) (events.Event, error)
}

type PaymentRef struct {
	PaymentID  string
	CampaignID string
	Status     string
}

type PaymentHint struct {
	UserID      string
	CampaignIDs []string
}

// Ledger is the subset of payment operations a notification can drive.
// Every call is idempotent.
type Ledger interface {
	MarkPaidBySession(ctx context.Context, userID string, sessionID string, intentID string) ([]PaymentRef, error)
	MarkPaidByIntent(ctx context.Context, intentID string, hint PaymentHint) ([]PaymentRef, error)
	MarkFailed(ctx context.Context, intentID string, reason string, hint PaymentHint) ([]PaymentRef, error)
	AttachInvoice(ctx context.Context, intentID string, invoiceNumber string, invoiceURL string) (int, error)
}

// CampaignQueue moves a paid DRAFT campaign to QUEUED. Applied is false when
// the campaign was already at or past QUEUED.
type CampaignQueue interface {
	QueuePaid(ctx context.Context, campaignID string) (applied bool, err error)
}

type ProcessedEvent struct {
	EventID     string
	EventType   string
	PayloadHash string
	ProcessedAt time.Time
	ExpiresAt   time.Time
}

// DedupStore remembers processed event ids. Claim leases an id until the
// given time so two deliveries of one event never run side by side;
// Release drops the lease early.
type DedupStore interface {
	IsProcessed(ctx context.Context, eventID string) (bool, error)
	Claim(ctx context.Context, eventID string, until time.Time) (bool, error)
	Release(ctx context.Context, eventID string) error
	MarkProcessed(ctx context.Context, event ProcessedEvent) error
}

type Metrics interface {
	ObserveEvent(kind string, outcome string, elapsed time.Duration)
	SignatureFailure()
}

type Clock interface {
	Now() time.Time
}

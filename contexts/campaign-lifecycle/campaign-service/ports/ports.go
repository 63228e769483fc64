package ports

import (
	"context"
	"time"

	"adreel/contexts/campaign-lifecycle/campaign-service/domain/entities"
	contractsv1 "adreel/contracts/gen/events/v1"
)

type CampaignFilter struct {
	UserID string
	Status entities.CampaignStatus
	Search string
	Offset int
	Limit  int
}

type CampaignPage struct {
	Items []entities.Campaign
	Total int
}

// CampaignRepository persists campaigns. Every status-sensitive write is a
// compare-and-set on the expected prior status; a false result means the
// predicate did not match (row missing or status moved).
type CampaignRepository interface {
	// CreateCampaign counts the account's campaigns and inserts in one atomic
	// step. A maxPerAccount of zero disables the ceiling.
	CreateCampaign(ctx context.Context, campaign entities.Campaign, maxPerAccount int) error
	GetCampaign(ctx context.Context, campaignID string) (entities.Campaign, error)
	ListCampaigns(ctx context.Context, filter CampaignFilter) (CampaignPage, error)
	CompareAndSetStatus(ctx context.Context, next entities.Campaign, expected entities.CampaignStatus) (bool, error)
	UpdateDraft(ctx context.Context, campaign entities.Campaign) (bool, error)
	DeleteCampaign(ctx context.Context, campaignID string, expected entities.CampaignStatus) (bool, error)
}

// PaymentGuard answers whether the ledger holds a PAID payment for a campaign.
type PaymentGuard interface {
	HasPaidPayment(ctx context.Context, campaignID string) (bool, error)
}

// ClientAccountDirectory resolves the client account that owns a user's campaigns.
type ClientAccountDirectory interface {
	ResolveClientAccount(ctx context.Context, userID string) (string, error)
}

type IdempotencyRecord struct {
	Key             string
	RequestHash     string
	ResponsePayload []byte
	ExpiresAt       time.Time
}

type IdempotencyStore interface {
	GetRecord(ctx context.Context, key string, now time.Time) (IdempotencyRecord, bool, error)
	PutRecord(ctx context.Context, record IdempotencyRecord) error
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

type EventEnvelope = contractsv1.Envelope

type OutboxMessage struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
}

// OutboxWriter receives audit envelopes. Writes are best-effort from the
// caller's point of view and never part of the state transition.
type OutboxWriter interface {
	AppendOutbox(ctx context.Context, envelope EventEnvelope) error
}

type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
}

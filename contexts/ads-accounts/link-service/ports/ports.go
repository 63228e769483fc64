package ports

import (
	"context"
	"time"

	"adreel/contexts/ads-accounts/link-service/domain/entities"
)

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

// LinkStatusUpdate is applied only while the stored status still equals
// Expected.
type LinkStatusUpdate struct {
	UserID   string
	Expected entities.LinkStatus
	Next     entities.LinkStatus
	LinkedAt *time.Time
	SyncedAt time.Time
}

type LinkRequestUpdate struct {
	UserID       string
	Expected     entities.LinkStatus
	CustomerID   string
	ResourceName string
	RequestedAt  time.Time
}

type SyncCandidates struct {
	Limit              int
	LinkedSyncedBefore time.Time
}

type ClientAccountRepository interface {
	GetByUser(ctx context.Context, userID string) (entities.ClientAccount, error)
	// CreateIfAbsent returns the stored account when one already exists
	// for the user.
	CreateIfAbsent(ctx context.Context, account entities.ClientAccount) (entities.ClientAccount, error)
	FindLinkedByCustomer(ctx context.Context, customerID string) (entities.ClientAccount, bool, error)
	SaveLinkRequest(ctx context.Context, update LinkRequestUpdate) (bool, error)
	UpdateLinkStatus(ctx context.Context, update LinkStatusUpdate) (bool, error)
	TouchSync(ctx context.Context, userID string, at time.Time) error
	ListSyncCandidates(ctx context.Context, filter SyncCandidates) ([]entities.ClientAccount, error)
}

// AdsLinkGateway talks to the external ads platform on behalf of the
// manager account.
type AdsLinkGateway interface {
	CreateClientLink(ctx context.Context, customerID string) (resourceName string, err error)
	QueryLinkStatus(ctx context.Context, resourceName string) (entities.ExternalLinkStatus, error)
}

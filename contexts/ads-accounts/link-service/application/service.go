package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"adreel/contexts/ads-accounts/link-service/domain/entities"
	domainerrors "adreel/contexts/ads-accounts/link-service/domain/errors"
	"adreel/contexts/ads-accounts/link-service/ports"
)

type Service struct {
	Accounts    ports.ClientAccountRepository
	Gateway     ports.AdsLinkGateway
	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	Logger      *slog.Logger
}

func ResolveLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}

// EnsureClientAccount returns the user's client account, creating an
// unlinked one on first use.
func (s Service) EnsureClientAccount(ctx context.Context, userID string) (entities.ClientAccount, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return entities.ClientAccount{}, domainerrors.ErrInvalidUser
	}
	account, err := s.Accounts.GetByUser(ctx, userID)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, domainerrors.ErrClientAccountNotFound) {
		return entities.ClientAccount{}, err
	}

	id, err := s.IDGenerator.NewID(ctx)
	if err != nil {
		return entities.ClientAccount{}, err
	}
	now := s.now()
	account, err = s.Accounts.CreateIfAbsent(ctx, entities.ClientAccount{
		ClientAccountID: id,
		UserID:          userID,
		LinkStatus:      entities.LinkStatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	})
	if err != nil {
		return entities.ClientAccount{}, err
	}
	ResolveLogger(s.Logger).Info("client account ready",
		"event", "link_client_account_ensured",
		"module", "ads-accounts/link-service",
		"layer", "application",
		"user_id", userID,
		"client_account_id", account.ClientAccountID,
	)
	return account, nil
}

// RequestLink sends a manager-link invitation to the customer and records
// it as PENDING.
func (s Service) RequestLink(ctx context.Context, userID string, customerID string) (entities.ClientAccount, error) {
	logger := ResolveLogger(s.Logger)
	clean, ok := entities.NormalizeCustomerID(customerID)
	if !ok {
		return entities.ClientAccount{}, domainerrors.ErrInvalidCustomerID
	}
	account, err := s.EnsureClientAccount(ctx, userID)
	if err != nil {
		return entities.ClientAccount{}, err
	}
	if account.GoogleCustomerID == clean && account.LinkStatus == entities.LinkStatusLinked {
		return entities.ClientAccount{}, domainerrors.ErrCustomerAlreadyLinked
	}
	other, found, err := s.Accounts.FindLinkedByCustomer(ctx, clean)
	if err != nil {
		return entities.ClientAccount{}, err
	}
	if found && other.UserID != account.UserID {
		return entities.ClientAccount{}, domainerrors.ErrCustomerAlreadyLinked
	}

	resourceName, err := s.Gateway.CreateClientLink(ctx, clean)
	if err != nil {
		logger.Error("link invitation failed",
			"event", "link_invitation_failed",
			"module", "ads-accounts/link-service",
			"layer", "application",
			"user_id", account.UserID,
			"customer_id", clean,
			"error", err.Error(),
		)
		return entities.ClientAccount{}, fmt.Errorf("%w: %v", domainerrors.ErrExternalService, err)
	}

	now := s.now()
	saved, err := s.Accounts.SaveLinkRequest(ctx, ports.LinkRequestUpdate{
		UserID:       account.UserID,
		Expected:     account.LinkStatus,
		CustomerID:   clean,
		ResourceName: resourceName,
		RequestedAt:  now,
	})
	if err != nil {
		return entities.ClientAccount{}, err
	}
	if !saved {
		return entities.ClientAccount{}, domainerrors.ErrLinkStateChanged
	}

	logger.Info("link invitation sent",
		"event", "link_invitation_sent",
		"module", "ads-accounts/link-service",
		"layer", "application",
		"user_id", account.UserID,
		"customer_id", clean,
		"resource_name", resourceName,
	)
	return s.Accounts.GetByUser(ctx, account.UserID)
}

// Reconcile re-derives the link status from the ads platform. A failed
// query keeps the persisted status but still stamps the attempt, so the
// poller rotates past accounts whose queries keep failing.
func (s Service) Reconcile(ctx context.Context, userID string) (entities.ClientAccount, error) {
	logger := ResolveLogger(s.Logger)
	account, err := s.Accounts.GetByUser(ctx, strings.TrimSpace(userID))
	if errors.Is(err, domainerrors.ErrClientAccountNotFound) {
		return entities.ClientAccount{UserID: userID, LinkStatus: entities.LinkStatusPending}, nil
	}
	if err != nil {
		return entities.ClientAccount{}, err
	}
	if !account.HasPendingInvitation() {
		account.LinkStatus = entities.LinkStatusPending
		return account, nil
	}

	external, err := s.Gateway.QueryLinkStatus(ctx, account.ResourceName)
	if err != nil {
		logger.Warn("link status query failed",
			"event", "link_status_query_failed",
			"module", "ads-accounts/link-service",
			"layer", "application",
			"user_id", account.UserID,
			"resource_name", account.ResourceName,
			"error", err.Error(),
		)
		attempted := s.now()
		if touchErr := s.Accounts.TouchSync(ctx, account.UserID, attempted); touchErr == nil {
			account.LastSyncAt = &attempted
		}
		return account, nil
	}

	now := s.now()
	next := entities.MapExternalStatus(external)
	if next == account.LinkStatus {
		if err := s.Accounts.TouchSync(ctx, account.UserID, now); err != nil {
			return entities.ClientAccount{}, err
		}
		account.LastSyncAt = &now
		return account, nil
	}

	var linkedAt *time.Time
	if next == entities.LinkStatusLinked {
		linkedAt = &now
	}
	applied, err := s.Accounts.UpdateLinkStatus(ctx, ports.LinkStatusUpdate{
		UserID:   account.UserID,
		Expected: account.LinkStatus,
		Next:     next,
		LinkedAt: linkedAt,
		SyncedAt: now,
	})
	if err != nil {
		return entities.ClientAccount{}, err
	}
	if !applied {
		// Another reconcile or link request won; report what it stored.
		return s.Accounts.GetByUser(ctx, account.UserID)
	}

	logger.Info("link status changed",
		"event", "link_status_changed",
		"module", "ads-accounts/link-service",
		"layer", "application",
		"user_id", account.UserID,
		"from_status", string(account.LinkStatus),
		"to_status", string(next),
		"external_status", string(external),
	)
	account.LinkStatus = next
	account.LinkedAt = linkedAt
	account.LastSyncAt = &now
	account.UpdatedAt = now
	return account, nil
}

// ClientAccount returns the user's account without creating one.
func (s Service) ClientAccount(ctx context.Context, userID string) (entities.ClientAccount, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return entities.ClientAccount{}, domainerrors.ErrInvalidUser
	}
	return s.Accounts.GetByUser(ctx, userID)
}

func (s Service) GetLinkStatus(ctx context.Context, userID string) (entities.ClientAccount, error) {
	account, err := s.Accounts.GetByUser(ctx, strings.TrimSpace(userID))
	if errors.Is(err, domainerrors.ErrClientAccountNotFound) {
		return entities.ClientAccount{UserID: userID, LinkStatus: entities.LinkStatusPending}, nil
	}
	return account, err
}

func (s Service) now() time.Time {
	if s.Clock == nil {
		return time.Now().UTC()
	}
	return s.Clock.Now().UTC()
}

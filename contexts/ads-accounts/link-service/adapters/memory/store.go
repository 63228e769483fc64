package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"adreel/contexts/ads-accounts/link-service/domain/entities"
	domainerrors "adreel/contexts/ads-accounts/link-service/domain/errors"
	"adreel/contexts/ads-accounts/link-service/ports"

	"github.com/google/uuid"
)

type Store struct {
	mu       sync.RWMutex
	accounts map[string]entities.ClientAccount
}

func NewStore(seed []entities.ClientAccount) *Store {
	accounts := make(map[string]entities.ClientAccount, len(seed))
	for _, item := range seed {
		accounts[item.UserID] = cloneAccount(item)
	}
	return &Store{accounts: accounts}
}

func (s *Store) GetByUser(_ context.Context, userID string) (entities.ClientAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.accounts[userID]
	if !ok {
		return entities.ClientAccount{}, domainerrors.ErrClientAccountNotFound
	}
	return cloneAccount(account), nil
}

func (s *Store) CreateIfAbsent(_ context.Context, account entities.ClientAccount) (entities.ClientAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.accounts[account.UserID]; ok {
		return cloneAccount(existing), nil
	}
	s.accounts[account.UserID] = cloneAccount(account)
	return cloneAccount(account), nil
}

func (s *Store) FindLinkedByCustomer(_ context.Context, customerID string) (entities.ClientAccount, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, account := range s.accounts {
		if account.GoogleCustomerID == customerID && account.LinkStatus == entities.LinkStatusLinked {
			return cloneAccount(account), true, nil
		}
	}
	return entities.ClientAccount{}, false, nil
}

func (s *Store) SaveLinkRequest(_ context.Context, update ports.LinkRequestUpdate) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[update.UserID]
	if !ok {
		return false, domainerrors.ErrClientAccountNotFound
	}
	if account.LinkStatus != update.Expected {
		return false, nil
	}
	requestedAt := update.RequestedAt
	account.GoogleCustomerID = update.CustomerID
	account.ResourceName = update.ResourceName
	account.LinkStatus = entities.LinkStatusPending
	account.LinkRequestedAt = &requestedAt
	account.LinkedAt = nil
	account.UpdatedAt = requestedAt
	s.accounts[update.UserID] = account
	return true, nil
}

func (s *Store) UpdateLinkStatus(_ context.Context, update ports.LinkStatusUpdate) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[update.UserID]
	if !ok || account.LinkStatus != update.Expected {
		return false, nil
	}
	syncedAt := update.SyncedAt
	account.LinkStatus = update.Next
	account.LinkedAt = cloneTime(update.LinkedAt)
	account.LastSyncAt = &syncedAt
	account.UpdatedAt = syncedAt
	s.accounts[update.UserID] = account
	return true, nil
}

func (s *Store) TouchSync(_ context.Context, userID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[userID]
	if !ok {
		return domainerrors.ErrClientAccountNotFound
	}
	account.LastSyncAt = &at
	s.accounts[userID] = account
	return nil
}

func (s *Store) ListSyncCandidates(_ context.Context, filter ports.SyncCandidates) ([]entities.ClientAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]entities.ClientAccount, 0)
	for _, account := range s.accounts {
		if strings.TrimSpace(account.ResourceName) == "" {
			continue
		}
		switch account.LinkStatus {
		case entities.LinkStatusPending:
			items = append(items, cloneAccount(account))
		case entities.LinkStatusLinked:
			if account.LastSyncAt == nil || account.LastSyncAt.Before(filter.LinkedSyncedBefore) {
				items = append(items, cloneAccount(account))
			}
		}
	}
	sort.Slice(items, func(i, j int) bool {
		left, right := syncOrder(items[i]), syncOrder(items[j])
		if left.Equal(right) {
			return items[i].UserID < items[j].UserID
		}
		return left.Before(right)
	})
	if filter.Limit > 0 && len(items) > filter.Limit {
		items = items[:filter.Limit]
	}
	return items, nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

func syncOrder(account entities.ClientAccount) time.Time {
	if account.LastSyncAt != nil {
		return *account.LastSyncAt
	}
	return time.Time{}
}

func cloneAccount(account entities.ClientAccount) entities.ClientAccount {
	account.LinkRequestedAt = cloneTime(account.LinkRequestedAt)
	account.LinkedAt = cloneTime(account.LinkedAt)
	account.LastSyncAt = cloneTime(account.LastSyncAt)
	return account
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	copied := *value
	return &copied
}

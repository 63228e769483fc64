package commands

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"adreel/contexts/campaign-lifecycle/campaign-service/adapters/memory"
	"adreel/contexts/campaign-lifecycle/campaign-service/domain/entities"
	domainerrors "adreel/contexts/campaign-lifecycle/campaign-service/domain/errors"
)

func TestCreateCampaignIdempotencyReplay(t *testing.T) {
	store := memory.NewStore(nil)
	uc := newCreateUseCase(store, staticAccounts{"user-1": "acct-1"})

	first, err := uc.Execute(context.Background(), createCommand("user-1", "idem-1"))
	if err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	second, err := uc.Execute(context.Background(), createCommand("user-1", "idem-1"))
	if err != nil {
		t.Fatalf("second create failed: %v", err)
	}
	if !second.Replayed || first.Campaign.CampaignID != second.Campaign.CampaignID {
		t.Fatalf("expected replay of %s, got %+v", first.Campaign.CampaignID, second)
	}
	if first.Campaign.Status != entities.CampaignStatusDraft {
		t.Fatalf("expected DRAFT, got %s", first.Campaign.Status)
	}
	if got := first.Campaign.Countries; len(got) != 2 || got[0] != "IT" || got[1] != "FR" {
		t.Fatalf("expected normalized countries, got %v", got)
	}

	changed := createCommand("user-1", "idem-1")
	changed.ClipTitle = "Another"
	if _, err := uc.Execute(context.Background(), changed); !errors.Is(err, domainerrors.ErrIdempotencyKeyConflict) {
		t.Fatalf("expected idempotency conflict, got %v", err)
	}
}

func TestCreateCampaignValidation(t *testing.T) {
	store := memory.NewStore(nil)
	uc := newCreateUseCase(store, staticAccounts{"user-1": "acct-1"})

	badURL := createCommand("user-1", "")
	badURL.ClipURL = "https://vimeo.com/123"
	if _, err := uc.Execute(context.Background(), badURL); !errors.Is(err, domainerrors.ErrInvalidClipURL) {
		t.Fatalf("expected invalid clip url, got %v", err)
	}

	badBudget := createCommand("user-1", "")
	badBudget.Budget = entities.BudgetConfig{DailyBudgetEUR: 50, TotalBudgetEUR: 10}
	if _, err := uc.Execute(context.Background(), badBudget); !errors.Is(err, domainerrors.ErrInvalidBudget) {
		t.Fatalf("expected invalid budget, got %v", err)
	}

	if _, err := uc.Execute(context.Background(), createCommand("user-9", "")); !errors.Is(err, domainerrors.ErrClientAccountNotFound) {
		t.Fatalf("expected missing client account, got %v", err)
	}
}

func TestCreateCampaignLimitPerAccount(t *testing.T) {
	store := memory.NewStore(nil)
	uc := newCreateUseCase(store, staticAccounts{"user-1": "acct-1"})
	uc.MaxPerAccount = 2

	for i := 0; i < 2; i++ {
		if _, err := uc.Execute(context.Background(), createCommand("user-1", "")); err != nil {
			t.Fatalf("create %d failed: %v", i, err)
		}
	}
	if _, err := uc.Execute(context.Background(), createCommand("user-1", "")); !errors.Is(err, domainerrors.ErrCampaignLimitReached) {
		t.Fatalf("expected limit reached, got %v", err)
	}
}

func TestCreateCampaignLimitHoldsUnderConcurrency(t *testing.T) {
	tests := []struct {
		name          string
		maxPerAccount int
		callers       int
	}{
		{name: "single slot", maxPerAccount: 1, callers: 8},
		{name: "three slots", maxPerAccount: 3, callers: 12},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memory.NewStore(nil)
			uc := newCreateUseCase(store, staticAccounts{"user-1": "acct-1"})
			uc.MaxPerAccount = tt.maxPerAccount

			errs := make([]error, tt.callers)
			var wg sync.WaitGroup
			start := make(chan struct{})
			for i := 0; i < tt.callers; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					<-start
					_, errs[i] = uc.Execute(context.Background(), createCommand("user-1", ""))
				}(i)
			}
			close(start)
			wg.Wait()

			created := 0
			for _, err := range errs {
				switch {
				case err == nil:
					created++
				case errors.Is(err, domainerrors.ErrCampaignLimitReached):
				default:
					t.Fatalf("unexpected error: %v", err)
				}
			}
			if created != tt.maxPerAccount {
				t.Fatalf("expected %d created campaigns, got %d", tt.maxPerAccount, created)
			}
		})
	}
}

func TestUpdateCampaignOnlyWhileDraft(t *testing.T) {
	queued := draftCampaign("camp-2", "user-1")
	queued.Status = entities.CampaignStatusQueued
	store := memory.NewStore([]entities.Campaign{draftCampaign("camp-1", "user-1"), queued})
	uc := UpdateCampaignUseCase{Campaigns: store, Clock: fixedClock{now: time.Date(2026, time.February, 6, 12, 0, 0, 0, time.UTC)}}

	title := "Renamed"
	updated, err := uc.Execute(context.Background(), UpdateCampaignCommand{CampaignID: "camp-1", ActorID: "user-1", ClipTitle: &title})
	if err != nil {
		t.Fatalf("update draft failed: %v", err)
	}
	if updated.ClipTitle != "Renamed" {
		t.Fatalf("expected renamed title, got %q", updated.ClipTitle)
	}

	_, err = uc.Execute(context.Background(), UpdateCampaignCommand{CampaignID: "camp-2", ActorID: "user-1", ClipTitle: &title})
	if !errors.Is(err, domainerrors.ErrInvalidStateTransition) {
		t.Fatalf("expected invalid state for QUEUED update, got %v", err)
	}
}

func TestDeleteCampaignAllowedStates(t *testing.T) {
	running := draftCampaign("camp-2", "user-1")
	running.Status = entities.CampaignStatusRunning
	ended := draftCampaign("camp-3", "user-1")
	ended.Status = entities.CampaignStatusEnded
	store := memory.NewStore([]entities.Campaign{draftCampaign("camp-1", "user-1"), running, ended})
	uc := DeleteCampaignUseCase{
		Campaigns:   store,
		Outbox:      store,
		Clock:       fixedClock{now: time.Date(2026, time.February, 6, 12, 0, 0, 0, time.UTC)},
		IDGenerator: store,
	}

	if err := uc.Execute(context.Background(), DeleteCampaignCommand{CampaignID: "camp-1", ActorID: "user-1"}); err != nil {
		t.Fatalf("delete draft failed: %v", err)
	}
	if err := uc.Execute(context.Background(), DeleteCampaignCommand{CampaignID: "camp-2", ActorID: "user-1"}); !errors.Is(err, domainerrors.ErrInvalidStateTransition) {
		t.Fatalf("expected running delete to be rejected, got %v", err)
	}
	if err := uc.Execute(context.Background(), DeleteCampaignCommand{CampaignID: "camp-3", ActorID: "user-2"}); !errors.Is(err, domainerrors.ErrCampaignForbidden) {
		t.Fatalf("expected forbidden delete, got %v", err)
	}
	if err := uc.Execute(context.Background(), DeleteCampaignCommand{CampaignID: "camp-3", ActorID: "user-1"}); err != nil {
		t.Fatalf("delete ended failed: %v", err)
	}
	if _, err := store.GetCampaign(context.Background(), "camp-1"); !errors.Is(err, domainerrors.ErrCampaignNotFound) {
		t.Fatalf("expected deleted campaign to be gone, got %v", err)
	}
}

func newCreateUseCase(store *memory.Store, accounts staticAccounts) CreateCampaignUseCase {
	return CreateCampaignUseCase{
		Campaigns:      store,
		Accounts:       accounts,
		Idempotency:    store,
		Outbox:         store,
		Clock:          fixedClock{now: time.Date(2026, time.February, 6, 12, 0, 0, 0, time.UTC)},
		IDGenerator:    store,
		DurationDays:   30,
		MaxPerAccount:  10,
		IdempotencyTTL: 24 * time.Hour,
	}
}

func createCommand(userID string, key string) CreateCampaignCommand {
	return CreateCampaignCommand{
		UserID:         userID,
		IdempotencyKey: key,
		ClipURL:        "https://youtu.be/dQw4w9WgXcQ",
		ClipTitle:      "Night Drive",
		ArtistsList:    "The Sleepers",
		Countries:      []string{"it", " fr", "IT"},
		Budget:         entities.BudgetConfig{DailyBudgetEUR: 10, TotalBudgetEUR: 200},
	}
}

type staticAccounts map[string]string

func (s staticAccounts) ResolveClientAccount(_ context.Context, userID string) (string, error) {
	accountID, ok := s[userID]
	if !ok {
		return "", domainerrors.ErrClientAccountNotFound
	}
	return accountID, nil
}

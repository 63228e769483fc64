package commands

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"adreel/contexts/campaign-lifecycle/campaign-service/adapters/memory"
	"adreel/contexts/campaign-lifecycle/campaign-service/domain/entities"
	domainerrors "adreel/contexts/campaign-lifecycle/campaign-service/domain/errors"
	contractsv1 "adreel/contracts/gen/events/v1"
)

func TestLaunchRequiresPaidPayment(t *testing.T) {
	store := memory.NewStore([]entities.Campaign{draftCampaign("camp-1", "user-1")})
	launch := LaunchCampaignUseCase{
		Transition: newTransition(store),
		Payments:   stubGuard{paid: false},
	}

	_, err := launch.Execute(context.Background(), LaunchCampaignCommand{CampaignID: "camp-1", ActorID: "user-1"})
	if !errors.Is(err, domainerrors.ErrPaymentRequired) {
		t.Fatalf("expected payment required, got %v", err)
	}
	current, _ := store.GetCampaign(context.Background(), "camp-1")
	if current.Status != entities.CampaignStatusDraft {
		t.Fatalf("expected DRAFT to be kept, got %s", current.Status)
	}
}

func TestLaunchSchedulesFromRequestedStart(t *testing.T) {
	store := memory.NewStore([]entities.Campaign{draftCampaign("camp-1", "user-1")})
	launch := LaunchCampaignUseCase{
		Transition: newTransition(store),
		Payments:   stubGuard{paid: true},
	}
	start := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)

	result, err := launch.Execute(context.Background(), LaunchCampaignCommand{
		CampaignID:     "camp-1",
		ActorID:        "user-1",
		RequestedStart: &start,
	})
	if err != nil {
		t.Fatalf("launch failed: %v", err)
	}
	if !result.Applied || result.Campaign.Status != entities.CampaignStatusQueued {
		t.Fatalf("expected applied QUEUED, got %+v", result)
	}
	if !result.Campaign.StartsAt.Equal(start) || !result.Campaign.EndsAt.Equal(start.AddDate(0, 0, 30)) {
		t.Fatalf("unexpected schedule %s - %s", result.Campaign.StartsAt, result.Campaign.EndsAt)
	}
}

func TestLaunchRejectsForeignActor(t *testing.T) {
	store := memory.NewStore([]entities.Campaign{draftCampaign("camp-1", "user-1")})
	launch := LaunchCampaignUseCase{
		Transition: newTransition(store),
		Payments:   stubGuard{paid: true},
	}

	_, err := launch.Execute(context.Background(), LaunchCampaignCommand{CampaignID: "camp-1", ActorID: "user-2"})
	if !errors.Is(err, domainerrors.ErrCampaignForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestQueuePaidIsNoopPastQueued(t *testing.T) {
	for _, status := range []entities.CampaignStatus{
		entities.CampaignStatusQueued,
		entities.CampaignStatusRunning,
		entities.CampaignStatusPaused,
		entities.CampaignStatusEnded,
		entities.CampaignStatusCancelled,
	} {
		campaign := draftCampaign("camp-1", "user-1")
		campaign.Status = status
		store := memory.NewStore([]entities.Campaign{campaign})
		uc := ChangeStatusUseCase{Transition: newTransition(store)}

		result, err := uc.Execute(context.Background(), ChangeStatusCommand{CampaignID: "camp-1", Action: StatusActionQueuePaid})
		if err != nil {
			t.Fatalf("queue paid from %s failed: %v", status, err)
		}
		if result.Applied {
			t.Fatalf("expected no-op from %s", status)
		}
		current, _ := store.GetCampaign(context.Background(), "camp-1")
		if current.Status != status {
			t.Fatalf("expected %s to be kept, got %s", status, current.Status)
		}
		if len(store.AuditEnvelopes()) != 0 {
			t.Fatalf("expected no audit record for a no-op from %s", status)
		}
	}
}

func TestConcurrentLaunchAndQueuePaidApplyOnce(t *testing.T) {
	for round := 0; round < 20; round++ {
		store := memory.NewStore([]entities.Campaign{draftCampaign("camp-1", "user-1")})
		transition := newTransition(store)
		launch := LaunchCampaignUseCase{Transition: transition, Payments: stubGuard{paid: true}}
		queue := ChangeStatusUseCase{Transition: transition}

		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			applied int
		)
		record := func(result TransitionResult, err error) {
			defer wg.Done()
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if result.Applied {
				mu.Lock()
				applied++
				mu.Unlock()
			}
		}
		wg.Add(4)
		go func() {
			record(launch.Execute(context.Background(), LaunchCampaignCommand{CampaignID: "camp-1", ActorID: "user-1"}))
		}()
		go func() {
			record(launch.Execute(context.Background(), LaunchCampaignCommand{CampaignID: "camp-1", ActorID: "user-1"}))
		}()
		go func() {
			record(queue.Execute(context.Background(), ChangeStatusCommand{CampaignID: "camp-1", Action: StatusActionQueuePaid}))
		}()
		go func() {
			record(queue.Execute(context.Background(), ChangeStatusCommand{CampaignID: "camp-1", Action: StatusActionQueuePaid}))
		}()
		wg.Wait()

		if applied != 1 {
			t.Fatalf("round %d: expected exactly one applied transition, got %d", round, applied)
		}
		current, _ := store.GetCampaign(context.Background(), "camp-1")
		if current.Status != entities.CampaignStatusQueued {
			t.Fatalf("round %d: expected QUEUED, got %s", round, current.Status)
		}
		if got := len(store.AuditEnvelopes()); got != 1 {
			t.Fatalf("round %d: expected one audit record, got %d", round, got)
		}
	}
}

func TestSecondLaunchIsNoop(t *testing.T) {
	store := memory.NewStore([]entities.Campaign{draftCampaign("camp-1", "user-1")})
	launch := LaunchCampaignUseCase{Transition: newTransition(store), Payments: stubGuard{paid: true}}

	if _, err := launch.Execute(context.Background(), LaunchCampaignCommand{CampaignID: "camp-1", ActorID: "user-1"}); err != nil {
		t.Fatalf("first launch failed: %v", err)
	}
	result, err := launch.Execute(context.Background(), LaunchCampaignCommand{CampaignID: "camp-1", ActorID: "user-1"})
	if err != nil {
		t.Fatalf("second launch failed: %v", err)
	}
	if result.Applied {
		t.Fatal("expected second launch to be a no-op")
	}
}

func TestPauseAndEndTransitions(t *testing.T) {
	campaign := draftCampaign("camp-1", "user-1")
	campaign.Status = entities.CampaignStatusQueued
	store := memory.NewStore([]entities.Campaign{campaign})
	uc := ChangeStatusUseCase{Transition: newTransition(store)}

	_, err := uc.Execute(context.Background(), ChangeStatusCommand{CampaignID: "camp-1", ActorID: "user-1", Action: StatusActionPause})
	if !errors.Is(err, domainerrors.ErrInvalidStateTransition) {
		t.Fatalf("expected pause from QUEUED to be rejected, got %v", err)
	}

	if _, err := uc.Execute(context.Background(), ChangeStatusCommand{CampaignID: "camp-1", Action: StatusActionMarkRunning}); err != nil {
		t.Fatalf("mark running failed: %v", err)
	}
	paused, err := uc.Execute(context.Background(), ChangeStatusCommand{CampaignID: "camp-1", ActorID: "user-1", Action: StatusActionPause})
	if err != nil {
		t.Fatalf("pause failed: %v", err)
	}
	if paused.Campaign.Status != entities.CampaignStatusPaused || paused.Campaign.ActualStartedAt == nil {
		t.Fatalf("unexpected paused campaign %+v", paused.Campaign)
	}

	ended, err := uc.Execute(context.Background(), ChangeStatusCommand{CampaignID: "camp-1", ActorID: "user-1", Action: StatusActionEnd})
	if err != nil {
		t.Fatalf("end failed: %v", err)
	}
	if ended.Campaign.Status != entities.CampaignStatusEnded || ended.Campaign.ActualEndedAt == nil {
		t.Fatalf("unexpected ended campaign %+v", ended.Campaign)
	}

	_, err = uc.Execute(context.Background(), ChangeStatusCommand{CampaignID: "camp-1", ActorID: "user-1", Action: StatusActionPause})
	if !errors.Is(err, domainerrors.ErrInvalidStateTransition) {
		t.Fatalf("expected pause from ENDED to be rejected, got %v", err)
	}
}

func TestTransitionEmitsAuditRecord(t *testing.T) {
	store := memory.NewStore([]entities.Campaign{draftCampaign("camp-1", "user-1")})
	launch := LaunchCampaignUseCase{Transition: newTransition(store), Payments: stubGuard{paid: true}}

	if _, err := launch.Execute(context.Background(), LaunchCampaignCommand{CampaignID: "camp-1", ActorID: "user-1"}); err != nil {
		t.Fatalf("launch failed: %v", err)
	}
	envelopes := store.AuditEnvelopes()
	if len(envelopes) != 1 {
		t.Fatalf("expected one audit envelope, got %d", len(envelopes))
	}
	var record contractsv1.AuditRecord
	if err := json.Unmarshal(envelopes[0].Data, &record); err != nil {
		t.Fatalf("decode audit record: %v", err)
	}
	if record.Action != "LAUNCH" || record.ResourceID != "camp-1" || record.ActorID != "user-1" {
		t.Fatalf("unexpected audit record %+v", record)
	}
	if record.OldValues["status"] != "DRAFT" || record.NewValues["status"] != "QUEUED" {
		t.Fatalf("unexpected audit values %+v", record)
	}
}

func TestAuditFailureDoesNotFailTransition(t *testing.T) {
	store := memory.NewStore([]entities.Campaign{draftCampaign("camp-1", "user-1")})
	transition := newTransition(store)
	transition.Outbox = failingOutbox{}
	launch := LaunchCampaignUseCase{Transition: transition, Payments: stubGuard{paid: true}}

	result, err := launch.Execute(context.Background(), LaunchCampaignCommand{CampaignID: "camp-1", ActorID: "user-1"})
	if err != nil {
		t.Fatalf("launch failed: %v", err)
	}
	if !result.Applied {
		t.Fatal("expected transition to be applied")
	}
}

func newTransition(store *memory.Store) TransitionUseCase {
	return TransitionUseCase{
		Campaigns:   store,
		Outbox:      store,
		Clock:       fixedClock{now: time.Date(2026, time.February, 6, 12, 0, 0, 0, time.UTC)},
		IDGenerator: store,
	}
}

func draftCampaign(campaignID string, userID string) entities.Campaign {
	now := time.Date(2026, time.February, 1, 9, 0, 0, 0, time.UTC)
	campaign := entities.Campaign{
		CampaignID:      campaignID,
		ClientAccountID: "acct-" + userID,
		UserID:          userID,
		ClipURL:         "https://www.youtube.com/watch?v=abc123",
		ClipTitle:       "Night Drive",
		ArtistsList:     "The Sleepers",
		Countries:       []string{"IT"},
		Budget:          entities.BudgetConfig{DailyBudgetEUR: 10, TotalBudgetEUR: 200},
		Status:          entities.CampaignStatusDraft,
		DurationDays:    30,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	campaign.Schedule(now)
	return campaign
}

type fixedClock struct {
	now time.Time
}

func (f fixedClock) Now() time.Time { return f.now }

type stubGuard struct {
	paid bool
	err  error
}

func (s stubGuard) HasPaidPayment(context.Context, string) (bool, error) {
	return s.paid, s.err
}

type failingOutbox struct{}

func (failingOutbox) AppendOutbox(context.Context, contractsv1.Envelope) error {
	return errors.New("outbox unavailable")
}

package commands

import (
	"context"
	"strings"
	"time"

	"adreel/contexts/campaign-lifecycle/campaign-service/domain/entities"
	domainerrors "adreel/contexts/campaign-lifecycle/campaign-service/domain/errors"
	"adreel/contexts/campaign-lifecycle/campaign-service/ports"
)

type ChangeStatusAction string

const (
	StatusActionPause       ChangeStatusAction = "pause"
	StatusActionEnd         ChangeStatusAction = "end"
	StatusActionMarkRunning ChangeStatusAction = "mark_running"
	StatusActionCancel      ChangeStatusAction = "cancel"
	StatusActionQueuePaid   ChangeStatusAction = "queue_paid"
)

type ChangeStatusCommand struct {
	CampaignID string
	ActorID    string
	Action     ChangeStatusAction
}

// ChangeStatusUseCase covers every move that needs no payment guard.
type ChangeStatusUseCase struct {
	Transition TransitionUseCase
}

func (uc ChangeStatusUseCase) Execute(ctx context.Context, cmd ChangeStatusCommand) (TransitionResult, error) {
	transition := TransitionCommand{
		CampaignID: cmd.CampaignID,
		ActorID:    cmd.ActorID,
	}
	switch ChangeStatusAction(strings.TrimSpace(string(cmd.Action))) {
	case StatusActionPause:
		transition.Rule = entities.PauseRule
	case StatusActionEnd:
		transition.Rule = entities.EndRule
		transition.Mutate = func(next *entities.Campaign, now time.Time) {
			next.ActualEndedAt = &now
		}
	case StatusActionMarkRunning:
		transition.Rule = entities.MarkRunningRule
		transition.Mutate = func(next *entities.Campaign, now time.Time) {
			next.ActualStartedAt = &now
		}
	case StatusActionCancel:
		transition.Rule = entities.CancelRule
		transition.Mutate = func(next *entities.Campaign, now time.Time) {
			if next.ActualStartedAt != nil {
				next.ActualEndedAt = &now
			}
		}
	case StatusActionQueuePaid:
		transition.Rule = entities.QueuePaidRule
		transition.Mutate = func(next *entities.Campaign, now time.Time) {
			next.Schedule(now)
		}
	default:
		return TransitionResult{}, domainerrors.ErrInvalidStateTransition
	}
	return uc.Transition.Execute(ctx, transition)
}

type LaunchCampaignCommand struct {
	CampaignID     string
	ActorID        string
	RequestedStart *time.Time
}

// LaunchCampaignUseCase is the user path to QUEUED. It shares the
// transition primitive with QueuePaid, so a racing webhook converges.
type LaunchCampaignUseCase struct {
	Transition TransitionUseCase
	Payments   ports.PaymentGuard
}

func (uc LaunchCampaignUseCase) Execute(ctx context.Context, cmd LaunchCampaignCommand) (TransitionResult, error) {
	return uc.Transition.Execute(ctx, TransitionCommand{
		CampaignID: cmd.CampaignID,
		ActorID:    cmd.ActorID,
		Rule:       entities.LaunchRule,
		Guard: func(ctx context.Context, current entities.Campaign) error {
			paid, err := uc.Payments.HasPaidPayment(ctx, current.CampaignID)
			if err != nil {
				return err
			}
			if !paid {
				return domainerrors.ErrPaymentRequired
			}
			return nil
		},
		Mutate: func(next *entities.Campaign, now time.Time) {
			start := now
			if cmd.RequestedStart != nil && !cmd.RequestedStart.IsZero() {
				start = cmd.RequestedStart.UTC()
			}
			next.Schedule(start)
		},
	})
}

package commands

import (
	"context"
	"errors"
	"time"

	"adreel/contexts/campaign-lifecycle/campaign-service/domain/entities"
	"adreel/contexts/campaign-lifecycle/campaign-service/ports"
)

var errStillPaid = errors.New("campaign still holds a paid payment")

// WithdrawUnpaidUseCase cancels a QUEUED, RUNNING or PAUSED campaign once the
// ledger holds no PAID payment for it. The payment check runs against every
// row read by the transition loop, so a campaign queued while a refund was
// landing is caught on the retry.
type WithdrawUnpaidUseCase struct {
	Transition TransitionUseCase
	Payments   ports.PaymentGuard
}

func (uc WithdrawUnpaidUseCase) Execute(ctx context.Context, campaignID string) (TransitionResult, error) {
	result, err := uc.Transition.Execute(ctx, TransitionCommand{
		CampaignID: campaignID,
		Rule:       entities.WithdrawUnpaidRule,
		Guard: func(ctx context.Context, current entities.Campaign) error {
			paid, err := uc.Payments.HasPaidPayment(ctx, current.CampaignID)
			if err != nil {
				return err
			}
			if paid {
				return errStillPaid
			}
			return nil
		},
		Mutate: func(next *entities.Campaign, now time.Time) {
			if next.ActualStartedAt != nil {
				next.ActualEndedAt = &now
			}
		},
	})
	if errors.Is(err, errStillPaid) {
		return TransitionResult{}, nil
	}
	return result, err
}

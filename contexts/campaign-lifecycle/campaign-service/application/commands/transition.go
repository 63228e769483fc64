package commands

import (
	"context"
	"log/slog"
	"strings"
	"time"

	application "adreel/contexts/campaign-lifecycle/campaign-service/application"
	"adreel/contexts/campaign-lifecycle/campaign-service/domain/entities"
	domainerrors "adreel/contexts/campaign-lifecycle/campaign-service/domain/errors"
	"adreel/contexts/campaign-lifecycle/campaign-service/ports"
)

const maxTransitionAttempts = 4

// TransitionCommand drives one lifecycle move. Guard runs against the
// freshly read row before every compare-and-set attempt; Mutate stamps the
// lifecycle fields of the next row.
type TransitionCommand struct {
	CampaignID string
	ActorID    string
	Rule       entities.TransitionRule
	Guard      func(ctx context.Context, current entities.Campaign) error
	Mutate     func(next *entities.Campaign, now time.Time)
}

type TransitionResult struct {
	Campaign   entities.Campaign
	FromStatus entities.CampaignStatus
	Applied    bool
}

// TransitionUseCase is the only writer of campaign status. Every caller,
// user request or webhook, goes through the same read then conditional
// write, so two racing callers see exactly one applied move.
type TransitionUseCase struct {
	Campaigns   ports.CampaignRepository
	Outbox      ports.OutboxWriter
	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	Logger      *slog.Logger
}

func (uc TransitionUseCase) Execute(ctx context.Context, cmd TransitionCommand) (TransitionResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	campaignID := strings.TrimSpace(cmd.CampaignID)
	actorID := strings.TrimSpace(cmd.ActorID)
	if campaignID == "" {
		return TransitionResult{}, domainerrors.ErrInvalidCampaignInput
	}

	for attempt := 0; attempt < maxTransitionAttempts; attempt++ {
		current, err := uc.Campaigns.GetCampaign(ctx, campaignID)
		if err != nil {
			return TransitionResult{}, err
		}
		if actorID != "" && current.UserID != actorID {
			return TransitionResult{}, domainerrors.ErrCampaignForbidden
		}
		if cmd.Rule.ConvergedAt(current.Status) {
			logger.Debug("campaign transition converged",
				"event", "campaign_transition_noop",
				"module", "campaign-lifecycle/campaign-service",
				"layer", "application",
				"campaign_id", campaignID,
				"action", cmd.Rule.Action,
				"status", string(current.Status),
			)
			return TransitionResult{Campaign: current, FromStatus: current.Status}, nil
		}
		if !cmd.Rule.Allows(current.Status) {
			return TransitionResult{}, domainerrors.ErrInvalidStateTransition
		}
		if cmd.Guard != nil {
			if err := cmd.Guard(ctx, current); err != nil {
				return TransitionResult{}, err
			}
		}

		now := uc.Clock.Now().UTC()
		next := current
		next.Status = cmd.Rule.To
		next.UpdatedAt = now
		if cmd.Mutate != nil {
			cmd.Mutate(&next, now)
		}

		swapped, err := uc.Campaigns.CompareAndSetStatus(ctx, next, current.Status)
		if err != nil {
			return TransitionResult{}, err
		}
		if !swapped {
			continue
		}

		logger.Info("campaign state changed",
			"event", "campaign_state_changed",
			"module", "campaign-lifecycle/campaign-service",
			"layer", "application",
			"campaign_id", campaignID,
			"action", cmd.Rule.Action,
			"from_status", string(current.Status),
			"to_status", string(next.Status),
			"actor_id", actorID,
		)
		emitAudit(ctx, uc.Outbox, uc.IDGenerator, logger, auditEntry{
			Action:     cmd.Rule.Action,
			CampaignID: campaignID,
			ActorID:    actorID,
			OccurredAt: now,
			OldValues:  map[string]any{"status": string(current.Status)},
			NewValues:  map[string]any{"status": string(next.Status)},
		})
		return TransitionResult{Campaign: next, FromStatus: current.Status, Applied: true}, nil
	}

	logger.Warn("campaign transition exhausted retries",
		"event", "campaign_transition_contended",
		"module", "campaign-lifecycle/campaign-service",
		"layer", "application",
		"campaign_id", campaignID,
		"action", cmd.Rule.Action,
	)
	return TransitionResult{}, domainerrors.ErrConcurrentUpdate
}

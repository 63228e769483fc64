package commands

import (
	"context"
	"log/slog"
	"strings"

	application "adreel/contexts/campaign-lifecycle/campaign-service/application"
	"adreel/contexts/campaign-lifecycle/campaign-service/domain/entities"
	domainerrors "adreel/contexts/campaign-lifecycle/campaign-service/domain/errors"
	"adreel/contexts/campaign-lifecycle/campaign-service/ports"
)

type DeleteCampaignCommand struct {
	CampaignID string
	ActorID    string
}

type DeleteCampaignUseCase struct {
	Campaigns   ports.CampaignRepository
	Outbox      ports.OutboxWriter
	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	Logger      *slog.Logger
}

func (uc DeleteCampaignUseCase) Execute(ctx context.Context, cmd DeleteCampaignCommand) error {
	logger := application.ResolveLogger(uc.Logger)
	campaignID := strings.TrimSpace(cmd.CampaignID)
	actorID := strings.TrimSpace(cmd.ActorID)

	for attempt := 0; attempt < maxTransitionAttempts; attempt++ {
		current, err := uc.Campaigns.GetCampaign(ctx, campaignID)
		if err != nil {
			return err
		}
		if actorID != "" && current.UserID != actorID {
			return domainerrors.ErrCampaignForbidden
		}
		if !entities.IsDeletable(current.Status) {
			return domainerrors.ErrInvalidStateTransition
		}

		deleted, err := uc.Campaigns.DeleteCampaign(ctx, campaignID, current.Status)
		if err != nil {
			return err
		}
		if !deleted {
			continue
		}

		emitAudit(ctx, uc.Outbox, uc.IDGenerator, logger, auditEntry{
			Action:     "DELETE",
			CampaignID: campaignID,
			ActorID:    actorID,
			OccurredAt: uc.Clock.Now().UTC(),
			OldValues:  map[string]any{"status": string(current.Status)},
		})
		logger.Info("campaign deleted",
			"event", "campaign_deleted",
			"module", "campaign-lifecycle/campaign-service",
			"layer", "application",
			"campaign_id", campaignID,
			"status", string(current.Status),
		)
		return nil
	}
	return domainerrors.ErrConcurrentUpdate
}

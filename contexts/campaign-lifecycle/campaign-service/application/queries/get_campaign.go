package queries

import (
	"context"
	"log/slog"
	"strings"

	application "adreel/contexts/campaign-lifecycle/campaign-service/application"
	"adreel/contexts/campaign-lifecycle/campaign-service/domain/entities"
	domainerrors "adreel/contexts/campaign-lifecycle/campaign-service/domain/errors"
	"adreel/contexts/campaign-lifecycle/campaign-service/ports"
)

type GetCampaignUseCase struct {
	Campaigns ports.CampaignRepository
	Logger    *slog.Logger
}

func (uc GetCampaignUseCase) Execute(ctx context.Context, campaignID string, actorID string) (entities.Campaign, error) {
	item, err := uc.Campaigns.GetCampaign(ctx, strings.TrimSpace(campaignID))
	if err != nil {
		application.ResolveLogger(uc.Logger).Debug("campaign lookup failed",
			"event", "campaign_get_failed",
			"module", "campaign-lifecycle/campaign-service",
			"layer", "application",
			"campaign_id", campaignID,
			"error", err.Error(),
		)
		return entities.Campaign{}, err
	}
	if actor := strings.TrimSpace(actorID); actor != "" && item.UserID != actor {
		return entities.Campaign{}, domainerrors.ErrCampaignForbidden
	}
	return item, nil
}

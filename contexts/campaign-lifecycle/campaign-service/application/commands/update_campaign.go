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

// UpdateCampaignCommand is a partial patch; nil fields are left untouched.
type UpdateCampaignCommand struct {
	CampaignID      string
	ActorID         string
	ClipTitle       *string
	ArtistsList     *string
	Countries       *[]string
	TargetingConfig *map[string]any
	Budget          *entities.BudgetConfig
}

type UpdateCampaignUseCase struct {
	Campaigns ports.CampaignRepository
	Clock     ports.Clock
	Logger    *slog.Logger
}

func (uc UpdateCampaignUseCase) Execute(ctx context.Context, cmd UpdateCampaignCommand) (entities.Campaign, error) {
	logger := application.ResolveLogger(uc.Logger)
	campaign, err := uc.Campaigns.GetCampaign(ctx, strings.TrimSpace(cmd.CampaignID))
	if err != nil {
		return entities.Campaign{}, err
	}
	if actor := strings.TrimSpace(cmd.ActorID); actor != "" && campaign.UserID != actor {
		return entities.Campaign{}, domainerrors.ErrCampaignForbidden
	}
	if campaign.Status != entities.CampaignStatusDraft {
		return entities.Campaign{}, domainerrors.ErrInvalidStateTransition
	}

	if cmd.ClipTitle != nil {
		campaign.ClipTitle = strings.TrimSpace(*cmd.ClipTitle)
	}
	if cmd.ArtistsList != nil {
		campaign.ArtistsList = strings.TrimSpace(*cmd.ArtistsList)
	}
	if cmd.Countries != nil {
		campaign.Countries = normalizeCountries(*cmd.Countries)
	}
	if cmd.TargetingConfig != nil {
		campaign.TargetingConfig = *cmd.TargetingConfig
	}
	if cmd.Budget != nil {
		if !cmd.Budget.Valid() {
			return entities.Campaign{}, domainerrors.ErrInvalidBudget
		}
		campaign.Budget = *cmd.Budget
	}
	if !campaign.ValidateDraft() {
		return entities.Campaign{}, domainerrors.ErrInvalidCampaignInput
	}
	campaign.UpdatedAt = uc.Clock.Now().UTC()

	// The write only lands while the row is still DRAFT.
	updated, err := uc.Campaigns.UpdateDraft(ctx, campaign)
	if err != nil {
		return entities.Campaign{}, err
	}
	if !updated {
		if _, err := uc.Campaigns.GetCampaign(ctx, campaign.CampaignID); err != nil {
			return entities.Campaign{}, err
		}
		return entities.Campaign{}, domainerrors.ErrInvalidStateTransition
	}

	logger.Info("campaign updated",
		"event", "campaign_updated",
		"module", "campaign-lifecycle/campaign-service",
		"layer", "application",
		"campaign_id", campaign.CampaignID,
		"actor_id", strings.TrimSpace(cmd.ActorID),
	)
	return campaign, nil
}

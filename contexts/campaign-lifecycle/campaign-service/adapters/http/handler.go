package httpadapter

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"adreel/contexts/campaign-lifecycle/campaign-service/application/commands"
	"adreel/contexts/campaign-lifecycle/campaign-service/application/queries"
	"adreel/contexts/campaign-lifecycle/campaign-service/domain/entities"
	domainerrors "adreel/contexts/campaign-lifecycle/campaign-service/domain/errors"
	httptransport "adreel/contexts/campaign-lifecycle/campaign-service/transport/http"
)

type Handler struct {
	CreateCampaign commands.CreateCampaignUseCase
	UpdateCampaign commands.UpdateCampaignUseCase
	LaunchCampaign commands.LaunchCampaignUseCase
	ChangeStatus   commands.ChangeStatusUseCase
	DeleteCampaign commands.DeleteCampaignUseCase
	ListCampaigns  queries.ListCampaignsUseCase
	GetCampaign    queries.GetCampaignUseCase
	Logger         *slog.Logger
}

func (h Handler) CreateCampaignHandler(
	ctx context.Context,
	userID string,
	idempotencyKey string,
	req httptransport.CreateCampaignRequest,
) (httptransport.CreateCampaignResponse, error) {
	result, err := h.CreateCampaign.Execute(ctx, commands.CreateCampaignCommand{
		UserID:          userID,
		IdempotencyKey:  idempotencyKey,
		ClipURL:         req.ClipURL,
		ClipTitle:       req.ClipTitle,
		ArtistsList:     req.ArtistsList,
		Countries:       append([]string(nil), req.Countries...),
		TargetingConfig: req.TargetingConfig,
		Budget: entities.BudgetConfig{
			DailyBudgetEUR: req.BudgetConfig.DailyBudgetEUR,
			TotalBudgetEUR: req.BudgetConfig.TotalBudgetEUR,
		},
	})
	if err != nil {
		return httptransport.CreateCampaignResponse{}, err
	}
	return httptransport.CreateCampaignResponse{
		Campaign: mapCampaign(result.Campaign),
		Replayed: result.Replayed,
	}, nil
}

func (h Handler) ListCampaignsHandler(
	ctx context.Context,
	userID string,
	status string,
	search string,
	page int,
	limit int,
) (httptransport.ListCampaignsResponse, error) {
	result, err := h.ListCampaigns.Execute(ctx, queries.ListCampaignsQuery{
		UserID: userID,
		Status: status,
		Search: search,
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		return httptransport.ListCampaignsResponse{}, err
	}
	items := make([]httptransport.CampaignDTO, 0, len(result.Items))
	for _, item := range result.Items {
		items = append(items, mapCampaign(item))
	}
	return httptransport.ListCampaignsResponse{
		Items: items,
		Pagination: httptransport.PaginationDTO{
			Page:  result.Page,
			Limit: result.Limit,
			Total: result.Total,
			Pages: result.Pages,
		},
	}, nil
}

func (h Handler) GetCampaignHandler(ctx context.Context, userID string, campaignID string) (httptransport.GetCampaignResponse, error) {
	item, err := h.GetCampaign.Execute(ctx, campaignID, userID)
	if err != nil {
		return httptransport.GetCampaignResponse{}, err
	}
	return httptransport.GetCampaignResponse{Campaign: mapCampaign(item)}, nil
}

func (h Handler) UpdateCampaignHandler(
	ctx context.Context,
	userID string,
	campaignID string,
	req httptransport.UpdateCampaignRequest,
) (httptransport.GetCampaignResponse, error) {
	cmd := commands.UpdateCampaignCommand{
		CampaignID:      campaignID,
		ActorID:         userID,
		ClipTitle:       req.ClipTitle,
		ArtistsList:     req.ArtistsList,
		Countries:       req.Countries,
		TargetingConfig: req.TargetingConfig,
	}
	if req.BudgetConfig != nil {
		cmd.Budget = &entities.BudgetConfig{
			DailyBudgetEUR: req.BudgetConfig.DailyBudgetEUR,
			TotalBudgetEUR: req.BudgetConfig.TotalBudgetEUR,
		}
	}
	item, err := h.UpdateCampaign.Execute(ctx, cmd)
	if err != nil {
		return httptransport.GetCampaignResponse{}, err
	}
	return httptransport.GetCampaignResponse{Campaign: mapCampaign(item)}, nil
}

func (h Handler) LaunchCampaignHandler(
	ctx context.Context,
	userID string,
	campaignID string,
	req httptransport.LaunchCampaignRequest,
) (httptransport.TransitionResponse, error) {
	start, err := parseOptionalTime(req.StartDate)
	if err != nil {
		return httptransport.TransitionResponse{}, domainerrors.ErrInvalidCampaignInput
	}
	result, err := h.LaunchCampaign.Execute(ctx, commands.LaunchCampaignCommand{
		CampaignID:     campaignID,
		ActorID:        userID,
		RequestedStart: start,
	})
	if err != nil {
		return httptransport.TransitionResponse{}, err
	}
	return mapTransition(result), nil
}

func (h Handler) PauseCampaignHandler(ctx context.Context, userID string, campaignID string) (httptransport.TransitionResponse, error) {
	return h.changeStatus(ctx, userID, campaignID, commands.StatusActionPause)
}

func (h Handler) EndCampaignHandler(ctx context.Context, userID string, campaignID string) (httptransport.TransitionResponse, error) {
	return h.changeStatus(ctx, userID, campaignID, commands.StatusActionEnd)
}

func (h Handler) DeleteCampaignHandler(ctx context.Context, userID string, campaignID string) error {
	return h.DeleteCampaign.Execute(ctx, commands.DeleteCampaignCommand{
		CampaignID: campaignID,
		ActorID:    userID,
	})
}

func (h Handler) changeStatus(
	ctx context.Context,
	userID string,
	campaignID string,
	action commands.ChangeStatusAction,
) (httptransport.TransitionResponse, error) {
	result, err := h.ChangeStatus.Execute(ctx, commands.ChangeStatusCommand{
		CampaignID: campaignID,
		ActorID:    userID,
		Action:     action,
	})
	if err != nil {
		return httptransport.TransitionResponse{}, err
	}
	return mapTransition(result), nil
}

func mapTransition(result commands.TransitionResult) httptransport.TransitionResponse {
	return httptransport.TransitionResponse{
		Campaign:   mapCampaign(result.Campaign),
		FromStatus: string(result.FromStatus),
		Applied:    result.Applied,
	}
}

func mapCampaign(item entities.Campaign) httptransport.CampaignDTO {
	return httptransport.CampaignDTO{
		CampaignID:      item.CampaignID,
		ClientAccountID: item.ClientAccountID,
		ClipURL:         item.ClipURL,
		ClipTitle:       item.ClipTitle,
		ArtistsList:     item.ArtistsList,
		Countries:       append([]string(nil), item.Countries...),
		TargetingConfig: item.TargetingConfig,
		BudgetConfig: httptransport.BudgetConfigDTO{
			DailyBudgetEUR: item.Budget.DailyBudgetEUR,
			TotalBudgetEUR: item.Budget.TotalBudgetEUR,
		},
		Status:           string(item.Status),
		DurationDays:     item.DurationDays,
		StartsAt:         formatTime(item.StartsAt),
		EndsAt:           formatTime(item.EndsAt),
		ActualStartedAt:  formatOptionalTime(item.ActualStartedAt),
		ActualEndedAt:    formatOptionalTime(item.ActualEndedAt),
		GoogleCampaignID: item.GoogleCampaignID,
		CreatedAt:        formatTime(item.CreatedAt),
		UpdatedAt:        formatTime(item.UpdatedAt),
	}
}

func parseOptionalTime(raw string) (*time.Time, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		parsed, err = time.Parse("2006-01-02", value)
		if err != nil {
			return nil, err
		}
	}
	parsed = parsed.UTC()
	return &parsed, nil
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format(time.RFC3339)
}

func formatOptionalTime(value *time.Time) string {
	if value == nil {
		return ""
	}
	return formatTime(*value)
}

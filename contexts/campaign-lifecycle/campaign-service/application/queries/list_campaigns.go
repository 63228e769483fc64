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

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

type ListCampaignsQuery struct {
	UserID string
	Status string
	Search string
	Page   int
	Limit  int
}

type ListCampaignsResult struct {
	Items []entities.Campaign
	Page  int
	Limit int
	Total int
	Pages int
}

type ListCampaignsUseCase struct {
	Campaigns ports.CampaignRepository
	Logger    *slog.Logger
}

func (uc ListCampaignsUseCase) Execute(ctx context.Context, query ListCampaignsQuery) (ListCampaignsResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	if strings.TrimSpace(query.UserID) == "" {
		return ListCampaignsResult{}, domainerrors.ErrInvalidListFilter
	}

	filter := ports.CampaignFilter{
		UserID: strings.TrimSpace(query.UserID),
		Search: strings.TrimSpace(query.Search),
	}
	if raw := strings.TrimSpace(query.Status); raw != "" && !strings.EqualFold(raw, "all") {
		status, ok := entities.ParseCampaignStatus(raw)
		if !ok {
			return ListCampaignsResult{}, domainerrors.ErrInvalidListFilter
		}
		filter.Status = status
	}

	page := query.Page
	if page < 1 {
		page = 1
	}
	limit := query.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	filter.Offset = (page - 1) * limit
	filter.Limit = limit

	result, err := uc.Campaigns.ListCampaigns(ctx, filter)
	if err != nil {
		return ListCampaignsResult{}, err
	}

	logger.Debug("campaigns listed",
		"event", "campaigns_listed",
		"module", "campaign-lifecycle/campaign-service",
		"layer", "application",
		"user_id", filter.UserID,
		"total", result.Total,
	)
	return ListCampaignsResult{
		Items: result.Items,
		Page:  page,
		Limit: limit,
		Total: result.Total,
		Pages: (result.Total + limit - 1) / limit,
	}, nil
}

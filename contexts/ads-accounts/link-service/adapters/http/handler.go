package httpadapter

import (
	"context"
	"log/slog"
	"time"

	"adreel/contexts/ads-accounts/link-service/application"
	"adreel/contexts/ads-accounts/link-service/domain/entities"
	httptransport "adreel/contexts/ads-accounts/link-service/transport/http"
)

type Handler struct {
	Service application.Service
	Logger  *slog.Logger
}

// OpenAccountHandler opens the caller's client account, returning the
// existing one on repeat calls.
func (h Handler) OpenAccountHandler(ctx context.Context, userID string) (httptransport.LinkStatusResponse, error) {
	account, err := h.Service.EnsureClientAccount(ctx, userID)
	if err != nil {
		return httptransport.LinkStatusResponse{}, err
	}
	return mapAccount(account), nil
}

func (h Handler) RequestLinkHandler(ctx context.Context, userID string, req httptransport.LinkRequest) (httptransport.LinkStatusResponse, error) {
	account, err := h.Service.RequestLink(ctx, userID, req.CustomerID)
	if err != nil {
		return httptransport.LinkStatusResponse{}, err
	}
	return mapAccount(account), nil
}

func (h Handler) LinkStatusHandler(ctx context.Context, userID string) (httptransport.LinkStatusResponse, error) {
	account, err := h.Service.GetLinkStatus(ctx, userID)
	if err != nil {
		return httptransport.LinkStatusResponse{}, err
	}
	return mapAccount(account), nil
}

func (h Handler) SyncLinkHandler(ctx context.Context, userID string) (httptransport.LinkStatusResponse, error) {
	account, err := h.Service.Reconcile(ctx, userID)
	if err != nil {
		return httptransport.LinkStatusResponse{}, err
	}
	return mapAccount(account), nil
}

func mapAccount(account entities.ClientAccount) httptransport.LinkStatusResponse {
	return httptransport.LinkStatusResponse{
		UserID:           account.UserID,
		ClientAccountID:  account.ClientAccountID,
		GoogleCustomerID: account.GoogleCustomerID,
		LinkStatus:       string(account.LinkStatus),
		LinkRequestedAt:  formatTime(account.LinkRequestedAt),
		LinkedAt:         formatTime(account.LinkedAt),
		LastSyncAt:       formatTime(account.LastSyncAt),
	}
}

func formatTime(value *time.Time) string {
	if value == nil {
		return ""
	}
	return value.UTC().Format(time.RFC3339)
}

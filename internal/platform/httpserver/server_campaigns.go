package httpserver

import (
	"errors"
	"net/http"
	"strings"

	campaignerrors "adreel/contexts/campaign-lifecycle/campaign-service/domain/errors"
	campaignhttp "adreel/contexts/campaign-lifecycle/campaign-service/transport/http"
)

func (s *Server) handleCreateCampaign(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req campaignhttp.CreateCampaignRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.modules.Campaigns.Handler.CreateCampaignHandler(
		r.Context(),
		userID,
		strings.TrimSpace(r.Header.Get("Idempotency-Key")),
		req,
	)
	if err != nil {
		writeCampaignDomainError(w, err)
		return
	}
	status := http.StatusCreated
	if resp.Replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleListCampaigns(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	page, limit, ok := parsePaging(w, r)
	if !ok {
		return
	}
	query := r.URL.Query()
	resp, err := s.modules.Campaigns.Handler.ListCampaignsHandler(
		r.Context(),
		userID,
		query.Get("status"),
		query.Get("search"),
		page,
		limit,
	)
	if err != nil {
		writeCampaignDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetCampaign(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	resp, err := s.modules.Campaigns.Handler.GetCampaignHandler(r.Context(), userID, r.PathValue("campaign_id"))
	if err != nil {
		writeCampaignDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUpdateCampaign(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req campaignhttp.UpdateCampaignRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.modules.Campaigns.Handler.UpdateCampaignHandler(r.Context(), userID, r.PathValue("campaign_id"), req)
	if err != nil {
		writeCampaignDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeleteCampaign(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	if err := s.modules.Campaigns.Handler.DeleteCampaignHandler(r.Context(), userID, r.PathValue("campaign_id")); err != nil {
		writeCampaignDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLaunchCampaign(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req campaignhttp.LaunchCampaignRequest
	if !decodeOptionalJSON(w, r, &req) {
		return
	}
	resp, err := s.modules.Campaigns.Handler.LaunchCampaignHandler(r.Context(), userID, r.PathValue("campaign_id"), req)
	if err != nil {
		writeCampaignDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePauseCampaign(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	resp, err := s.modules.Campaigns.Handler.PauseCampaignHandler(r.Context(), userID, r.PathValue("campaign_id"))
	if err != nil {
		writeCampaignDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleEndCampaign(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	resp, err := s.modules.Campaigns.Handler.EndCampaignHandler(r.Context(), userID, r.PathValue("campaign_id"))
	if err != nil {
		writeCampaignDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeCampaignError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, campaignhttp.ErrorResponse{Code: code, Message: message})
}

func writeCampaignDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, campaignerrors.ErrCampaignNotFound),
		errors.Is(err, campaignerrors.ErrClientAccountNotFound):
		writeCampaignError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, campaignerrors.ErrCampaignForbidden):
		writeCampaignError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, campaignerrors.ErrInvalidCampaignInput),
		errors.Is(err, campaignerrors.ErrInvalidClipURL),
		errors.Is(err, campaignerrors.ErrInvalidBudget),
		errors.Is(err, campaignerrors.ErrInvalidListFilter):
		writeCampaignError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, campaignerrors.ErrPaymentRequired):
		writeCampaignError(w, http.StatusPaymentRequired, "payment_required", err.Error())
	case errors.Is(err, campaignerrors.ErrInvalidStateTransition),
		errors.Is(err, campaignerrors.ErrConcurrentUpdate),
		errors.Is(err, campaignerrors.ErrCampaignLimitReached),
		errors.Is(err, campaignerrors.ErrIdempotencyKeyConflict):
		writeCampaignError(w, http.StatusConflict, "conflict", err.Error())
	default:
		writeCampaignError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

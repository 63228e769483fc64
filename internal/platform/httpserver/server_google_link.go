package httpserver

import (
	"errors"
	"net/http"

	linkerrors "adreel/contexts/ads-accounts/link-service/domain/errors"
	linkhttp "adreel/contexts/ads-accounts/link-service/transport/http"
)

func (s *Server) handleOpenAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	resp, err := s.modules.Links.Handler.OpenAccountHandler(r.Context(), userID)
	if err != nil {
		writeLinkDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRequestLink(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req linkhttp.LinkRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.modules.Links.Handler.RequestLinkHandler(r.Context(), userID, req)
	if err != nil {
		writeLinkDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, resp)
}

func (s *Server) handleLinkStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	resp, err := s.modules.Links.Handler.LinkStatusHandler(r.Context(), userID)
	if err != nil {
		writeLinkDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSyncLink(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	resp, err := s.modules.Links.Handler.SyncLinkHandler(r.Context(), userID)
	if err != nil {
		writeLinkDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeLinkError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, linkhttp.ErrorResponse{Code: code, Message: message})
}

func writeLinkDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, linkerrors.ErrInvalidCustomerID),
		errors.Is(err, linkerrors.ErrInvalidUser):
		writeLinkError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, linkerrors.ErrClientAccountNotFound):
		writeLinkError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, linkerrors.ErrCustomerAlreadyLinked),
		errors.Is(err, linkerrors.ErrLinkStateChanged):
		writeLinkError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, linkerrors.ErrExternalService):
		writeLinkError(w, http.StatusBadGateway, "external_service_error", err.Error())
	default:
		writeLinkError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

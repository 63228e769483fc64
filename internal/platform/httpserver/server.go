package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	linkservice "adreel/contexts/ads-accounts/link-service"
	paymentledger "adreel/contexts/billing/payment-ledger"
	webhookreconciler "adreel/contexts/billing/webhook-reconciler"
	campaignservice "adreel/contexts/campaign-lifecycle/campaign-service"
	_ "adreel/internal/platform/httpserver/docs"
	"adreel/internal/platform/metrics"

	"github.com/prometheus/client_golang/prometheus"
	httpSwagger "github.com/swaggo/http-swagger"
)

const (
	maxJSONBodyBytes    = 1 << 20
	maxWebhookBodyBytes = 1 << 20
)

type Modules struct {
	Campaigns campaignservice.Module
	Payments  paymentledger.Module
	Webhooks  webhookreconciler.Module
	Links     linkservice.Module
}

type Server struct {
	mux      *http.ServeMux
	logger   *slog.Logger
	addr     string
	registry *prometheus.Registry
	modules  Modules
	http     *http.Server
}

func New(modules Modules, registry *prometheus.Registry, logger *slog.Logger, addr string) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}
	if registry == nil {
		registry = metrics.NewRegistry()
	}

	s := &Server{
		mux:      http.NewServeMux(),
		logger:   logger,
		addr:     addr,
		registry: registry,
		modules:  modules,
	}
	s.registerRoutes()
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
	s.mux.Handle("GET /metrics", metrics.Handler(s.registry))
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)

	s.mux.HandleFunc("POST /api/v1/campaigns", s.handleCreateCampaign)
	s.mux.HandleFunc("GET /api/v1/campaigns", s.handleListCampaigns)
	s.mux.HandleFunc("GET /api/v1/campaigns/{campaign_id}", s.handleGetCampaign)
	s.mux.HandleFunc("PATCH /api/v1/campaigns/{campaign_id}", s.handleUpdateCampaign)
	s.mux.HandleFunc("DELETE /api/v1/campaigns/{campaign_id}", s.handleDeleteCampaign)
	s.mux.HandleFunc("POST /api/v1/campaigns/{campaign_id}/launch", s.handleLaunchCampaign)
	s.mux.HandleFunc("POST /api/v1/campaigns/{campaign_id}/pause", s.handlePauseCampaign)
	s.mux.HandleFunc("POST /api/v1/campaigns/{campaign_id}/end", s.handleEndCampaign)

	s.mux.HandleFunc("POST /api/v1/billing/checkout", s.handleCreateCheckout)
	s.mux.HandleFunc("GET /api/v1/billing/payments", s.handleListPayments)
	s.mux.HandleFunc("GET /api/v1/billing/stats", s.handleBillingStats)
	s.mux.HandleFunc("GET /api/v1/billing/payments/{payment_id}/invoice", s.handleInvoice)
	s.mux.HandleFunc("POST /api/v1/billing/payments/{payment_id}/refund", s.handleRefund)

	s.mux.HandleFunc("POST /api/v1/webhooks/stripe", s.handleStripeWebhook)

	s.mux.HandleFunc("POST /api/v1/accounts", s.handleOpenAccount)
	s.mux.HandleFunc("POST /api/v1/google/link", s.handleRequestLink)
	s.mux.HandleFunc("GET /api/v1/google/link/status", s.handleLinkStatus)
	s.mux.HandleFunc("POST /api/v1/google/link/sync", s.handleSyncLink)
}

type healthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// requireUser reads the caller identity set by the upstream gateway.
func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := strings.TrimSpace(r.Header.Get("X-User-Id"))
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, errorBody{Code: "missing_user", Message: "X-User-Id header is required"})
		return "", false
	}
	return userID, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, target any) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBodyBytes))
	if err := decoder.Decode(target); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Code: "invalid_json", Message: "request body must be valid json"})
		return false
	}
	return true
}

// decodeOptionalJSON accepts an empty body and leaves target untouched.
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, target any) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBodyBytes))
	if err := decoder.Decode(target); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorBody{Code: "invalid_json", Message: "request body must be valid json"})
		return false
	}
	return true
}

// parsePaging reads page and limit; zero means "use the default".
func parsePaging(w http.ResponseWriter, r *http.Request) (int, int, bool) {
	query := r.URL.Query()
	page, limit := 0, 0
	if raw := query.Get("page"); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Code: "invalid_page", Message: "page must be an integer"})
			return 0, 0, false
		}
		page = value
	}
	if raw := query.Get("limit"); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Code: "invalid_limit", Message: "limit must be an integer"})
			return 0, 0, false
		}
		limit = value
	}
	return page, limit, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

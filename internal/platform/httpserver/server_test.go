package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	linkservice "adreel/contexts/ads-accounts/link-service"
	linkentities "adreel/contexts/ads-accounts/link-service/domain/entities"
	paymentledger "adreel/contexts/billing/payment-ledger"
	paymententities "adreel/contexts/billing/payment-ledger/domain/entities"
	paymenterrors "adreel/contexts/billing/payment-ledger/domain/errors"
	paymentports "adreel/contexts/billing/payment-ledger/ports"
	webhookreconciler "adreel/contexts/billing/webhook-reconciler"
	campaignservice "adreel/contexts/campaign-lifecycle/campaign-service"
	campaignentities "adreel/contexts/campaign-lifecycle/campaign-service/domain/entities"

	"github.com/prometheus/client_golang/prometheus"
)

type testServer struct {
	*Server
	links linkservice.Module
}

type fixedAccounts struct{}

func (fixedAccounts) ResolveClientAccount(_ context.Context, userID string) (string, error) {
	return "acct-" + userID, nil
}

type unpaidGuard struct{}

func (unpaidGuard) HasPaidPayment(context.Context, string) (bool, error) {
	return false, nil
}

type emptyCatalog struct{}

func (emptyCatalog) GetCampaign(context.Context, string) (paymentports.CampaignSummary, error) {
	return paymentports.CampaignSummary{}, paymenterrors.ErrCampaignNotFound
}

func newTestServer(t *testing.T, webhookSecret string) testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	paidAt := now.Add(-time.Hour)

	campaigns := campaignservice.NewInMemoryModule([]campaignentities.Campaign{{
		CampaignID:      "camp-1",
		ClientAccountID: "acct-user-1",
		UserID:          "user-1",
		ClipURL:         "https://youtu.be/dQw4w9WgXcQ",
		ClipTitle:       "Night Drive",
		Countries:       []string{"IT"},
		Budget:          campaignentities.BudgetConfig{DailyBudgetEUR: 10, TotalBudgetEUR: 200},
		Status:          campaignentities.CampaignStatusDraft,
		DurationDays:    30,
		CreatedAt:       now,
		UpdatedAt:       now,
	}}, fixedAccounts{}, unpaidGuard{}, logger)

	payments := paymentledger.NewInMemoryModule([]paymententities.Payment{{
		PaymentID:       "pay-1",
		UserID:          "user-1",
		CampaignID:      "camp-9",
		AmountCents:     20000,
		VATRate:         0.22,
		VATCents:        4400,
		TotalCents:      24400,
		Currency:        "eur",
		Status:          paymententities.PaymentStatusPaid,
		StripeSessionID: "cs_seed",
		StripePaymentID: "pi_seed",
		PaidAt:          &paidAt,
		CreatedAt:       now,
		UpdatedAt:       now,
	}}, emptyCatalog{}, logger)

	linkedAt := now.Add(-24 * time.Hour)
	links := linkservice.NewInMemoryModule([]linkentities.ClientAccount{{
		ClientAccountID:  "acct-owner",
		UserID:           "owner",
		GoogleCustomerID: "1234567890",
		LinkStatus:       linkentities.LinkStatusLinked,
		ResourceName:     "customers/0000000000/customerClientLinks/1234567890~1",
		LinkedAt:         &linkedAt,
		CreatedAt:        now,
		UpdatedAt:        now,
	}}, logger)

	webhooks := webhookreconciler.NewInMemoryModule(webhookSecret, nil, nil, logger)

	server := New(Modules{
		Campaigns: campaigns,
		Payments:  payments,
		Webhooks:  webhooks,
		Links:     links,
	}, prometheus.NewRegistry(), logger, ":0")
	return testServer{Server: server, links: links}
}

func (s testServer) send(method string, path string, userID string, body string, headers map[string]string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-Id", userID)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	rr := httptest.NewRecorder()
	s.mux.ServeHTTP(rr, req)
	return rr
}

func TestHealthzAndMetrics(t *testing.T) {
	server := newTestServer(t, "whsec_test")

	rr := server.send(http.MethodGet, "/healthz", "", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var health map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &health); err != nil || health["status"] != "ok" {
		t.Fatalf("unexpected health body %q err=%v", rr.Body.String(), err)
	}

	rr = server.send(http.MethodGet, "/metrics", "", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 from metrics, got %d", rr.Code)
	}
}

func TestMissingUserHeaderIsUnauthorized(t *testing.T) {
	server := newTestServer(t, "whsec_test")

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/v1/campaigns"},
		{http.MethodGet, "/api/v1/billing/payments"},
		{http.MethodGet, "/api/v1/google/link/status"},
	}
	for _, item := range paths {
		rr := server.send(item.method, item.path, "", "", nil)
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s: expected 401, got %d body=%s", item.method, item.path, rr.Code, rr.Body.String())
		}
	}
}

func TestInvalidJSONIsBadRequest(t *testing.T) {
	server := newTestServer(t, "whsec_test")

	rr := server.send(http.MethodPost, "/api/v1/campaigns", "user-1", `{"clip_url":`, nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d body=%s", rr.Code, rr.Body.String())
	}
	var body errorBody
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil || body.Code != "invalid_json" {
		t.Fatalf("unexpected error body %q err=%v", rr.Body.String(), err)
	}
}

func TestInvalidPagingIsBadRequest(t *testing.T) {
	server := newTestServer(t, "whsec_test")

	rr := server.send(http.MethodGet, "/api/v1/campaigns?limit=abc", "user-1", "", nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestForeignCampaignIsForbidden(t *testing.T) {
	server := newTestServer(t, "whsec_test")

	rr := server.send(http.MethodGet, "/api/v1/campaigns/camp-1", "user-2", "", nil)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d body=%s", rr.Code, rr.Body.String())
	}
	rr = server.send(http.MethodGet, "/api/v1/campaigns/camp-404", "user-1", "", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestLaunchWithoutPaymentIsPaymentRequired(t *testing.T) {
	server := newTestServer(t, "whsec_test")

	rr := server.send(http.MethodPost, "/api/v1/campaigns/camp-1/launch", "user-1", "", nil)
	if rr.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestRefundRequiresAdminRole(t *testing.T) {
	server := newTestServer(t, "whsec_test")

	rr := server.send(http.MethodPost, "/api/v1/billing/payments/pay-1/refund", "user-1", "", nil)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d body=%s", rr.Code, rr.Body.String())
	}

	rr = server.send(http.MethodPost, "/api/v1/billing/payments/pay-1/refund", "ops-1", "", map[string]string{"X-User-Role": "admin"})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Payment struct {
			Status string `json:"status"`
		} `json:"payment"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode refund: %v", err)
	}
	if resp.Payment.Status != string(paymententities.PaymentStatusRefunded) {
		t.Fatalf("expected REFUNDED, got %s", resp.Payment.Status)
	}

	rr = server.send(http.MethodPost, "/api/v1/billing/payments/pay-1/refund", "ops-1", "", map[string]string{"X-User-Role": "ADMIN"})
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 on second refund, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestWebhookSignatureHandling(t *testing.T) {
	server := newTestServer(t, "whsec_test")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", bytes.NewReader([]byte(`{"id":"evt_1"}`)))
	rr := httptest.NewRecorder()
	server.mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without signature, got %d body=%s", rr.Code, rr.Body.String())
	}

	disabled := newTestServer(t, "")
	req = httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", bytes.NewReader([]byte(`{"id":"evt_1"}`)))
	req.Header.Set("Stripe-Signature", "t=1,v1=00")
	rr = httptest.NewRecorder()
	disabled.mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without a configured secret, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestLinkErrorsMapToStatus(t *testing.T) {
	server := newTestServer(t, "whsec_test")

	rr := server.send(http.MethodPost, "/api/v1/google/link", "user-2", `{"customer_id":"123-456-7890"}`, nil)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 for a customer linked elsewhere, got %d body=%s", rr.Code, rr.Body.String())
	}

	server.links.Gateway.LinkErr = errors.New("ads api unavailable")
	rr = server.send(http.MethodPost, "/api/v1/google/link", "user-2", `{"customer_id":"9876543210"}`, nil)
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 on gateway failure, got %d body=%s", rr.Code, rr.Body.String())
	}

	rr = server.send(http.MethodGet, "/api/v1/google/link/status", "user-2", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestOpenAccountReturnsSameAccount(t *testing.T) {
	server := newTestServer(t, "whsec_test")

	first := server.send(http.MethodPost, "/api/v1/accounts", "user-7", "", nil)
	if first.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", first.Code, first.Body.String())
	}
	second := server.send(http.MethodPost, "/api/v1/accounts", "user-7", "", nil)
	if second.Code != http.StatusOK {
		t.Fatalf("expected 200 on repeat, got %d body=%s", second.Code, second.Body.String())
	}

	var opened, repeated struct {
		ClientAccountID string `json:"client_account_id"`
		LinkStatus      string `json:"link_status"`
	}
	if err := json.Unmarshal(first.Body.Bytes(), &opened); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if err := json.Unmarshal(second.Body.Bytes(), &repeated); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if opened.ClientAccountID == "" || opened.ClientAccountID != repeated.ClientAccountID {
		t.Fatalf("expected one account, got %q and %q", opened.ClientAccountID, repeated.ClientAccountID)
	}

	rr := server.send(http.MethodPost, "/api/v1/accounts", "", "", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a user, got %d", rr.Code)
	}
}

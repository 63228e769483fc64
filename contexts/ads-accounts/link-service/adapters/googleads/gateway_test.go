package googleads

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"adreel/contexts/ads-accounts/link-service/domain/entities"

	"golang.org/x/oauth2"
)

func TestCreateClientLinkSendsManagerRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/customers/1112223333/customerClientLinks:mutate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("unexpected authorization header %q", got)
		}
		if got := r.Header.Get("developer-token"); got != "dev-token" {
			t.Errorf("unexpected developer token %q", got)
		}
		if got := r.Header.Get("login-customer-id"); got != "1112223333" {
			t.Errorf("unexpected login customer id %q", got)
		}
		var body mutateLinkRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body.Operation.Create.ClientCustomer != "customers/1234567890" {
			t.Errorf("unexpected client customer %q", body.Operation.Create.ClientCustomer)
		}
		_, _ = w.Write([]byte(`{"result":{"resourceName":"customers/1112223333/customerClientLinks/1234567890~42"}}`))
	}))
	defer server.Close()

	gateway := newTestGateway(t, server.URL)
	resourceName, err := gateway.CreateClientLink(context.Background(), "1234567890")
	if err != nil {
		t.Fatalf("create link: %v", err)
	}
	if resourceName != "customers/1112223333/customerClientLinks/1234567890~42" {
		t.Fatalf("unexpected resource name %q", resourceName)
	}
}

func TestQueryLinkStatusRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		var body searchRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		if !strings.Contains(body.Query, "customerClientLinks/1234567890~42") {
			t.Errorf("query does not filter on the resource name: %s", body.Query)
		}
		_, _ = w.Write([]byte(`{"results":[{"customerClientLink":{"resourceName":"customers/1112223333/customerClientLinks/1234567890~42","status":"ACTIVE"}}]}`))
	}))
	defer server.Close()

	gateway := newTestGateway(t, server.URL)
	status, err := gateway.QueryLinkStatus(context.Background(), "customers/1112223333/customerClientLinks/1234567890~42")
	if err != nil {
		t.Fatalf("query link status: %v", err)
	}
	if status != entities.ExternalStatusActive {
		t.Fatalf("expected ACTIVE, got %s", status)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected one retry, got %d calls", calls.Load())
	}
}

func TestQueryLinkStatusDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"bad query"}`))
	}))
	defer server.Close()

	gateway := newTestGateway(t, server.URL)
	_, err := gateway.QueryLinkStatus(context.Background(), "customers/1112223333/customerClientLinks/1234567890~42")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 APIError, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single call, got %d", calls.Load())
	}
}

func TestQueryLinkStatusRejectsMalformedResourceName(t *testing.T) {
	gateway := newTestGateway(t, "http://127.0.0.1:0")
	if _, err := gateway.QueryLinkStatus(context.Background(), "customers/1' OR '1'='1"); err == nil {
		t.Fatal("expected malformed resource name to be rejected")
	}
}

func TestQueryLinkStatusWithoutResultsIsUnknown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	status, err := newTestGateway(t, server.URL).QueryLinkStatus(context.Background(), "customers/1/customerClientLinks/2~3")
	if err != nil {
		t.Fatalf("query link status: %v", err)
	}
	if status != entities.ExternalStatusUnknown {
		t.Fatalf("expected UNKNOWN, got %s", status)
	}
}

func newTestGateway(t *testing.T, baseURL string) *Gateway {
	t.Helper()
	gateway, err := NewGateway(Config{
		BaseURL:           baseURL,
		DeveloperToken:    "dev-token",
		ManagerCustomerID: "111-222-3333",
		MaxRetries:        2,
		BaseDelay:         time.Millisecond,
		MaxDelay:          2 * time.Millisecond,
		TokenSource:       oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "test-token"}),
	}, nil)
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}
	return gateway
}

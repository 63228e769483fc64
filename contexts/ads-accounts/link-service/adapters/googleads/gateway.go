package googleads

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"adreel/contexts/ads-accounts/link-service/domain/entities"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"golang.org/x/oauth2"
)

const (
	defaultBaseURL  = "https://googleads.googleapis.com/v17"
	defaultTokenURL = "https://oauth2.googleapis.com/token"
)

var resourceNamePattern = regexp.MustCompile(`^customers/\d+/customerClientLinks/\d+~\d+$`)

type Config struct {
	BaseURL           string
	TokenURL          string
	DeveloperToken    string
	ManagerCustomerID string
	ClientID          string
	ClientSecret      string
	RefreshToken      string
	Timeout           time.Duration
	MaxRetries        int
	BaseDelay         time.Duration
	MaxDelay          time.Duration
	// TokenSource overrides the refresh-token flow.
	TokenSource oauth2.TokenSource
}

// APIError is a non-2xx answer from the ads API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("google ads returned status %d: %s", e.StatusCode, e.Body)
}

// Gateway manages customer client links through the Google Ads REST API
// as the manager account. Calls go through a retry policy and a circuit
// breaker.
type Gateway struct {
	baseURL        string
	developerToken string
	managerID      string
	client         *http.Client
	executor       failsafe.Executor[*http.Response]
	logger         *slog.Logger
}

func NewGateway(cfg Config, logger *slog.Logger) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}
	managerID := strings.ReplaceAll(strings.TrimSpace(cfg.ManagerCustomerID), "-", "")
	if managerID == "" {
		return nil, errors.New("manager customer id is required")
	}
	if strings.TrimSpace(cfg.DeveloperToken) == "" {
		return nil, errors.New("developer token is required")
	}

	source := cfg.TokenSource
	if source == nil {
		tokenURL := cfg.TokenURL
		if tokenURL == "" {
			tokenURL = defaultTokenURL
		}
		oauthConfig := &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     oauth2.Endpoint{TokenURL: tokenURL},
			Scopes:       []string{"https://www.googleapis.com/auth/adwords"},
		}
		source = oauthConfig.TokenSource(context.Background(), &oauth2.Token{RefreshToken: cfg.RefreshToken})
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &Gateway{
		baseURL:        baseURL,
		developerToken: cfg.DeveloperToken,
		managerID:      managerID,
		client: &http.Client{
			Timeout: timeout,
			Transport: &oauth2.Transport{
				Source: oauth2.ReuseTokenSource(nil, source),
				Base:   http.DefaultTransport,
			},
		},
		executor: newExecutor(cfg, logger),
		logger:   logger,
	}, nil
}

func newExecutor(cfg Config, logger *slog.Logger) failsafe.Executor[*http.Response] {
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	} else if maxRetries == 0 {
		maxRetries = 3
	}
	baseDelay := cfg.BaseDelay
	if baseDelay <= 0 {
		baseDelay = 200 * time.Millisecond
	}
	maxDelay := cfg.MaxDelay
	if maxDelay < baseDelay {
		maxDelay = 5 * time.Second
	}

	retry := retrypolicy.NewBuilder[*http.Response]().
		HandleIf(shouldRetry).
		WithBackoff(baseDelay, maxDelay).
		WithMaxRetries(maxRetries).
		WithJitterFactor(0.1).
		Build()

	breaker := circuitbreaker.NewBuilder[*http.Response]().
		HandleIf(func(resp *http.Response, err error) bool {
			return err != nil || (resp != nil && resp.StatusCode >= 500)
		}).
		WithFailureThresholdRatio(5, 10).
		WithDelay(30 * time.Second).
		WithSuccessThreshold(1).
		OnStateChanged(func(event circuitbreaker.StateChangedEvent) {
			logger.Warn("google ads circuit breaker state change",
				"event", "googleads_circuit_state_changed",
				"module", "ads-accounts/link-service",
				"layer", "adapter",
				"from_state", stateName(event.OldState),
				"to_state", stateName(event.NewState),
			)
		}).
		Build()

	return failsafe.With(retry, breaker)
}

func stateName(state circuitbreaker.State) string {
	switch state {
	case circuitbreaker.OpenState:
		return "open"
	case circuitbreaker.HalfOpenState:
		return "half-open"
	default:
		return "closed"
	}
}

func shouldRetry(resp *http.Response, err error) bool {
	if err != nil {
		return !errors.Is(err, context.Canceled)
	}
	if resp == nil {
		return true
	}
	switch resp.StatusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

type mutateLinkRequest struct {
	Operation struct {
		Create struct {
			ClientCustomer string `json:"clientCustomer"`
			Status         string `json:"status"`
		} `json:"create"`
	} `json:"operation"`
}

type mutateLinkResponse struct {
	Result struct {
		ResourceName string `json:"resourceName"`
	} `json:"result"`
}

func (g *Gateway) CreateClientLink(ctx context.Context, customerID string) (string, error) {
	var body mutateLinkRequest
	body.Operation.Create.ClientCustomer = "customers/" + customerID
	body.Operation.Create.Status = "PENDING"

	var out mutateLinkResponse
	path := fmt.Sprintf("/customers/%s/customerClientLinks:mutate", g.managerID)
	if err := g.post(ctx, path, body, &out); err != nil {
		return "", err
	}
	if out.Result.ResourceName == "" {
		return "", errors.New("google ads returned no link resource name")
	}
	return out.Result.ResourceName, nil
}

type searchRequest struct {
	Query string `json:"query"`
}

type searchResponse struct {
	Results []struct {
		CustomerClientLink struct {
			ResourceName string `json:"resourceName"`
			Status       string `json:"status"`
		} `json:"customerClientLink"`
	} `json:"results"`
}

func (g *Gateway) QueryLinkStatus(ctx context.Context, resourceName string) (entities.ExternalLinkStatus, error) {
	if !resourceNamePattern.MatchString(resourceName) {
		return "", fmt.Errorf("invalid link resource name %q", resourceName)
	}
	query := "SELECT customer_client_link.resource_name, customer_client_link.status " +
		"FROM customer_client_link WHERE customer_client_link.resource_name = '" + resourceName + "'"

	var out searchResponse
	path := fmt.Sprintf("/customers/%s/googleAds:search", g.managerID)
	if err := g.post(ctx, path, searchRequest{Query: query}, &out); err != nil {
		return "", err
	}
	if len(out.Results) == 0 {
		return entities.ExternalStatusUnknown, nil
	}
	return entities.ExternalLinkStatus(out.Results[0].CustomerClientLink.Status), nil
}

func (g *Gateway) post(ctx context.Context, path string, in any, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return err
	}

	resp, err := g.executor.WithContext(ctx).Get(func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("developer-token", g.developerToken)
		req.Header.Set("login-customer-id", g.managerID)

		resp, err := g.client.Do(req)
		if shouldRetry(resp, err) && resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		return resp, err
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return json.Unmarshal(body, out)
}

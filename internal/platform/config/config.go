package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type DedupBackend string

const (
	DedupBackendPostgres DedupBackend = "postgres"
	DedupBackendRedis    DedupBackend = "redis"
	DedupBackendMemory   DedupBackend = "memory"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName  string
	HTTPPort     string
	PostgresDSN  string
	AutoMigrate  bool
	RedisURL     string
	DedupBackend DedupBackend
	KafkaBrokers []string
	TopicPrefix  string

	StripeSecretKey     string
	StripeWebhookSecret string
	CheckoutSuccessURL  string
	CheckoutCancelURL   string

	CampaignDurationDays int
	MaxCampaignsPerUser  int
	CampaignPriceCents   int64
	VATRate              float64

	GoogleAds GoogleAdsConfig

	LinkPollInterval   time.Duration
	WorkerPollInterval time.Duration
}

type GoogleAdsConfig struct {
	Enabled           bool
	DeveloperToken    string
	ClientID          string
	ClientSecret      string
	RefreshToken      string
	ManagerCustomerID string
}

// Load reads an optional .env file and then the process environment.
// Malformed numeric or duration values are reported rather than defaulted.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	var errs []error
	cfg := Config{
		ServiceName:  envString("SERVICE_NAME", "adreel"),
		HTTPPort:     envString("HTTP_PORT", "8080"),
		PostgresDSN:  os.Getenv("POSTGRES_DSN"),
		AutoMigrate:  envBool("AUTO_MIGRATE", false),
		RedisURL:     os.Getenv("REDIS_URL"),
		KafkaBrokers: envList("KAFKA_BROKERS"),
		TopicPrefix:  envString("AUDIT_TOPIC_PREFIX", ""),

		StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		CheckoutSuccessURL:  envString("CHECKOUT_SUCCESS_URL", "http://localhost:3000/billing/success?session_id={CHECKOUT_SESSION_ID}"),
		CheckoutCancelURL:   envString("CHECKOUT_CANCEL_URL", "http://localhost:3000/billing/cancel"),

		GoogleAds: GoogleAdsConfig{
			Enabled:           envBool("ENABLE_GOOGLE_ADS_SYNC", false),
			DeveloperToken:    os.Getenv("GOOGLE_ADS_DEVELOPER_TOKEN"),
			ClientID:          os.Getenv("GOOGLE_ADS_CLIENT_ID"),
			ClientSecret:      os.Getenv("GOOGLE_ADS_CLIENT_SECRET"),
			RefreshToken:      os.Getenv("GOOGLE_ADS_REFRESH_TOKEN"),
			ManagerCustomerID: os.Getenv("MCC_CUSTOMER_ID"),
		},
	}

	cfg.CampaignDurationDays = envInt("CAMPAIGN_DURATION_DAYS", 30, &errs)
	cfg.MaxCampaignsPerUser = envInt("MAX_CAMPAIGNS_PER_USER", 10, &errs)
	priceEUR := envFloat("DEFAULT_CAMPAIGN_PRICE_EUR", 200, &errs)
	cfg.CampaignPriceCents = int64(priceEUR*100 + 0.5)
	cfg.VATRate = envFloat("VAT_RATE", 0.22, &errs)
	cfg.LinkPollInterval = envDuration("LINK_POLL_INTERVAL", 5*time.Minute, &errs)
	cfg.WorkerPollInterval = envDuration("WORKER_POLL_INTERVAL", 5*time.Second, &errs)

	switch backend := DedupBackend(strings.ToLower(envString("WEBHOOK_DEDUP_BACKEND", ""))); backend {
	case "":
		cfg.DedupBackend = DedupBackendMemory
		if cfg.PostgresDSN != "" {
			cfg.DedupBackend = DedupBackendPostgres
		}
	case DedupBackendPostgres, DedupBackendRedis, DedupBackendMemory:
		cfg.DedupBackend = backend
	default:
		errs = append(errs, fmt.Errorf("WEBHOOK_DEDUP_BACKEND: unsupported value %q", backend))
	}

	if cfg.CampaignDurationDays <= 0 {
		errs = append(errs, errors.New("CAMPAIGN_DURATION_DAYS must be positive"))
	}
	if cfg.MaxCampaignsPerUser <= 0 {
		errs = append(errs, errors.New("MAX_CAMPAIGNS_PER_USER must be positive"))
	}
	if cfg.CampaignPriceCents <= 0 {
		errs = append(errs, errors.New("DEFAULT_CAMPAIGN_PRICE_EUR must be positive"))
	}
	if cfg.VATRate < 0 || cfg.VATRate >= 1 {
		errs = append(errs, errors.New("VAT_RATE must be within [0, 1)"))
	}
	if cfg.DedupBackend == DedupBackendRedis && cfg.RedisURL == "" {
		errs = append(errs, errors.New("REDIS_URL is required for the redis dedup backend"))
	}
	if cfg.DedupBackend == DedupBackendPostgres && cfg.PostgresDSN == "" {
		errs = append(errs, errors.New("POSTGRES_DSN is required for the postgres dedup backend"))
	}
	if cfg.GoogleAds.Enabled && (cfg.GoogleAds.DeveloperToken == "" || cfg.GoogleAds.ManagerCustomerID == "") {
		errs = append(errs, errors.New("GOOGLE_ADS_DEVELOPER_TOKEN and MCC_CUSTOMER_ID are required when ENABLE_GOOGLE_ADS_SYNC is set"))
	}

	if len(errs) > 0 {
		return Config{}, errors.Join(errs...)
	}
	return cfg, nil
}

func envString(name string, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(name)); value != "" {
		return value
	}
	return fallback
}

func envList(name string) []string {
	var items []string
	for _, value := range strings.Split(os.Getenv(name), ",") {
		value = strings.TrimSpace(value)
		if value != "" {
			items = append(items, value)
		}
	}
	return items
}

func envBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return fallback
	}
}

func envInt(name string, fallback int, errs *[]error) int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", name, err))
		return fallback
	}
	return value
}

func envFloat(name string, fallback float64, errs *[]error) float64 {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", name, err))
		return fallback
	}
	return value
}

func envDuration(name string, fallback time.Duration, errs *[]error) time.Duration {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", name, err))
		return fallback
	}
	return value
}

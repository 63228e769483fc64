package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"time"

	linkservice "adreel/contexts/ads-accounts/link-service"
	"adreel/contexts/ads-accounts/link-service/adapters/googleads"
	linkmemory "adreel/contexts/ads-accounts/link-service/adapters/memory"
	linkpostgres "adreel/contexts/ads-accounts/link-service/adapters/postgres"
	linkports "adreel/contexts/ads-accounts/link-service/ports"
	paymentledger "adreel/contexts/billing/payment-ledger"
	paymentmemory "adreel/contexts/billing/payment-ledger/adapters/memory"
	paymentpostgres "adreel/contexts/billing/payment-ledger/adapters/postgres"
	paymentstripe "adreel/contexts/billing/payment-ledger/adapters/stripe"
	paymentports "adreel/contexts/billing/payment-ledger/ports"
	webhookreconciler "adreel/contexts/billing/webhook-reconciler"
	webhookmemory "adreel/contexts/billing/webhook-reconciler/adapters/memory"
	webhookmetrics "adreel/contexts/billing/webhook-reconciler/adapters/metrics"
	webhookpostgres "adreel/contexts/billing/webhook-reconciler/adapters/postgres"
	webhookredis "adreel/contexts/billing/webhook-reconciler/adapters/redis"
	webhookstripe "adreel/contexts/billing/webhook-reconciler/adapters/stripe"
	webhookports "adreel/contexts/billing/webhook-reconciler/ports"
	campaignservice "adreel/contexts/campaign-lifecycle/campaign-service"
	campaignmemory "adreel/contexts/campaign-lifecycle/campaign-service/adapters/memory"
	campaignpostgres "adreel/contexts/campaign-lifecycle/campaign-service/adapters/postgres"
	campaignports "adreel/contexts/campaign-lifecycle/campaign-service/ports"
	"adreel/internal/platform/cache"
	"adreel/internal/platform/config"
	"adreel/internal/platform/db"

	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
)

const (
	campaignIdempotencyTTL = 7 * 24 * time.Hour
	paymentIdempotencyTTL  = 24 * time.Hour
	webhookDedupTTL        = 30 * 24 * time.Hour
	linkSyncInterval       = 24 * time.Hour
)

type campaignStore interface {
	campaignports.CampaignRepository
	campaignports.IdempotencyStore
	campaignports.OutboxWriter
	campaignports.OutboxRepository
}

type paymentStore interface {
	paymentports.PaymentRepository
	paymentports.IdempotencyStore
	paymentports.OutboxWriter
	paymentports.OutboxRepository
}

type dedupPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Backends are the storage and integration adapters behind the modules.
// Memory and postgres variants satisfy the same interfaces.
type Backends struct {
	Campaigns   campaignStore
	Payments    paymentStore
	Accounts    linkports.ClientAccountRepository
	Dedup       webhookports.DedupStore
	Checkout    paymentports.CheckoutGateway
	LinkGateway linkports.AdsLinkGateway
	Decoder     webhookports.EventDecoder

	postgres *db.Postgres
	redis    *goredis.Client
}

func (b *Backends) Close() error {
	var errs []error
	if b.redis != nil {
		errs = append(errs, b.redis.Close())
	}
	if b.postgres != nil {
		errs = append(errs, b.postgres.Close())
	}
	return errors.Join(errs...)
}

// Platform is the fully wired set of modules.
type Platform struct {
	Campaigns campaignservice.Module
	Payments  paymentledger.Module
	Webhooks  webhookreconciler.Module
	Links     linkservice.Module
	Backends  *Backends
}

// OpenBackends selects postgres when a DSN is configured and in-memory
// stores otherwise. Integrations fall back to local fakes when their
// credentials are absent.
func OpenBackends(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Backends, error) {
	b := &Backends{}

	if cfg.PostgresDSN != "" {
		pg, err := db.Connect(cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		b.postgres = pg
		if cfg.AutoMigrate {
			var models []any
			models = append(models, campaignpostgres.Models()...)
			models = append(models, paymentpostgres.Models()...)
			models = append(models, linkpostgres.Models()...)
			models = append(models, webhookpostgres.Models()...)
			if err := pg.Migrate(ctx, models...); err != nil {
				_ = b.Close()
				return nil, err
			}
		}
		b.Campaigns = campaignpostgres.NewRepository(pg.DB, logger)
		b.Payments = paymentpostgres.NewRepository(pg.DB, logger)
		b.Accounts = linkpostgres.NewRepository(pg.DB, logger)
	} else {
		b.Campaigns = campaignmemory.NewStore(nil)
		b.Payments = paymentmemory.NewStore(nil)
		b.Accounts = linkmemory.NewStore(nil)
	}

	switch cfg.DedupBackend {
	case config.DedupBackendPostgres:
		if b.postgres == nil {
			_ = b.Close()
			return nil, errors.New("postgres dedup backend requires POSTGRES_DSN")
		}
		b.Dedup = webhookpostgres.NewDedupStore(b.postgres.DB)
	case config.DedupBackendRedis:
		client, err := cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			_ = b.Close()
			return nil, err
		}
		b.redis = client
		b.Dedup = webhookredis.NewDedupStore(client, "")
	default:
		b.Dedup = webhookmemory.NewDedupStore()
	}

	if cfg.StripeSecretKey != "" {
		b.Checkout = paymentstripe.NewCheckoutGateway(cfg.StripeSecretKey, logger)
	} else {
		b.Checkout = &paymentmemory.CheckoutGateway{}
	}
	b.Decoder = webhookstripe.NewDecoder(cfg.StripeWebhookSecret)

	if cfg.GoogleAds.Enabled {
		gateway, err := googleads.NewGateway(googleads.Config{
			DeveloperToken:    cfg.GoogleAds.DeveloperToken,
			ManagerCustomerID: cfg.GoogleAds.ManagerCustomerID,
			ClientID:          cfg.GoogleAds.ClientID,
			ClientSecret:      cfg.GoogleAds.ClientSecret,
			RefreshToken:      cfg.GoogleAds.RefreshToken,
		}, logger)
		if err != nil {
			_ = b.Close()
			return nil, err
		}
		b.LinkGateway = gateway
	} else {
		b.LinkGateway = &googleads.StaticGateway{}
	}
	return b, nil
}

// Assemble wires the four modules over the given backends. Cross-context
// calls go through the bridges in this package.
func Assemble(cfg config.Config, b *Backends, registerer prometheus.Registerer, logger *slog.Logger) Platform {
	clock := paymentpostgres.SystemClock{}
	ids := paymentpostgres.UUIDGenerator{}

	links := linkservice.NewModule(linkservice.Dependencies{
		Accounts:     b.Accounts,
		Gateway:      b.LinkGateway,
		Clock:        linkpostgres.SystemClock{},
		IDGenerator:  linkpostgres.UUIDGenerator{},
		PollBatch:    50,
		SyncInterval: linkSyncInterval,
		Logger:       logger,
	})

	campaigns := campaignservice.NewModule(campaignservice.Dependencies{
		Campaigns:      b.Campaigns,
		Accounts:       clientAccounts{links: links.Service},
		Payments:       paymentGuard{payments: b.Payments},
		Idempotency:    b.Campaigns,
		Outbox:         b.Campaigns,
		Clock:          campaignpostgres.SystemClock{},
		IDGenerator:    campaignpostgres.UUIDGenerator{},
		DurationDays:   cfg.CampaignDurationDays,
		MaxPerAccount:  cfg.MaxCampaignsPerUser,
		IdempotencyTTL: campaignIdempotencyTTL,
		Logger:         logger,
	})

	payments := paymentledger.NewModule(paymentledger.Dependencies{
		Payments:       b.Payments,
		Campaigns:      campaignCatalog{campaigns: b.Campaigns},
		Settlement:     campaignSettlement{withdraw: campaigns.Withdraw},
		Checkout:       b.Checkout,
		Idempotency:    b.Payments,
		Outbox:         b.Payments,
		Clock:          clock,
		IDGenerator:    ids,
		UnitPriceCents: cfg.CampaignPriceCents,
		VATRate:        cfg.VATRate,
		SuccessURL:     cfg.CheckoutSuccessURL,
		CancelURL:      cfg.CheckoutCancelURL,
		IdempotencyTTL: paymentIdempotencyTTL,
		Logger:         logger,
	})

	var metrics webhookports.Metrics
	if registerer != nil {
		metrics = webhookmetrics.NewPrometheus(registerer)
	}
	webhooks := webhookreconciler.NewModule(webhookreconciler.Dependencies{
		Decoder:   b.Decoder,
		Ledger:    webhookLedger{ledger: payments.Service},
		Campaigns: campaignQueue{status: campaigns.Status},
		Dedup:     b.Dedup,
		Metrics:   metrics,
		Clock:     clock,
		DedupTTL:  webhookDedupTTL,
		Logger:    logger,
	})

	return Platform{
		Campaigns: campaigns,
		Payments:  payments,
		Webhooks:  webhooks,
		Links:     links,
		Backends:  b,
	}
}

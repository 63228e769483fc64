package webhookreconciler

import (
	"log/slog"
	"time"

	httpadapter "adreel/contexts/billing/webhook-reconciler/adapters/http"
	"adreel/contexts/billing/webhook-reconciler/adapters/memory"
	stripeadapter "adreel/contexts/billing/webhook-reconciler/adapters/stripe"
	"adreel/contexts/billing/webhook-reconciler/application"
	"adreel/contexts/billing/webhook-reconciler/ports"
)

type Module struct {
	Reconcile application.ReconcileEventUseCase
	Handler   httpadapter.Handler
	Dedup     *memory.DedupStore
}

type Dependencies struct {
	Decoder   ports.EventDecoder
	Ledger    ports.Ledger
	Campaigns ports.CampaignQueue
	Dedup     ports.DedupStore
	Metrics   ports.Metrics
	Clock     ports.Clock
	DedupTTL  time.Duration
	Logger    *slog.Logger
}

func NewModule(deps Dependencies) Module {
	reconcile := application.ReconcileEventUseCase{
		Decoder:   deps.Decoder,
		Ledger:    deps.Ledger,
		Campaigns: deps.Campaigns,
		Dedup:     deps.Dedup,
		Metrics:   deps.Metrics,
		Clock:     deps.Clock,
		DedupTTL:  deps.DedupTTL,
		Logger:    deps.Logger,
	}
	return Module{
		Reconcile: reconcile,
		Handler:   httpadapter.Handler{Reconcile: reconcile, Logger: deps.Logger},
	}
}

// NewInMemoryModule verifies deliveries with the given endpoint secret and
// keeps processed ids in memory.
func NewInMemoryModule(secret string, ledger ports.Ledger, campaigns ports.CampaignQueue, logger *slog.Logger) Module {
	dedup := memory.NewDedupStore()
	module := NewModule(Dependencies{
		Decoder:   stripeadapter.NewDecoder(secret),
		Ledger:    ledger,
		Campaigns: campaigns,
		Dedup:     dedup,
		Clock:     dedup,
		DedupTTL:  30 * 24 * time.Hour,
		Logger:    logger,
	})
	module.Dedup = dedup
	return module
}

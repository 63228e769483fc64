package paymentledger

import (
	"log/slog"
	"time"

	httpadapter "adreel/contexts/billing/payment-ledger/adapters/http"
	"adreel/contexts/billing/payment-ledger/adapters/memory"
	"adreel/contexts/billing/payment-ledger/application"
	"adreel/contexts/billing/payment-ledger/domain/entities"
	"adreel/contexts/billing/payment-ledger/ports"
)

type Module struct {
	Service  application.Service
	Handler  httpadapter.Handler
	Store    *memory.Store
	Checkout *memory.CheckoutGateway
}

type Dependencies struct {
	Payments       ports.PaymentRepository
	Campaigns      ports.CampaignCatalog
	Settlement     ports.CampaignSettlement
	Checkout       ports.CheckoutGateway
	Idempotency    ports.IdempotencyStore
	Outbox         ports.OutboxWriter
	Clock          ports.Clock
	IDGenerator    ports.IDGenerator
	UnitPriceCents int64
	VATRate        float64
	SuccessURL     string
	CancelURL      string
	IdempotencyTTL time.Duration
	Logger         *slog.Logger
}

func NewModule(deps Dependencies) Module {
	service := application.Service{
		Payments:       deps.Payments,
		Campaigns:      deps.Campaigns,
		Settlement:     deps.Settlement,
		Checkout:       deps.Checkout,
		Idempotency:    deps.Idempotency,
		Outbox:         deps.Outbox,
		Clock:          deps.Clock,
		IDGenerator:    deps.IDGenerator,
		UnitPriceCents: deps.UnitPriceCents,
		VATRate:        deps.VATRate,
		SuccessURL:     deps.SuccessURL,
		CancelURL:      deps.CancelURL,
		IdempotencyTTL: deps.IdempotencyTTL,
		Logger:         deps.Logger,
	}
	return Module{
		Service: service,
		Handler: httpadapter.Handler{Service: service, Logger: deps.Logger},
	}
}

func NewInMemoryModule(seed []entities.Payment, campaigns ports.CampaignCatalog, logger *slog.Logger) Module {
	store := memory.NewStore(seed)
	checkout := &memory.CheckoutGateway{}
	module := NewModule(Dependencies{
		Payments:       store,
		Campaigns:      campaigns,
		Checkout:       checkout,
		Idempotency:    store,
		Outbox:         store,
		Clock:          store,
		IDGenerator:    store,
		UnitPriceCents: 20000,
		VATRate:        0.22,
		SuccessURL:     "http://localhost:3000/checkout/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:      "http://localhost:3000/checkout/cancel",
		IdempotencyTTL: 24 * time.Hour,
		Logger:         logger,
	})
	module.Store = store
	module.Checkout = checkout
	return module
}

package linkservice

import (
	"log/slog"
	"time"

	"adreel/contexts/ads-accounts/link-service/adapters/googleads"
	httpadapter "adreel/contexts/ads-accounts/link-service/adapters/http"
	"adreel/contexts/ads-accounts/link-service/adapters/memory"
	"adreel/contexts/ads-accounts/link-service/application"
	"adreel/contexts/ads-accounts/link-service/application/workers"
	"adreel/contexts/ads-accounts/link-service/domain/entities"
	"adreel/contexts/ads-accounts/link-service/ports"
)

type Module struct {
	Service application.Service
	Handler httpadapter.Handler
	Poller  workers.PendingLinkPoller
	Store   *memory.Store
	Gateway *googleads.StaticGateway
}

type Dependencies struct {
	Accounts     ports.ClientAccountRepository
	Gateway      ports.AdsLinkGateway
	Clock        ports.Clock
	IDGenerator  ports.IDGenerator
	PollBatch    int
	SyncInterval time.Duration
	Logger       *slog.Logger
}

func NewModule(deps Dependencies) Module {
	service := application.Service{
		Accounts:    deps.Accounts,
		Gateway:     deps.Gateway,
		Clock:       deps.Clock,
		IDGenerator: deps.IDGenerator,
		Logger:      deps.Logger,
	}
	return Module{
		Service: service,
		Handler: httpadapter.Handler{Service: service, Logger: deps.Logger},
		Poller: workers.PendingLinkPoller{
			Accounts:     deps.Accounts,
			Reconciler:   service,
			Clock:        deps.Clock,
			BatchSize:    deps.PollBatch,
			SyncInterval: deps.SyncInterval,
			Logger:       deps.Logger,
		},
	}
}

func NewInMemoryModule(seed []entities.ClientAccount, logger *slog.Logger) Module {
	store := memory.NewStore(seed)
	gateway := &googleads.StaticGateway{}
	module := NewModule(Dependencies{
		Accounts:     store,
		Gateway:      gateway,
		Clock:        store,
		IDGenerator:  store,
		PollBatch:    50,
		SyncInterval: 24 * time.Hour,
		Logger:       logger,
	})
	module.Store = store
	module.Gateway = gateway
	return module
}

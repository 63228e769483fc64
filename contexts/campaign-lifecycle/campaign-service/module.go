package campaignservice

import (
	"log/slog"
	"time"

	httpadapter "adreel/contexts/campaign-lifecycle/campaign-service/adapters/http"
	"adreel/contexts/campaign-lifecycle/campaign-service/adapters/memory"
	"adreel/contexts/campaign-lifecycle/campaign-service/application/commands"
	"adreel/contexts/campaign-lifecycle/campaign-service/application/queries"
	"adreel/contexts/campaign-lifecycle/campaign-service/domain/entities"
	"adreel/contexts/campaign-lifecycle/campaign-service/ports"
)

type Module struct {
	Handler     httpadapter.Handler
	Transitions commands.TransitionUseCase
	Status      commands.ChangeStatusUseCase
	Withdraw    commands.WithdrawUnpaidUseCase
	Store       *memory.Store
}

type Dependencies struct {
	Campaigns      ports.CampaignRepository
	Accounts       ports.ClientAccountDirectory
	Payments       ports.PaymentGuard
	Idempotency    ports.IdempotencyStore
	Outbox         ports.OutboxWriter
	Clock          ports.Clock
	IDGenerator    ports.IDGenerator
	DurationDays   int
	MaxPerAccount  int
	IdempotencyTTL time.Duration
	Logger         *slog.Logger
}

func NewModule(deps Dependencies) Module {
	transition := commands.TransitionUseCase{
		Campaigns:   deps.Campaigns,
		Outbox:      deps.Outbox,
		Clock:       deps.Clock,
		IDGenerator: deps.IDGenerator,
		Logger:      deps.Logger,
	}
	changeStatus := commands.ChangeStatusUseCase{Transition: transition}

	return Module{
		Transitions: transition,
		Status:      changeStatus,
		Withdraw: commands.WithdrawUnpaidUseCase{
			Transition: transition,
			Payments:   deps.Payments,
		},
		Handler: httpadapter.Handler{
			CreateCampaign: commands.CreateCampaignUseCase{
				Campaigns:      deps.Campaigns,
				Accounts:       deps.Accounts,
				Idempotency:    deps.Idempotency,
				Outbox:         deps.Outbox,
				Clock:          deps.Clock,
				IDGenerator:    deps.IDGenerator,
				DurationDays:   deps.DurationDays,
				MaxPerAccount:  deps.MaxPerAccount,
				IdempotencyTTL: deps.IdempotencyTTL,
				Logger:         deps.Logger,
			},
			UpdateCampaign: commands.UpdateCampaignUseCase{
				Campaigns: deps.Campaigns,
				Clock:     deps.Clock,
				Logger:    deps.Logger,
			},
			LaunchCampaign: commands.LaunchCampaignUseCase{
				Transition: transition,
				Payments:   deps.Payments,
			},
			ChangeStatus: changeStatus,
			DeleteCampaign: commands.DeleteCampaignUseCase{
				Campaigns:   deps.Campaigns,
				Outbox:      deps.Outbox,
				Clock:       deps.Clock,
				IDGenerator: deps.IDGenerator,
				Logger:      deps.Logger,
			},
			ListCampaigns: queries.ListCampaignsUseCase{
				Campaigns: deps.Campaigns,
				Logger:    deps.Logger,
			},
			GetCampaign: queries.GetCampaignUseCase{
				Campaigns: deps.Campaigns,
				Logger:    deps.Logger,
			},
			Logger: deps.Logger,
		},
	}
}

func NewInMemoryModule(
	seed []entities.Campaign,
	accounts ports.ClientAccountDirectory,
	payments ports.PaymentGuard,
	logger *slog.Logger,
) Module {
	store := memory.NewStore(seed)
	module := NewModule(Dependencies{
		Campaigns:      store,
		Accounts:       accounts,
		Payments:       payments,
		Idempotency:    store,
		Outbox:         store,
		Clock:          store,
		IDGenerator:    store,
		DurationDays:   30,
		MaxPerAccount:  10,
		IdempotencyTTL: 7 * 24 * time.Hour,
		Logger:         logger,
	})
	module.Store = store
	return module
}

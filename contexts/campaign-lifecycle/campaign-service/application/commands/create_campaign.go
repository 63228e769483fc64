package commands

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	application "adreel/contexts/campaign-lifecycle/campaign-service/application"
	"adreel/contexts/campaign-lifecycle/campaign-service/domain/entities"
	domainerrors "adreel/contexts/campaign-lifecycle/campaign-service/domain/errors"
	"adreel/contexts/campaign-lifecycle/campaign-service/ports"
)

type CreateCampaignCommand struct {
	UserID          string
	IdempotencyKey  string
	ClipURL         string
	ClipTitle       string
	ArtistsList     string
	Countries       []string
	TargetingConfig map[string]any
	Budget          entities.BudgetConfig
}

type CreateCampaignUseCase struct {
	Campaigns      ports.CampaignRepository
	Accounts       ports.ClientAccountDirectory
	Idempotency    ports.IdempotencyStore
	Outbox         ports.OutboxWriter
	Clock          ports.Clock
	IDGenerator    ports.IDGenerator
	DurationDays   int
	MaxPerAccount  int
	IdempotencyTTL time.Duration
	Logger         *slog.Logger
}

type CreateCampaignResult struct {
	Campaign entities.Campaign
	Replayed bool
}

type createCampaignReplayPayload struct {
	CampaignID string `json:"campaign_id"`
}

func (uc CreateCampaignUseCase) Execute(ctx context.Context, cmd CreateCampaignCommand) (CreateCampaignResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return CreateCampaignResult{}, domainerrors.ErrInvalidCampaignInput
	}

	now := uc.Clock.Now().UTC()
	key := strings.TrimSpace(cmd.IdempotencyKey)
	requestHash := hashCreateCampaignCommand(cmd)
	if key != "" && uc.Idempotency != nil {
		record, found, err := uc.Idempotency.GetRecord(ctx, key, now)
		if err != nil {
			return CreateCampaignResult{}, err
		}
		if found {
			if record.RequestHash != requestHash {
				return CreateCampaignResult{}, domainerrors.ErrIdempotencyKeyConflict
			}
			var payload createCampaignReplayPayload
			if err := json.Unmarshal(record.ResponsePayload, &payload); err != nil {
				return CreateCampaignResult{}, err
			}
			campaign, err := uc.Campaigns.GetCampaign(ctx, payload.CampaignID)
			if err != nil {
				return CreateCampaignResult{}, err
			}
			return CreateCampaignResult{Campaign: campaign, Replayed: true}, nil
		}
	}

	if !entities.ValidClipURL(cmd.ClipURL) {
		return CreateCampaignResult{}, domainerrors.ErrInvalidClipURL
	}
	if !cmd.Budget.Valid() {
		return CreateCampaignResult{}, domainerrors.ErrInvalidBudget
	}

	clientAccountID, err := uc.Accounts.ResolveClientAccount(ctx, userID)
	if err != nil {
		return CreateCampaignResult{}, err
	}
	campaignID, err := uc.IDGenerator.NewID(ctx)
	if err != nil {
		return CreateCampaignResult{}, err
	}
	campaign := entities.Campaign{
		CampaignID:      campaignID,
		ClientAccountID: clientAccountID,
		UserID:          userID,
		ClipURL:         strings.TrimSpace(cmd.ClipURL),
		ClipTitle:       strings.TrimSpace(cmd.ClipTitle),
		ArtistsList:     strings.TrimSpace(cmd.ArtistsList),
		Countries:       normalizeCountries(cmd.Countries),
		TargetingConfig: cmd.TargetingConfig,
		Budget:          cmd.Budget,
		Status:          entities.CampaignStatusDraft,
		DurationDays:    uc.DurationDays,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	campaign.Schedule(now)
	if !campaign.ValidateDraft() {
		return CreateCampaignResult{}, domainerrors.ErrInvalidCampaignInput
	}

	if err := uc.Campaigns.CreateCampaign(ctx, campaign, uc.MaxPerAccount); err != nil {
		return CreateCampaignResult{}, err
	}

	if key != "" && uc.Idempotency != nil {
		serialized, err := json.Marshal(createCampaignReplayPayload{CampaignID: campaign.CampaignID})
		if err != nil {
			return CreateCampaignResult{}, err
		}
		if err := uc.Idempotency.PutRecord(ctx, ports.IdempotencyRecord{
			Key:             key,
			RequestHash:     requestHash,
			ResponsePayload: serialized,
			ExpiresAt:       now.Add(uc.IdempotencyTTL),
		}); err != nil {
			return CreateCampaignResult{}, err
		}
	}

	emitAudit(ctx, uc.Outbox, uc.IDGenerator, logger, auditEntry{
		Action:     "CREATE",
		CampaignID: campaign.CampaignID,
		ActorID:    userID,
		OccurredAt: now,
		NewValues: map[string]any{
			"status":     string(campaign.Status),
			"clip_url":   campaign.ClipURL,
			"clip_title": campaign.ClipTitle,
		},
	})

	logger.Info("campaign created",
		"event", "campaign_created",
		"module", "campaign-lifecycle/campaign-service",
		"layer", "application",
		"campaign_id", campaign.CampaignID,
		"client_account_id", clientAccountID,
		"user_id", userID,
	)
	return CreateCampaignResult{Campaign: campaign}, nil
}

func normalizeCountries(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		code := strings.ToUpper(strings.TrimSpace(value))
		if code == "" {
			continue
		}
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		out = append(out, code)
	}
	return out
}

func hashCreateCampaignCommand(cmd CreateCampaignCommand) string {
	payload := map[string]any{
		"user_id":          strings.TrimSpace(cmd.UserID),
		"clip_url":         strings.TrimSpace(cmd.ClipURL),
		"clip_title":       strings.TrimSpace(cmd.ClipTitle),
		"artists_list":     strings.TrimSpace(cmd.ArtistsList),
		"countries":        normalizeCountries(cmd.Countries),
		"targeting_config": cmd.TargetingConfig,
		"daily_budget_eur": cmd.Budget.DailyBudgetEUR,
		"total_budget_eur": cmd.Budget.TotalBudgetEUR,
	}
	raw, _ := json.Marshal(payload)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

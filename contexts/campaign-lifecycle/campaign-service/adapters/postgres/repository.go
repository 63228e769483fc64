package postgresadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"adreel/contexts/campaign-lifecycle/campaign-service/domain/entities"
	domainerrors "adreel/contexts/campaign-lifecycle/campaign-service/domain/errors"
	"adreel/contexts/campaign-lifecycle/campaign-service/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Models lists the tables owned by this adapter for AutoMigrate.
func Models() []any {
	return []any{&campaignModel{}, &idempotencyModel{}, &outboxModel{}}
}

// CreateCampaign serializes creates per client account with a transaction
// scoped advisory lock, so the count and the insert see the same rows.
func (r *Repository) CreateCampaign(ctx context.Context, campaign entities.Campaign, maxPerAccount int) error {
	row := campaignModelFromEntity(campaign)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if maxPerAccount > 0 {
			if err := tx.Exec("SELECT pg_advisory_xact_lock(hashtextextended(?, 0))", "campaigns:"+row.ClientAccountID).Error; err != nil {
				return err
			}
			var count int64
			if err := tx.Model(&campaignModel{}).
				Where("client_account_id = ?", row.ClientAccountID).
				Count(&count).
				Error; err != nil {
				return err
			}
			if int(count) >= maxPerAccount {
				return domainerrors.ErrCampaignLimitReached
			}
		}
		return tx.Create(&row).Error
	})
	if isUniqueViolation(err) {
		return domainerrors.ErrInvalidCampaignInput
	}
	return err
}

func (r *Repository) GetCampaign(ctx context.Context, campaignID string) (entities.Campaign, error) {
	var row campaignModel
	err := r.db.WithContext(ctx).
		Where("campaign_id = ?", strings.TrimSpace(campaignID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Campaign{}, domainerrors.ErrCampaignNotFound
		}
		return entities.Campaign{}, err
	}
	return row.toEntity(), nil
}

func (r *Repository) ListCampaigns(ctx context.Context, filter ports.CampaignFilter) (ports.CampaignPage, error) {
	tx := r.db.WithContext(ctx).Model(&campaignModel{})
	if filter.UserID != "" {
		tx = tx.Where("user_id = ?", filter.UserID)
	}
	if filter.Status != "" {
		tx = tx.Where("status = ?", string(filter.Status))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + likeEscaper.Replace(search) + "%"
		tx = tx.Where(`clip_title ILIKE ? ESCAPE '\' OR artists_list ILIKE ? ESCAPE '\'`, pattern, pattern)
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return ports.CampaignPage{}, err
	}

	var rows []campaignModel
	query := tx.Order("created_at DESC").Offset(filter.Offset)
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return ports.CampaignPage{}, err
	}

	items := make([]entities.Campaign, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return ports.CampaignPage{Items: items, Total: int(total)}, nil
}

// CompareAndSetStatus writes the lifecycle columns only while the row still
// carries the expected status.
func (r *Repository) CompareAndSetStatus(
	ctx context.Context,
	next entities.Campaign,
	expected entities.CampaignStatus,
) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&campaignModel{}).
		Where("campaign_id = ? AND status = ?", next.CampaignID, string(expected)).
		Updates(map[string]any{
			"status":            string(next.Status),
			"starts_at":         next.StartsAt.UTC(),
			"ends_at":           next.EndsAt.UTC(),
			"actual_started_at": utcPointer(next.ActualStartedAt),
			"actual_ended_at":   utcPointer(next.ActualEndedAt),
			"updated_at":        next.UpdatedAt.UTC(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *Repository) UpdateDraft(ctx context.Context, campaign entities.Campaign) (bool, error) {
	countries, err := json.Marshal(campaign.Countries)
	if err != nil {
		return false, err
	}
	targeting, err := json.Marshal(campaign.TargetingConfig)
	if err != nil {
		return false, err
	}
	result := r.db.WithContext(ctx).
		Model(&campaignModel{}).
		Where("campaign_id = ? AND status = ?", campaign.CampaignID, string(entities.CampaignStatusDraft)).
		Updates(map[string]any{
			"clip_title":       campaign.ClipTitle,
			"artists_list":     campaign.ArtistsList,
			"countries":        string(countries),
			"targeting_config": string(targeting),
			"daily_budget_eur": campaign.Budget.DailyBudgetEUR,
			"total_budget_eur": campaign.Budget.TotalBudgetEUR,
			"updated_at":       campaign.UpdatedAt.UTC(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *Repository) DeleteCampaign(ctx context.Context, campaignID string, expected entities.CampaignStatus) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("campaign_id = ? AND status = ?", strings.TrimSpace(campaignID), string(expected)).
		Delete(&campaignModel{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *Repository) GetRecord(ctx context.Context, key string, now time.Time) (ports.IdempotencyRecord, bool, error) {
	var row idempotencyModel
	err := r.db.WithContext(ctx).
		Where("key = ?", strings.TrimSpace(key)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.IdempotencyRecord{}, false, nil
		}
		return ports.IdempotencyRecord{}, false, err
	}

	if !row.ExpiresAt.IsZero() && now.UTC().After(row.ExpiresAt.UTC()) {
		if err := r.db.WithContext(ctx).
			Where("key = ?", row.Key).
			Delete(&idempotencyModel{}).
			Error; err != nil {
			return ports.IdempotencyRecord{}, false, err
		}
		return ports.IdempotencyRecord{}, false, nil
	}

	return ports.IdempotencyRecord{
		Key:             row.Key,
		RequestHash:     row.RequestHash,
		ResponsePayload: append([]byte(nil), row.ResponsePayload...),
		ExpiresAt:       row.ExpiresAt.UTC(),
	}, true, nil
}

func (r *Repository) PutRecord(ctx context.Context, record ports.IdempotencyRecord) error {
	row := idempotencyModel{
		Key:             strings.TrimSpace(record.Key),
		RequestHash:     record.RequestHash,
		ResponsePayload: append([]byte(nil), record.ResponsePayload...),
		ExpiresAt:       record.ExpiresAt.UTC(),
	}
	createResult := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoNothing: true,
		}).
		Create(&row)
	if createResult.Error != nil {
		return createResult.Error
	}
	if createResult.RowsAffected > 0 {
		return nil
	}

	var existing idempotencyModel
	if err := r.db.WithContext(ctx).
		Where("key = ?", row.Key).
		First(&existing).
		Error; err != nil {
		return err
	}
	if existing.RequestHash != row.RequestHash {
		return domainerrors.ErrIdempotencyKeyConflict
	}
	return nil
}

func (r *Repository) AppendOutbox(ctx context.Context, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	row := outboxModel{
		OutboxID:     strings.TrimSpace(envelope.EventID),
		EventType:    strings.TrimSpace(envelope.EventType),
		PartitionKey: strings.TrimSpace(envelope.PartitionKey),
		Payload:      payload,
		Status:       outboxStatusPending,
		CreatedAt:    envelope.OccurredAt.UTC(),
	}
	if row.OutboxID == "" {
		row.OutboxID = uuid.NewString()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}

	createResult := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "outbox_id"}},
			DoNothing: true,
		}).
		Create(&row)
	if createResult.Error != nil {
		return createResult.Error
	}
	if createResult.RowsAffected > 0 {
		return nil
	}

	var existing outboxModel
	if err := r.db.WithContext(ctx).
		Select("payload").
		Where("outbox_id = ?", row.OutboxID).
		First(&existing).
		Error; err != nil {
		return err
	}
	if !bytes.Equal(existing.Payload, row.Payload) {
		r.logger.Warn("campaign outbox id reused with different payload",
			"event", "campaign_outbox_payload_mismatch",
			"module", "campaign-lifecycle/campaign-service",
			"layer", "adapter",
			"outbox_id", row.OutboxID,
		)
	}
	return nil
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}

	var rows []outboxModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", outboxStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).
		Error; err != nil {
		return nil, err
	}

	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.OutboxMessage{
			OutboxID:     row.OutboxID,
			EventType:    row.EventType,
			PartitionKey: row.PartitionKey,
			Payload:      append([]byte(nil), row.Payload...),
			CreatedAt:    row.CreatedAt.UTC(),
		})
	}
	return items, nil
}

func (r *Repository) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("outbox_id = ? AND status = ?", strings.TrimSpace(outboxID), outboxStatusPending).
		Updates(map[string]any{
			"status":       outboxStatusPublished,
			"published_at": publishedAt.UTC(),
		})
	return result.Error
}

type campaignModel struct {
	CampaignID       string         `gorm:"column:campaign_id;primaryKey"`
	ClientAccountID  string         `gorm:"column:client_account_id;index"`
	UserID           string         `gorm:"column:user_id;index"`
	ClipURL          string         `gorm:"column:clip_url"`
	ClipTitle        string         `gorm:"column:clip_title"`
	ArtistsList      string         `gorm:"column:artists_list"`
	Countries        []string       `gorm:"column:countries;type:jsonb;serializer:json"`
	TargetingConfig  map[string]any `gorm:"column:targeting_config;type:jsonb;serializer:json"`
	DailyBudgetEUR   float64        `gorm:"column:daily_budget_eur"`
	TotalBudgetEUR   float64        `gorm:"column:total_budget_eur"`
	Status           string         `gorm:"column:status;index"`
	DurationDays     int            `gorm:"column:duration_days"`
	StartsAt         time.Time      `gorm:"column:starts_at"`
	EndsAt           time.Time      `gorm:"column:ends_at"`
	ActualStartedAt  *time.Time     `gorm:"column:actual_started_at"`
	ActualEndedAt    *time.Time     `gorm:"column:actual_ended_at"`
	GoogleCampaignID string         `gorm:"column:google_campaign_id"`
	CreatedAt        time.Time      `gorm:"column:created_at"`
	UpdatedAt        time.Time      `gorm:"column:updated_at"`
}

func (campaignModel) TableName() string { return "campaigns" }

func campaignModelFromEntity(campaign entities.Campaign) campaignModel {
	return campaignModel{
		CampaignID:       campaign.CampaignID,
		ClientAccountID:  campaign.ClientAccountID,
		UserID:           campaign.UserID,
		ClipURL:          campaign.ClipURL,
		ClipTitle:        campaign.ClipTitle,
		ArtistsList:      campaign.ArtistsList,
		Countries:        append([]string(nil), campaign.Countries...),
		TargetingConfig:  campaign.TargetingConfig,
		DailyBudgetEUR:   campaign.Budget.DailyBudgetEUR,
		TotalBudgetEUR:   campaign.Budget.TotalBudgetEUR,
		Status:           string(campaign.Status),
		DurationDays:     campaign.DurationDays,
		StartsAt:         campaign.StartsAt.UTC(),
		EndsAt:           campaign.EndsAt.UTC(),
		ActualStartedAt:  utcPointer(campaign.ActualStartedAt),
		ActualEndedAt:    utcPointer(campaign.ActualEndedAt),
		GoogleCampaignID: campaign.GoogleCampaignID,
		CreatedAt:        campaign.CreatedAt.UTC(),
		UpdatedAt:        campaign.UpdatedAt.UTC(),
	}
}

func (m campaignModel) toEntity() entities.Campaign {
	return entities.Campaign{
		CampaignID:      m.CampaignID,
		ClientAccountID: m.ClientAccountID,
		UserID:          m.UserID,
		ClipURL:         m.ClipURL,
		ClipTitle:       m.ClipTitle,
		ArtistsList:     m.ArtistsList,
		Countries:       append([]string(nil), m.Countries...),
		TargetingConfig: m.TargetingConfig,
		Budget: entities.BudgetConfig{
			DailyBudgetEUR: m.DailyBudgetEUR,
			TotalBudgetEUR: m.TotalBudgetEUR,
		},
		Status:           entities.CampaignStatus(m.Status),
		DurationDays:     m.DurationDays,
		StartsAt:         m.StartsAt.UTC(),
		EndsAt:           m.EndsAt.UTC(),
		ActualStartedAt:  utcPointer(m.ActualStartedAt),
		ActualEndedAt:    utcPointer(m.ActualEndedAt),
		GoogleCampaignID: m.GoogleCampaignID,
		CreatedAt:        m.CreatedAt.UTC(),
		UpdatedAt:        m.UpdatedAt.UTC(),
	}
}

type idempotencyModel struct {
	Key             string    `gorm:"column:key;primaryKey"`
	RequestHash     string    `gorm:"column:request_hash"`
	ResponsePayload []byte    `gorm:"column:response_payload"`
	ExpiresAt       time.Time `gorm:"column:expires_at"`
}

func (idempotencyModel) TableName() string { return "campaign_idempotency" }

type outboxModel struct {
	OutboxID     string     `gorm:"column:outbox_id;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload"`
	Status       string     `gorm:"column:status;index"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
}

func (outboxModel) TableName() string { return "campaign_outbox" }

func utcPointer(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	at := value.UTC()
	return &at
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

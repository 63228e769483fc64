package postgresadapter

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"adreel/contexts/ads-accounts/link-service/domain/entities"
	domainerrors "adreel/contexts/ads-accounts/link-service/domain/errors"
	"adreel/contexts/ads-accounts/link-service/ports"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{db: db, logger: logger}
}

func Models() []any {
	return []any{&clientAccountModel{}}
}

func (r *Repository) GetByUser(ctx context.Context, userID string) (entities.ClientAccount, error) {
	var row clientAccountModel
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return entities.ClientAccount{}, domainerrors.ErrClientAccountNotFound
	}
	if err != nil {
		return entities.ClientAccount{}, err
	}
	return row.toEntity(), nil
}

// CreateIfAbsent relies on the unique user_id index; a concurrent insert
// loses and reads back the winner.
func (r *Repository) CreateIfAbsent(ctx context.Context, account entities.ClientAccount) (entities.ClientAccount, error) {
	row := clientAccountModelFromEntity(account)
	if row.ClientAccountID == "" {
		row.ClientAccountID = uuid.NewString()
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(&row).Error
	if err != nil {
		return entities.ClientAccount{}, err
	}
	return r.GetByUser(ctx, account.UserID)
}

func (r *Repository) FindLinkedByCustomer(ctx context.Context, customerID string) (entities.ClientAccount, bool, error) {
	var row clientAccountModel
	err := r.db.WithContext(ctx).
		Where("google_customer_id = ? AND link_status = ?", customerID, string(entities.LinkStatusLinked)).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return entities.ClientAccount{}, false, nil
	}
	if err != nil {
		return entities.ClientAccount{}, false, err
	}
	return row.toEntity(), true, nil
}

func (r *Repository) SaveLinkRequest(ctx context.Context, update ports.LinkRequestUpdate) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&clientAccountModel{}).
		Where("user_id = ? AND link_status = ?", update.UserID, string(update.Expected)).
		Updates(map[string]any{
			"google_customer_id": update.CustomerID,
			"resource_name":      update.ResourceName,
			"link_status":        string(entities.LinkStatusPending),
			"link_requested_at":  update.RequestedAt.UTC(),
			"linked_at":          nil,
			"updated_at":         update.RequestedAt.UTC(),
		})
	return result.RowsAffected == 1, result.Error
}

func (r *Repository) UpdateLinkStatus(ctx context.Context, update ports.LinkStatusUpdate) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&clientAccountModel{}).
		Where("user_id = ? AND link_status = ?", update.UserID, string(update.Expected)).
		Updates(map[string]any{
			"link_status":  string(update.Next),
			"linked_at":    utcPtr(update.LinkedAt),
			"last_sync_at": update.SyncedAt.UTC(),
			"updated_at":   update.SyncedAt.UTC(),
		})
	return result.RowsAffected == 1, result.Error
}

func (r *Repository) TouchSync(ctx context.Context, userID string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&clientAccountModel{}).
		Where("user_id = ?", userID).
		Update("last_sync_at", at.UTC()).Error
}

func (r *Repository) ListSyncCandidates(ctx context.Context, filter ports.SyncCandidates) ([]entities.ClientAccount, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	var rows []clientAccountModel
	err := r.db.WithContext(ctx).
		Where("resource_name <> ''").
		Where(r.db.Where("link_status = ?", string(entities.LinkStatusPending)).
			Or("link_status = ? AND (last_sync_at IS NULL OR last_sync_at < ?)", string(entities.LinkStatusLinked), filter.LinkedSyncedBefore.UTC())).
		Order("last_sync_at ASC NULLS FIRST, user_id ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	items := make([]entities.ClientAccount, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

type clientAccountModel struct {
	ClientAccountID  string     `gorm:"column:client_account_id;primaryKey"`
	UserID           string     `gorm:"column:user_id;uniqueIndex"`
	GoogleCustomerID string     `gorm:"column:google_customer_id;index"`
	LinkStatus       string     `gorm:"column:link_status;index"`
	ResourceName     string     `gorm:"column:resource_name"`
	LinkRequestedAt  *time.Time `gorm:"column:link_requested_at"`
	LinkedAt         *time.Time `gorm:"column:linked_at"`
	LastSyncAt       *time.Time `gorm:"column:last_sync_at"`
	CreatedAt        time.Time  `gorm:"column:created_at"`
	UpdatedAt        time.Time  `gorm:"column:updated_at"`
}

func (clientAccountModel) TableName() string { return "client_accounts" }

func clientAccountModelFromEntity(a entities.ClientAccount) clientAccountModel {
	return clientAccountModel{
		ClientAccountID:  a.ClientAccountID,
		UserID:           a.UserID,
		GoogleCustomerID: a.GoogleCustomerID,
		LinkStatus:       string(a.LinkStatus),
		ResourceName:     a.ResourceName,
		LinkRequestedAt:  utcPtr(a.LinkRequestedAt),
		LinkedAt:         utcPtr(a.LinkedAt),
		LastSyncAt:       utcPtr(a.LastSyncAt),
		CreatedAt:        a.CreatedAt.UTC(),
		UpdatedAt:        a.UpdatedAt.UTC(),
	}
}

func (m clientAccountModel) toEntity() entities.ClientAccount {
	return entities.ClientAccount{
		ClientAccountID:  m.ClientAccountID,
		UserID:           m.UserID,
		GoogleCustomerID: m.GoogleCustomerID,
		LinkStatus:       entities.LinkStatus(m.LinkStatus),
		ResourceName:     m.ResourceName,
		LinkRequestedAt:  utcPtr(m.LinkRequestedAt),
		LinkedAt:         utcPtr(m.LinkedAt),
		LastSyncAt:       utcPtr(m.LastSyncAt),
		CreatedAt:        m.CreatedAt.UTC(),
		UpdatedAt:        m.UpdatedAt.UTC(),
	}
}

func utcPtr(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	utc := value.UTC()
	return &utc
}

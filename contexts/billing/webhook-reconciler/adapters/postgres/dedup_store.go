package postgresadapter

import (
	"context"
	"strings"
	"time"

	"adreel/contexts/billing/webhook-reconciler/ports"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DedupStore struct {
	db  *gorm.DB
	now func() time.Time
}

func NewDedupStore(db *gorm.DB) *DedupStore {
	return &DedupStore{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func Models() []any {
	return []any{&processedEventModel{}, &eventClaimModel{}}
}

func (s *DedupStore) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&processedEventModel{}).
		Where("event_id = ? AND expires_at > ?", strings.TrimSpace(eventID), s.now()).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Claim inserts a lease row, taking over only an expired one, and refuses
// ids that are already processed.
func (s *DedupStore) Claim(ctx context.Context, eventID string, until time.Time) (bool, error) {
	id := strings.TrimSpace(eventID)
	processed, err := s.IsProcessed(ctx, id)
	if err != nil || processed {
		return false, err
	}
	row := eventClaimModel{EventID: id, ExpiresAt: until.UTC()}
	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "event_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"expires_at"}),
			Where: clause.Where{Exprs: []clause.Expression{
				clause.Expr{SQL: "webhook_event_claims.expires_at < ?", Vars: []any{s.now()}},
			}},
		}).
		Create(&row)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (s *DedupStore) Release(ctx context.Context, eventID string) error {
	return s.db.WithContext(ctx).
		Where("event_id = ?", strings.TrimSpace(eventID)).
		Delete(&eventClaimModel{}).Error
}

// MarkProcessed inserts the event id; an existing row is left untouched
// unless it already expired.
func (s *DedupStore) MarkProcessed(ctx context.Context, event ports.ProcessedEvent) error {
	row := processedEventModel{
		EventID:     strings.TrimSpace(event.EventID),
		EventType:   event.EventType,
		PayloadHash: event.PayloadHash,
		ProcessedAt: event.ProcessedAt.UTC(),
		ExpiresAt:   event.ExpiresAt.UTC(),
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "event_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"event_type", "payload_hash", "processed_at", "expires_at"}),
			Where: clause.Where{Exprs: []clause.Expression{
				clause.Expr{SQL: "processed_webhook_events.expires_at < ?", Vars: []any{s.now()}},
			}},
		}).
		Create(&row).Error
}

// PurgeExpired removes processed rows past their retention window and
// stale claims.
func (s *DedupStore) PurgeExpired(ctx context.Context) (int64, error) {
	now := s.now()
	result := s.db.WithContext(ctx).
		Where("expires_at < ?", now).
		Delete(&processedEventModel{})
	if result.Error != nil {
		return 0, result.Error
	}
	if err := s.db.WithContext(ctx).Where("expires_at < ?", now).Delete(&eventClaimModel{}).Error; err != nil {
		return result.RowsAffected, err
	}
	return result.RowsAffected, nil
}

type processedEventModel struct {
	EventID     string    `gorm:"column:event_id;primaryKey"`
	EventType   string    `gorm:"column:event_type"`
	PayloadHash string    `gorm:"column:payload_hash"`
	ProcessedAt time.Time `gorm:"column:processed_at"`
	ExpiresAt   time.Time `gorm:"column:expires_at;index"`
}

func (processedEventModel) TableName() string { return "processed_webhook_events" }

type eventClaimModel struct {
	EventID   string    `gorm:"column:event_id;primaryKey"`
	ExpiresAt time.Time `gorm:"column:expires_at"`
}

func (eventClaimModel) TableName() string { return "webhook_event_claims" }

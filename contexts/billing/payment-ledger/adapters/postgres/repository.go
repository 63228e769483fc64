package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"adreel/contexts/billing/payment-ledger/domain/entities"
	domainerrors "adreel/contexts/billing/payment-ledger/domain/errors"
	"adreel/contexts/billing/payment-ledger/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"
)

var confirmableStatuses = []string{
	string(entities.PaymentStatusPending),
	string(entities.PaymentStatusFailed),
}

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
	return []any{&paymentModel{}, &idempotencyModel{}, &outboxModel{}}
}

func (r *Repository) CreatePayments(ctx context.Context, payments []entities.Payment) error {
	if len(payments) == 0 {
		return nil
	}
	rows := make([]paymentModel, 0, len(payments))
	for _, payment := range payments {
		rows = append(rows, paymentModelFromEntity(payment))
	}
	if err := r.db.WithContext(ctx).Create(&rows).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrInvalidCheckoutRequest
		}
		return fmt.Errorf("create payments: %w", err)
	}
	return nil
}

func (r *Repository) GetPayment(ctx context.Context, paymentID string) (entities.Payment, error) {
	var row paymentModel
	err := r.db.WithContext(ctx).Where("payment_id = ?", strings.TrimSpace(paymentID)).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return entities.Payment{}, domainerrors.ErrPaymentNotFound
	}
	if err != nil {
		return entities.Payment{}, err
	}
	return row.toEntity(), nil
}

func (r *Repository) ListPayments(ctx context.Context, filter ports.PaymentFilter) (ports.PaymentPage, error) {
	tx := r.db.WithContext(ctx).Model(&paymentModel{})
	if filter.UserID != "" {
		tx = tx.Where("user_id = ?", filter.UserID)
	}
	if filter.Status != "" {
		tx = tx.Where("status = ?", string(filter.Status))
	}
	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return ports.PaymentPage{}, err
	}
	query := tx.Order("created_at DESC").Order("payment_id DESC")
	if filter.Limit > 0 {
		query = query.Offset(filter.Offset).Limit(filter.Limit)
	}
	var rows []paymentModel
	if err := query.Find(&rows).Error; err != nil {
		return ports.PaymentPage{}, err
	}
	return ports.PaymentPage{Items: toEntities(rows), Total: int(total)}, nil
}

func (r *Repository) ListBySession(ctx context.Context, sessionID string) ([]entities.Payment, error) {
	var rows []paymentModel
	err := r.db.WithContext(ctx).
		Where("stripe_session_id = ?", sessionID).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toEntities(rows), nil
}

func (r *Repository) ListByIntent(ctx context.Context, intentID string) ([]entities.Payment, error) {
	var rows []paymentModel
	err := r.db.WithContext(ctx).
		Where("stripe_payment_id = ?", intentID).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toEntities(rows), nil
}

func (r *Repository) LatestPending(ctx context.Context, userID string, campaignID string) (entities.Payment, bool, error) {
	var row paymentModel
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND campaign_id = ? AND status = ? AND stripe_payment_id = ''",
			userID, campaignID, string(entities.PaymentStatusPending)).
		Order("created_at DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return entities.Payment{}, false, nil
	}
	if err != nil {
		return entities.Payment{}, false, err
	}
	return row.toEntity(), true, nil
}

func (r *Repository) HasPaidPayment(ctx context.Context, campaignID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&paymentModel{}).
		Where("campaign_id = ? AND status = ?", campaignID, string(entities.PaymentStatusPaid)).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *Repository) MarkSessionPaid(ctx context.Context, sessionID string, userID string, intentID string, at time.Time) (int, error) {
	updates := map[string]any{
		"status":         string(entities.PaymentStatusPaid),
		"paid_at":        at.UTC(),
		"failure_reason": "",
		"updated_at":     at.UTC(),
	}
	if intentID != "" {
		updates["stripe_payment_id"] = intentID
	}
	tx := r.db.WithContext(ctx).
		Model(&paymentModel{}).
		Where("stripe_session_id = ? AND status IN ?", sessionID, confirmableStatuses)
	if userID != "" {
		tx = tx.Where("user_id = ?", userID)
	}
	result := tx.Updates(updates)
	return int(result.RowsAffected), result.Error
}

func (r *Repository) MarkIntentPaid(ctx context.Context, intentID string, at time.Time) (int, error) {
	result := r.db.WithContext(ctx).
		Model(&paymentModel{}).
		Where("stripe_payment_id = ? AND status IN ?", intentID, confirmableStatuses).
		Updates(map[string]any{
			"status":         string(entities.PaymentStatusPaid),
			"paid_at":        at.UTC(),
			"failure_reason": "",
			"updated_at":     at.UTC(),
		})
	return int(result.RowsAffected), result.Error
}

func (r *Repository) BindIntent(
	ctx context.Context,
	paymentID string,
	intentID string,
	status entities.PaymentStatus,
	reason string,
	at time.Time,
) (bool, error) {
	updates := map[string]any{
		"stripe_payment_id": intentID,
		"status":            string(status),
		"failure_reason":    reason,
		"updated_at":        at.UTC(),
	}
	if status == entities.PaymentStatusPaid {
		updates["paid_at"] = at.UTC()
	}
	result := r.db.WithContext(ctx).
		Model(&paymentModel{}).
		Where("payment_id = ? AND status = ? AND stripe_payment_id = ''", paymentID, string(entities.PaymentStatusPending)).
		Updates(updates)
	return result.RowsAffected == 1, result.Error
}

func (r *Repository) MarkIntentFailed(ctx context.Context, intentID string, reason string, at time.Time) (int, error) {
	result := r.db.WithContext(ctx).
		Model(&paymentModel{}).
		Where("stripe_payment_id = ? AND status = ?", intentID, string(entities.PaymentStatusPending)).
		Updates(map[string]any{
			"status":         string(entities.PaymentStatusFailed),
			"failure_reason": reason,
			"updated_at":     at.UTC(),
		})
	return int(result.RowsAffected), result.Error
}

func (r *Repository) AttachInvoice(ctx context.Context, intentID string, invoiceNumber string, invoiceURL string, at time.Time) (int, error) {
	updates := map[string]any{"updated_at": at.UTC()}
	if invoiceNumber != "" {
		updates["invoice_number"] = invoiceNumber
	}
	if invoiceURL != "" {
		updates["invoice_url"] = invoiceURL
	}
	result := r.db.WithContext(ctx).
		Model(&paymentModel{}).
		Where("stripe_payment_id = ?", intentID).
		Updates(updates)
	return int(result.RowsAffected), result.Error
}

func (r *Repository) MarkRefunded(ctx context.Context, paymentID string, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&paymentModel{}).
		Where("payment_id = ? AND status = ?", paymentID, string(entities.PaymentStatusPaid)).
		Updates(map[string]any{
			"status":      string(entities.PaymentStatusRefunded),
			"refunded_at": at.UTC(),
			"updated_at":  at.UTC(),
		})
	return result.RowsAffected == 1, result.Error
}

// Reserve claims the key with an insert that only overwrites an expired
// row, so exactly one concurrent caller sees RowsAffected == 1.
func (r *Repository) Reserve(ctx context.Context, record ports.IdempotencyRecord, now time.Time) (ports.IdempotencyRecord, bool, error) {
	row := idempotencyModel{
		Key:         record.Key,
		RequestHash: record.RequestHash,
		ExpiresAt:   record.ExpiresAt.UTC(),
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"request_hash", "payload", "expires_at"}),
			Where: clause.Where{Exprs: []clause.Expression{
				clause.Expr{SQL: "billing_idempotency.expires_at < ?", Vars: []any{now.UTC()}},
			}},
		}).
		Create(&row)
	if result.Error != nil {
		return ports.IdempotencyRecord{}, false, result.Error
	}
	if result.RowsAffected == 1 {
		return ports.IdempotencyRecord{}, true, nil
	}

	var existing idempotencyModel
	if err := r.db.WithContext(ctx).Where("key = ?", record.Key).First(&existing).Error; err != nil {
		return ports.IdempotencyRecord{}, false, err
	}
	return ports.IdempotencyRecord{
		Key:         existing.Key,
		RequestHash: existing.RequestHash,
		Payload:     append([]byte(nil), existing.Payload...),
		ExpiresAt:   existing.ExpiresAt.UTC(),
	}, false, nil
}

func (r *Repository) Complete(ctx context.Context, record ports.IdempotencyRecord) error {
	result := r.db.WithContext(ctx).
		Model(&idempotencyModel{}).
		Where("key = ? AND request_hash = ?", record.Key, record.RequestHash).
		Updates(map[string]any{
			"payload":    append([]byte(nil), record.Payload...),
			"expires_at": record.ExpiresAt.UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrIdempotencyConflict
	}
	return nil
}

func (r *Repository) Release(ctx context.Context, key string) error {
	return r.db.WithContext(ctx).
		Where("key = ? AND payload IS NULL", key).
		Delete(&idempotencyModel{}).Error
}

func (r *Repository) AppendOutbox(ctx context.Context, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	outboxID := envelope.EventID
	if outboxID == "" {
		outboxID = uuid.NewString()
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&outboxModel{
			OutboxID:     outboxID,
			EventType:    envelope.EventType,
			PartitionKey: envelope.PartitionKey,
			Payload:      payload,
			Status:       outboxStatusPending,
			CreatedAt:    envelope.OccurredAt.UTC(),
		}).Error
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []outboxModel
	err := r.db.WithContext(ctx).
		Where("status = ?", outboxStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
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
	return r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("outbox_id = ? AND status = ?", outboxID, outboxStatusPending).
		Updates(map[string]any{
			"status":       outboxStatusPublished,
			"published_at": publishedAt.UTC(),
		}).Error
}

type paymentModel struct {
	PaymentID       string     `gorm:"column:payment_id;primaryKey"`
	UserID          string     `gorm:"column:user_id;index"`
	CampaignID      string     `gorm:"column:campaign_id;index;uniqueIndex:idx_payments_session_campaign,priority:2"`
	AmountCents     int64      `gorm:"column:amount_cents"`
	VATRate         float64    `gorm:"column:vat_rate"`
	VATCents        int64      `gorm:"column:vat_cents"`
	TotalCents      int64      `gorm:"column:total_cents"`
	Currency        string     `gorm:"column:currency"`
	Status          string     `gorm:"column:status;index"`
	StripeSessionID string     `gorm:"column:stripe_session_id;index;uniqueIndex:idx_payments_session_campaign,priority:1"`
	StripePaymentID string     `gorm:"column:stripe_payment_id;index"`
	PaidAt          *time.Time `gorm:"column:paid_at"`
	RefundedAt      *time.Time `gorm:"column:refunded_at"`
	InvoiceNumber   string     `gorm:"column:invoice_number"`
	InvoiceURL      string     `gorm:"column:invoice_url"`
	FailureReason   string     `gorm:"column:failure_reason"`
	CreatedAt       time.Time  `gorm:"column:created_at"`
	UpdatedAt       time.Time  `gorm:"column:updated_at"`
}

func (paymentModel) TableName() string { return "payments" }

func paymentModelFromEntity(p entities.Payment) paymentModel {
	return paymentModel{
		PaymentID:       p.PaymentID,
		UserID:          p.UserID,
		CampaignID:      p.CampaignID,
		AmountCents:     p.AmountCents,
		VATRate:         p.VATRate,
		VATCents:        p.VATCents,
		TotalCents:      p.TotalCents,
		Currency:        p.Currency,
		Status:          string(p.Status),
		StripeSessionID: p.StripeSessionID,
		StripePaymentID: p.StripePaymentID,
		PaidAt:          p.PaidAt,
		RefundedAt:      p.RefundedAt,
		InvoiceNumber:   p.InvoiceNumber,
		InvoiceURL:      p.InvoiceURL,
		FailureReason:   p.FailureReason,
		CreatedAt:       p.CreatedAt.UTC(),
		UpdatedAt:       p.UpdatedAt.UTC(),
	}
}

func (m paymentModel) toEntity() entities.Payment {
	return entities.Payment{
		PaymentID:       m.PaymentID,
		UserID:          m.UserID,
		CampaignID:      m.CampaignID,
		AmountCents:     m.AmountCents,
		VATRate:         m.VATRate,
		VATCents:        m.VATCents,
		TotalCents:      m.TotalCents,
		Currency:        m.Currency,
		Status:          entities.PaymentStatus(m.Status),
		StripeSessionID: m.StripeSessionID,
		StripePaymentID: m.StripePaymentID,
		PaidAt:          m.PaidAt,
		RefundedAt:      m.RefundedAt,
		InvoiceNumber:   m.InvoiceNumber,
		InvoiceURL:      m.InvoiceURL,
		FailureReason:   m.FailureReason,
		CreatedAt:       m.CreatedAt.UTC(),
		UpdatedAt:       m.UpdatedAt.UTC(),
	}
}

func toEntities(rows []paymentModel) []entities.Payment {
	items := make([]entities.Payment, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items
}

type idempotencyModel struct {
	Key         string    `gorm:"column:key;primaryKey"`
	RequestHash string    `gorm:"column:request_hash"`
	Payload     []byte    `gorm:"column:payload"`
	ExpiresAt   time.Time `gorm:"column:expires_at"`
}

func (idempotencyModel) TableName() string { return "billing_idempotency" }

type outboxModel struct {
	OutboxID     string     `gorm:"column:outbox_id;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload"`
	Status       string     `gorm:"column:status;index"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
}

func (outboxModel) TableName() string { return "billing_outbox" }

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

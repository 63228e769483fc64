package memory

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"adreel/contexts/billing/payment-ledger/domain/entities"
	domainerrors "adreel/contexts/billing/payment-ledger/domain/errors"
	"adreel/contexts/billing/payment-ledger/ports"

	"github.com/google/uuid"
)

type Store struct {
	mu sync.RWMutex

	payments    map[string]entities.Payment
	idempotency map[string]ports.IdempotencyRecord
	outbox      []outboxRow
}

type outboxRow struct {
	envelope    ports.EventEnvelope
	publishedAt *time.Time
}

func NewStore(seed []entities.Payment) *Store {
	payments := make(map[string]entities.Payment, len(seed))
	for _, item := range seed {
		payments[item.PaymentID] = clonePayment(item)
	}
	return &Store{
		payments:    payments,
		idempotency: make(map[string]ports.IdempotencyRecord),
	}
}

func (s *Store) CreatePayments(_ context.Context, payments []entities.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	type sessionCampaign struct{ session, campaign string }
	taken := make(map[sessionCampaign]struct{}, len(s.payments)+len(payments))
	for _, existing := range s.payments {
		taken[sessionCampaign{existing.StripeSessionID, existing.CampaignID}] = struct{}{}
	}
	for _, payment := range payments {
		if _, exists := s.payments[payment.PaymentID]; exists {
			return domainerrors.ErrInvalidCheckoutRequest
		}
		pair := sessionCampaign{payment.StripeSessionID, payment.CampaignID}
		if _, exists := taken[pair]; exists {
			return domainerrors.ErrInvalidCheckoutRequest
		}
		taken[pair] = struct{}{}
	}
	for _, payment := range payments {
		s.payments[payment.PaymentID] = clonePayment(payment)
	}
	return nil
}

func (s *Store) GetPayment(_ context.Context, paymentID string) (entities.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	payment, ok := s.payments[paymentID]
	if !ok {
		return entities.Payment{}, domainerrors.ErrPaymentNotFound
	}
	return clonePayment(payment), nil
}

func (s *Store) ListPayments(_ context.Context, filter ports.PaymentFilter) (ports.PaymentPage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := s.selectLocked(func(p entities.Payment) bool {
		if filter.UserID != "" && p.UserID != filter.UserID {
			return false
		}
		return filter.Status == "" || p.Status == filter.Status
	})
	total := len(items)
	start := filter.Offset
	if start > total {
		start = total
	}
	end := total
	if filter.Limit > 0 && start+filter.Limit < end {
		end = start + filter.Limit
	}
	return ports.PaymentPage{Items: items[start:end], Total: total}, nil
}

func (s *Store) ListBySession(_ context.Context, sessionID string) ([]entities.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selectLocked(func(p entities.Payment) bool { return p.StripeSessionID == sessionID }), nil
}

func (s *Store) ListByIntent(_ context.Context, intentID string) ([]entities.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selectLocked(func(p entities.Payment) bool { return p.StripePaymentID == intentID }), nil
}

func (s *Store) LatestPending(_ context.Context, userID string, campaignID string) (entities.Payment, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := s.selectLocked(func(p entities.Payment) bool {
		return p.UserID == userID &&
			p.CampaignID == campaignID &&
			p.Status == entities.PaymentStatusPending &&
			p.StripePaymentID == ""
	})
	if len(items) == 0 {
		return entities.Payment{}, false, nil
	}
	return items[0], true, nil
}

func (s *Store) HasPaidPayment(_ context.Context, campaignID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, payment := range s.payments {
		if payment.CampaignID == campaignID && payment.Status == entities.PaymentStatusPaid {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) MarkSessionPaid(_ context.Context, sessionID string, userID string, intentID string, at time.Time) (int, error) {
	return s.updateWhere(
		func(p entities.Payment) bool {
			return p.StripeSessionID == sessionID &&
				(userID == "" || p.UserID == userID) &&
				(p.Status == entities.PaymentStatusPending || p.Status == entities.PaymentStatusFailed)
		},
		func(p *entities.Payment) {
			p.Status = entities.PaymentStatusPaid
			if intentID != "" {
				p.StripePaymentID = intentID
			}
			paidAt := at
			p.PaidAt = &paidAt
			p.FailureReason = ""
			p.UpdatedAt = at
		},
	), nil
}

func (s *Store) MarkIntentPaid(_ context.Context, intentID string, at time.Time) (int, error) {
	return s.updateWhere(
		func(p entities.Payment) bool {
			return p.StripePaymentID == intentID &&
				(p.Status == entities.PaymentStatusPending || p.Status == entities.PaymentStatusFailed)
		},
		func(p *entities.Payment) {
			p.Status = entities.PaymentStatusPaid
			paidAt := at
			p.PaidAt = &paidAt
			p.FailureReason = ""
			p.UpdatedAt = at
		},
	), nil
}

func (s *Store) BindIntent(
	_ context.Context,
	paymentID string,
	intentID string,
	status entities.PaymentStatus,
	reason string,
	at time.Time,
) (bool, error) {
	changed := s.updateWhere(
		func(p entities.Payment) bool {
			return p.PaymentID == paymentID &&
				p.Status == entities.PaymentStatusPending &&
				p.StripePaymentID == ""
		},
		func(p *entities.Payment) {
			p.StripePaymentID = intentID
			p.Status = status
			if status == entities.PaymentStatusPaid {
				paidAt := at
				p.PaidAt = &paidAt
			}
			p.FailureReason = reason
			p.UpdatedAt = at
		},
	)
	return changed == 1, nil
}

func (s *Store) MarkIntentFailed(_ context.Context, intentID string, reason string, at time.Time) (int, error) {
	return s.updateWhere(
		func(p entities.Payment) bool {
			return p.StripePaymentID == intentID && p.Status == entities.PaymentStatusPending
		},
		func(p *entities.Payment) {
			p.Status = entities.PaymentStatusFailed
			p.FailureReason = reason
			p.UpdatedAt = at
		},
	), nil
}

func (s *Store) AttachInvoice(_ context.Context, intentID string, invoiceNumber string, invoiceURL string, at time.Time) (int, error) {
	return s.updateWhere(
		func(p entities.Payment) bool { return p.StripePaymentID == intentID },
		func(p *entities.Payment) {
			if invoiceNumber != "" {
				p.InvoiceNumber = invoiceNumber
			}
			if invoiceURL != "" {
				p.InvoiceURL = invoiceURL
			}
			p.UpdatedAt = at
		},
	), nil
}

func (s *Store) MarkRefunded(_ context.Context, paymentID string, at time.Time) (bool, error) {
	changed := s.updateWhere(
		func(p entities.Payment) bool {
			return p.PaymentID == paymentID && p.Status == entities.PaymentStatusPaid
		},
		func(p *entities.Payment) {
			p.Status = entities.PaymentStatusRefunded
			refundedAt := at
			p.RefundedAt = &refundedAt
			p.UpdatedAt = at
		},
	)
	return changed == 1, nil
}

func (s *Store) Reserve(_ context.Context, record ports.IdempotencyRecord, now time.Time) (ports.IdempotencyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.idempotency[record.Key]; ok && !now.After(existing.ExpiresAt) {
		existing.Payload = append([]byte(nil), existing.Payload...)
		return existing, false, nil
	}
	record.Payload = nil
	s.idempotency[record.Key] = record
	return ports.IdempotencyRecord{}, true, nil
}

func (s *Store) Complete(_ context.Context, record ports.IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.idempotency[record.Key]
	if !ok || existing.RequestHash != record.RequestHash {
		return domainerrors.ErrIdempotencyConflict
	}
	record.Payload = append([]byte(nil), record.Payload...)
	s.idempotency[record.Key] = record
	return nil
}

func (s *Store) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.idempotency[key]; ok && len(existing.Payload) == 0 {
		delete(s.idempotency, key)
	}
	return nil
}

func (s *Store) AppendOutbox(_ context.Context, envelope ports.EventEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, row := range s.outbox {
		if row.envelope.EventID == envelope.EventID {
			return nil
		}
	}
	s.outbox = append(s.outbox, outboxRow{envelope: envelope})
	return nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]ports.OutboxMessage, 0)
	for _, row := range s.outbox {
		if row.publishedAt != nil {
			continue
		}
		payload, err := json.Marshal(row.envelope)
		if err != nil {
			return nil, err
		}
		items = append(items, ports.OutboxMessage{
			OutboxID:     row.envelope.EventID,
			EventType:    row.envelope.EventType,
			PartitionKey: row.envelope.PartitionKey,
			Payload:      payload,
			CreatedAt:    row.envelope.OccurredAt,
		})
		if limit > 0 && len(items) >= limit {
			break
		}
	}
	return items, nil
}

func (s *Store) MarkOutboxPublished(_ context.Context, outboxID string, publishedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.outbox {
		if s.outbox[i].envelope.EventID == outboxID {
			at := publishedAt
			s.outbox[i].publishedAt = &at
			return nil
		}
	}
	return domainerrors.ErrPaymentNotFound
}

func (s *Store) AuditEnvelopes() []ports.EventEnvelope {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]ports.EventEnvelope, 0, len(s.outbox))
	for _, row := range s.outbox {
		items = append(items, row.envelope)
	}
	return items
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

// selectLocked returns matching payments newest first. Callers hold s.mu.
func (s *Store) selectLocked(match func(entities.Payment) bool) []entities.Payment {
	items := make([]entities.Payment, 0)
	for _, payment := range s.payments {
		if match(payment) {
			items = append(items, clonePayment(payment))
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return strings.Compare(items[i].PaymentID, items[j].PaymentID) > 0
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return items
}

func (s *Store) updateWhere(match func(entities.Payment) bool, apply func(*entities.Payment)) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := 0
	for id, payment := range s.payments {
		if !match(payment) {
			continue
		}
		apply(&payment)
		s.payments[id] = payment
		changed++
	}
	return changed
}

func clonePayment(item entities.Payment) entities.Payment {
	if item.PaidAt != nil {
		at := *item.PaidAt
		item.PaidAt = &at
	}
	if item.RefundedAt != nil {
		at := *item.RefundedAt
		item.RefundedAt = &at
	}
	return item
}

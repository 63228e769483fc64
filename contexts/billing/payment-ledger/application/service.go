package application

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"adreel/contexts/billing/payment-ledger/domain/entities"
	domainerrors "adreel/contexts/billing/payment-ledger/domain/errors"
	"adreel/contexts/billing/payment-ledger/ports"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	campaignDraft   = "DRAFT"

	// idempotencyClaimTTL bounds how long a crashed request can hold its key.
	idempotencyClaimTTL = 2 * time.Minute
)

type Service struct {
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

type CheckoutResult struct {
	SessionID   string             `json:"session_id"`
	CheckoutURL string             `json:"checkout_url"`
	Payments    []entities.Payment `json:"payments"`
	AmountCents int64              `json:"amount_cents"`
	VATCents    int64              `json:"vat_cents"`
	TotalCents  int64              `json:"total_cents"`
}

// CreateCheckout validates the campaigns, opens a hosted checkout session and
// records one PENDING payment per campaign. An idempotency key, when given,
// replays the first result instead of opening a second session.
func (s Service) CreateCheckout(
	ctx context.Context,
	idempotencyKey string,
	userID string,
	campaignIDs []string,
) (CheckoutResult, error) {
	var out CheckoutResult
	userID = strings.TrimSpace(userID)
	ids, err := normalizeCampaignIDs(campaignIDs)
	if err != nil || userID == "" {
		return out, domainerrors.ErrInvalidCheckoutRequest
	}

	exec := func() ([]byte, error) {
		result, err := s.openCheckout(ctx, userID, ids, strings.TrimSpace(idempotencyKey))
		if err != nil {
			return nil, err
		}
		return json.Marshal(result)
	}
	decode := func(raw []byte) error { return json.Unmarshal(raw, &out) }

	key := strings.TrimSpace(idempotencyKey)
	if key == "" || s.Idempotency == nil {
		raw, err := exec()
		if err != nil {
			return out, err
		}
		return out, decode(raw)
	}
	err = s.runIdempotent(ctx, key, hashStrings("create_checkout", userID, strings.Join(ids, ",")), decode, exec)
	return out, err
}

func (s Service) openCheckout(ctx context.Context, userID string, campaignIDs []string, idempotencyKey string) (CheckoutResult, error) {
	lines := make([]ports.CheckoutLine, 0, len(campaignIDs))
	for _, campaignID := range campaignIDs {
		campaign, err := s.Campaigns.GetCampaign(ctx, campaignID)
		if err != nil {
			return CheckoutResult{}, err
		}
		if campaign.UserID != userID {
			return CheckoutResult{}, domainerrors.ErrCampaignForbidden
		}
		if campaign.Status != campaignDraft {
			return CheckoutResult{}, domainerrors.ErrCampaignNotPayable
		}
		paid, err := s.Payments.HasPaidPayment(ctx, campaignID)
		if err != nil {
			return CheckoutResult{}, err
		}
		if paid {
			return CheckoutResult{}, domainerrors.ErrCampaignNotPayable
		}
		lines = append(lines, ports.CheckoutLine{CampaignID: campaignID, Title: campaign.Title})
	}

	metadata := map[string]string{
		"user_id":      userID,
		"campaign_ids": strings.Join(campaignIDs, ","),
	}
	session, err := s.Checkout.OpenSession(ctx, ports.CheckoutRequest{
		UserID:            userID,
		Lines:             lines,
		UnitAmountCents:   s.UnitPriceCents,
		VATRate:           s.VATRate,
		Currency:          entities.DefaultCurrency,
		IdempotencyKey:    idempotencyKey,
		SuccessURL:        s.SuccessURL,
		CancelURL:         s.CancelURL,
		SessionMetadata:   metadata,
		PaymentIntentMeta: metadata,
	})
	if err != nil {
		ResolveLogger(s.Logger).Error("checkout session open failed",
			"event", "billing_checkout_open_failed",
			"module", "billing/payment-ledger",
			"layer", "application",
			"user_id", userID,
			"error", err.Error(),
		)
		return CheckoutResult{}, fmt.Errorf("%w: %v", domainerrors.ErrCheckoutUnavailable, err)
	}

	payments, err := s.CreateForCheckout(ctx, userID, session.SessionID, campaignIDs, s.UnitPriceCents, s.VATRate)
	if err != nil {
		return CheckoutResult{}, err
	}
	result := CheckoutResult{
		SessionID:   session.SessionID,
		CheckoutURL: session.CheckoutURL,
		Payments:    payments,
	}
	for _, payment := range payments {
		result.AmountCents += payment.AmountCents
		result.VATCents += payment.VATCents
		result.TotalCents += payment.TotalCents
	}
	return result, nil
}

// CreateForCheckout records one PENDING payment per campaign, all sharing
// the checkout session id.
func (s Service) CreateForCheckout(
	ctx context.Context,
	userID string,
	sessionID string,
	campaignIDs []string,
	unitPriceCents int64,
	vatRate float64,
) ([]entities.Payment, error) {
	userID = strings.TrimSpace(userID)
	sessionID = strings.TrimSpace(sessionID)
	ids, err := normalizeCampaignIDs(campaignIDs)
	if err != nil || userID == "" || sessionID == "" || unitPriceCents <= 0 || vatRate < 0 {
		return nil, domainerrors.ErrInvalidCheckoutRequest
	}

	now := s.now()
	amounts := entities.ComputeAmounts(unitPriceCents, vatRate)
	payments := make([]entities.Payment, 0, len(ids))
	for _, campaignID := range ids {
		paymentID, err := s.IDGenerator.NewID(ctx)
		if err != nil {
			return nil, err
		}
		payments = append(payments, entities.Payment{
			PaymentID:       paymentID,
			UserID:          userID,
			CampaignID:      campaignID,
			AmountCents:     amounts.AmountCents,
			VATRate:         vatRate,
			VATCents:        amounts.VATCents,
			TotalCents:      amounts.TotalCents,
			Currency:        entities.DefaultCurrency,
			Status:          entities.PaymentStatusPending,
			StripeSessionID: sessionID,
			CreatedAt:       now,
			UpdatedAt:       now,
		})
	}
	if err := s.Payments.CreatePayments(ctx, payments); err != nil {
		return nil, err
	}

	ResolveLogger(s.Logger).Info("checkout payments recorded",
		"event", "billing_checkout_payments_recorded",
		"module", "billing/payment-ledger",
		"layer", "application",
		"user_id", userID,
		"session_id", sessionID,
		"campaign_count", len(payments),
		"total_cents", amounts.TotalCents*int64(len(payments)),
	)
	return payments, nil
}

// MarkPaidBySession confirms every PENDING or FAILED payment of the session.
// Rows already PAID or REFUNDED are left as they are.
func (s Service) MarkPaidBySession(ctx context.Context, userID string, sessionID string, intentID string) ([]entities.Payment, error) {
	sessionID = strings.TrimSpace(sessionID)
	userID = strings.TrimSpace(userID)
	if sessionID == "" {
		return nil, domainerrors.ErrInvalidCheckoutRequest
	}

	changed, err := s.Payments.MarkSessionPaid(ctx, sessionID, userID, strings.TrimSpace(intentID), s.now())
	if err != nil {
		return nil, err
	}
	payments, err := s.Payments.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if userID != "" {
		payments = filterByUser(payments, userID)
	}
	if len(payments) == 0 {
		return nil, domainerrors.ErrPaymentNotFound
	}

	ResolveLogger(s.Logger).Info("session payments confirmed",
		"event", "billing_session_marked_paid",
		"module", "billing/payment-ledger",
		"layer", "application",
		"session_id", sessionID,
		"intent_id", intentID,
		"changed_count", changed,
	)
	return payments, nil
}

// MarkPaidByIntent confirms the payments bound to the intent. When none are
// bound yet, the hint binds the newest PENDING payment of each campaign.
func (s Service) MarkPaidByIntent(ctx context.Context, intentID string, hint entities.PaymentHint) ([]entities.Payment, error) {
	intentID = strings.TrimSpace(intentID)
	if intentID == "" {
		return nil, domainerrors.ErrInvalidCheckoutRequest
	}
	now := s.now()

	bound, err := s.Payments.ListByIntent(ctx, intentID)
	if err != nil {
		return nil, err
	}
	changed := 0
	if len(bound) > 0 {
		changed, err = s.Payments.MarkIntentPaid(ctx, intentID, now)
		if err != nil {
			return nil, err
		}
	} else if hint.Present() {
		changed, err = s.bindHinted(ctx, intentID, hint, entities.PaymentStatusPaid, "", now)
		if err != nil {
			return nil, err
		}
	}

	payments, err := s.Payments.ListByIntent(ctx, intentID)
	if err != nil {
		return nil, err
	}
	ResolveLogger(s.Logger).Info("intent payments confirmed",
		"event", "billing_intent_marked_paid",
		"module", "billing/payment-ledger",
		"layer", "application",
		"intent_id", intentID,
		"changed_count", changed,
		"matched_count", len(payments),
	)
	return payments, nil
}

// MarkFailed moves PENDING payments of the intent to FAILED. A PAID payment
// is never downgraded.
func (s Service) MarkFailed(ctx context.Context, intentID string, reason string, hint entities.PaymentHint) ([]entities.Payment, error) {
	intentID = strings.TrimSpace(intentID)
	if intentID == "" {
		return nil, domainerrors.ErrInvalidCheckoutRequest
	}
	now := s.now()
	reason = strings.TrimSpace(reason)

	bound, err := s.Payments.ListByIntent(ctx, intentID)
	if err != nil {
		return nil, err
	}
	changed := 0
	if len(bound) > 0 {
		changed, err = s.Payments.MarkIntentFailed(ctx, intentID, reason, now)
		if err != nil {
			return nil, err
		}
	} else if hint.Present() {
		changed, err = s.bindHinted(ctx, intentID, hint, entities.PaymentStatusFailed, reason, now)
		if err != nil {
			return nil, err
		}
	}

	payments, err := s.Payments.ListByIntent(ctx, intentID)
	if err != nil {
		return nil, err
	}
	ResolveLogger(s.Logger).Warn("intent payments failed",
		"event", "billing_intent_marked_failed",
		"module", "billing/payment-ledger",
		"layer", "application",
		"intent_id", intentID,
		"reason", reason,
		"changed_count", changed,
	)
	return payments, nil
}

func (s Service) AttachInvoice(ctx context.Context, intentID string, invoiceNumber string, invoiceURL string) (int, error) {
	intentID = strings.TrimSpace(intentID)
	if intentID == "" {
		return 0, domainerrors.ErrInvalidCheckoutRequest
	}
	changed, err := s.Payments.AttachInvoice(ctx, intentID, strings.TrimSpace(invoiceNumber), strings.TrimSpace(invoiceURL), s.now())
	if err != nil {
		return 0, err
	}
	ResolveLogger(s.Logger).Info("invoice attached",
		"event", "billing_invoice_attached",
		"module", "billing/payment-ledger",
		"layer", "application",
		"intent_id", intentID,
		"invoice_number", invoiceNumber,
		"changed_count", changed,
	)
	return changed, nil
}

// Refund moves a PAID payment to REFUNDED, then hands the campaign to the
// settlement port so a campaign left without a PAID payment stops running.
// A settlement failure is returned with the refunded payment.
func (s Service) Refund(ctx context.Context, actorID string, paymentID string) (entities.Payment, error) {
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return entities.Payment{}, domainerrors.ErrInvalidCheckoutRequest
	}
	current, err := s.Payments.GetPayment(ctx, paymentID)
	if err != nil {
		return entities.Payment{}, err
	}
	if current.Status != entities.PaymentStatusPaid {
		return entities.Payment{}, domainerrors.ErrInvalidPaymentState
	}

	now := s.now()
	refunded, err := s.Payments.MarkRefunded(ctx, paymentID, now)
	if err != nil {
		return entities.Payment{}, err
	}
	if !refunded {
		return entities.Payment{}, domainerrors.ErrInvalidPaymentState
	}
	current.Status = entities.PaymentStatusRefunded
	current.RefundedAt = &now
	current.UpdatedAt = now

	s.emitAudit(ctx, "REFUND", current, strings.TrimSpace(actorID), entities.PaymentStatusPaid, now)
	logger := ResolveLogger(s.Logger)
	logger.Info("payment refunded",
		"event", "billing_payment_refunded",
		"module", "billing/payment-ledger",
		"layer", "application",
		"payment_id", paymentID,
		"campaign_id", current.CampaignID,
		"actor_id", actorID,
	)

	if s.Settlement == nil {
		return current, nil
	}
	withdrawn, err := s.Settlement.PaymentRevoked(ctx, current.CampaignID)
	if err != nil {
		logger.Error("campaign withdrawal after refund failed",
			"event", "billing_refund_settlement_failed",
			"module", "billing/payment-ledger",
			"layer", "application",
			"payment_id", paymentID,
			"campaign_id", current.CampaignID,
			"error", err.Error(),
		)
		return current, fmt.Errorf("%w: %v", domainerrors.ErrSettlementFailed, err)
	}
	if withdrawn {
		logger.Info("campaign withdrawn after refund",
			"event", "billing_refund_campaign_withdrawn",
			"module", "billing/payment-ledger",
			"layer", "application",
			"payment_id", paymentID,
			"campaign_id", current.CampaignID,
		)
	}
	return current, nil
}

func (s Service) StatsForUser(ctx context.Context, userID string) (entities.Stats, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return entities.Stats{}, domainerrors.ErrInvalidListFilter
	}
	page, err := s.Payments.ListPayments(ctx, ports.PaymentFilter{UserID: userID})
	if err != nil {
		return entities.Stats{}, err
	}
	return entities.ComputeStats(page.Items, s.now()), nil
}

type ListPaymentsQuery struct {
	UserID string
	Status string
	Page   int
	Limit  int
}

type ListPaymentsResult struct {
	Items []entities.Payment
	Page  int
	Limit int
	Total int
	Pages int
}

func (s Service) ListPayments(ctx context.Context, query ListPaymentsQuery) (ListPaymentsResult, error) {
	filter := ports.PaymentFilter{UserID: strings.TrimSpace(query.UserID)}
	if filter.UserID == "" {
		return ListPaymentsResult{}, domainerrors.ErrInvalidListFilter
	}
	if raw := strings.TrimSpace(query.Status); raw != "" {
		status, ok := entities.ParsePaymentStatus(raw)
		if !ok {
			return ListPaymentsResult{}, domainerrors.ErrInvalidListFilter
		}
		filter.Status = status
	}
	page := query.Page
	if page < 1 {
		page = 1
	}
	limit := query.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	filter.Offset = (page - 1) * limit
	filter.Limit = limit

	result, err := s.Payments.ListPayments(ctx, filter)
	if err != nil {
		return ListPaymentsResult{}, err
	}
	return ListPaymentsResult{
		Items: result.Items,
		Page:  page,
		Limit: limit,
		Total: result.Total,
		Pages: (result.Total + limit - 1) / limit,
	}, nil
}

type Invoice struct {
	PaymentID     string
	InvoiceNumber string
	InvoiceURL    string
	TotalCents    int64
	Currency      string
	PaidAt        *time.Time
}

// InvoiceFor returns invoice data for a PAID payment. The number falls back to
// the derived form while the processor has not finalized its own invoice.
func (s Service) InvoiceFor(ctx context.Context, userID string, paymentID string) (Invoice, error) {
	payment, err := s.Payments.GetPayment(ctx, strings.TrimSpace(paymentID))
	if err != nil {
		return Invoice{}, err
	}
	if user := strings.TrimSpace(userID); user != "" && payment.UserID != user {
		return Invoice{}, domainerrors.ErrPaymentForbidden
	}
	if payment.Status != entities.PaymentStatusPaid {
		return Invoice{}, domainerrors.ErrInvoiceUnavailable
	}
	return Invoice{
		PaymentID:     payment.PaymentID,
		InvoiceNumber: payment.DerivedInvoiceNumber(),
		InvoiceURL:    payment.InvoiceURL,
		TotalCents:    payment.TotalCents,
		Currency:      payment.Currency,
		PaidAt:        payment.PaidAt,
	}, nil
}

func (s Service) HasPaidPayment(ctx context.Context, campaignID string) (bool, error) {
	return s.Payments.HasPaidPayment(ctx, strings.TrimSpace(campaignID))
}

func (s Service) bindHinted(
	ctx context.Context,
	intentID string,
	hint entities.PaymentHint,
	status entities.PaymentStatus,
	reason string,
	now time.Time,
) (int, error) {
	changed := 0
	for _, campaignID := range hint.CampaignIDs {
		campaignID = strings.TrimSpace(campaignID)
		if campaignID == "" {
			continue
		}
		pending, found, err := s.Payments.LatestPending(ctx, strings.TrimSpace(hint.UserID), campaignID)
		if err != nil {
			return changed, err
		}
		if !found {
			continue
		}
		bound, err := s.Payments.BindIntent(ctx, pending.PaymentID, intentID, status, reason, now)
		if err != nil {
			return changed, err
		}
		if bound {
			changed++
		}
	}
	return changed, nil
}

func (s Service) now() time.Time {
	if s.Clock == nil {
		return time.Now().UTC()
	}
	return s.Clock.Now().UTC()
}

func (s Service) idempotencyTTL() time.Duration {
	if s.IdempotencyTTL <= 0 {
		return 24 * time.Hour
	}
	return s.IdempotencyTTL
}

// runIdempotent claims the key before exec runs. A concurrent caller with
// the same key gets ErrIdempotencyInFlight until the first one completes.
func (s Service) runIdempotent(
	ctx context.Context,
	key string,
	requestHash string,
	decode func([]byte) error,
	exec func() ([]byte, error),
) error {
	now := s.now()
	existing, reserved, err := s.Idempotency.Reserve(ctx, ports.IdempotencyRecord{
		Key:         key,
		RequestHash: requestHash,
		ExpiresAt:   now.Add(idempotencyClaimTTL),
	}, now)
	if err != nil {
		return err
	}
	if !reserved {
		if existing.RequestHash != requestHash {
			return domainerrors.ErrIdempotencyConflict
		}
		if len(existing.Payload) == 0 {
			return domainerrors.ErrIdempotencyInFlight
		}
		return decode(existing.Payload)
	}

	payload, err := exec()
	if err != nil {
		if releaseErr := s.Idempotency.Release(ctx, key); releaseErr != nil {
			ResolveLogger(s.Logger).Warn("idempotency claim release failed",
				"event", "billing_idempotency_release_failed",
				"module", "billing/payment-ledger",
				"layer", "application",
				"idempotency_key", key,
				"error", releaseErr.Error(),
			)
		}
		return err
	}
	if err := s.Idempotency.Complete(ctx, ports.IdempotencyRecord{
		Key:         key,
		RequestHash: requestHash,
		Payload:     payload,
		ExpiresAt:   now.Add(s.idempotencyTTL()),
	}); err != nil {
		return err
	}
	return decode(payload)
}

func normalizeCampaignIDs(values []string) ([]string, error) {
	if len(values) == 0 {
		return nil, domainerrors.ErrInvalidCheckoutRequest
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		id := strings.TrimSpace(value)
		if id == "" {
			return nil, domainerrors.ErrInvalidCheckoutRequest
		}
		if _, dup := seen[id]; dup {
			return nil, domainerrors.ErrInvalidCheckoutRequest
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}

func filterByUser(payments []entities.Payment, userID string) []entities.Payment {
	out := payments[:0]
	for _, payment := range payments {
		if payment.UserID == userID {
			out = append(out, payment)
		}
	}
	return out
}

func hashStrings(values ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(values, "|")))
	return hex.EncodeToString(sum[:])
}

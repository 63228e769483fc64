package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"adreel/contexts/billing/webhook-reconciler/adapters/memory"
	domainerrors "adreel/contexts/billing/webhook-reconciler/domain/errors"
	"adreel/contexts/billing/webhook-reconciler/domain/events"
	"adreel/contexts/billing/webhook-reconciler/ports"
)

func TestCheckoutCompletedMarksPaidAndQueuesOnce(t *testing.T) {
	ledger := &fakeLedger{sessionPayments: []ports.PaymentRef{
		{PaymentID: "pay-1", CampaignID: "camp-1", Status: "PAID"},
		{PaymentID: "pay-2", CampaignID: "camp-2", Status: "PAID"},
	}}
	queue := &fakeQueue{}
	uc := newReconcile(ledger, queue)
	event := checkoutEvent("evt_1", true)

	result, err := uc.Execute(context.Background(), event)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if result.Outcome != OutcomeApplied || len(result.QueuedCampaigns) != 2 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if ledger.sessionCalls != 1 || len(queue.calls) != 2 {
		t.Fatalf("expected one ledger call and two queue calls, got %d and %d", ledger.sessionCalls, len(queue.calls))
	}

	replay, err := uc.Execute(context.Background(), event)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if replay.Outcome != OutcomeDuplicate {
		t.Fatalf("expected duplicate outcome, got %s", replay.Outcome)
	}
	if ledger.sessionCalls != 1 || len(queue.calls) != 2 {
		t.Fatal("expected replay to leave ledger and campaigns untouched")
	}
}

func TestCheckoutAwaitingPaymentIsAcknowledged(t *testing.T) {
	ledger := &fakeLedger{}
	uc := newReconcile(ledger, &fakeQueue{})

	result, err := uc.Execute(context.Background(), checkoutEvent("evt_async", false))
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if result.Outcome != OutcomeIgnored || ledger.sessionCalls != 0 {
		t.Fatalf("expected ignored without ledger call, got %+v calls=%d", result, ledger.sessionCalls)
	}
}

func TestFailedStepIsNotRecordedSoRedeliveryRetries(t *testing.T) {
	ledger := &fakeLedger{sessionErr: errors.New("database unavailable")}
	queue := &fakeQueue{}
	uc := newReconcile(ledger, queue)
	event := checkoutEvent("evt_retry", true)

	result, err := uc.Execute(context.Background(), event)
	if err == nil {
		t.Fatal("expected failure to be returned")
	}
	if result.Outcome != OutcomeFailed {
		t.Fatalf("expected failed outcome, got %s", result.Outcome)
	}

	ledger.sessionErr = nil
	ledger.sessionPayments = []ports.PaymentRef{{PaymentID: "pay-1", CampaignID: "camp-1", Status: "PAID"}}
	result, err = uc.Execute(context.Background(), event)
	if err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if result.Outcome != OutcomeApplied || len(queue.calls) != 1 {
		t.Fatalf("expected redelivery to apply, got %+v", result)
	}
}

func TestMissingCampaignIsSkipped(t *testing.T) {
	ledger := &fakeLedger{sessionPayments: []ports.PaymentRef{
		{PaymentID: "pay-1", CampaignID: "camp-gone", Status: "PAID"},
		{PaymentID: "pay-2", CampaignID: "camp-2", Status: "PAID"},
	}}
	queue := &fakeQueue{missing: map[string]bool{"camp-gone": true}}
	uc := newReconcile(ledger, queue)

	result, err := uc.Execute(context.Background(), checkoutEvent("evt_gone", true))
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(result.QueuedCampaigns) != 1 || result.QueuedCampaigns[0] != "camp-2" {
		t.Fatalf("expected only camp-2 queued, got %v", result.QueuedCampaigns)
	}
}

func TestAlreadyQueuedCampaignIsNotReported(t *testing.T) {
	ledger := &fakeLedger{sessionPayments: []ports.PaymentRef{{PaymentID: "pay-1", CampaignID: "camp-1", Status: "PAID"}}}
	queue := &fakeQueue{alreadyQueued: map[string]bool{"camp-1": true}}
	uc := newReconcile(ledger, queue)

	result, err := uc.Execute(context.Background(), checkoutEvent("evt_launched", true))
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(result.QueuedCampaigns) != 0 || len(queue.calls) != 1 {
		t.Fatalf("expected queue attempt without transition, got %+v", result)
	}
}

func TestPaymentEventsPassHints(t *testing.T) {
	ledger := &fakeLedger{}
	uc := newReconcile(ledger, &fakeQueue{})
	ctx := context.Background()

	_, err := uc.Execute(ctx, events.PaymentFailed{
		Meta:        events.Meta{EventID: "evt_f", Type: events.TypePaymentIntentFailed},
		IntentID:    "pi_1",
		UserID:      "user-1",
		CampaignIDs: []string{"camp-1"},
		Reason:      "card_declined",
	})
	if err != nil {
		t.Fatalf("failed event: %v", err)
	}
	_, err = uc.Execute(ctx, events.PaymentSucceeded{
		Meta:        events.Meta{EventID: "evt_s", Type: events.TypePaymentIntentSucceeded},
		IntentID:    "pi_1",
		UserID:      "user-1",
		CampaignIDs: []string{"camp-1"},
	})
	if err != nil {
		t.Fatalf("succeeded event: %v", err)
	}
	if ledger.failedReason != "card_declined" || ledger.failedHint.UserID != "user-1" {
		t.Fatalf("unexpected failure call: reason=%q hint=%+v", ledger.failedReason, ledger.failedHint)
	}
	if ledger.intentPaid != "pi_1" || len(ledger.paidHint.CampaignIDs) != 1 {
		t.Fatalf("unexpected paid call: intent=%q hint=%+v", ledger.intentPaid, ledger.paidHint)
	}
}

func TestInvoiceWithoutIntentAndUnknownTypesAreAcknowledged(t *testing.T) {
	ledger := &fakeLedger{}
	uc := newReconcile(ledger, &fakeQueue{})
	ctx := context.Background()

	result, err := uc.Execute(ctx, events.InvoiceFinalized{
		Meta:      events.Meta{EventID: "evt_inv", Type: events.TypeInvoiceFinalized},
		InvoiceID: "in_1",
	})
	if err != nil || result.Outcome != OutcomeIgnored {
		t.Fatalf("expected ignored invoice, got %+v err=%v", result, err)
	}
	if ledger.invoiceCalls != 0 {
		t.Fatal("expected no invoice attach without intent")
	}

	result, err = uc.Execute(ctx, events.Unknown{Meta: events.Meta{EventID: "evt_other", Type: "customer.created"}})
	if err != nil || result.Outcome != OutcomeIgnored {
		t.Fatalf("expected ignored unknown event, got %+v err=%v", result, err)
	}
}

func TestHandleDeliveryCountsSignatureFailures(t *testing.T) {
	metrics := &fakeMetrics{}
	uc := newReconcile(&fakeLedger{}, &fakeQueue{})
	uc.Decoder = failingDecoder{err: domainerrors.ErrInvalidSignature}
	uc.Metrics = metrics

	result, err := uc.HandleDelivery(context.Background(), []byte(`{}`), "t=1,v1=bad")
	if !errors.Is(err, domainerrors.ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
	if result.Outcome != OutcomeRejected || metrics.signatureFailures != 1 {
		t.Fatalf("expected rejection to be counted, got %+v failures=%d", result, metrics.signatureFailures)
	}
}

func newReconcile(ledger *fakeLedger, queue *fakeQueue) ReconcileEventUseCase {
	dedup := memory.NewDedupStore()
	return ReconcileEventUseCase{
		Ledger:    ledger,
		Campaigns: queue,
		Dedup:     dedup,
		Clock:     dedup,
		DedupTTL:  time.Hour,
	}
}

func checkoutEvent(id string, paid bool) events.CheckoutCompleted {
	return events.CheckoutCompleted{
		Meta:        events.Meta{EventID: id, Type: events.TypeCheckoutCompleted},
		SessionID:   "cs_1",
		IntentID:    "pi_1",
		UserID:      "user-1",
		CampaignIDs: []string{"camp-1", "camp-2"},
		Paid:        paid,
	}
}

type fakeLedger struct {
	sessionPayments []ports.PaymentRef
	sessionErr      error
	sessionCalls    int
	intentPaid      string
	paidHint        ports.PaymentHint
	failedReason    string
	failedHint      ports.PaymentHint
	invoiceCalls    int
}

func (l *fakeLedger) MarkPaidBySession(_ context.Context, _ string, _ string, _ string) ([]ports.PaymentRef, error) {
	if l.sessionErr != nil {
		return nil, l.sessionErr
	}
	l.sessionCalls++
	return l.sessionPayments, nil
}

func (l *fakeLedger) MarkPaidByIntent(_ context.Context, intentID string, hint ports.PaymentHint) ([]ports.PaymentRef, error) {
	l.intentPaid = intentID
	l.paidHint = hint
	return nil, nil
}

func (l *fakeLedger) MarkFailed(_ context.Context, _ string, reason string, hint ports.PaymentHint) ([]ports.PaymentRef, error) {
	l.failedReason = reason
	l.failedHint = hint
	return nil, nil
}

func (l *fakeLedger) AttachInvoice(_ context.Context, _ string, _ string, _ string) (int, error) {
	l.invoiceCalls++
	return 1, nil
}

type fakeQueue struct {
	calls         []string
	missing       map[string]bool
	alreadyQueued map[string]bool
}

func (q *fakeQueue) QueuePaid(_ context.Context, campaignID string) (bool, error) {
	q.calls = append(q.calls, campaignID)
	if q.missing[campaignID] {
		return false, domainerrors.ErrCampaignNotFound
	}
	return !q.alreadyQueued[campaignID], nil
}

type fakeMetrics struct {
	signatureFailures int
}

func (m *fakeMetrics) ObserveEvent(string, string, time.Duration) {}
func (m *fakeMetrics) SignatureFailure()                          { m.signatureFailures++ }

type failingDecoder struct {
	err error
}

func (d failingDecoder) Decode([]byte, string) (events.Event, error) {
	return nil, d.err
}

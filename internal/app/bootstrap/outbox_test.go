package bootstrap

import (
	"context"
	"testing"
	"time"

	paymentmemory "adreel/contexts/billing/payment-ledger/adapters/memory"
	campaignmemory "adreel/contexts/campaign-lifecycle/campaign-service/adapters/memory"
	contractsv1 "adreel/contracts/gen/events/v1"
	"adreel/internal/platform/messaging"
)

func TestOutboxRelaysShipEachContextOnce(t *testing.T) {
	ctx := context.Background()
	occurred := time.Date(2026, time.March, 4, 8, 0, 0, 0, time.UTC)
	campaigns := campaignmemory.NewStore(nil)
	payments := paymentmemory.NewStore(nil)
	if err := campaigns.AppendOutbox(ctx, contractsv1.Envelope{
		EventID:      "evt-campaign",
		EventType:    "campaign.audit",
		OccurredAt:   occurred,
		PartitionKey: "camp-1",
	}); err != nil {
		t.Fatalf("append campaign outbox: %v", err)
	}
	if err := payments.AppendOutbox(ctx, contractsv1.Envelope{
		EventID:      "evt-billing",
		EventType:    "billing.audit",
		OccurredAt:   occurred,
		PartitionKey: "pay-1",
	}); err != nil {
		t.Fatalf("append billing outbox: %v", err)
	}

	bus := messaging.NewMemoryBus(nil)
	relays := outboxRelays(&Backends{Campaigns: campaigns, Payments: payments}, bus, "adreel.", nil)
	for run := 0; run < 2; run++ {
		for _, relay := range relays {
			if _, err := relay.RunOnce(ctx); err != nil {
				t.Fatalf("%s relay run %d: %v", relay.Name, run, err)
			}
		}
	}

	want := map[string]string{
		"adreel.campaign.audit": "camp-1",
		"adreel.billing.audit":  "pay-1",
	}
	published := bus.Published()
	if len(published) != len(want) {
		t.Fatalf("expected %d publishes across runs, got %+v", len(want), published)
	}
	for _, item := range published {
		if key, ok := want[item.Topic]; !ok || item.Event.PartitionKey != key {
			t.Fatalf("unexpected publish %s keyed %s", item.Topic, item.Event.PartitionKey)
		}
	}
}

package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	contractsv1 "adreel/contracts/gen/events/v1"
)

func TestOutboxRelayRoutesAndKeysEnvelopes(t *testing.T) {
	tests := []struct {
		name      string
		row       OutboxMessage
		envelope  contractsv1.Envelope
		topics    TopicRouter
		wantTopic string
		wantKey   string
	}{
		{
			name:      "prefix plus event type",
			row:       OutboxMessage{OutboxID: "o-1", EventType: "campaign.audit", PartitionKey: "camp-1"},
			envelope:  contractsv1.Envelope{EventID: "evt-1", EventType: "campaign.audit", PartitionKey: "camp-1"},
			topics:    PrefixTopics("adreel.", nil),
			wantTopic: "adreel.campaign.audit",
			wantKey:   "camp-1",
		},
		{
			name:      "override wins",
			row:       OutboxMessage{OutboxID: "o-2", EventType: "billing.audit", PartitionKey: "pay-1"},
			envelope:  contractsv1.Envelope{EventID: "evt-2", EventType: "billing.audit", PartitionKey: "pay-1"},
			topics:    PrefixTopics("adreel.", map[string]string{"billing.audit": "finance.audit"}),
			wantTopic: "finance.audit",
			wantKey:   "pay-1",
		},
		{
			name:      "row columns fill a bare envelope",
			row:       OutboxMessage{OutboxID: "o-3", EventType: "campaign.audit", PartitionKey: "camp-3"},
			envelope:  contractsv1.Envelope{EventID: "evt-3"},
			topics:    PrefixTopics("", nil),
			wantTopic: "campaign.audit",
			wantKey:   "camp-3",
		},
		{
			name:      "event id keys an unkeyed envelope",
			row:       OutboxMessage{OutboxID: "o-4", EventType: "campaign.audit"},
			envelope:  contractsv1.Envelope{EventID: "evt-4", EventType: "campaign.audit"},
			wantTopic: "campaign.audit",
			wantKey:   "evt-4",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := newStubOutbox(t, outboxRow{message: tt.row, envelope: tt.envelope})
			bus := NewMemoryBus(nil)
			relay := OutboxRelay{Name: "test", Source: source, Publisher: bus, Topics: tt.topics}

			shipped, err := relay.RunOnce(context.Background())
			if err != nil {
				t.Fatalf("run once: %v", err)
			}
			if shipped != 1 {
				t.Fatalf("expected one row shipped, got %d", shipped)
			}
			published := bus.Published()
			if len(published) != 1 {
				t.Fatalf("expected one publish, got %d", len(published))
			}
			if published[0].Topic != tt.wantTopic || published[0].Event.PartitionKey != tt.wantKey {
				t.Fatalf("expected %s keyed %s, got %s keyed %s", tt.wantTopic, tt.wantKey, published[0].Topic, published[0].Event.PartitionKey)
			}
		})
	}
}

func TestOutboxRelayStopsAtFailedPublish(t *testing.T) {
	source := newStubOutbox(t,
		outboxRow{message: OutboxMessage{OutboxID: "o-1", EventType: "campaign.audit"}, envelope: contractsv1.Envelope{EventID: "evt-1", EventType: "campaign.audit"}},
		outboxRow{message: OutboxMessage{OutboxID: "o-2", EventType: "campaign.audit"}, envelope: contractsv1.Envelope{EventID: "evt-2", EventType: "campaign.audit"}},
	)
	publisher := &flakyPublisher{failOn: "evt-2"}
	clock := fixedClock{now: time.Date(2026, time.March, 4, 8, 0, 0, 0, time.UTC)}
	relay := OutboxRelay{Name: "test", Source: source, Publisher: publisher, Clock: clock}

	shipped, err := relay.RunOnce(context.Background())
	if err == nil || shipped != 1 {
		t.Fatalf("expected one shipped row and an error, got %d %v", shipped, err)
	}
	if source.pendingIDs()[0] != "o-2" || len(source.pendingIDs()) != 1 {
		t.Fatalf("expected o-2 to stay pending, got %v", source.pendingIDs())
	}
	if at := source.publishedAt["o-1"]; !at.Equal(clock.now) {
		t.Fatalf("expected o-1 marked at %s, got %s", clock.now, at)
	}

	publisher.failOn = ""
	if shipped, err := relay.RunOnce(context.Background()); err != nil || shipped != 1 {
		t.Fatalf("expected the retry to ship o-2, got %d %v", shipped, err)
	}
	if shipped, err := relay.RunOnce(context.Background()); err != nil || shipped != 0 {
		t.Fatalf("expected nothing left, got %d %v", shipped, err)
	}
	if len(publisher.events) != 2 {
		t.Fatalf("expected each envelope published once, got %v", publisher.events)
	}
}

type outboxRow struct {
	message  OutboxMessage
	envelope contractsv1.Envelope
}

type stubOutbox struct {
	mu          sync.Mutex
	rows        []OutboxMessage
	publishedAt map[string]time.Time
}

func newStubOutbox(t *testing.T, rows ...outboxRow) *stubOutbox {
	t.Helper()
	stub := &stubOutbox{publishedAt: map[string]time.Time{}}
	for _, row := range rows {
		payload, err := json.Marshal(row.envelope)
		if err != nil {
			t.Fatalf("marshal envelope: %v", err)
		}
		message := row.message
		message.Payload = payload
		stub.rows = append(stub.rows, message)
	}
	return stub
}

func (s *stubOutbox) ListPending(_ context.Context, limit int) ([]OutboxMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]OutboxMessage, 0, len(s.rows))
	for _, row := range s.rows {
		if _, done := s.publishedAt[row.OutboxID]; done {
			continue
		}
		out = append(out, row)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *stubOutbox) MarkPublished(_ context.Context, outboxID string, publishedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publishedAt[outboxID] = publishedAt
	return nil
}

func (s *stubOutbox) pendingIDs() []string {
	pending, _ := s.ListPending(context.Background(), 100)
	ids := make([]string, 0, len(pending))
	for _, row := range pending {
		ids = append(ids, row.OutboxID)
	}
	return ids
}

type flakyPublisher struct {
	failOn string
	events []string
}

func (p *flakyPublisher) Publish(_ context.Context, _ string, event contractsv1.Envelope) error {
	if event.EventID == p.failOn {
		return errors.New("broker unavailable")
	}
	p.events = append(p.events, event.EventID)
	return nil
}

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

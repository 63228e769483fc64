package redisadapter

import (
	"context"
	"testing"
	"time"

	"adreel/contexts/billing/webhook-reconciler/ports"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
)

func newDedupStore(t *testing.T) (*DedupStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewDedupStore(client, ""), mr
}

func TestMarkProcessedThenIsProcessed(t *testing.T) {
	store, _ := newDedupStore(t)
	ctx := context.Background()

	processed, err := store.IsProcessed(ctx, "evt_1")
	if err != nil {
		t.Fatalf("IsProcessed: %v", err)
	}
	if processed {
		t.Fatal("expected fresh event to be unprocessed")
	}

	now := time.Now().UTC()
	if err := store.MarkProcessed(ctx, ports.ProcessedEvent{
		EventID:     "evt_1",
		EventType:   "checkout.session.completed",
		ProcessedAt: now,
		ExpiresAt:   now.Add(time.Hour),
	}); err != nil {
		t.Fatalf("MarkProcessed: %v", err)
	}

	processed, err = store.IsProcessed(ctx, "evt_1")
	if err != nil {
		t.Fatalf("IsProcessed: %v", err)
	}
	if !processed {
		t.Fatal("expected event to be processed")
	}
}

func TestProcessedEventExpires(t *testing.T) {
	store, mr := newDedupStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	if err := store.MarkProcessed(ctx, ports.ProcessedEvent{EventID: "evt_2", ProcessedAt: now, ExpiresAt: now.Add(time.Minute)}); err != nil {
		t.Fatalf("MarkProcessed: %v", err)
	}
	if ttl := mr.TTL("webhook:processed:evt_2"); ttl <= 0 {
		t.Fatalf("expected key ttl to be set, got %v", ttl)
	}

	mr.FastForward(2 * time.Minute)
	processed, err := store.IsProcessed(ctx, "evt_2")
	if err != nil {
		t.Fatalf("IsProcessed: %v", err)
	}
	if processed {
		t.Fatal("expected expired event to be unprocessed")
	}
}

func TestDedupRedisUnavailable(t *testing.T) {
	store, mr := newDedupStore(t)
	mr.Close()

	if _, err := store.IsProcessed(context.Background(), "evt_3"); err == nil {
		t.Fatal("expected IsProcessed to fail when redis is unavailable")
	}
}

func TestClaimIsExclusiveUntilReleased(t *testing.T) {
	store, mr := newDedupStore(t)
	ctx := context.Background()
	until := time.Now().UTC().Add(time.Minute)

	first, err := store.Claim(ctx, "evt_4", until)
	if err != nil || !first {
		t.Fatalf("expected first claim to win, got %v err=%v", first, err)
	}
	second, err := store.Claim(ctx, "evt_4", until)
	if err != nil || second {
		t.Fatalf("expected second claim to lose, got %v err=%v", second, err)
	}
	if ttl := mr.TTL("webhook:claim:evt_4"); ttl <= 0 {
		t.Fatalf("expected claim ttl to be set, got %v", ttl)
	}

	if err := store.Release(ctx, "evt_4"); err != nil {
		t.Fatalf("Release: %v", err)
	}
	again, err := store.Claim(ctx, "evt_4", until)
	if err != nil || !again {
		t.Fatalf("expected claim after release to win, got %v err=%v", again, err)
	}

	now := time.Now().UTC()
	if err := store.MarkProcessed(ctx, ports.ProcessedEvent{EventID: "evt_5", ProcessedAt: now, ExpiresAt: now.Add(time.Hour)}); err != nil {
		t.Fatalf("MarkProcessed: %v", err)
	}
	processed, err := store.Claim(ctx, "evt_5", until)
	if err != nil || processed {
		t.Fatalf("expected a processed event to refuse claims, got %v err=%v", processed, err)
	}
}

package redisadapter

import (
	"context"
	"errors"
	"strings"
	"time"

	"adreel/contexts/billing/webhook-reconciler/ports"

	goredis "github.com/redis/go-redis/v9"
)

const (
	defaultKeyPrefix = "webhook:processed:"
	claimKeyPrefix   = "webhook:claim:"
)

// DedupStore records processed event ids as keys that expire with the
// retention window. It is shared across API replicas.
type DedupStore struct {
	client goredis.UniversalClient
	prefix string
	now    func() time.Time
}

func NewDedupStore(client goredis.UniversalClient, prefix string) *DedupStore {
	if strings.TrimSpace(prefix) == "" {
		prefix = defaultKeyPrefix
	}
	return &DedupStore{client: client, prefix: prefix, now: func() time.Time { return time.Now().UTC() }}
}

func (s *DedupStore) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(eventID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Claim takes the lease with SET NX, so only one replica holds it. A
// processed event cannot be claimed again.
func (s *DedupStore) Claim(ctx context.Context, eventID string, until time.Time) (bool, error) {
	processed, err := s.IsProcessed(ctx, eventID)
	if err != nil || processed {
		return false, err
	}
	ttl := until.Sub(s.now())
	if ttl <= 0 {
		return false, errors.New("claim already expired")
	}
	return s.client.SetNX(ctx, s.claimKey(eventID), "1", ttl).Result()
}

func (s *DedupStore) Release(ctx context.Context, eventID string) error {
	return s.client.Del(ctx, s.claimKey(eventID)).Err()
}

func (s *DedupStore) MarkProcessed(ctx context.Context, event ports.ProcessedEvent) error {
	ttl := event.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return errors.New("processed event already expired")
	}
	value := event.EventType + "|" + event.PayloadHash
	// SetNX keeps the first record when two replicas finish the same event.
	return s.client.SetNX(ctx, s.key(event.EventID), value, ttl).Err()
}

func (s *DedupStore) key(eventID string) string {
	return s.prefix + strings.TrimSpace(eventID)
}

func (s *DedupStore) claimKey(eventID string) string {
	return claimKeyPrefix + strings.TrimSpace(eventID)
}

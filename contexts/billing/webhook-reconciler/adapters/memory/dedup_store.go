package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"adreel/contexts/billing/webhook-reconciler/ports"
)

// DedupStore keeps processed event ids in process memory. Expired entries
// count as unprocessed.
type DedupStore struct {
	mu     sync.RWMutex
	events map[string]ports.ProcessedEvent
	claims map[string]time.Time
	now    func() time.Time
}

func NewDedupStore() *DedupStore {
	return &DedupStore{
		events: make(map[string]ports.ProcessedEvent),
		claims: make(map[string]time.Time),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *DedupStore) IsProcessed(_ context.Context, eventID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.events[strings.TrimSpace(eventID)]
	if !ok {
		return false, nil
	}
	if !item.ExpiresAt.IsZero() && s.now().After(item.ExpiresAt) {
		return false, nil
	}
	return true, nil
}

func (s *DedupStore) Claim(_ context.Context, eventID string, until time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := strings.TrimSpace(eventID)
	now := s.now()
	if existing, ok := s.events[id]; ok && !now.After(existing.ExpiresAt) {
		return false, nil
	}
	if held, ok := s.claims[id]; ok && now.Before(held) {
		return false, nil
	}
	s.claims[id] = until
	return true, nil
}

func (s *DedupStore) Release(_ context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.claims, strings.TrimSpace(eventID))
	return nil
}

func (s *DedupStore) MarkProcessed(_ context.Context, event ports.ProcessedEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := strings.TrimSpace(event.EventID)
	if existing, ok := s.events[id]; ok && !s.now().After(existing.ExpiresAt) {
		return nil
	}
	event.EventID = id
	s.events[id] = event
	return nil
}

func (s *DedupStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

func (s *DedupStore) Now() time.Time {
	return s.now()
}

package memory

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"adreel/contexts/campaign-lifecycle/campaign-service/domain/entities"
	domainerrors "adreel/contexts/campaign-lifecycle/campaign-service/domain/errors"
	"adreel/contexts/campaign-lifecycle/campaign-service/ports"

	"github.com/google/uuid"
)

// Store is the in-process campaign adapter. Its compare-and-set methods hold
// the write lock across check and write, matching the postgres predicates.
type Store struct {
	mu sync.RWMutex

	campaigns   map[string]entities.Campaign
	idempotency map[string]ports.IdempotencyRecord
	outbox      []outboxRow
}

type outboxRow struct {
	message     ports.OutboxMessage
	envelope    ports.EventEnvelope
	publishedAt *time.Time
}

func NewStore(seed []entities.Campaign) *Store {
	campaigns := make(map[string]entities.Campaign, len(seed))
	for _, item := range seed {
		campaigns[item.CampaignID] = cloneCampaign(item)
	}
	return &Store{
		campaigns:   campaigns,
		idempotency: make(map[string]ports.IdempotencyRecord),
	}
}

func (s *Store) CreateCampaign(_ context.Context, campaign entities.Campaign, maxPerAccount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.campaigns[campaign.CampaignID]; exists {
		return domainerrors.ErrInvalidCampaignInput
	}
	if maxPerAccount > 0 && s.countByAccountLocked(campaign.ClientAccountID) >= maxPerAccount {
		return domainerrors.ErrCampaignLimitReached
	}
	s.campaigns[campaign.CampaignID] = cloneCampaign(campaign)
	return nil
}

func (s *Store) GetCampaign(_ context.Context, campaignID string) (entities.Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, exists := s.campaigns[strings.TrimSpace(campaignID)]
	if !exists {
		return entities.Campaign{}, domainerrors.ErrCampaignNotFound
	}
	return cloneCampaign(item), nil
}

func (s *Store) ListCampaigns(_ context.Context, filter ports.CampaignFilter) (ports.CampaignPage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	items := make([]entities.Campaign, 0, len(s.campaigns))
	for _, campaign := range s.campaigns {
		if filter.UserID != "" && campaign.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && campaign.Status != filter.Status {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(campaign.ClipTitle), search) &&
			!strings.Contains(strings.ToLower(campaign.ArtistsList), search) {
			continue
		}
		items = append(items, cloneCampaign(campaign))
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CampaignID > items[j].CampaignID
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
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
	return ports.CampaignPage{Items: items[start:end], Total: total}, nil
}

func (s *Store) countByAccountLocked(clientAccountID string) int {
	count := 0
	for _, campaign := range s.campaigns {
		if campaign.ClientAccountID == clientAccountID {
			count++
		}
	}
	return count
}

func (s *Store) CompareAndSetStatus(_ context.Context, next entities.Campaign, expected entities.CampaignStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.campaigns[next.CampaignID]
	if !exists || current.Status != expected {
		return false, nil
	}
	current.Status = next.Status
	current.StartsAt = next.StartsAt
	current.EndsAt = next.EndsAt
	current.ActualStartedAt = next.ActualStartedAt
	current.ActualEndedAt = next.ActualEndedAt
	current.UpdatedAt = next.UpdatedAt
	s.campaigns[next.CampaignID] = current
	return true, nil
}

func (s *Store) UpdateDraft(_ context.Context, campaign entities.Campaign) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.campaigns[campaign.CampaignID]
	if !exists || current.Status != entities.CampaignStatusDraft {
		return false, nil
	}
	current.ClipTitle = campaign.ClipTitle
	current.ArtistsList = campaign.ArtistsList
	current.Countries = append([]string(nil), campaign.Countries...)
	current.TargetingConfig = campaign.TargetingConfig
	current.Budget = campaign.Budget
	current.UpdatedAt = campaign.UpdatedAt
	s.campaigns[campaign.CampaignID] = current
	return true, nil
}

func (s *Store) DeleteCampaign(_ context.Context, campaignID string, expected entities.CampaignStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.campaigns[campaignID]
	if !exists || current.Status != expected {
		return false, nil
	}
	delete(s.campaigns, campaignID)
	return true, nil
}

func (s *Store) GetRecord(_ context.Context, key string, now time.Time) (ports.IdempotencyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, exists := s.idempotency[key]
	if !exists {
		return ports.IdempotencyRecord{}, false, nil
	}
	if !record.ExpiresAt.IsZero() && now.After(record.ExpiresAt) {
		delete(s.idempotency, key)
		return ports.IdempotencyRecord{}, false, nil
	}
	return record, true, nil
}

func (s *Store) PutRecord(_ context.Context, record ports.IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, exists := s.idempotency[record.Key]; exists && existing.RequestHash != record.RequestHash {
		return domainerrors.ErrIdempotencyKeyConflict
	}
	s.idempotency[record.Key] = record
	return nil
}

func (s *Store) AppendOutbox(_ context.Context, envelope ports.EventEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, row := range s.outbox {
		if row.message.OutboxID == envelope.EventID {
			return nil
		}
	}
	s.outbox = append(s.outbox, outboxRow{
		message: ports.OutboxMessage{
			OutboxID:     envelope.EventID,
			EventType:    envelope.EventType,
			PartitionKey: envelope.PartitionKey,
			CreatedAt:    envelope.OccurredAt,
		},
		envelope: envelope,
	})
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
		message := row.message
		payload, err := json.Marshal(row.envelope)
		if err != nil {
			return nil, err
		}
		message.Payload = payload
		items = append(items, message)
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
		if s.outbox[i].message.OutboxID == outboxID {
			at := publishedAt
			s.outbox[i].publishedAt = &at
			return nil
		}
	}
	return domainerrors.ErrCampaignNotFound
}

// AuditEnvelopes returns every envelope appended so far, oldest first.
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

func cloneCampaign(item entities.Campaign) entities.Campaign {
	item.Countries = append([]string(nil), item.Countries...)
	if item.ActualStartedAt != nil {
		at := *item.ActualStartedAt
		item.ActualStartedAt = &at
	}
	if item.ActualEndedAt != nil {
		at := *item.ActualEndedAt
		item.ActualEndedAt = &at
	}
	return item
}

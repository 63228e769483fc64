package entities

import (
	"regexp"
	"strings"
	"time"
)

type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "DRAFT"
	CampaignStatusQueued    CampaignStatus = "QUEUED"
	CampaignStatusRunning   CampaignStatus = "RUNNING"
	CampaignStatusPaused    CampaignStatus = "PAUSED"
	CampaignStatusEnded     CampaignStatus = "ENDED"
	CampaignStatusCancelled CampaignStatus = "CANCELLED"
)

var allStatuses = []CampaignStatus{
	CampaignStatusDraft,
	CampaignStatusQueued,
	CampaignStatusRunning,
	CampaignStatusPaused,
	CampaignStatusEnded,
	CampaignStatusCancelled,
}

// ParseCampaignStatus accepts the upper or lower case status name.
func ParseCampaignStatus(raw string) (CampaignStatus, bool) {
	value := CampaignStatus(strings.ToUpper(strings.TrimSpace(raw)))
	for _, status := range allStatuses {
		if status == value {
			return status, true
		}
	}
	return "", false
}

type BudgetConfig struct {
	DailyBudgetEUR float64
	TotalBudgetEUR float64
}

func (b BudgetConfig) Valid() bool {
	return b.DailyBudgetEUR > 0 && b.TotalBudgetEUR > 0 && b.DailyBudgetEUR <= b.TotalBudgetEUR
}

type Campaign struct {
	CampaignID       string
	ClientAccountID  string
	UserID           string
	ClipURL          string
	ClipTitle        string
	ArtistsList      string
	Countries        []string
	TargetingConfig  map[string]any
	Budget           BudgetConfig
	Status           CampaignStatus
	DurationDays     int
	StartsAt         time.Time
	EndsAt           time.Time
	ActualStartedAt  *time.Time
	ActualEndedAt    *time.Time
	GoogleCampaignID string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

var youtubeClipPattern = regexp.MustCompile(`^(https?://)?(www\.)?(youtube\.com/(watch\?v=|embed/|v/)|youtu\.be/)[\w-]+`)

func ValidClipURL(raw string) bool {
	return youtubeClipPattern.MatchString(strings.TrimSpace(raw))
}

// Schedule sets the start and derives the end from DurationDays.
func (c *Campaign) Schedule(start time.Time) {
	c.StartsAt = start.UTC()
	c.EndsAt = c.StartsAt.AddDate(0, 0, c.DurationDays)
}

func (c Campaign) ValidateDraft() bool {
	if strings.TrimSpace(c.ClientAccountID) == "" || strings.TrimSpace(c.UserID) == "" {
		return false
	}
	if strings.TrimSpace(c.ClipTitle) == "" || len(c.Countries) == 0 {
		return false
	}
	return c.DurationDays > 0
}

func IsDeletable(status CampaignStatus) bool {
	switch status {
	case CampaignStatusDraft, CampaignStatusEnded, CampaignStatusCancelled:
		return true
	default:
		return false
	}
}

package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type BudgetConfigDTO struct {
	DailyBudgetEUR float64 `json:"daily_budget_eur"`
	TotalBudgetEUR float64 `json:"total_budget_eur"`
}

type CreateCampaignRequest struct {
	ClipURL         string          `json:"clip_url"`
	ClipTitle       string          `json:"clip_title"`
	ArtistsList     string          `json:"artists_list"`
	Countries       []string        `json:"countries"`
	TargetingConfig map[string]any  `json:"targeting_config"`
	BudgetConfig    BudgetConfigDTO `json:"budget_config"`
}

type UpdateCampaignRequest struct {
	ClipTitle       *string          `json:"clip_title"`
	ArtistsList     *string          `json:"artists_list"`
	Countries       *[]string        `json:"countries"`
	TargetingConfig *map[string]any  `json:"targeting_config"`
	BudgetConfig    *BudgetConfigDTO `json:"budget_config"`
}

type LaunchCampaignRequest struct {
	StartDate string `json:"start_date"`
}

type CampaignDTO struct {
	CampaignID       string          `json:"campaign_id"`
	ClientAccountID  string          `json:"client_account_id"`
	ClipURL          string          `json:"clip_url"`
	ClipTitle        string          `json:"clip_title"`
	ArtistsList      string          `json:"artists_list"`
	Countries        []string        `json:"countries"`
	TargetingConfig  map[string]any  `json:"targeting_config,omitempty"`
	BudgetConfig     BudgetConfigDTO `json:"budget_config"`
	Status           string          `json:"status"`
	DurationDays     int             `json:"duration_days"`
	StartsAt         string          `json:"starts_at"`
	EndsAt           string          `json:"ends_at"`
	ActualStartedAt  string          `json:"actual_started_at,omitempty"`
	ActualEndedAt    string          `json:"actual_ended_at,omitempty"`
	GoogleCampaignID string          `json:"google_campaign_id,omitempty"`
	CreatedAt        string          `json:"created_at"`
	UpdatedAt        string          `json:"updated_at"`
}

type CreateCampaignResponse struct {
	Campaign CampaignDTO `json:"campaign"`
	Replayed bool        `json:"replayed"`
}

type GetCampaignResponse struct {
	Campaign CampaignDTO `json:"campaign"`
}

type PaginationDTO struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

type ListCampaignsResponse struct {
	Items      []CampaignDTO `json:"items"`
	Pagination PaginationDTO `json:"pagination"`
}

type TransitionResponse struct {
	Campaign   CampaignDTO `json:"campaign"`
	FromStatus string      `json:"from_status"`
	Applied    bool        `json:"applied"`
}

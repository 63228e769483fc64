package httptransport

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WebhookAckResponse is returned with 200 for every accepted delivery,
// including duplicates and unhandled event types.
type WebhookAckResponse struct {
	Received        bool     `json:"received"`
	EventID         string   `json:"event_id,omitempty"`
	EventType       string   `json:"event_type,omitempty"`
	Outcome         string   `json:"outcome"`
	QueuedCampaigns []string `json:"queued_campaigns,omitempty"`
}

package httptransport

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type LinkRequest struct {
	CustomerID string `json:"customer_id"`
}

type LinkStatusResponse struct {
	UserID           string `json:"user_id"`
	ClientAccountID  string `json:"client_account_id,omitempty"`
	GoogleCustomerID string `json:"google_customer_id,omitempty"`
	LinkStatus       string `json:"link_status"`
	LinkRequestedAt  string `json:"link_requested_at,omitempty"`
	LinkedAt         string `json:"linked_at,omitempty"`
	LastSyncAt       string `json:"last_sync_at,omitempty"`
}

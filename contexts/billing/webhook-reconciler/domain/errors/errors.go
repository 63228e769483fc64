package errors

import "errors"

var (
	ErrInvalidSignature  = errors.New("invalid webhook signature")
	ErrMalformedEvent    = errors.New("malformed webhook event")
	ErrWebhookNotEnabled = errors.New("webhook secret not configured")
	ErrPaymentNotFound   = errors.New("no payment matches the event")
	ErrCampaignNotFound  = errors.New("campaign not found")
	ErrEventInFlight     = errors.New("another delivery of this event is being processed")
)

package errors

import "errors"

var (
	ErrInvalidCheckoutRequest = errors.New("invalid checkout request")
	ErrInvalidListFilter      = errors.New("invalid payment list filter")
	ErrPaymentNotFound        = errors.New("payment not found")
	ErrCampaignNotFound       = errors.New("campaign not found")
	ErrCampaignForbidden      = errors.New("campaign is owned by another user")
	ErrPaymentForbidden       = errors.New("payment is owned by another user")
	ErrCampaignNotPayable     = errors.New("campaign is not payable")
	ErrInvalidPaymentState    = errors.New("invalid payment state")
	ErrInvoiceUnavailable     = errors.New("invoice not available")
	ErrCheckoutUnavailable    = errors.New("checkout provider unavailable")
	ErrIdempotencyConflict    = errors.New("idempotency key reused with a different request")
	ErrIdempotencyInFlight    = errors.New("a request with this idempotency key is still running")
	ErrSettlementFailed       = errors.New("payment refunded but the campaign could not be withdrawn")
)

package errors

import "errors"

var (
	ErrCampaignNotFound       = errors.New("campaign not found")
	ErrClientAccountNotFound  = errors.New("client account not found")
	ErrCampaignForbidden      = errors.New("campaign belongs to another user")
	ErrInvalidCampaignInput   = errors.New("invalid campaign input")
	ErrInvalidClipURL         = errors.New("clip url is not a valid youtube video url")
	ErrInvalidBudget          = errors.New("daily budget must be positive and not exceed total budget")
	ErrInvalidListFilter      = errors.New("invalid campaign list filter")
	ErrCampaignLimitReached   = errors.New("campaign limit reached for client account")
	ErrInvalidStateTransition = errors.New("invalid campaign state transition")
	ErrConcurrentUpdate       = errors.New("campaign changed concurrently, retry the request")
	ErrPaymentRequired        = errors.New("campaign has no paid payment")
	ErrIdempotencyKeyConflict = errors.New("idempotency key conflict")
)

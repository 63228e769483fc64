package errors

import "errors"

var (
	ErrInvalidCustomerID     = errors.New("invalid google ads customer id")
	ErrCustomerAlreadyLinked = errors.New("google ads account already linked")
	ErrLinkStateChanged      = errors.New("link state changed concurrently")
	ErrExternalService       = errors.New("google ads service unavailable")
	ErrClientAccountNotFound = errors.New("client account not found")
	ErrInvalidUser           = errors.New("user id is required")
)

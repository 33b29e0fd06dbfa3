package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrListingNotPending  = errors.New("listing is not awaiting payment")
	ErrInvalidTransition  = errors.New("listing status transition not allowed")
	ErrRateLimited        = errors.New("too many requests")
	ErrOperationFailed    = errors.New("storage operation failed")
	ErrInvalidExecContext = errors.New("invalid database execution context")
	ErrReadDatabaseRow    = errors.New("could not read database row")

	// ErrPaymentNotConfigured means the processor credential is missing. It is
	// fatal for intent creation and must never be papered over with fake data.
	ErrPaymentNotConfigured = errors.New("payment processor not configured")
	// ErrUpstream covers processor timeouts, non-2xx answers and malformed bodies.
	// Callers may retry.
	ErrUpstream = errors.New("payment processor unavailable")
)

package domain

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrAlreadyExists  = errors.New("already exists")
	ErrRateLimited    = errors.New("rate limited")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrLockHeld       = errors.New("lock already held")
	ErrNotAvailable   = errors.New("consensus price not available")
	ErrStaleQuote     = errors.New("stale quote")
	ErrInvalidQuote   = errors.New("invalid quote")
	ErrInvalidPath    = errors.New("invalid path")
	ErrCycleAbandoned = errors.New("scan cycle abandoned")
	ErrQuorumNotMet   = errors.New("source quorum not met")
	ErrNoGasPrice     = errors.New("gas price unavailable")
)

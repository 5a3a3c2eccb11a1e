package domain

import "errors"

var (
	ErrNotFound             = errors.New("not found")
	ErrEmptyResponse        = errors.New("empty contract response")
	ErrLockHeld             = errors.New("lock already held")
	ErrMissingScheduledTime = errors.New("scheduled execution time is required")
	ErrNoConsensus          = errors.New("nodes did not reach consensus")
)

package domain

import (
	"context"
	"errors"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrValidation         = errors.New("validation failed")
	ErrProviderFailure    = errors.New("provider failure")
	ErrTimeout            = errors.New("operation timed out")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrAlreadyStarted     = errors.New("already started")
)

// IsRetryable classifies an error for the queue's retry path: external
// service failures and timeouts retry, everything else is terminal.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrProviderFailure) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, context.DeadlineExceeded)
}

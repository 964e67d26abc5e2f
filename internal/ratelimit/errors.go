package ratelimit

import "errors"

var (
	// ErrInvalidKey is returned when a subject or action is empty.
	// It indicates a caller bug and is never retried.
	ErrInvalidKey = errors.New("invalid rate limit key")

	// ErrStoreUnavailable wraps any failure to reach or write the counter store.
	ErrStoreUnavailable = errors.New("rate limit store unavailable")

	// ErrInvalidPolicy is returned for a non-positive limit or window.
	ErrInvalidPolicy = errors.New("invalid rate limit policy")

	// ErrUnknownAction is returned when no policy is configured for an action.
	ErrUnknownAction = errors.New("unknown rate limit action")
)

package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// WindowKey identifies a single fixed-window counter.
type WindowKey struct {
	Subject string
	Action  string
	// WindowStart is the window's start in epoch seconds, already floored by the caller.
	WindowStart int64
}

// Validate reports ErrInvalidKey when the subject or action is empty, or when
// the action contains a colon (which would make String ambiguous).
func (k WindowKey) Validate() error {
	if k.Subject == "" {
		return fmt.Errorf("%w: empty subject", ErrInvalidKey)
	}

	if k.Action == "" {
		return fmt.Errorf("%w: empty action", ErrInvalidKey)
	}

	if strings.Contains(k.Action, ":") {
		return fmt.Errorf("%w: action %q contains ':'", ErrInvalidKey, k.Action)
	}

	return nil
}

// String renders the key as subject:action:windowStart.
func (k WindowKey) String() string {
	return fmt.Sprintf("%s:%s:%d", k.Subject, k.Action, k.WindowStart)
}

// RateWindow is a stored counter row.
type RateWindow struct {
	WindowKey

	Count int64
}

// CounterStore defines the interface for fixed-window counter storage.
type CounterStore interface {
	// IncrementAndGet atomically creates the window with count 1 or increments it,
	// and returns the post-increment count. Concurrent calls for the same key never
	// lose updates. Failures reaching the backend are reported as ErrStoreUnavailable.
	IncrementAndGet(ctx context.Context, key WindowKey) (count int64, err error)
}

// Unavailable wraps err so that errors.Is(err, ErrStoreUnavailable) holds.
func Unavailable(err error) error {
	if err == nil || errors.Is(err, ErrStoreUnavailable) {
		return err
	}

	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}

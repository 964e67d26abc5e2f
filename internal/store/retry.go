package store

import (
	"context"
	"time"

	"github.com/Rican7/retry"
	"github.com/Rican7/retry/backoff"
	"github.com/Rican7/retry/strategy"
)

// retryPolicy retries an operation only while isSafe reports that the failed
// attempt never reached the server, so a retried increment cannot double count.
type retryPolicy struct {
	attempts uint
	delay    time.Duration
	isSafe   func(error) bool
}

func (p retryPolicy) do(ctx context.Context, op func() error) error {
	var lastErr error

	_ = retry.Retry(func(_ uint) error {
		lastErr = op()
		if lastErr == nil || !p.isSafe(lastErr) || ctx.Err() != nil {
			return nil
		}

		return lastErr
	},
		strategy.Limit(p.attempts),
		backoffUntilDone(ctx, backoff.Linear(p.delay)),
	)

	return lastErr
}

// backoffUntilDone waits like strategy.Backoff but gives up as soon as ctx is done.
func backoffUntilDone(ctx context.Context, algorithm backoff.Algorithm) strategy.Strategy {
	return func(attempt uint) bool {
		if attempt == 0 {
			return true
		}

		timer := time.NewTimer(algorithm(attempt))
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return false
		case <-timer.C:
			return true
		}
	}
}

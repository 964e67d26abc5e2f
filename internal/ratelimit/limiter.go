package ratelimit

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Checker defines the interface for rate limit decisions.
type Checker interface {
	// Check counts one attempt for subject/action under policy and returns the decision.
	Check(ctx context.Context, subject, action string, policy Policy, now time.Time) (Decision, error)
	// CheckAction is Check with the policy configured for action.
	CheckAction(ctx context.Context, subject, action string, now time.Time) (Decision, error)
}

// Observer is notified of every decision the limiter produces. Observers run
// on the caller's goroutine inside Check and must not block.
type Observer interface {
	ObserveDecision(ctx context.Context, subject, action string, decision Decision)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, subject, action string, decision Decision)

// ObserveDecision calls f.
func (f ObserverFunc) ObserveDecision(ctx context.Context, subject, action string, decision Decision) {
	f(ctx, subject, action, decision)
}

// FixedWindowLimiter implements rate limiting using a fixed window counter.
//
// Every attempt is counted, including denied ones, so a burst cannot retry for
// free. Because buckets are aligned, up to 2x Limit attempts can be admitted
// around a window boundary; this is the accepted cost of O(1) storage per key.
//
// The limiter holds no mutable state of its own. All coordination between
// concurrent callers happens in the CounterStore's atomic increment.
type FixedWindowLimiter struct {
	store     CounterStore
	policies  Policies
	timeout   time.Duration
	logger    *zap.Logger
	observers []Observer
}

// Option configures a FixedWindowLimiter.
type Option func(*FixedWindowLimiter)

// WithLogger sets the logger used for fail-open warnings.
func WithLogger(logger *zap.Logger) Option {
	return func(l *FixedWindowLimiter) {
		l.logger = logger
	}
}

// WithTimeout bounds each store call. A timeout is treated as an unavailable store.
func WithTimeout(timeout time.Duration) Option {
	return func(l *FixedWindowLimiter) {
		l.timeout = timeout
	}
}

// WithObservers registers decision observers.
func WithObservers(observers ...Observer) Option {
	return func(l *FixedWindowLimiter) {
		l.observers = append(l.observers, observers...)
	}
}

// NewFixedWindowLimiter creates a new fixed window rate limiter.
func NewFixedWindowLimiter(store CounterStore, policies Policies, opts ...Option) *FixedWindowLimiter {
	l := &FixedWindowLimiter{
		store:    store,
		policies: policies,
		logger:   zap.NewNop(),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Policies returns the configured per-action policies.
func (l *FixedWindowLimiter) Policies() Policies {
	return l.policies
}

// CheckAction looks up the policy configured for action and checks it.
// Unconfigured actions return ErrUnknownAction without touching the store.
func (l *FixedWindowLimiter) CheckAction(ctx context.Context, subject, action string, now time.Time) (Decision, error) {
	policy, err := l.policies.Lookup(action)
	if err != nil {
		return Decision{}, err
	}

	return l.Check(ctx, subject, action, policy, now)
}

// Check returns ErrInvalidKey or ErrInvalidPolicy for caller bugs. An unavailable
// store never produces an error: the decision fails open with StoreError set.
func (l *FixedWindowLimiter) Check(
	ctx context.Context, subject, action string, policy Policy, now time.Time,
) (Decision, error) {
	if err := policy.Validate(); err != nil {
		return Decision{}, err
	}

	key := WindowKey{
		Subject:     subject,
		Action:      action,
		WindowStart: WindowStart(now, policy.WindowSeconds),
	}

	if err := key.Validate(); err != nil {
		return Decision{}, err
	}

	resetAt := time.Unix(key.WindowStart+policy.WindowSeconds, 0)

	count, err := l.increment(ctx, key)
	if err != nil {
		if errors.Is(err, ErrInvalidKey) {
			return Decision{}, err
		}

		l.logger.Warn("rate limit store unavailable, failing open",
			zap.String("subject", subject),
			zap.String("action", action),
			zap.Int64("window_start", key.WindowStart),
			zap.Error(err),
		)

		decision := Decision{
			Allowed:    true,
			Limit:      policy.Limit,
			Remaining:  policy.Limit,
			ResetAt:    resetAt,
			StoreError: true,
		}
		l.notify(ctx, subject, action, decision)

		return decision, nil
	}

	decision := Decision{
		Allowed:   count <= policy.Limit,
		Limit:     policy.Limit,
		Remaining: max(0, policy.Limit-count),
		Count:     count,
		ResetAt:   resetAt,
	}

	if !decision.Allowed {
		decision.RetryAfter = max(0, resetAt.Sub(now))
	}

	l.notify(ctx, subject, action, decision)

	return decision, nil
}

func (l *FixedWindowLimiter) increment(ctx context.Context, key WindowKey) (int64, error) {
	if l.timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	count, err := l.store.IncrementAndGet(ctx, key)
	if err != nil {
		return 0, Unavailable(err)
	}

	return count, nil
}

func (l *FixedWindowLimiter) notify(ctx context.Context, subject, action string, decision Decision) {
	for _, o := range l.observers {
		o.ObserveDecision(ctx, subject, action, decision)
	}
}

// Compile-time check.
var _ Checker = (*FixedWindowLimiter)(nil)

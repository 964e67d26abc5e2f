package audit_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/serroba/millennium-gate/internal/audit"
	"github.com/serroba/millennium-gate/internal/identity"
	"github.com/serroba/millennium-gate/internal/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type capturePublish struct {
	mu     sync.Mutex
	events []*audit.DecisionEvent
	err    error
}

func (c *capturePublish) publish(ctx context.Context, event *audit.DecisionEvent) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	if c.err != nil {
		return c.err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.events = append(c.events, event)

	return nil
}

func (c *capturePublish) published() []*audit.DecisionEvent {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]*audit.DecisionEvent(nil), c.events...)
}

// blockingPublish waits for its context, like a broker that never answers.
func blockingPublish(ctx context.Context, _ *audit.DecisionEvent) error {
	<-ctx.Done()

	return ctx.Err()
}

type refusedStore struct{}

func (refusedStore) IncrementAndGet(_ context.Context, _ ratelimit.WindowKey) (int64, error) {
	return 0, errors.New("dial tcp 127.0.0.1:6379: connection refused")
}

func startRecorder(t *testing.T, r *audit.Recorder) {
	t.Helper()

	require.NoError(t, r.Start(context.Background()))
	t.Cleanup(func() { _ = r.Shutdown() })
}

func TestOutcomeOf(t *testing.T) {
	tests := []struct {
		name     string
		decision ratelimit.Decision
		outcome  audit.Outcome
		ok       bool
	}{
		{"allowed", ratelimit.Decision{Allowed: true}, "", false},
		{"denied", ratelimit.Decision{Allowed: false}, audit.OutcomeDenied, true},
		{"degraded", ratelimit.Decision{Allowed: true, StoreError: true}, audit.OutcomeDegraded, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome, ok := audit.OutcomeOf(tt.decision)

			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.outcome, outcome)
		})
	}
}

func TestRecorder_ObserveDecision(t *testing.T) {
	resetAt := time.Unix(1_700_000_040, 0)

	t.Run("publishes denied decisions with request metadata", func(t *testing.T) {
		capture := &capturePublish{}
		recorder := audit.NewRecorder(capture.publish, zap.NewNop())
		startRecorder(t, recorder)

		ctx := identity.ContextWithRequestMeta(context.Background(), identity.RequestMeta{
			Subject:   "user:42",
			ClientIP:  "203.0.113.7",
			UserAgent: "curl/8",
		})

		recorder.ObserveDecision(ctx, "user:42", ratelimit.ActionComment, ratelimit.Decision{
			Allowed:    false,
			Limit:      5,
			Count:      6,
			ResetAt:    resetAt,
			RetryAfter: 1500 * time.Millisecond,
		})

		require.Eventually(t, func() bool { return len(capture.published()) == 1 }, time.Second, 5*time.Millisecond)

		event := capture.published()[0]
		assert.NotEmpty(t, event.ID)
		assert.Equal(t, audit.OutcomeDenied, event.Outcome)
		assert.Equal(t, "user:42", event.Subject)
		assert.Equal(t, ratelimit.ActionComment, event.Action)
		assert.Equal(t, int64(6), event.Count)
		assert.Equal(t, int64(2), event.RetryAfterSeconds)
		assert.Equal(t, "203.0.113.7", event.ClientIP)
		assert.Equal(t, "curl/8", event.UserAgent)
		assert.False(t, event.OccurredAt.IsZero())
	})

	t.Run("publishes degraded decisions", func(t *testing.T) {
		capture := &capturePublish{}
		recorder := audit.NewRecorder(capture.publish, zap.NewNop())
		startRecorder(t, recorder)

		recorder.ObserveDecision(context.Background(), "anon:ab", ratelimit.ActionLike, ratelimit.Decision{
			Allowed:    true,
			Limit:      10,
			Remaining:  10,
			StoreError: true,
		})

		require.Eventually(t, func() bool { return len(capture.published()) == 1 }, time.Second, 5*time.Millisecond)
		assert.Equal(t, audit.OutcomeDegraded, capture.published()[0].Outcome)
	})

	t.Run("skips allowed decisions", func(t *testing.T) {
		capture := &capturePublish{}
		recorder := audit.NewRecorder(capture.publish, zap.NewNop())
		startRecorder(t, recorder)

		recorder.ObserveDecision(context.Background(), "anon:ab", ratelimit.ActionLike, ratelimit.Decision{
			Allowed:   true,
			Limit:     10,
			Remaining: 9,
			Count:     1,
		})

		require.NoError(t, recorder.Shutdown())
		assert.Empty(t, capture.published())
	})

	t.Run("publishes even when the request context is cancelled", func(t *testing.T) {
		capture := &capturePublish{}
		recorder := audit.NewRecorder(capture.publish, zap.NewNop())
		startRecorder(t, recorder)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		recorder.ObserveDecision(ctx, "anon:ab", ratelimit.ActionLike, ratelimit.Decision{Allowed: false})

		require.Eventually(t, func() bool { return len(capture.published()) == 1 }, time.Second, 5*time.Millisecond)
	})

	t.Run("logs publish failures", func(t *testing.T) {
		core, logs := observer.New(zapcore.ErrorLevel)
		capture := &capturePublish{err: errors.New("broker down")}
		recorder := audit.NewRecorder(capture.publish, zap.New(core))
		startRecorder(t, recorder)

		recorder.ObserveDecision(context.Background(), "anon:ab", ratelimit.ActionLike, ratelimit.Decision{Allowed: false})

		require.Eventually(t, func() bool { return logs.Len() == 1 }, time.Second, 5*time.Millisecond)

		entry := logs.All()[0]
		assert.Equal(t, "failed to publish decision event", entry.Message)
		assert.Equal(t, "anon:ab", entry.ContextMap()["subject"])
		assert.Equal(t, "denied", entry.ContextMap()["outcome"])
	})

	t.Run("drops and counts events when the queue is full", func(t *testing.T) {
		core, logs := observer.New(zapcore.WarnLevel)
		capture := &capturePublish{}
		recorder := audit.NewRecorder(capture.publish, zap.New(core), audit.WithQueueSize(1))

		recorder.ObserveDecision(context.Background(), "anon:ab", ratelimit.ActionLike, ratelimit.Decision{Allowed: false})
		recorder.ObserveDecision(context.Background(), "anon:ab", ratelimit.ActionLike, ratelimit.Decision{Allowed: false})
		recorder.ObserveDecision(context.Background(), "anon:ab", ratelimit.ActionLike, ratelimit.Decision{Allowed: false})

		assert.Equal(t, uint64(2), recorder.Dropped())
		assert.Equal(t, 2, logs.FilterMessage("decision event queue full, dropping event").Len())
	})
}

func TestRecorder_Shutdown(t *testing.T) {
	t.Run("publishes queued events before returning", func(t *testing.T) {
		capture := &capturePublish{}
		recorder := audit.NewRecorder(capture.publish, zap.NewNop())

		for range 3 {
			recorder.ObserveDecision(context.Background(), "anon:ab", ratelimit.ActionLike, ratelimit.Decision{Allowed: false})
		}

		require.NoError(t, recorder.Start(context.Background()))
		require.NoError(t, recorder.Shutdown())

		assert.Len(t, capture.published(), 3)
	})

	t.Run("returns immediately when never started", func(t *testing.T) {
		recorder := audit.NewRecorder(blockingPublish, zap.NewNop())

		assert.NoError(t, recorder.Shutdown())
	})

	t.Run("bounds a publish that never answers", func(t *testing.T) {
		recorder := audit.NewRecorder(blockingPublish, zap.NewNop(), audit.WithPublishTimeout(20*time.Millisecond))
		require.NoError(t, recorder.Start(context.Background()))

		recorder.ObserveDecision(context.Background(), "anon:ab", ratelimit.ActionLike, ratelimit.Decision{Allowed: false})

		start := time.Now()
		require.NoError(t, recorder.Shutdown())
		assert.Less(t, time.Since(start), time.Second)
	})
}

func TestRecorder_DoesNotDelayCheck(t *testing.T) {
	recorder := audit.NewRecorder(blockingPublish, zap.NewNop(), audit.WithPublishTimeout(2*time.Second))
	startRecorder(t, recorder)

	limiter := ratelimit.NewFixedWindowLimiter(
		refusedStore{},
		ratelimit.DefaultPolicies(),
		ratelimit.WithTimeout(50*time.Millisecond),
		ratelimit.WithObservers(recorder),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	decision, err := limiter.CheckAction(ctx, "anon:ab", ratelimit.ActionComment, time.Now())
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.True(t, decision.StoreError)
	assert.Less(t, elapsed, 100*time.Millisecond)
}

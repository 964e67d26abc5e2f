package handlers_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/serroba/millennium-gate/internal/handlers"
	"github.com/serroba/millennium-gate/internal/ratelimit"
	"github.com/serroba/millennium-gate/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type unavailableStore struct{}

func (unavailableStore) IncrementAndGet(context.Context, ratelimit.WindowKey) (int64, error) {
	return 0, ratelimit.ErrStoreUnavailable
}

func newCheckHandler(s ratelimit.CounterStore) *handlers.CheckHandler {
	limiter := ratelimit.NewFixedWindowLimiter(s, ratelimit.Policies{
		ratelimit.ActionAISummarize: {Limit: 2, WindowSeconds: 3600},
	})

	return handlers.NewCheckHandler(limiter)
}

func checkRequest(subject, action string) *handlers.CheckRequest {
	req := &handlers.CheckRequest{}
	req.Body.Subject = subject
	req.Body.Action = action

	return req
}

func TestCheckHandler(t *testing.T) {
	t.Run("returns decisions until the limit is exhausted", func(t *testing.T) {
		handler := newCheckHandler(store.NewMemoryCounterStore())
		req := checkRequest("user:1", ratelimit.ActionAISummarize)

		first, err := handler.Check(context.Background(), req)
		require.NoError(t, err)
		assert.True(t, first.Body.Allowed)
		assert.Equal(t, int64(1), first.Body.Remaining)

		_, err = handler.Check(context.Background(), req)
		require.NoError(t, err)

		third, err := handler.Check(context.Background(), req)
		require.NoError(t, err)
		assert.False(t, third.Body.Allowed)
		assert.Equal(t, int64(0), third.Body.Remaining)
		assert.Equal(t, int64(3), third.Body.Count)
		assert.Positive(t, third.Body.RetryAfterSeconds)
		assert.LessOrEqual(t, third.Body.RetryAfterSeconds, int64(3600))
	})

	t.Run("defaults the subject to the caller", func(t *testing.T) {
		handler := newCheckHandler(store.NewMemoryCounterStore())

		resp, err := handler.Check(asUser("user:5"), checkRequest("", ratelimit.ActionAISummarize))

		require.NoError(t, err)
		assert.True(t, resp.Body.Allowed)
	})

	t.Run("applies a policy override", func(t *testing.T) {
		handler := newCheckHandler(store.NewMemoryCounterStore())

		req := checkRequest("user:1", "export")
		req.Body.Limit = 1
		req.Body.WindowSeconds = 60

		first, err := handler.Check(context.Background(), req)
		require.NoError(t, err)
		assert.True(t, first.Body.Allowed)
		assert.Equal(t, int64(1), first.Body.Limit)

		second, err := handler.Check(context.Background(), req)
		require.NoError(t, err)
		assert.False(t, second.Body.Allowed)
		assert.WithinDuration(t, time.Now(), second.Body.ResetAt, time.Minute)
	})

	t.Run("reports degraded decisions", func(t *testing.T) {
		handler := newCheckHandler(unavailableStore{})

		resp, err := handler.Check(context.Background(), checkRequest("user:1", ratelimit.ActionAISummarize))

		require.NoError(t, err)
		assert.True(t, resp.Body.Allowed)
		assert.True(t, resp.Body.StoreError)
		assert.Equal(t, int64(2), resp.Body.Remaining)
	})

	t.Run("unknown action is 404", func(t *testing.T) {
		handler := newCheckHandler(store.NewMemoryCounterStore())

		_, err := handler.Check(context.Background(), checkRequest("user:1", "nope"))

		assertStatus(t, err, http.StatusNotFound)
	})

	t.Run("invalid key or policy is 422", func(t *testing.T) {
		handler := newCheckHandler(store.NewMemoryCounterStore())

		_, err := handler.Check(context.Background(), checkRequest("", ratelimit.ActionAISummarize))
		assertStatus(t, err, http.StatusUnprocessableEntity)

		req := checkRequest("user:1", "export")
		req.Body.WindowSeconds = 60
		_, err = handler.Check(context.Background(), req)
		assertStatus(t, err, http.StatusUnprocessableEntity)
	})
}

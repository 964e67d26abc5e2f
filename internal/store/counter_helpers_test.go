package store_test

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/serroba/millennium-gate/internal/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func at(sec int64) time.Time {
	return time.Unix(sec, 0)
}

// assertAtomicIncrements fires n concurrent increments on one key and checks
// that the returned counts are exactly 1..n, so no update was lost.
func assertAtomicIncrements(t *testing.T, s ratelimit.CounterStore, key ratelimit.WindowKey, n int) {
	t.Helper()

	counts := make([]int64, n)

	var g errgroup.Group

	for i := range n {
		g.Go(func() error {
			count, err := s.IncrementAndGet(context.Background(), key)
			counts[i] = count

			return err
		})
	}

	require.NoError(t, g.Wait())

	sort.Slice(counts, func(a, b int) bool { return counts[a] < counts[b] })

	for i, c := range counts {
		assert.Equal(t, int64(i+1), c)
	}
}

// assertCounterContract runs the single-caller contract shared by every backend.
func assertCounterContract(t *testing.T, s ratelimit.CounterStore, subject string) {
	t.Helper()

	ctx := context.Background()
	key := ratelimit.WindowKey{Subject: subject, Action: "like", WindowStart: 120}

	t.Run("creates window with count one", func(t *testing.T) {
		count, err := s.IncrementAndGet(ctx, key)

		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})

	t.Run("increments existing window", func(t *testing.T) {
		count, err := s.IncrementAndGet(ctx, key)

		require.NoError(t, err)
		assert.Equal(t, int64(2), count)
	})

	t.Run("keeps actions and windows independent", func(t *testing.T) {
		other := key
		other.Action = "comment"

		count, err := s.IncrementAndGet(ctx, other)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)

		next := key
		next.WindowStart = 180

		count, err = s.IncrementAndGet(ctx, next)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})

	t.Run("rejects empty subject and action", func(t *testing.T) {
		_, err := s.IncrementAndGet(ctx, ratelimit.WindowKey{Action: "like"})
		require.ErrorIs(t, err, ratelimit.ErrInvalidKey)

		_, err = s.IncrementAndGet(ctx, ratelimit.WindowKey{Subject: subject})
		require.ErrorIs(t, err, ratelimit.ErrInvalidKey)
	})
}

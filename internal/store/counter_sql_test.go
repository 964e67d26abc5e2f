package store_test

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/serroba/millennium-gate/internal/ratelimit"
	"github.com/serroba/millennium-gate/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLiteStore(t *testing.T) *store.SQLCounterStore {
	t.Helper()

	dsn := "file:" + filepath.Join(t.TempDir(), "ratelimit.db") + "?_busy_timeout=5000"

	s, err := store.OpenSQLCounterStore(context.Background(), store.DialectSQLite, dsn)
	require.NoError(t, err)

	t.Cleanup(func() { _ = s.Shutdown() })

	return s
}

func TestSQLCounterStore_SQLite(t *testing.T) {
	assertCounterContract(t, newSQLiteStore(t), "user:sqlite")

	for _, n := range []int{1, 10, 100} {
		t.Run(fmt.Sprintf("%d concurrent increments", n), func(t *testing.T) {
			s := newSQLiteStore(t)
			key := ratelimit.WindowKey{Subject: "user:1", Action: "like", WindowStart: 60}

			assertAtomicIncrements(t, s, key, n)

			next, err := s.IncrementAndGet(context.Background(), key)
			require.NoError(t, err)
			assert.Equal(t, int64(n+1), next)
		})
	}

	t.Run("sweeps windows older than cutoff", func(t *testing.T) {
		s := newSQLiteStore(t)
		ctx := context.Background()

		for _, start := range []int64{0, 60, 120} {
			_, err := s.IncrementAndGet(ctx, ratelimit.WindowKey{Subject: "a", Action: "like", WindowStart: start})
			require.NoError(t, err)
		}

		removed, err := s.Sweep(ctx, 100)

		require.NoError(t, err)
		assert.Equal(t, int64(2), removed)
	})

	t.Run("migrate is idempotent", func(t *testing.T) {
		s := newSQLiteStore(t)

		require.NoError(t, s.Migrate(context.Background()))
		require.NoError(t, s.Ping(context.Background()))
	})

	t.Run("reports closed database as unavailable", func(t *testing.T) {
		s := newSQLiteStore(t)
		require.NoError(t, s.Shutdown())

		_, err := s.IncrementAndGet(context.Background(), ratelimit.WindowKey{Subject: "a", Action: "like"})

		require.ErrorIs(t, err, ratelimit.ErrStoreUnavailable)
	})
}

func TestNewSQLCounterStore(t *testing.T) {
	t.Run("requires a database", func(t *testing.T) {
		_, err := store.NewSQLCounterStore(nil, store.DialectSQLite)

		require.Error(t, err)
	})

	t.Run("rejects unknown dialect", func(t *testing.T) {
		db, err := sql.Open(store.DialectSQLite, ":memory:")
		require.NoError(t, err)

		defer db.Close()

		_, err = store.NewSQLCounterStore(db, "oracle")

		require.Error(t, err)
	})
}

func TestFixedWindowLimiterWithSQLite(t *testing.T) {
	limiter := ratelimit.NewFixedWindowLimiter(newSQLiteStore(t), ratelimit.DefaultPolicies())
	ctx := context.Background()

	for i := range int64(5) {
		d, err := limiter.CheckAction(ctx, "user:1", ratelimit.ActionComment, at(i))

		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Equal(t, 4-i, d.Remaining)
	}

	d, err := limiter.CheckAction(ctx, "user:1", ratelimit.ActionComment, at(5))

	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, int64(55), d.RetryAfterSeconds())
}

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/serroba/millennium-gate/internal/ratelimit"
)

const postgresRateWindowsSchema = `
CREATE TABLE IF NOT EXISTS rate_windows (
    subject      TEXT        NOT NULL,
    action       TEXT        NOT NULL,
    window_start BIGINT      NOT NULL,
    count        BIGINT      NOT NULL CHECK (count >= 0),
    updated_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (subject, action, window_start)
);

CREATE INDEX IF NOT EXISTS idx_rate_windows_window_start ON rate_windows (window_start);
`

// PostgresCounterStore is a PostgreSQL implementation of ratelimit.CounterStore.
type PostgresCounterStore struct {
	pool  *pgxpool.Pool
	retry retryPolicy
}

// NewPostgresCounterStore creates a new PostgreSQL-backed counter store.
func NewPostgresCounterStore(pool *pgxpool.Pool) *PostgresCounterStore {
	return &PostgresCounterStore{
		pool: pool,
		retry: retryPolicy{
			attempts: 3,
			delay:    10 * time.Millisecond,
			isSafe:   pgconn.SafeToRetry,
		},
	}
}

// Migrate creates the rate_windows table if it does not exist.
func (p *PostgresCounterStore) Migrate(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, postgresRateWindowsSchema); err != nil {
		return fmt.Errorf("create rate_windows table: %w", err)
	}

	return nil
}

func (p *PostgresCounterStore) IncrementAndGet(ctx context.Context, key ratelimit.WindowKey) (int64, error) {
	if err := key.Validate(); err != nil {
		return 0, err
	}

	query := `
		INSERT INTO rate_windows (subject, action, window_start, count)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (subject, action, window_start)
		DO UPDATE SET count = rate_windows.count + 1, updated_at = now()
		RETURNING count
	`

	var count int64

	err := p.retry.do(ctx, func() error {
		return p.pool.QueryRow(ctx, query, key.Subject, key.Action, key.WindowStart).Scan(&count)
	})
	if err != nil {
		return 0, ratelimit.Unavailable(err)
	}

	return count, nil
}

// Sweep deletes windows that started before the given epoch second.
func (p *PostgresCounterStore) Sweep(ctx context.Context, before int64) (int64, error) {
	tag, err := p.pool.Exec(ctx, `DELETE FROM rate_windows WHERE window_start < $1`, before)
	if err != nil {
		return 0, err
	}

	return tag.RowsAffected(), nil
}

// Ping checks PostgreSQL connectivity.
func (p *PostgresCounterStore) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Compile-time check.
var _ ratelimit.CounterStore = (*PostgresCounterStore)(nil)

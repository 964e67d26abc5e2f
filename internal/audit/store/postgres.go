package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/serroba/millennium-gate/internal/audit"
)

const rateLimitEventsSchema = `
CREATE TABLE IF NOT EXISTS rate_limit_events (
	id                  UUID PRIMARY KEY,
	outcome             TEXT        NOT NULL,
	subject             TEXT        NOT NULL,
	action              TEXT        NOT NULL,
	limit_value         BIGINT      NOT NULL,
	remaining           BIGINT      NOT NULL,
	count               BIGINT      NOT NULL,
	reset_at            TIMESTAMPTZ NOT NULL,
	retry_after_seconds BIGINT      NOT NULL DEFAULT 0,
	client_ip           TEXT,
	user_agent          TEXT,
	occurred_at         TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS rate_limit_events_subject_idx ON rate_limit_events (subject, occurred_at);
`

// Postgres persists decision events to the rate_limit_events table.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a Postgres-backed audit store.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Migrate creates the events table if it does not exist.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, rateLimitEventsSchema); err != nil {
		return fmt.Errorf("migrate rate_limit_events: %w", err)
	}

	return nil
}

// SaveDecision inserts the event. Redelivered events are ignored by id.
func (p *Postgres) SaveDecision(ctx context.Context, event *audit.DecisionEvent) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO rate_limit_events (
			id, outcome, subject, action, limit_value, remaining, count,
			reset_at, retry_after_seconds, client_ip, user_agent, occurred_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO NOTHING
	`,
		event.ID, string(event.Outcome), event.Subject, event.Action, event.Limit, event.Remaining,
		event.Count, event.ResetAt, event.RetryAfterSeconds, event.ClientIP, event.UserAgent, event.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("save decision event %s: %w", event.ID, err)
	}

	return nil
}

// Compile-time check.
var _ audit.Store = (*Postgres)(nil)

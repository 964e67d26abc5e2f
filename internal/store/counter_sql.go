package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql" // registers the "mysql" driver
	_ "github.com/lib/pq"              // registers the "postgres" driver
	_ "github.com/mattn/go-sqlite3"    // registers the "sqlite3" driver
	"github.com/serroba/millennium-gate/internal/ratelimit"
)

// Supported database/sql dialects, named after their registered driver.
const (
	DialectSQLite   = "sqlite3"
	DialectMySQL    = "mysql"
	DialectPostgres = "postgres"
)

var errUnsupportedDialect = errors.New("unsupported sql dialect")

type sqlDialect struct {
	schema    []string
	increment string
	sweep     string
	// lastInsertID reads the count from the result instead of RETURNING.
	lastInsertID bool
}

var sqlDialects = map[string]sqlDialect{
	DialectSQLite: {
		schema: []string{
			`CREATE TABLE IF NOT EXISTS rate_windows (
				subject      VARCHAR(255) NOT NULL,
				action       VARCHAR(64)  NOT NULL,
				window_start BIGINT       NOT NULL,
				count        BIGINT       NOT NULL CHECK (count >= 0),
				updated_at   TIMESTAMP    NOT NULL,
				PRIMARY KEY (subject, action, window_start)
			)`,
			`CREATE INDEX IF NOT EXISTS idx_rate_windows_window_start ON rate_windows (window_start)`,
		},
		increment: `
			INSERT INTO rate_windows (subject, action, window_start, count, updated_at)
			VALUES (?, ?, ?, 1, ?)
			ON CONFLICT (subject, action, window_start)
			DO UPDATE SET count = count + 1, updated_at = excluded.updated_at
			RETURNING count`,
		sweep: `DELETE FROM rate_windows WHERE window_start < ?`,
	},
	DialectPostgres: {
		schema: []string{postgresRateWindowsSchema},
		increment: `
			INSERT INTO rate_windows (subject, action, window_start, count, updated_at)
			VALUES ($1, $2, $3, 1, $4)
			ON CONFLICT (subject, action, window_start)
			DO UPDATE SET count = rate_windows.count + 1, updated_at = EXCLUDED.updated_at
			RETURNING count`,
		sweep: `DELETE FROM rate_windows WHERE window_start < $1`,
	},
	DialectMySQL: {
		schema: []string{
			`CREATE TABLE IF NOT EXISTS rate_windows (
				subject      VARCHAR(255) NOT NULL,
				action       VARCHAR(64)  NOT NULL,
				window_start BIGINT       NOT NULL,
				count        BIGINT       NOT NULL,
				updated_at   TIMESTAMP    NOT NULL,
				PRIMARY KEY (subject, action, window_start),
				INDEX idx_rate_windows_window_start (window_start)
			)`,
		},
		// LAST_INSERT_ID(expr) hands the new value back on the same connection
		// without a second read.
		increment: `
			INSERT INTO rate_windows (subject, action, window_start, count, updated_at)
			VALUES (?, ?, ?, LAST_INSERT_ID(1), ?)
			ON DUPLICATE KEY UPDATE count = LAST_INSERT_ID(count + 1), updated_at = VALUES(updated_at)`,
		sweep:        `DELETE FROM rate_windows WHERE window_start < ?`,
		lastInsertID: true,
	},
}

// SQLCounterStore is a database/sql implementation of ratelimit.CounterStore.
// It supports SQLite, MySQL, and PostgreSQL.
type SQLCounterStore struct {
	db      *sql.DB
	dialect sqlDialect
	now     func() time.Time
}

// NewSQLCounterStore creates a new SQL-backed counter store.
func NewSQLCounterStore(db *sql.DB, dialect string) (*SQLCounterStore, error) {
	if db == nil {
		return nil, errors.New("database connection is required")
	}

	d, ok := sqlDialects[dialect]
	if !ok {
		return nil, fmt.Errorf("%w: %s (supported: sqlite3, mysql, postgres)", errUnsupportedDialect, dialect)
	}

	if dialect == DialectSQLite {
		// SQLite has a single writer; queue in the pool instead of on SQLITE_BUSY.
		db.SetMaxOpenConns(1)
	}

	return &SQLCounterStore{
		db:      db,
		dialect: d,
		now:     time.Now,
	}, nil
}

// OpenSQLCounterStore opens dsn with the dialect's driver and migrates the schema.
func OpenSQLCounterStore(ctx context.Context, dialect, dsn string) (*SQLCounterStore, error) {
	db, err := sql.Open(dialect, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}

	s, err := NewSQLCounterStore(db, dialect)
	if err != nil {
		_ = db.Close()

		return nil, err
	}

	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()

		return nil, err
	}

	return s, nil
}

// Migrate creates the rate_windows table if it does not exist.
func (s *SQLCounterStore) Migrate(ctx context.Context) error {
	for _, stmt := range s.dialect.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create rate_windows table: %w", err)
		}
	}

	return nil
}

func (s *SQLCounterStore) IncrementAndGet(ctx context.Context, key ratelimit.WindowKey) (int64, error) {
	if err := key.Validate(); err != nil {
		return 0, err
	}

	args := []any{key.Subject, key.Action, key.WindowStart, s.now().UTC()}

	if s.dialect.lastInsertID {
		res, err := s.db.ExecContext(ctx, s.dialect.increment, args...)
		if err != nil {
			return 0, ratelimit.Unavailable(err)
		}

		count, err := res.LastInsertId()
		if err != nil {
			return 0, ratelimit.Unavailable(err)
		}

		return count, nil
	}

	var count int64
	if err := s.db.QueryRowContext(ctx, s.dialect.increment, args...).Scan(&count); err != nil {
		return 0, ratelimit.Unavailable(err)
	}

	return count, nil
}

// Sweep deletes windows that started before the given epoch second.
func (s *SQLCounterStore) Sweep(ctx context.Context, before int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.dialect.sweep, before)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

// Ping checks database connectivity.
func (s *SQLCounterStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Shutdown closes the database.
func (s *SQLCounterStore) Shutdown() error {
	return s.db.Close()
}

// Compile-time check.
var _ ratelimit.CounterStore = (*SQLCounterStore)(nil)

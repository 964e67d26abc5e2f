package container

import "time"

// Counter store backends.
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
	StoreSQL      = "sql"
)

// Message brokers.
const (
	BrokerRedis  = "redis"
	BrokerMemory = "memory"
)

// Audit stores.
const (
	AuditNoop     = "noop"
	AuditPostgres = "postgres"
)

// Options are the server flags. humacli also reads them from SERVICE_* env vars.
type Options struct {
	Port      int    `default:"8888" help:"Port to listen on"                        short:"p"`
	LogFormat string `default:"json" help:"Log format: json or console"`

	Store       string `default:"memory"                                                help:"Counter store: memory, redis, postgres or sql"   short:"s"`
	RedisAddr   string `default:"localhost:6379"                                        help:"Redis server address"                            short:"r"`
	DatabaseURL string `default:"postgres://localhost:5432/millennium?sslmode=disable" help:"PostgreSQL connection URL"`
	SQLDriver   string `default:"sqlite3"                                               help:"database/sql driver for --store=sql: sqlite3, mysql or postgres"`
	SQLDSN      string `default:"file:ratelimit.db?_busy_timeout=5000"                  help:"Data source name for --store=sql"`

	PolicyFile     string `help:"YAML file with per-action policies; built-in defaults when empty"`
	JWTSecret      string `help:"HS256 secret for bearer tokens; empty treats every caller as anonymous"`
	CheckTimeoutMS int    `default:"250" help:"Timeout in milliseconds for one counter store call"`
	RetentionHours int    `default:"48"  help:"Hours finished rate windows are kept"`
	SweepSeconds   int    `default:"600" help:"Seconds between sweeps of expired windows"`
	CheckAPI       bool   `default:"false" help:"Expose POST /ratelimit/check to server-side callers"`

	Broker        string `default:"redis" help:"Message broker: redis or memory"`
	AuditStore    string `default:"noop"  help:"Audit event store: noop or postgres"`
	ConsumerGroup string `default:"audit" help:"Redis stream consumer group for audit events"`
}

// CheckTimeout is the per-call counter store timeout.
func (o *Options) CheckTimeout() time.Duration {
	return time.Duration(o.CheckTimeoutMS) * time.Millisecond
}

// Retention is how long finished windows are kept.
func (o *Options) Retention() time.Duration {
	return time.Duration(o.RetentionHours) * time.Hour
}

// SweepInterval is the janitor tick.
func (o *Options) SweepInterval() time.Duration {
	return time.Duration(o.SweepSeconds) * time.Second
}

package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/serroba/millennium-gate/internal/ratelimit"
)

// DefaultRedisRetention is how long an idle window key lives in Redis.
const DefaultRedisRetention = 48 * time.Hour

// RedisCounterStore is a Redis implementation of ratelimit.CounterStore.
// Each window is a plain integer key; INCR is atomic on the server.
type RedisCounterStore struct {
	client    redis.UniversalClient
	prefix    string
	retention time.Duration
}

// NewRedisCounterStore creates a new Redis-backed counter store. Keys expire
// after retention so stale windows are collected by Redis itself.
func NewRedisCounterStore(client redis.UniversalClient, retention time.Duration) *RedisCounterStore {
	if retention <= 0 {
		retention = DefaultRedisRetention
	}

	return &RedisCounterStore{
		client:    client,
		prefix:    "ratelimit:",
		retention: retention,
	}
}

func (r *RedisCounterStore) IncrementAndGet(ctx context.Context, key ratelimit.WindowKey) (int64, error) {
	if err := key.Validate(); err != nil {
		return 0, err
	}

	redisKey := r.prefix + key.String()

	// MULTI/EXEC so the expiry is never missing on a fresh key
	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, r.retention)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, ratelimit.Unavailable(err)
	}

	return incr.Val(), nil
}

// Ping checks Redis connectivity.
func (r *RedisCounterStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Compile-time check.
var _ ratelimit.CounterStore = (*RedisCounterStore)(nil)

package store

import (
	"context"
	"sync"

	"github.com/serroba/millennium-gate/internal/ratelimit"
)

// MemoryCounterStore is an in-memory implementation of ratelimit.CounterStore.
// Counters are process-local; use it for tests and single-instance development.
type MemoryCounterStore struct {
	mu     sync.Mutex
	counts map[ratelimit.WindowKey]int64
}

// NewMemoryCounterStore creates a new in-memory counter store.
func NewMemoryCounterStore() *MemoryCounterStore {
	return &MemoryCounterStore{
		counts: make(map[ratelimit.WindowKey]int64),
	}
}

func (s *MemoryCounterStore) IncrementAndGet(_ context.Context, key ratelimit.WindowKey) (int64, error) {
	if err := key.Validate(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.counts[key]++

	return s.counts[key], nil
}

// Count returns the current count for key without incrementing it.
func (s *MemoryCounterStore) Count(key ratelimit.WindowKey) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.counts[key]
}

// Sweep removes windows that started before the given epoch second.
func (s *MemoryCounterStore) Sweep(_ context.Context, before int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64

	for key := range s.counts {
		if key.WindowStart < before {
			delete(s.counts, key)
			removed++
		}
	}

	return removed, nil
}

// Ping always succeeds.
func (s *MemoryCounterStore) Ping(_ context.Context) error {
	return nil
}

// Compile-time check.
var _ ratelimit.CounterStore = (*MemoryCounterStore)(nil)

package store

import (
	"context"
	"sort"
	"sync"

	"github.com/serroba/millennium-gate/internal/engagement"
)

// MemoryStore is an in-memory implementation of engagement.Repository.
type MemoryStore struct {
	mu       sync.RWMutex
	comments map[string][]engagement.Comment // problem slug -> comments
	likes    map[string]map[string]struct{}  // problem slug -> subjects
}

// NewMemoryStore creates a new in-memory engagement store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		comments: make(map[string][]engagement.Comment),
		likes:    make(map[string]map[string]struct{}),
	}
}

func (m *MemoryStore) SaveComment(_ context.Context, comment *engagement.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.comments[comment.ProblemSlug] = append(m.comments[comment.ProblemSlug], *comment)

	return nil
}

func (m *MemoryStore) ListComments(_ context.Context, problemSlug string) ([]engagement.Comment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	comments := append([]engagement.Comment(nil), m.comments[problemSlug]...)

	sort.SliceStable(comments, func(i, j int) bool {
		return comments[i].CreatedAt.Before(comments[j].CreatedAt)
	})

	return comments, nil
}

func (m *MemoryStore) ToggleLike(_ context.Context, problemSlug, subject string) (engagement.LikeState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	subjects, ok := m.likes[problemSlug]
	if !ok {
		subjects = make(map[string]struct{})
		m.likes[problemSlug] = subjects
	}

	_, liked := subjects[subject]
	if liked {
		delete(subjects, subject)
	} else {
		subjects[subject] = struct{}{}
	}

	return engagement.LikeState{Liked: !liked, Total: len(subjects)}, nil
}

// Compile-time check.
var _ engagement.Repository = (*MemoryStore)(nil)

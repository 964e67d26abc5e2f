// Package engagement holds the user-generated content that protected endpoints
// create: comments, likes, and AI summaries on problem pages.
package engagement

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("not found")

// Comment is a user comment on a problem page.
type Comment struct {
	ID          string
	ProblemSlug string
	Subject     string
	Body        string
	CreatedAt   time.Time
}

// LikeState is the result of toggling a like.
type LikeState struct {
	Liked bool
	Total int
}

// Repository defines the interface for engagement storage operations.
type Repository interface {
	SaveComment(ctx context.Context, comment *Comment) error
	ListComments(ctx context.Context, problemSlug string) ([]Comment, error)

	// ToggleLike flips the subject's like on a problem and returns the new state.
	ToggleLike(ctx context.Context, problemSlug, subject string) (LikeState, error)
}

// IDGenerator generates unique identifiers.
type IDGenerator func() string

package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/millennium-gate/internal/engagement"
	"github.com/serroba/millennium-gate/internal/identity"
	"github.com/serroba/millennium-gate/internal/messaging"
	"go.uber.org/zap"
)

const defaultSummarySentences = 3

// EngagementHandler serves the budgeted problem-page interactions.
type EngagementHandler struct {
	repo          engagement.Repository
	newID         engagement.IDGenerator
	publishStroke messaging.Publish[engagement.StrokeEvent]
	logger        *zap.Logger
	now           func() time.Time
}

// NewEngagementHandler creates a new engagement handler.
func NewEngagementHandler(
	repo engagement.Repository,
	newID engagement.IDGenerator,
	publishStroke messaging.Publish[engagement.StrokeEvent],
	logger *zap.Logger,
) *EngagementHandler {
	return &EngagementHandler{
		repo:          repo,
		newID:         newID,
		publishStroke: publishStroke,
		logger:        logger,
		now:           time.Now,
	}
}

func (h *EngagementHandler) CreateComment(
	ctx context.Context, req *CreateCommentRequest,
) (*CreateCommentResponse, error) {
	comment := &engagement.Comment{
		ID:          h.newID(),
		ProblemSlug: req.Slug,
		Subject:     identity.RequestMetaFromContext(ctx).Subject,
		Body:        req.Body.Body,
		CreatedAt:   h.now(),
	}

	if err := h.repo.SaveComment(ctx, comment); err != nil {
		h.logger.Error("failed to save comment", zap.String("slug", req.Slug), zap.Error(err))

		return nil, huma.Error500InternalServerError("failed to save comment")
	}

	return &CreateCommentResponse{
		Status: http.StatusCreated,
		Body:   commentBody(*comment),
	}, nil
}

func (h *EngagementHandler) ListComments(
	ctx context.Context, req *ListCommentsRequest,
) (*ListCommentsResponse, error) {
	comments, err := h.repo.ListComments(ctx, req.Slug)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to list comments")
	}

	resp := &ListCommentsResponse{}
	resp.Body.Comments = make([]CommentBody, 0, len(comments))

	for _, c := range comments {
		resp.Body.Comments = append(resp.Body.Comments, commentBody(c))
	}

	return resp, nil
}

func (h *EngagementHandler) ToggleLike(ctx context.Context, req *ToggleLikeRequest) (*ToggleLikeResponse, error) {
	state, err := h.repo.ToggleLike(ctx, req.Slug, identity.RequestMetaFromContext(ctx).Subject)
	if err != nil {
		h.logger.Error("failed to toggle like", zap.String("slug", req.Slug), zap.Error(err))

		return nil, huma.Error500InternalServerError("failed to toggle like")
	}

	resp := &ToggleLikeResponse{}
	resp.Body.Liked = state.Liked
	resp.Body.Total = state.Total

	return resp, nil
}

func (h *EngagementHandler) Summarize(_ context.Context, req *SummarizeRequest) (*SummarizeResponse, error) {
	maxSentences := req.Body.MaxSentences
	if maxSentences == 0 {
		maxSentences = defaultSummarySentences
	}

	resp := &SummarizeResponse{}
	resp.Body.PaperID = req.PaperID
	resp.Body.Summary = engagement.Summarize(req.Body.Text, maxSentences)

	return resp, nil
}

func (h *EngagementHandler) BroadcastStroke(
	ctx context.Context, req *BroadcastStrokeRequest,
) (*BroadcastStrokeResponse, error) {
	event := &engagement.StrokeEvent{
		ID:      h.newID(),
		Room:    req.Room,
		Subject: identity.RequestMetaFromContext(ctx).Subject,
		Color:   req.Body.Color,
		Width:   req.Body.Width,
		Points:  req.Body.Points,
		SentAt:  h.now(),
	}

	if err := h.publishStroke(ctx, event); err != nil {
		h.logger.Error("failed to publish stroke",
			zap.String("room", req.Room),
			zap.Error(err),
		)

		return nil, huma.Error503ServiceUnavailable("whiteboard broadcast unavailable")
	}

	resp := &BroadcastStrokeResponse{Status: http.StatusAccepted}
	resp.Body.ID = event.ID

	return resp, nil
}

func commentBody(c engagement.Comment) CommentBody {
	return CommentBody{
		ID:        c.ID,
		Subject:   c.Subject,
		Body:      c.Body,
		CreatedAt: c.CreatedAt,
	}
}

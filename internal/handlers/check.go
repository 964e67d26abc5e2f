package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/millennium-gate/internal/identity"
	"github.com/serroba/millennium-gate/internal/ratelimit"
)

// CheckHandler exposes the limiter to server-side functions that are not
// routed through the HTTP middleware.
type CheckHandler struct {
	checker ratelimit.Checker
	now     func() time.Time
}

// NewCheckHandler creates a new check handler.
func NewCheckHandler(checker ratelimit.Checker) *CheckHandler {
	return &CheckHandler{checker: checker, now: time.Now}
}

// Check counts one attempt and returns the decision. A denied decision is a
// normal 200 response; callers decide how to surface it.
func (h *CheckHandler) Check(ctx context.Context, req *CheckRequest) (*CheckResponse, error) {
	subject := req.Body.Subject
	if subject == "" {
		subject = identity.RequestMetaFromContext(ctx).Subject
	}

	decision, err := h.decide(ctx, subject, req)
	if err != nil {
		switch {
		case errors.Is(err, ratelimit.ErrUnknownAction):
			return nil, huma.Error404NotFound(err.Error())
		case errors.Is(err, ratelimit.ErrInvalidKey), errors.Is(err, ratelimit.ErrInvalidPolicy):
			return nil, huma.Error422UnprocessableEntity(err.Error())
		default:
			return nil, huma.Error500InternalServerError("rate limit check failed")
		}
	}

	resp := &CheckResponse{}
	resp.Body.Allowed = decision.Allowed
	resp.Body.Limit = decision.Limit
	resp.Body.Remaining = decision.Remaining
	resp.Body.Count = decision.Count
	resp.Body.ResetAt = decision.ResetAt
	resp.Body.RetryAfterSeconds = decision.RetryAfterSeconds()
	resp.Body.StoreError = decision.StoreError

	return resp, nil
}

func (h *CheckHandler) decide(ctx context.Context, subject string, req *CheckRequest) (ratelimit.Decision, error) {
	if req.Body.Limit == 0 && req.Body.WindowSeconds == 0 {
		return h.checker.CheckAction(ctx, subject, req.Body.Action, h.now())
	}

	policy := ratelimit.Policy{Limit: req.Body.Limit, WindowSeconds: req.Body.WindowSeconds}

	return h.checker.Check(ctx, subject, req.Body.Action, policy, h.now())
}

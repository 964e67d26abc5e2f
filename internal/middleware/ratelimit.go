package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/millennium-gate/internal/identity"
	"github.com/serroba/millennium-gate/internal/ratelimit"
	"go.uber.org/zap"
)

// TooManyRequestsError is the 429 body. It extends the problem details model
// with the decision so clients can schedule a retry.
type TooManyRequestsError struct {
	huma.ErrorModel

	Limit             int64     `json:"limit"`
	Remaining         int64     `json:"remaining"`
	ResetAt           time.Time `json:"resetAt"`
	RetryAfterSeconds int64     `json:"retryAfterSeconds"`
}

// NewTooManyRequestsError builds the 429 body for a denied decision.
func NewTooManyRequestsError(action string, decision ratelimit.Decision) *TooManyRequestsError {
	return &TooManyRequestsError{
		ErrorModel: huma.ErrorModel{
			Status: http.StatusTooManyRequests,
			Title:  http.StatusText(http.StatusTooManyRequests),
			Detail: fmt.Sprintf("rate limit exceeded for %s: %d requests allowed, retry in %ds",
				action, decision.Limit, decision.RetryAfterSeconds()),
		},
		Limit:             decision.Limit,
		Remaining:         decision.Remaining,
		ResetAt:           decision.ResetAt,
		RetryAfterSeconds: decision.RetryAfterSeconds(),
	}
}

// RateLimit returns a Huma middleware that budgets operations protected with
// ratelimit.Protect. Operations without an EndpointConfig pass through.
//
// Every protected request is counted. Allowed responses carry the
// X-RateLimit-* headers; denied requests get 429 with Retry-After.
func RateLimit(
	api huma.API,
	checker ratelimit.Checker,
	logger *zap.Logger,
) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		cfg := ratelimit.GetEndpointConfig(ctx)
		if cfg == nil {
			next(ctx)

			return
		}

		path := getOperationPath(ctx)

		if cfg.Disabled {
			logger.Debug("rate limiting disabled for endpoint",
				zap.String("path", path), zap.String("method", ctx.Method()))
			next(ctx)

			return
		}

		subject := subjectOf(ctx)

		decision, err := check(ctx, checker, subject, cfg)
		if err != nil {
			logger.Error("rate limit check failed",
				zap.String("path", path),
				zap.String("action", cfg.Action),
				zap.Error(err),
			)
			_ = huma.WriteErr(api, ctx, http.StatusInternalServerError, "internal server error", err)

			return
		}

		for name, value := range decision.Headers() {
			ctx.SetHeader(name, value)
		}

		if !decision.Allowed {
			logger.Warn("rate limit exceeded",
				zap.String("path", path),
				zap.String("method", ctx.Method()),
				zap.String("subject", subject),
				zap.String("action", cfg.Action),
				zap.Int64("count", decision.Count),
				zap.Int64("limit", decision.Limit),
			)
			writeTooManyRequests(api, ctx, NewTooManyRequestsError(cfg.Action, decision))

			return
		}

		next(ctx)
	}
}

func check(
	ctx huma.Context,
	checker ratelimit.Checker,
	subject string,
	cfg *ratelimit.EndpointConfig,
) (ratelimit.Decision, error) {
	now := time.Now()

	if cfg.Policy != nil {
		return checker.Check(ctx.Context(), subject, cfg.Action, *cfg.Policy, now)
	}

	return checker.CheckAction(ctx.Context(), subject, cfg.Action, now)
}

// subjectOf prefers the subject resolved by RequestMeta and falls back to the
// anonymous fingerprint so the subject is never empty.
func subjectOf(ctx huma.Context) string {
	if subject := identity.RequestMetaFromContext(ctx.Context()).Subject; subject != "" {
		return subject
	}

	ip := identity.ClientIP(ctx.Header("X-Forwarded-For"), ctx.Header("X-Real-IP"), ctx.RemoteAddr())

	return identity.Anonymous(ip, ctx.Header("User-Agent"))
}

// getOperationPath extracts the path from the operation, if available.
func getOperationPath(ctx huma.Context) string {
	if op := ctx.Operation(); op != nil {
		return op.Path
	}

	return ""
}

func writeTooManyRequests(api huma.API, ctx huma.Context, body *TooManyRequestsError) {
	ct, err := api.Negotiate(ctx.Header("Accept"))
	if err != nil {
		ct = "application/json"
	}

	ctx.SetHeader("Content-Type", body.ContentType(ct))
	ctx.SetStatus(body.Status)

	_ = api.Marshal(ctx.BodyWriter(), ct, body)
}

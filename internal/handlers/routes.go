package handlers

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/millennium-gate/internal/ratelimit"
)

// RegisterRoutes registers the problem-page routes, each budgeted under its action.
func RegisterRoutes(api huma.API, h *EngagementHandler) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-comment",
		Method:        http.MethodPost,
		Path:          "/problems/{slug}/comments",
		Summary:       "Post a comment",
		Tags:          []string{"Problems"},
		DefaultStatus: http.StatusCreated,
		Metadata:      ratelimit.Protect(ratelimit.ActionComment),
	}, h.CreateComment)

	// Reads are not budgeted.
	huma.Register(api, huma.Operation{
		OperationID: "list-comments",
		Method:      http.MethodGet,
		Path:        "/problems/{slug}/comments",
		Summary:     "List comments",
		Tags:        []string{"Problems"},
	}, h.ListComments)

	huma.Register(api, huma.Operation{
		OperationID: "toggle-like",
		Method:      http.MethodPost,
		Path:        "/problems/{slug}/likes",
		Summary:     "Toggle like",
		Description: "Likes the problem, or removes the caller's like if already present.",
		Tags:        []string{"Problems"},
		Metadata:    ratelimit.Protect(ratelimit.ActionLike),
	}, h.ToggleLike)

	huma.Register(api, huma.Operation{
		OperationID: "summarize-paper",
		Method:      http.MethodPost,
		Path:        "/papers/{id}/summaries",
		Summary:     "Summarize a paper",
		Tags:        []string{"Papers"},
		Metadata:    ratelimit.Protect(ratelimit.ActionAISummarize),
	}, h.Summarize)

	huma.Register(api, huma.Operation{
		OperationID:   "broadcast-stroke",
		Method:        http.MethodPost,
		Path:          "/whiteboards/{room}/strokes",
		Summary:       "Broadcast a whiteboard stroke",
		Tags:          []string{"Whiteboards"},
		DefaultStatus: http.StatusAccepted,
		Metadata:      ratelimit.Protect(ratelimit.ActionWhiteboardBroadcast),
	}, h.BroadcastStroke)
}

// RegisterCheckRoutes registers the decision API for server-side callers.
func RegisterCheckRoutes(api huma.API, h *CheckHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "check-rate-limit",
		Method:      http.MethodPost,
		Path:        "/ratelimit/check",
		Summary:     "Check a rate limit",
		Description: "Counts one attempt for the subject and action and returns the decision.",
		Tags:        []string{"Rate limits"},
	}, h.Check)
}

package handlers

import (
	"time"

	"github.com/serroba/millennium-gate/internal/engagement"
)

// CommentBody is a comment as returned by the API.
type CommentBody struct {
	ID        string    `doc:"Comment ID"                  json:"id"`
	Subject   string    `doc:"Author subject"              json:"subject"`
	Body      string    `doc:"Comment text"                json:"body"`
	CreatedAt time.Time `doc:"When the comment was posted" json:"createdAt"`
}

// CreateCommentRequest is the request for posting a comment on a problem.
type CreateCommentRequest struct {
	Slug string `doc:"Problem slug" example:"riemann-hypothesis" path:"slug"`
	Body struct {
		Body string `doc:"Comment text" example:"The zeta zeros look suspiciously regular." json:"body" maxLength:"2000" minLength:"1"`
	}
}

// CreateCommentResponse is the response for a created comment.
type CreateCommentResponse struct {
	Status int
	Body   CommentBody
}

// ListCommentsRequest is the request for listing a problem's comments.
type ListCommentsRequest struct {
	Slug string `doc:"Problem slug" example:"riemann-hypothesis" path:"slug"`
}

// ListCommentsResponse is the response for listing comments.
type ListCommentsResponse struct {
	Body struct {
		Comments []CommentBody `json:"comments"`
	}
}

// ToggleLikeRequest is the request for toggling a like on a problem.
type ToggleLikeRequest struct {
	Slug string `doc:"Problem slug" example:"p-vs-np" path:"slug"`
}

// ToggleLikeResponse reports the like state after the toggle.
type ToggleLikeResponse struct {
	Body struct {
		Liked bool `doc:"Whether the caller now likes the problem" json:"liked"`
		Total int  `doc:"Total likes on the problem"               json:"total"`
	}
}

// SummarizeRequest is the request for summarizing a paper.
type SummarizeRequest struct {
	PaperID string `doc:"Paper ID" example:"arxiv-2301.00001" path:"id"`
	Body    struct {
		Text         string `doc:"Paper text to summarize"     json:"text"                   maxLength:"100000" minLength:"1"`
		MaxSentences int    `doc:"Maximum sentences to return" json:"maxSentences,omitempty" maximum:"20"       minimum:"1"`
	}
}

// SummarizeResponse is the response for a paper summary.
type SummarizeResponse struct {
	Body struct {
		PaperID string `json:"paperId"`
		Summary string `json:"summary"`
	}
}

// BroadcastStrokeRequest is the request for broadcasting a whiteboard stroke.
type BroadcastStrokeRequest struct {
	Room string `doc:"Whiteboard room" example:"navier-stokes-study" path:"room"`
	Body struct {
		Color  string             `doc:"Stroke color"       example:"#1f77b4" json:"color"  maxLength:"32"`
		Width  float64            `doc:"Stroke width in px" example:"2"       json:"width"  maximum:"64" minimum:"0"`
		Points []engagement.Point `doc:"Stroke points"                        json:"points" maxItems:"2048" minItems:"1"`
	}
}

// BroadcastStrokeResponse acknowledges a queued stroke.
type BroadcastStrokeResponse struct {
	Status int
	Body   struct {
		ID string `json:"id"`
	}
}

// CheckRequest asks for a rate limit decision on behalf of a subject.
type CheckRequest struct {
	Body struct {
		Subject       string `doc:"Subject to check; defaults to the caller" json:"subject,omitempty"`
		Action        string `doc:"Action tag"                               json:"action"                  minLength:"1"`
		Limit         int64  `doc:"Limit override"                           json:"limit,omitempty"         minimum:"0"`
		WindowSeconds int64  `doc:"Window override in seconds"               json:"windowSeconds,omitempty" minimum:"0"`
	}
}

// CheckResponse is the rate limit decision.
type CheckResponse struct {
	Body struct {
		Allowed           bool      `json:"allowed"`
		Limit             int64     `json:"limit"`
		Remaining         int64     `json:"remaining"`
		Count             int64     `json:"count"`
		ResetAt           time.Time `json:"resetAt"`
		RetryAfterSeconds int64     `json:"retryAfterSeconds,omitempty"`
		StoreError        bool      `json:"storeError,omitempty"`
	}
}

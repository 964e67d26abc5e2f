package audit

import (
	"time"

	"github.com/serroba/millennium-gate/internal/ratelimit"
)

// TopicDecisions carries denied and degraded rate limit decisions.
const TopicDecisions = "ratelimit.decisions"

// Outcome classifies a decision worth auditing.
type Outcome string

const (
	OutcomeDenied   Outcome = "denied"
	OutcomeDegraded Outcome = "degraded"
)

// DecisionEvent represents a rate limit decision emitted for audit.
type DecisionEvent struct {
	ID                string    `json:"id"`
	Outcome           Outcome   `json:"outcome"`
	Subject           string    `json:"subject"`
	Action            string    `json:"action"`
	Limit             int64     `json:"limit"`
	Remaining         int64     `json:"remaining"`
	Count             int64     `json:"count"`
	ResetAt           time.Time `json:"resetAt"`
	RetryAfterSeconds int64     `json:"retryAfterSeconds,omitempty"`
	ClientIP          string    `json:"clientIp,omitempty"`
	UserAgent         string    `json:"userAgent,omitempty"`
	OccurredAt        time.Time `json:"occurredAt"`
}

// OutcomeOf reports whether decision should be audited and how.
// Plain allowed decisions are not audited.
func OutcomeOf(decision ratelimit.Decision) (Outcome, bool) {
	switch {
	case decision.StoreError:
		return OutcomeDegraded, true
	case !decision.Allowed:
		return OutcomeDenied, true
	default:
		return "", false
	}
}

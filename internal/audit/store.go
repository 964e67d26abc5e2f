package audit

import "context"

// Store defines the interface for persisting audit events.
type Store interface {
	SaveDecision(ctx context.Context, event *DecisionEvent) error
}

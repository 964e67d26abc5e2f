package store

import (
	"context"

	"github.com/serroba/millennium-gate/internal/audit"
	"go.uber.org/zap"
)

// Noop is a no-op implementation of audit.Store that logs events.
type Noop struct {
	logger *zap.Logger
}

// NewNoop creates a new no-op audit store.
func NewNoop(logger *zap.Logger) *Noop {
	return &Noop{logger: logger}
}

func (n *Noop) SaveDecision(_ context.Context, event *audit.DecisionEvent) error {
	n.logger.Info("rate limit decision received",
		zap.String("id", event.ID),
		zap.String("outcome", string(event.Outcome)),
		zap.String("subject", event.Subject),
		zap.String("action", event.Action),
		zap.Int64("count", event.Count),
		zap.Int64("limit", event.Limit),
		zap.Time("occurredAt", event.OccurredAt),
	)

	return nil
}

// Compile-time check.
var _ audit.Store = (*Noop)(nil)

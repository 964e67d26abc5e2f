package audit

import (
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/serroba/millennium-gate/internal/messaging"
	"go.uber.org/zap"
)

// NewConsumer creates a consumer that persists decision events to store.
func NewConsumer(
	subscriber message.Subscriber,
	store Store,
	logger *zap.Logger,
) *messaging.Consumer[DecisionEvent] {
	return messaging.NewConsumer[DecisionEvent](subscriber, TopicDecisions, store.SaveDecision, logger)
}

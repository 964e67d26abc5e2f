package audit

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/serroba/millennium-gate/internal/identity"
	"github.com/serroba/millennium-gate/internal/messaging"
	"github.com/serroba/millennium-gate/internal/ratelimit"
	"go.uber.org/zap"
)

const (
	defaultQueueSize      = 1024
	defaultPublishTimeout = 2 * time.Second
)

// Recorder publishes denied and degraded decisions as DecisionEvents.
//
// ObserveDecision only enqueues; a background loop started with Start does the
// publishing, so a slow broker never holds up a rate limit check. Events that
// do not fit in the queue are dropped and counted.
type Recorder struct {
	publish        messaging.Publish[DecisionEvent]
	logger         *zap.Logger
	now            func() time.Time
	queue          chan *DecisionEvent
	publishTimeout time.Duration
	dropped        atomic.Uint64
	cancel         context.CancelFunc
	done           chan struct{}
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithQueueSize sets how many events may wait for publishing.
func WithQueueSize(size int) RecorderOption {
	return func(r *Recorder) {
		r.queue = make(chan *DecisionEvent, size)
	}
}

// WithPublishTimeout bounds each publish call.
func WithPublishTimeout(timeout time.Duration) RecorderOption {
	return func(r *Recorder) {
		r.publishTimeout = timeout
	}
}

// NewRecorder creates a decision recorder.
func NewRecorder(publish messaging.Publish[DecisionEvent], logger *zap.Logger, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		publish:        publish,
		logger:         logger,
		now:            time.Now,
		queue:          make(chan *DecisionEvent, defaultQueueSize),
		publishTimeout: defaultPublishTimeout,
		done:           make(chan struct{}),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// ObserveDecision enqueues an event for denied and degraded decisions. It never blocks.
func (r *Recorder) ObserveDecision(ctx context.Context, subject, action string, decision ratelimit.Decision) {
	outcome, ok := OutcomeOf(decision)
	if !ok {
		return
	}

	meta := identity.RequestMetaFromContext(ctx)

	event := &DecisionEvent{
		ID:                uuid.NewString(),
		Outcome:           outcome,
		Subject:           subject,
		Action:            action,
		Limit:             decision.Limit,
		Remaining:         decision.Remaining,
		Count:             decision.Count,
		ResetAt:           decision.ResetAt,
		RetryAfterSeconds: decision.RetryAfterSeconds(),
		ClientIP:          meta.ClientIP,
		UserAgent:         meta.UserAgent,
		OccurredAt:        r.now(),
	}

	select {
	case r.queue <- event:
	default:
		dropped := r.dropped.Add(1)
		r.logger.Warn("decision event queue full, dropping event",
			zap.String("subject", subject),
			zap.String("action", action),
			zap.String("outcome", string(outcome)),
			zap.Uint64("dropped", dropped),
		)
	}
}

// Dropped returns how many events were discarded because the queue was full.
func (r *Recorder) Dropped() uint64 {
	return r.dropped.Load()
}

// Start runs the publish loop until Shutdown or ctx is done.
func (r *Recorder) Start(ctx context.Context) error {
	ctx, r.cancel = context.WithCancel(ctx)

	go r.loop(ctx)

	return nil
}

func (r *Recorder) loop(ctx context.Context) {
	defer close(r.done)

	for {
		select {
		case <-ctx.Done():
			r.flush()

			return
		case event := <-r.queue:
			r.send(context.Background(), event)
		}
	}
}

// flush publishes whatever is already queued.
func (r *Recorder) flush() {
	for {
		select {
		case event := <-r.queue:
			r.send(context.Background(), event)
		default:
			return
		}
	}
}

func (r *Recorder) send(ctx context.Context, event *DecisionEvent) {
	ctx, cancel := context.WithTimeout(ctx, r.publishTimeout)
	defer cancel()

	if err := r.publish(ctx, event); err != nil {
		r.logger.Error("failed to publish decision event",
			zap.String("subject", event.Subject),
			zap.String("action", event.Action),
			zap.String("outcome", string(event.Outcome)),
			zap.Error(err),
		)
	}
}

// Shutdown stops the loop after publishing queued events.
func (r *Recorder) Shutdown() error {
	if r.cancel == nil {
		return nil
	}

	r.cancel()
	<-r.done

	return nil
}

// Compile-time checks.
var (
	_ ratelimit.Observer = (*Recorder)(nil)
	_ messaging.Runnable = (*Recorder)(nil)
)

// Package housekeeping removes expired rate windows from stores that do not
// expire keys on their own.
package housekeeping

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// ErrRetentionTooShort is returned when retention could drop a live window.
var ErrRetentionTooShort = errors.New("retention shorter than the longest window")

// Sweeper deletes windows whose start is before the given epoch second.
type Sweeper interface {
	Sweep(ctx context.Context, before int64) (int64, error)
}

// Janitor periodically sweeps windows older than the retention.
type Janitor struct {
	sweeper   Sweeper
	interval  time.Duration
	retention time.Duration
	logger    *zap.Logger
	now       func() time.Time
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewJanitor creates a janitor. retention must be at least maxWindow so that
// only finished windows are removed.
func NewJanitor(
	sweeper Sweeper,
	interval, retention, maxWindow time.Duration,
	logger *zap.Logger,
) (*Janitor, error) {
	if retention < maxWindow {
		return nil, ErrRetentionTooShort
	}

	return &Janitor{
		sweeper:   sweeper,
		interval:  interval,
		retention: retention,
		logger:    logger,
		now:       time.Now,
		done:      make(chan struct{}),
	}, nil
}

// Start runs the sweep loop in the background until Shutdown or ctx is done.
func (j *Janitor) Start(ctx context.Context) error {
	ctx, j.cancel = context.WithCancel(ctx)

	go j.loop(ctx)

	return nil
}

func (j *Janitor) loop(ctx context.Context) {
	defer close(j.done)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = j.SweepOnce(ctx)
		}
	}
}

// SweepOnce removes every window that started before now minus retention.
func (j *Janitor) SweepOnce(ctx context.Context) (int64, error) {
	cutoff := j.now().Add(-j.retention).Unix()

	removed, err := j.sweeper.Sweep(ctx, cutoff)
	if err != nil {
		j.logger.Warn("rate window sweep failed", zap.Int64("before", cutoff), zap.Error(err))

		return 0, err
	}

	if removed > 0 {
		j.logger.Info("swept expired rate windows", zap.Int64("removed", removed), zap.Int64("before", cutoff))
	}

	return removed, nil
}

// Shutdown stops the loop and waits for an in-flight sweep.
func (j *Janitor) Shutdown() error {
	if j.cancel == nil {
		return nil
	}

	j.cancel()
	<-j.done

	return nil
}

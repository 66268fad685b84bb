// Package worker provides the interval-driven, interruptible background
// worker shape used by Discovery, Label-Sync, the reaper, and the Summary
// worker. It is the Go translation of the original's
// InstrumentedInterruptibleIntervalThread (threading.py): a loop that runs
// its target, then sleeps the remaining interval unless woken early by a
// trigger.
package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Runner drives fn on a fixed interval, cooperatively cancellable via ctx
// and triggerable on demand via Trigger(). Overlapping triggers coalesce
// because Trigger is a non-blocking send on a capacity-1 channel.
type Runner struct {
	name     string
	interval time.Duration
	fn       func(ctx context.Context)
	trigger  chan struct{}
	log      *zap.Logger
}

func NewRunner(name string, interval time.Duration, log *zap.Logger, fn func(ctx context.Context)) *Runner {
	return &Runner{
		name:     name,
		interval: interval,
		fn:       fn,
		trigger:  make(chan struct{}, 1),
		log:      log,
	}
}

// Trigger requests an immediate run, coalescing with any already-pending
// trigger instead of blocking.
func (r *Runner) Trigger() {
	select {
	case r.trigger <- struct{}{}:
	default:
	}
}

// Run blocks until ctx is cancelled, running fn on every interval tick or
// Trigger() call. Panics and errors inside fn are the caller's
// responsibility to catch; Run itself never exits early on a bad pass,
// matching spec.md §4.1's "any stage that raises... aborts only the current
// pass."
func (r *Runner) Run(ctx context.Context) {
	r.runPass(ctx)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info("worker stopping", zap.String("worker", r.name))
			return
		case <-ticker.C:
			r.runPass(ctx)
		case <-r.trigger:
			r.runPass(ctx)
			ticker.Reset(r.interval)
		}
	}
}

func (r *Runner) runPass(ctx context.Context) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("worker pass panicked", zap.String("worker", r.name), zap.Any("panic", rec))
		}
	}()
	r.fn(ctx)
}

// Package sched runs the periodic cycles. Each tick is an
// independent attempt: an overrunning tick is abandoned when the next
// one fires, never queued behind it.
package sched

import (
	"context"
	"sync"
	"time"

	"dual-llm-trader/internal/logger"
)

// Job runs one tick. It must honor ctx: a cancelled tick's results
// are discarded by its owner.
type Job func(ctx context.Context)

type Runner struct {
	name     string
	interval time.Duration
	timeout  time.Duration
	job      Job

	mu         sync.Mutex
	gen        uint64
	cancelPrev context.CancelFunc
}

// NewRunner builds a runner. timeout bounds a single tick; zero means
// the tick is bounded by the interval itself.
func NewRunner(name string, interval, timeout time.Duration, job Job) *Runner {
	if timeout <= 0 {
		timeout = interval
	}
	return &Runner{name: name, interval: interval, timeout: timeout, job: job}
}

// Run ticks immediately, then on every interval, until ctx is done.
// It blocks; callers start one goroutine per cadence.
func (r *Runner) Run(ctx context.Context) {
	logger.Info(ctx, "Cycle runner started", "cycle", r.name, "interval", r.interval.String())

	r.launch(ctx)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.launch(ctx)
		case <-ctx.Done():
			r.abandon()
			logger.Info(context.Background(), "Cycle runner stopped", "cycle", r.name)
			return
		}
	}
}

func (r *Runner) launch(parent context.Context) {
	r.mu.Lock()
	if r.cancelPrev != nil {
		// Previous tick overran its cadence; abandon it.
		logger.Warn(parent, "Previous tick still running, abandoning it", "cycle", r.name)
		r.cancelPrev()
	}
	tickCtx, cancel := context.WithTimeout(parent, r.timeout)
	r.gen++
	myGen := r.gen
	r.cancelPrev = cancel
	r.mu.Unlock()

	go func() {
		defer func() {
			cancel()
			r.mu.Lock()
			// Only clear if a newer tick has not replaced us.
			if r.gen == myGen {
				r.cancelPrev = nil
			}
			r.mu.Unlock()
		}()
		r.job(tickCtx)
	}()
}

func (r *Runner) abandon() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancelPrev != nil {
		r.cancelPrev()
		r.cancelPrev = nil
	}
}

package agentic

import (
	"context"
	"log/slog"
	"time"
)

// DefaultTickInterval spaces ticks when the runner is built with a
// non-positive interval.
const DefaultTickInterval = 60 * time.Second

// Runner fires the loop on a fixed interval until the context ends.
// The first tick runs immediately; observation failures skip to the
// next interval without consuming a tick number.
type Runner struct {
	loop     *Loop
	interval time.Duration
}

// NewRunner wraps a loop with interval scheduling.
func NewRunner(loop *Loop, interval time.Duration) *Runner {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &Runner{loop: loop, interval: interval}
}

// Run blocks until ctx is canceled. Tick errors are logged, never fatal.
func (r *Runner) Run(ctx context.Context) {
	slog.Info("agent loop started", "agent", r.loop.identity, "interval", r.interval)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			slog.Info("agent loop stopped", "agent", r.loop.identity)
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Runner) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := r.loop.Tick(ctx); err != nil {
		slog.Warn("tick failed", "agent", r.loop.identity, "error", err)
	}
}

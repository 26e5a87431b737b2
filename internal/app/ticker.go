package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/playtime/internal/domain"
)

// TickRunner runs a single tracking tick.
type TickRunner interface {
	RunTick(ctx context.Context) (domain.TickReport, error)
}

// Scheduler triggers ticks on a fixed interval. It is optional: the HTTP /track route
// remains the primary trigger.
type Scheduler struct {
	runner   TickRunner
	interval time.Duration
	clock    clockwork.Clock
}

func NewScheduler(runner TickRunner, interval time.Duration, clock clockwork.Clock) *Scheduler {
	return &Scheduler{runner: runner, interval: interval, clock: clock}
}

// Run ticks once immediately and then on every interval. It blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	slog.InfoContext(ctx, "Scheduler started", "interval", s.interval.String())
	s.trigger(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Scheduler stopped")
			return
		case <-ticker.Chan():
			s.trigger(ctx)
		}
	}
}

func (s *Scheduler) trigger(ctx context.Context) {
	report, err := s.runner.RunTick(ctx)
	switch {
	case IsTickInProgress(err):
		slog.DebugContext(ctx, "Scheduler: tick already running elsewhere, skipping")
	case err != nil:
		slog.WarnContext(ctx, "Scheduler: tick failed", "error", err)
	default:
		slog.DebugContext(ctx, "Scheduler: tick done", "report", report.String())
	}
}

// Package scheduler runs the time-driven reminder sweep. It deliberately
// re-scans the session collections on a fixed interval instead of arming
// per-session timers: the sweep survives clock drift, missed ticks and app
// restarts, and exactly-once delivery is guaranteed by each registry's
// ReminderSent latch rather than by the timing window.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/trezcool/darasa/core"
)

// Sweeper is a registry that can flag and notify its own due reminders.
// Registries keep exclusive ownership of their collections; the scheduler only
// decides when a sweep happens.
type Sweeper interface {
	SendDueReminders(now time.Time) error
}

type Reminder struct {
	interval time.Duration
	sweepers []Sweeper
	logger   core.Logger
	now      func() time.Time
}

func NewReminder(conf *core.Config, logger core.Logger, clock func() time.Time, sweepers ...Sweeper) *Reminder {
	if clock == nil {
		clock = time.Now
	}
	return &Reminder{
		interval: conf.Reminder.Interval,
		sweepers: sweepers,
		logger:   logger,
		now:      clock,
	}
}

// Run sweeps on every tick until ctx is canceled. It must be torn down with the
// hosting app so no writes dangle past shutdown.
func (r *Reminder) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info(fmt.Sprintf("reminder sweep started: every %s", r.interval))
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reminder sweep stopped")
			return
		case <-ticker.C:
			r.Sweep(r.now().UTC())
		}
	}
}

// Sweep runs every registry's reminder pass once. A failing registry is logged
// and does not starve the others; the next tick retries naturally (unlatched
// sessions are picked up again).
func (r *Reminder) Sweep(now time.Time) {
	for _, s := range r.sweepers {
		if err := s.SendDueReminders(now); err != nil {
			r.logger.Error(fmt.Sprintf("reminder sweep: %v", err), err)
		}
	}
}

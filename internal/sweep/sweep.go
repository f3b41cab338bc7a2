// Package sweep runs the scheduled reset of every subscribed account's
// monthly counter. Per-request rollover stays authoritative; the sweep only
// catches accounts that made no request across a window boundary.
package sweep

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"skills-backend/internal/shared/metrics"
	"skills-backend/internal/shared/telemetry"
)

const defaultTimeout = 5 * time.Minute

// Resetter is the store operation the sweep needs.
type Resetter interface {
	ResetAllCounters(ctx context.Context, now time.Time) (int64, error)
}

type Sweeper struct {
	Accounts Resetter
	Timeout  time.Duration
	Now      func() time.Time
}

func New(accounts Resetter) *Sweeper {
	return &Sweeper{Accounts: accounts, Timeout: defaultTimeout, Now: time.Now}
}

// Validate reports whether schedule is a standard five-field cron spec or a
// descriptor such as @monthly.
func Validate(schedule string) error {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	return nil
}

// RunOnce resets all counters in a single statement.
func (s *Sweeper) RunOnce(ctx context.Context) (int64, error) {
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}
	start := time.Now()
	n, err := s.Accounts.ResetAllCounters(ctx, s.now())
	metrics.RecordSweep(n, err)
	if err != nil {
		telemetry.Error("quota.sweep.failed", map[string]any{"error": err.Error()})
		return 0, err
	}
	telemetry.Info("quota.sweep.done", map[string]any{
		"accounts_reset": n,
		"duration_ms":    time.Since(start).Milliseconds(),
	})
	return n, nil
}

// Run schedules RunOnce in UTC and blocks until ctx is done. A sweep in
// flight is allowed to finish before Run returns.
func (s *Sweeper) Run(ctx context.Context, schedule string) error {
	c := cron.New(cron.WithLocation(time.UTC))
	if _, err := c.AddFunc(schedule, func() {
		_, _ = s.RunOnce(ctx)
	}); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	c.Start()
	telemetry.Info("quota.sweep.scheduled", map[string]any{"schedule": schedule})

	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

func (s *Sweeper) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

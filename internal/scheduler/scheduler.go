package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// RunFunc is invoked on every scheduled cycle.
type RunFunc func(ctx context.Context, at time.Time) error

// Options tune scheduler behaviour. NAV sources publish daily, so the
// interval is typically 24h; alignment snaps cycles to interval boundaries.
type Options struct {
	Interval     time.Duration
	AlignToStart bool
	StartupDelay time.Duration
}

// Scheduler drives repeated batch runs in watch mode.
type Scheduler struct {
	opts   Options
	logger zerolog.Logger
}

// New constructs a Scheduler instance.
func New(opts Options, logger zerolog.Logger) *Scheduler {
	if opts.Interval <= 0 {
		panic("scheduler interval must be positive")
	}
	return &Scheduler{opts: opts, logger: logger.With().Str("component", "scheduler").Logger()}
}

// Run executes fn immediately after the startup delay and then once per
// interval until ctx is cancelled. A failing cycle is logged, never fatal.
func (s *Scheduler) Run(ctx context.Context, fn RunFunc) error {
	if s.opts.StartupDelay > 0 {
		if err := wait(ctx, s.opts.StartupDelay); err != nil {
			return err
		}
	}

	for {
		at := time.Now()
		s.logger.Info().Time("run_at", at).Msg("starting scheduled cycle")
		if err := fn(ctx, at); err != nil {
			s.logger.Error().Err(err).Time("run_at", at).Msg("scheduled cycle failed")
		}

		next := s.next(time.Now())
		s.logger.Debug().Time("next_run", next).Msg("waiting for next cycle")
		if err := wait(ctx, time.Until(next)); err != nil {
			return err
		}
	}
}

func (s *Scheduler) next(now time.Time) time.Time {
	if !s.opts.AlignToStart {
		return now.Add(s.opts.Interval)
	}
	aligned := now.Truncate(s.opts.Interval)
	for !aligned.After(now) {
		aligned = aligned.Add(s.opts.Interval)
	}
	return aligned
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Package scheduler runs a job on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"
	"github.com/hupe1980/docmesh/logging"
)

// Job is the work executed on every tick.
type Job func(ctx context.Context) error

// Options configures a Scheduler.
type Options struct {
	// RunOnStart executes the job once before waiting for the first tick.
	RunOnStart bool
	Logger     logging.Logger

	// after and now are replaced in tests.
	after func(d time.Duration) <-chan time.Time
	now   func() time.Time
}

// Scheduler executes a Job at every tick of a cron expression until its
// context is cancelled. Ticks are not queued: a job that outlasts the next
// tick delays it.
type Scheduler struct {
	expr   string
	job    Job
	opts   Options
	logger logging.Logger
}

// ValidateExpr reports whether expr is a valid cron expression.
func ValidateExpr(expr string) error {
	if expr == "" || !gronx.New().IsValid(expr) {
		return fmt.Errorf("invalid cron expression %q", expr)
	}
	return nil
}

// New validates expr and creates a Scheduler.
func New(expr string, job Job, optFns ...func(o *Options)) (*Scheduler, error) {
	if err := ValidateExpr(expr); err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("scheduler: job is required")
	}

	opts := Options{
		Logger: logging.NoOpLogger{},
		after:  time.After,
		now:    time.Now,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return &Scheduler{
		expr:   expr,
		job:    job,
		opts:   opts,
		logger: logging.With(opts.Logger, "component", "scheduler"),
	}, nil
}

// Expr returns the cron expression.
func (s *Scheduler) Expr() string { return s.expr }

// Next returns the first tick strictly after ref.
func (s *Scheduler) Next(ref time.Time) (time.Time, error) {
	return gronx.NextTickAfter(s.expr, ref, false)
}

// Start blocks, running the job at every tick, and returns ctx.Err() once
// the context is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("scheduler.started", "expr", s.expr)

	if s.opts.RunOnStart {
		s.execute(ctx)
	}

	for {
		if err := ctx.Err(); err != nil {
			s.logger.Info("scheduler.stopped")
			return err
		}

		next, err := s.Next(s.opts.now())
		if err != nil {
			return fmt.Errorf("scheduler: next tick: %w", err)
		}

		wait := next.Sub(s.opts.now())
		if wait < 0 {
			wait = 0
		}

		select {
		case <-ctx.Done():
			s.logger.Info("scheduler.stopped")
			return ctx.Err()
		case <-s.opts.after(wait):
			s.execute(ctx)
		}
	}
}

func (s *Scheduler) execute(ctx context.Context) {
	start := time.Now()
	if err := s.job(ctx); err != nil {
		s.logger.Error("scheduler.job.error", "error", err.Error(), "duration_ms", time.Since(start).Milliseconds())
		return
	}
	s.logger.Info("scheduler.job.completed", "duration_ms", time.Since(start).Milliseconds())
}

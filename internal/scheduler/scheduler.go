// Package scheduler fires pipeline invocations on cron schedules. Each job
// runs in its own goroutine and never overlaps with itself.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/localoracle/internal/domain"
)

// Handler processes one scheduled invocation.
type Handler func(ctx context.Context, trig domain.Trigger) error

// Job is a named handler bound to a cron expression.
type Job struct {
	Name     string
	Schedule string
	Handler  Handler
}

type registered struct {
	Job
	schedule *Schedule
	manual   chan struct{}
}

// ErrUnknownJob is returned by Trigger for a name that was never registered.
var ErrUnknownJob = errors.New("scheduler: unknown job")

// Scheduler owns a set of jobs.
type Scheduler struct {
	jobs   []registered
	logger *slog.Logger
	now    func() time.Time
}

// New creates an empty Scheduler.
func New(logger *slog.Logger) *Scheduler {
	return &Scheduler{
		logger: logger.With(slog.String("component", "scheduler")),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Register adds a job after validating its schedule.
func (s *Scheduler) Register(job Job) error {
	if job.Handler == nil {
		return fmt.Errorf("scheduler: job %q has no handler", job.Name)
	}
	sched, err := Parse(job.Schedule)
	if err != nil {
		return fmt.Errorf("scheduler: job %q: %w", job.Name, err)
	}
	s.jobs = append(s.jobs, registered{Job: job, schedule: sched, manual: make(chan struct{}, 1)})
	return nil
}

// Trigger asks a running job to fire once now. A trigger that arrives while
// another is still pending is coalesced into it.
func (s *Scheduler) Trigger(name string) error {
	for _, j := range s.jobs {
		if j.Name != name {
			continue
		}
		select {
		case j.manual <- struct{}{}:
		default:
		}
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownJob, name)
}

// Jobs returns the registered job names in registration order.
func (s *Scheduler) Jobs() []string {
	names := make([]string, 0, len(s.jobs))
	for _, j := range s.jobs {
		names = append(names, j.Name)
	}
	return names
}

// Run fires every job on its schedule until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	if len(s.jobs) == 0 {
		return errors.New("scheduler: no jobs registered")
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, j := range s.jobs {
		g.Go(func() error { return s.loop(gctx, j) })
	}
	return g.Wait()
}

// RunOnce fires every job a single time, in registration order, with the
// current time as the scheduled execution time.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	var errs []error
	for _, j := range s.jobs {
		if err := s.fire(ctx, j, s.now()); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", j.Name, err))
		}
	}
	return errors.Join(errs...)
}

func (s *Scheduler) loop(ctx context.Context, j registered) error {
	s.logger.InfoContext(ctx, "job scheduled",
		slog.String("job", j.Name),
		slog.String("cron", j.schedule.String()),
	)

	var last time.Time
	for {
		now := s.now()
		next := j.schedule.Next(now)
		if next.IsZero() {
			return fmt.Errorf("scheduler: job %q: no activation within a year", j.Name)
		}
		if !last.IsZero() {
			if missed := j.schedule.Next(last); missed.Before(now) {
				s.logger.WarnContext(ctx, "previous invocation overran, skipped firing",
					slog.String("job", j.Name),
					slog.Time("skipped", missed),
				)
			}
		}

		timer := time.NewTimer(next.Sub(now))
		at := next
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.InfoContext(ctx, "job stopped", slog.String("job", j.Name))
			return ctx.Err()
		case <-j.manual:
			timer.Stop()
			at = s.now().Truncate(time.Second)
			s.logger.InfoContext(ctx, "manual trigger", slog.String("job", j.Name))
		case <-timer.C:
			last = next
		}

		if err := s.fire(ctx, j, at); err != nil {
			s.logger.ErrorContext(ctx, "invocation failed",
				slog.String("job", j.Name),
				slog.Time("scheduled_at", at),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (s *Scheduler) fire(ctx context.Context, j registered, at time.Time) error {
	start := time.Now()
	err := j.Handler(ctx, domain.Trigger{ScheduledExecutionTime: at})
	s.logger.DebugContext(ctx, "invocation finished",
		slog.String("job", j.Name),
		slog.Duration("elapsed", time.Since(start)),
	)
	return err
}

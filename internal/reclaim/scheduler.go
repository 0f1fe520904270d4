package reclaim

import (
	"context"
	"fmt"
	"time"

	"github.com/gorhill/cronexpr"
	"go.uber.org/zap"
)

// Schedule yields the next activation strictly after the given time.
// A zero time means there is none.
type Schedule interface {
	Next(from time.Time) time.Time
}

// ParseSchedule parses a cron expression such as "0 * * * *" (hourly).
func ParseSchedule(expr string) (Schedule, error) {
	e, err := cronexpr.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("parse reclaim schedule %q: %w", expr, err)
	}

	return e, nil
}

// Sweeper runs one reclamation pass.
type Sweeper interface {
	Sweep(ctx context.Context) (*Report, error)
}

// Scheduler drives a Sweeper on a Schedule. Runs never overlap.
type Scheduler struct {
	sweeper    Sweeper
	schedule   Schedule
	runOnStart bool
	now        func() time.Time
	logger     *zap.Logger
	cancel     context.CancelFunc
	done       chan struct{}
}

// SchedulerOption customises a Scheduler.
type SchedulerOption func(*Scheduler)

// RunOnStart triggers a sweep as soon as the scheduler starts.
func RunOnStart(enabled bool) SchedulerOption {
	return func(s *Scheduler) {
		s.runOnStart = enabled
	}
}

// NewScheduler creates a scheduler; call Start to begin.
func NewScheduler(sweeper Sweeper, schedule Schedule, logger *zap.Logger, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		sweeper:  sweeper,
		schedule: schedule,
		now:      time.Now,
		logger:   logger,
		done:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start launches the scheduling loop in the background.
func (s *Scheduler) Start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)

	go s.loop(ctx)

	s.logger.Info("reclaim scheduler started", zap.Bool("run_on_start", s.runOnStart))

	return nil
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	if s.runOnStart {
		s.run(ctx)
	}

	for {
		next := s.schedule.Next(s.now())
		if next.IsZero() {
			s.logger.Warn("reclaim schedule has no further activations")

			return
		}

		timer := time.NewTimer(time.Until(next))

		select {
		case <-ctx.Done():
			timer.Stop()

			return
		case <-timer.C:
			s.run(ctx)
		}
	}
}

func (s *Scheduler) run(ctx context.Context) {
	// A hard error is already logged by the sweep; the next activation retries.
	_, _ = s.sweeper.Sweep(ctx)
}

// Shutdown stops the loop and waits for an in-flight sweep to return.
func (s *Scheduler) Shutdown() error {
	if s.cancel == nil {
		return nil
	}

	s.cancel()
	<-s.done

	s.logger.Info("reclaim scheduler stopped")

	return nil
}

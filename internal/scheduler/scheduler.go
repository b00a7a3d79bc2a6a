package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// Runner executes one ingestion cycle.
type Runner interface {
	RunCycle(ctx context.Context) error
}

// Locker guards a cycle against other processes running the same cycle.
// TryLock returns ok=false without error when the lock is held elsewhere.
type Locker interface {
	TryLock(ctx context.Context) (unlock func(), ok bool, err error)
}

// Scheduler owns the main loop: it runs a cycle, then waits the interval
// before starting the next one.
type Scheduler struct {
	runner   Runner
	locker   Locker // nil runs every cycle unguarded
	interval time.Duration
	logger   *slog.Logger
}

// NewScheduler creates a scheduler that runs runner every interval.
func NewScheduler(runner Runner, locker Locker, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		runner:   runner,
		locker:   locker,
		interval: interval,
		logger:   logger,
	}
}

// Run starts the loop. It runs one immediate cycle, then waits the configured
// interval after each cycle completes. It returns nil when ctx is cancelled
// (graceful shutdown).
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("starting scheduler", "interval", s.interval.String())

	s.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("shutting down scheduler")
			return nil
		case <-time.After(s.interval):
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	if s.locker != nil {
		unlock, ok, err := s.locker.TryLock(ctx)
		if err != nil {
			s.logger.Error("acquiring cycle lock failed", "error", err)
			return
		}
		if !ok {
			s.logger.Info("cycle lock held by another process, skipping")
			return
		}
		defer unlock()
	}

	if err := s.runner.RunCycle(ctx); err != nil {
		s.logger.Error("cycle failed", "error", err)
	}
}

// Package scheduler wraps gocron for periodic forced rebuilds in watch mode.
package scheduler

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Invalidator marks a watch session dirty and schedules a rebuild.
// *compiler.Watching satisfies it.
type Invalidator interface {
	Invalidate()
}

// Scheduler manages periodic rebuild triggers.
type Scheduler struct {
	scheduler gocron.Scheduler
}

// New creates a new scheduler instance.
func New() (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	return &Scheduler{scheduler: s}, nil
}

// Start begins the scheduler.
func (s *Scheduler) Start() {
	s.scheduler.Start()
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() error {
	return s.scheduler.Shutdown()
}

// ScheduleRebuild invalidates the watch session every interval, forcing a
// full rebuild even when no change notification arrived. Returns the job ID
// for later management.
func (s *Scheduler) ScheduleRebuild(interval time.Duration, w Invalidator) (string, error) {
	job, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			slog.Debug("scheduled rebuild trigger", slog.Duration("interval", interval))
			w.Invalidate()
		}),
		gocron.WithName("periodic-rebuild"),
	)
	if err != nil {
		return "", fmt.Errorf("failed to schedule periodic rebuild: %w", err)
	}
	return job.ID().String(), nil
}

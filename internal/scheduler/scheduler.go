package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"parkwise-booking-core/internal/jobs"
	"parkwise-booking-core/internal/logger"
)

// Scheduler manages cron job scheduling
type Scheduler struct {
	cron *cron.Cron
	jobs *jobs.JobRunner
}

// NewScheduler creates a scheduler and registers every job. A malformed schedule is an error
// so a typo in config fails at startup instead of silently disabling a job.
func NewScheduler(jobRunner *jobs.JobRunner) (*Scheduler, error) {
	// Create cron with UTC timezone and seconds precision
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithSeconds(),
	)

	s := &Scheduler{
		cron: c,
		jobs: jobRunner,
	}

	if err := s.registerJobs(); err != nil {
		return nil, err
	}
	return s, nil
}

// registerJobs registers all scheduled jobs with the cron scheduler
func (s *Scheduler) registerJobs() error {
	cfg := s.jobs.Config().Scheduler

	entries := []struct {
		name     string
		schedule string
		run      func()
	}{
		{"AuditLedgers", cfg.AuditLedgers, s.jobs.AuditLedgers},
		{"WarmOccupancyCache", cfg.WarmOccupancyCache, s.jobs.WarmOccupancyCache},
	}

	for _, e := range entries {
		if e.schedule == "" || e.schedule == "off" {
			logger.Info("Cron job disabled", "job", e.name)
			continue
		}
		if _, err := s.cron.AddFunc(e.schedule, e.run); err != nil {
			logger.Error("Failed to register cron job", "job", e.name, "schedule", e.schedule, "error", err)
			return fmt.Errorf("register %s: %w", e.name, err)
		}
		logger.Debug("Registered cron job", "job", e.name, "schedule", e.schedule)
	}

	logger.Info("All cron jobs registered successfully", "count", len(s.cron.Entries()))
	return nil
}

// Start begins the cron scheduler
func (s *Scheduler) Start() {
	logger.Info("Starting cron scheduler...")
	s.cron.Start()
	logger.Info("Cron scheduler started successfully")
}

// Stop gracefully stops the cron scheduler, waiting for running jobs to finish
func (s *Scheduler) Stop() {
	logger.Info("Stopping cron scheduler...")
	ctx := s.cron.Stop()
	<-ctx.Done()
	logger.Info("Cron scheduler stopped")
}

// JobCount returns the number of registered jobs
func (s *Scheduler) JobCount() int {
	return len(s.cron.Entries())
}

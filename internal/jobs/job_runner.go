package jobs

import (
	"time"

	"parkwise-booking-core/internal/config"
	"parkwise-booking-core/internal/logger"
	"parkwise-booking-core/internal/service"
)

// JobRunner coordinates all scheduled jobs
type JobRunner struct {
	services *Services
	config   *config.Config
	timeout  time.Duration
	now      func() time.Time
}

// Services holds all service dependencies needed by jobs
type Services struct {
	Audit        service.AuditService
	Availability service.AvailabilityService
}

// NewJobRunner creates a new job runner with all dependencies
func NewJobRunner(services *Services, cfg *config.Config) *JobRunner {
	return &JobRunner{
		services: services,
		config:   cfg,
		timeout:  10 * time.Minute,
		now:      time.Now,
	}
}

// Config exposes the configuration the scheduler reads job schedules from.
func (jr *JobRunner) Config() *config.Config {
	return jr.config
}

// runWithRecovery wraps job execution with panic recovery
func (jr *JobRunner) runWithRecovery(jobName string, jobFunc func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Job panicked", "job", jobName, "panic", r)
		}
	}()

	start := jr.now()
	logger.Info("Starting job", "job", jobName)
	jobFunc()
	logger.Info("Job completed", "job", jobName, "duration_ms", jr.now().Sub(start).Milliseconds())
}

// RunAll runs every job once (for manual execution)
func (jr *JobRunner) RunAll() {
	jr.AuditLedgers()
	jr.WarmOccupancyCache()
}

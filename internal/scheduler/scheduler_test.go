package scheduler

import (
	"testing"

	"parkwise-booking-core/internal/config"
	"parkwise-booking-core/internal/jobs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runner(audit, warm string) *jobs.JobRunner {
	cfg := &config.Config{Scheduler: config.SchedulerConfig{AuditLedgers: audit, WarmOccupancyCache: warm}}
	return jobs.NewJobRunner(&jobs.Services{}, cfg)
}

func TestNewScheduler(t *testing.T) {
	t.Run("Registers both jobs", func(t *testing.T) {
		s, err := NewScheduler(runner("0 15 3 * * *", "0 * * * * *"))
		require.NoError(t, err)
		assert.Equal(t, 2, s.JobCount())
	})

	t.Run("Disabled job is skipped", func(t *testing.T) {
		s, err := NewScheduler(runner("0 15 3 * * *", "off"))
		require.NoError(t, err)
		assert.Equal(t, 1, s.JobCount())
	})

	t.Run("Bad schedule fails", func(t *testing.T) {
		_, err := NewScheduler(runner("every night", ""))
		assert.ErrorContains(t, err, "AuditLedgers")
	})

	t.Run("Start and stop", func(t *testing.T) {
		s, err := NewScheduler(runner("0 15 3 * * *", ""))
		require.NoError(t, err)
		s.Start()
		s.Stop()
	})
}

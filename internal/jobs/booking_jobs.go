package jobs

import (
	"context"

	"parkwise-booking-core/internal/logger"
)

// AuditLedgers recomputes every booking summary from its payment ledger and logs drift.
// The job never writes; findings need a human to look at them.
func (jr *JobRunner) AuditLedgers() {
	jr.runWithRecovery("AuditLedgers", func() {
		ctx, cancel := context.WithTimeout(context.Background(), jr.timeout)
		defer cancel()

		report, err := jr.services.Audit.AuditLedgers(ctx)
		if err != nil {
			logger.Error("Failed to audit payment ledgers", "error", err)
			return
		}
		if len(report.Findings) > 0 {
			logger.Error("Payment ledger audit found discrepancies",
				"checked", report.Checked,
				"findings", len(report.Findings))
			return
		}
		logger.Info("Payment ledgers consistent", "checked", report.Checked)
	})
}

// WarmOccupancyCache precomputes the current minute's occupancy for every active property.
func (jr *JobRunner) WarmOccupancyCache() {
	jr.runWithRecovery("WarmOccupancyCache", func() {
		ctx, cancel := context.WithTimeout(context.Background(), jr.timeout)
		defer cancel()

		warmed, err := jr.services.Availability.WarmOccupancyCache(ctx, jr.now())
		if err != nil {
			logger.Error("Failed to warm occupancy cache", "error", err)
			return
		}
		logger.Info("Occupancy cache warmed", "properties", warmed)
	})
}

package service

import (
	"context"
	"fmt"

	"parkwise-booking-core/internal/domain"
	"parkwise-booking-core/internal/logger"
	"parkwise-booking-core/internal/repository"

	"github.com/shopspring/decimal"
)

const auditPageSize = 200

type AuditFinding struct {
	BookingID int64
	Problem   string
}

type AuditReport struct {
	Checked  int
	Findings []AuditFinding
}

type auditService struct {
	store   repository.Transactor
	epsilon decimal.Decimal
}

func NewAuditService(store repository.Transactor, epsilon decimal.Decimal) AuditService {
	return &auditService{store: store, epsilon: epsilon}
}

// AuditLedgers recomputes every booking's summary from its ledger and reports drift. It only reads:
// repairing a summary is the reconciliation path's job.
func (s *auditService) AuditLedgers(ctx context.Context) (*AuditReport, error) {
	logger.EnterMethod("auditService.AuditLedgers")
	report := &AuditReport{}

	var after int64
	for {
		var ids []int64
		err := s.store.View(ctx, func(ctx context.Context, repos repository.Repos) error {
			var err error
			ids, err = repos.Bookings().ListIDs(ctx, after, auditPageSize)
			if err != nil {
				return err
			}
			for _, id := range ids {
				findings, err := s.auditBooking(ctx, repos, id)
				if err != nil {
					return err
				}
				report.Findings = append(report.Findings, findings...)
				report.Checked++
			}
			return nil
		})
		if err != nil {
			logger.ExitMethodWithError("auditService.AuditLedgers", err, "checked", report.Checked)
			return report, err
		}
		if len(ids) < auditPageSize {
			break
		}
		after = ids[len(ids)-1]
	}

	for _, f := range report.Findings {
		logger.Warn("Ledger audit finding", "bookingID", f.BookingID, "problem", f.Problem)
	}
	logger.ExitMethod("auditService.AuditLedgers", "checked", report.Checked, "findings", len(report.Findings))
	return report, nil
}

func (s *auditService) auditBooking(ctx context.Context, repos repository.Repos, bookingID int64) ([]AuditFinding, error) {
	b, err := repos.Bookings().GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	stored, err := repos.Summaries().Get(ctx, bookingID)
	if err != nil {
		return []AuditFinding{{BookingID: bookingID, Problem: fmt.Sprintf("summary unreadable: %v", err)}}, nil
	}
	events, err := repos.Payments().ListByBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	var findings []AuditFinding
	add := func(format string, args ...any) {
		findings = append(findings, AuditFinding{BookingID: bookingID, Problem: fmt.Sprintf(format, args...)})
	}

	if err := stored.CheckInvariant(s.epsilon); err != nil {
		add("invariant violated: %v", err)
	}
	if recomputed := Reconcile(*stored, events); !recomputed.Equal(stored) {
		add("stored summary online=%s cash=%s balance=%s, ledger gives online=%s cash=%s balance=%s",
			stored.OnlinePaid, stored.CashPaid, stored.BalanceDue,
			recomputed.OnlinePaid, recomputed.CashPaid, recomputed.BalanceDue)
	}
	if b.Status == domain.BookingStatusPending && stored.IsSettled(s.epsilon) {
		add("booking is settled but still %s", b.Status)
	}
	if b.Status == domain.BookingStatusPaid && !stored.IsSettled(s.epsilon) {
		add("booking is %s with balance %s outstanding", b.Status, stored.BalanceDue)
	}
	return findings, nil
}

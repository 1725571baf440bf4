package service

import (
	"context"
	"fmt"
	"time"

	"parkwise-booking-core/internal/domain"
	"parkwise-booking-core/internal/repository"

	"github.com/shopspring/decimal"
)

// Reconcile recomputes a summary from the booking's ledger. Only PAID events count, CARD into
// OnlinePaid and CASH into CashPaid. The result depends only on the set of events, so calling it
// again without new events yields an identical summary. UpdatedAt is left to the caller.
func Reconcile(current domain.PaymentSummary, events []domain.PaymentEvent) domain.PaymentSummary {
	online, cash := decimal.Zero, decimal.Zero
	for _, e := range events {
		if e.BookingID != current.BookingID || e.Status != domain.PaymentStatusPaid {
			continue
		}
		switch e.Method {
		case domain.PaymentMethodCard:
			online = online.Add(e.Amount)
		case domain.PaymentMethodCash:
			cash = cash.Add(e.Amount)
		}
	}

	next := current
	next.OnlinePaid = online
	next.CashPaid = cash
	next.BalanceDue = domain.MaxZero(current.TotalAmount.Sub(online).Sub(cash))
	return next
}

// reconcileAndPromote is the only writer of payment summaries. It must run inside the
// transaction that changed the ledger, and promotes a PENDING booking to PAID once the balance
// is within epsilon.
func reconcileAndPromote(ctx context.Context, repos repository.Repos, b *domain.Booking, actor domain.Actor, eps decimal.Decimal, now time.Time) (*domain.PaymentSummary, bool, error) {
	current, err := repos.Summaries().Get(ctx, b.ID)
	if err != nil {
		return nil, false, err
	}
	events, err := repos.Payments().ListByBooking(ctx, b.ID)
	if err != nil {
		return nil, false, err
	}

	next := Reconcile(*current, events)
	if err := next.CheckInvariant(eps); err != nil {
		return nil, false, fmt.Errorf("reconcile: %w", err)
	}
	if !next.Equal(current) {
		next.UpdatedAt = now
		if err := repos.Summaries().Save(ctx, &next); err != nil {
			return nil, false, err
		}
	}

	if b.Status != domain.BookingStatusPending || !next.IsSettled(eps) {
		return &next, false, nil
	}
	if err := transition(ctx, repos, b, domain.BookingStatusPaid, actor, "balance settled", now); err != nil {
		return nil, false, err
	}
	return &next, true, nil
}

// transition applies one state machine edge and records it in the status history.
func transition(ctx context.Context, repos repository.Repos, b *domain.Booking, next domain.BookingStatus, actor domain.Actor, note string, now time.Time) error {
	if !b.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: booking %d cannot move from %s to %s", domain.ErrInvalidTransition, b.ID, b.Status, next)
	}
	if err := repos.Bookings().UpdateStatus(ctx, b.ID, next, now); err != nil {
		return err
	}
	old := b.Status
	entry := &domain.StatusHistoryEntry{
		BookingID: b.ID,
		OldStatus: &old,
		NewStatus: next,
		Actor:     actor.String(),
		Note:      note,
		CreatedAt: now,
	}
	if err := repos.History().Append(ctx, entry); err != nil {
		return err
	}
	b.Status = next
	b.UpdatedAt = now
	return nil
}

// appendPayment writes one ledger row after checking the booking can still take money and the
// payment does not overshoot the total.
func appendPayment(ctx context.Context, repos repository.Repos, b *domain.Booking, e *domain.PaymentEvent, eps decimal.Decimal) error {
	if b.Status == domain.BookingStatusCancelled {
		return fmt.Errorf("%w: booking %d is cancelled", domain.ErrBookingClosed, b.ID)
	}
	if err := domain.RequirePositive("amount", e.Amount); err != nil {
		return err
	}
	if e.Status == domain.PaymentStatusPaid {
		summary, err := repos.Summaries().Get(ctx, b.ID)
		if err != nil {
			return err
		}
		if summary.PaidTotal().Add(e.Amount).GreaterThan(summary.TotalAmount.Add(eps)) {
			return fmt.Errorf("%w: booking %d owes %s, got %s", domain.ErrOverpayment, b.ID, summary.BalanceDue, e.Amount)
		}
	}
	e.BookingID = b.ID
	return repos.Payments().Append(ctx, e)
}

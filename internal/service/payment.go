package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"parkwise-booking-core/internal/domain"
	"parkwise-booking-core/internal/logger"
	"parkwise-booking-core/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
)

type paymentService struct {
	store   repository.Transactor
	gateway CardGateway
	fx      *SideEffects
	policy  Policy
}

func NewPaymentService(store repository.Transactor, gateway CardGateway, fx *SideEffects, policy Policy) PaymentService {
	return &paymentService{store: store, gateway: gateway, fx: fx, policy: policy}
}

// RecordPayment appends one payment and reconciles in the same transaction.
func (s *paymentService) RecordPayment(ctx context.Context, req RecordPaymentRequest) (result *PaymentResult, err error) {
	ctx, span := startSpan(ctx, "PaymentService.RecordPayment",
		attribute.Int64("booking.id", req.BookingID),
		attribute.String("method", string(req.Method)))
	defer func() { endSpan(span, err) }()

	logger.EnterMethod("paymentService.RecordPayment", "bookingID", req.BookingID, "amount", req.Amount, "actor", req.Actor.String())

	if err := req.Actor.Validate(); err != nil {
		return nil, err
	}
	if err := domain.RequirePositive("amount", req.Amount); err != nil {
		return nil, err
	}
	if req.Method, err = resolveMethod(req.Actor, req.Method); err != nil {
		return nil, err
	}

	if req.IdempotencyKey != "" {
		if replayed, err := s.replay(ctx, req.Actor, req.IdempotencyKey); err == nil {
			return replayed, nil
		} else if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}

	pre, err := s.preflight(ctx, req.Actor, req.BookingID)
	if err != nil {
		logger.ExitMethodWithError("paymentService.RecordPayment", err, "bookingID", req.BookingID)
		return nil, err
	}
	if pre.summary.PaidTotal().Add(req.Amount).GreaterThan(pre.summary.TotalAmount.Add(s.policy.BalanceEpsilon)) {
		return nil, fmt.Errorf("%w: booking %d owes %s, got %s", domain.ErrOverpayment, req.BookingID, pre.summary.BalanceDue, req.Amount)
	}

	return s.record(ctx, req.Actor, req.BookingID, req.Amount, req.Method, req.IdempotencyKey, pre.summary.Currency, nil)
}

// RecordTopUpPayment takes the new cumulative amount paid and records the positive difference.
// Stating less than what is already recorded is rejected; stating the same amount is a no-op.
func (s *paymentService) RecordTopUpPayment(ctx context.Context, req TopUpRequest) (summary *domain.PaymentSummary, err error) {
	ctx, span := startSpan(ctx, "PaymentService.RecordTopUpPayment",
		attribute.Int64("booking.id", req.BookingID),
		attribute.String("method", string(req.Method)))
	defer func() { endSpan(span, err) }()

	logger.EnterMethod("paymentService.RecordTopUpPayment", "bookingID", req.BookingID, "newCumulative", req.NewCumulativeAmount, "actor", req.Actor.String())

	if err := req.Actor.Validate(); err != nil {
		return nil, err
	}
	if req.NewCumulativeAmount.IsNegative() {
		return nil, domain.NewValidationError("amount", "must not be negative")
	}
	if err := domain.CheckAmount("amount", req.NewCumulativeAmount); err != nil {
		return nil, err
	}
	if req.Method, err = resolveMethod(req.Actor, req.Method); err != nil {
		return nil, err
	}

	if req.IdempotencyKey != "" {
		if replayed, err := s.replay(ctx, req.Actor, req.IdempotencyKey); err == nil {
			return replayed.Summary, nil
		} else if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}

	pre, err := s.preflight(ctx, req.Actor, req.BookingID)
	if err != nil {
		logger.ExitMethodWithError("paymentService.RecordTopUpPayment", err, "bookingID", req.BookingID)
		return nil, err
	}
	delta, err := topUpDelta(pre.summary, req.NewCumulativeAmount)
	if err != nil {
		logger.ExitMethodWithError("paymentService.RecordTopUpPayment", err, "bookingID", req.BookingID)
		return nil, err
	}
	if delta.IsZero() {
		logger.ExitMethod("paymentService.RecordTopUpPayment", "bookingID", req.BookingID, "delta", "0")
		return pre.summary, nil
	}

	result, err := s.record(ctx, req.Actor, req.BookingID, delta, req.Method, req.IdempotencyKey, pre.summary.Currency, &req.NewCumulativeAmount)
	if err != nil {
		logger.ExitMethodWithError("paymentService.RecordTopUpPayment", err, "bookingID", req.BookingID)
		return nil, err
	}
	logger.ExitMethod("paymentService.RecordTopUpPayment", "bookingID", req.BookingID, "delta", delta)
	return result.Summary, nil
}

func topUpDelta(summary *domain.PaymentSummary, newCumulative decimal.Decimal) (decimal.Decimal, error) {
	recorded := summary.PaidTotal()
	if newCumulative.LessThan(recorded) {
		return decimal.Zero, fmt.Errorf("%w: booking %d has %s recorded, requested %s",
			domain.ErrAmountDecreaseRejected, summary.BookingID, recorded, newCumulative)
	}
	return newCumulative.Sub(recorded), nil
}

type paymentPreflight struct {
	booking *domain.Booking
	summary *domain.PaymentSummary
}

// preflight rejects closed or foreign bookings before a card is charged.
func (s *paymentService) preflight(ctx context.Context, actor domain.Actor, bookingID int64) (*paymentPreflight, error) {
	pre := &paymentPreflight{}
	err := s.store.View(ctx, func(ctx context.Context, repos repository.Repos) error {
		b, err := repos.Bookings().GetByID(ctx, bookingID)
		if err != nil {
			return err
		}
		if err := authorizeBooking(actor, b); err != nil {
			return err
		}
		if b.Status == domain.BookingStatusCancelled {
			return fmt.Errorf("%w: booking %d is cancelled", domain.ErrBookingClosed, b.ID)
		}
		summary, err := repos.Summaries().Get(ctx, bookingID)
		if err != nil {
			return err
		}
		pre.booking, pre.summary = b, summary
		return nil
	})
	return pre, err
}

// record captures card payments, then appends and reconciles in one transaction. When
// newCumulative is set the delta is re-derived under lock and must match what was captured.
func (s *paymentService) record(ctx context.Context, actor domain.Actor, bookingID int64, amount decimal.Decimal, method domain.PaymentMethod, key, currency string, newCumulative *decimal.Decimal) (*PaymentResult, error) {
	var capture *domain.CardCapture
	if method == domain.PaymentMethodCard {
		var err error
		capture, err = captureCard(ctx, s.gateway, fmt.Sprintf("bk-%d-%s", bookingID, uuid.NewString()), amount, currency)
		if err != nil {
			return nil, err
		}
	}

	var result *PaymentResult
	var promoted bool
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repos) error {
		result, promoted = nil, false
		b, err := repos.Bookings().GetForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		if err := authorizeBooking(actor, b); err != nil {
			return err
		}
		if b.Status == domain.BookingStatusCancelled {
			return fmt.Errorf("%w: booking %d is cancelled", domain.ErrBookingClosed, b.ID)
		}

		if newCumulative != nil {
			current, err := repos.Summaries().Get(ctx, bookingID)
			if err != nil {
				return err
			}
			fresh, err := topUpDelta(current, *newCumulative)
			if err != nil {
				return err
			}
			if !fresh.Equal(amount) {
				return fmt.Errorf("%w: recorded payments for booking %d changed concurrently", domain.ErrStorageConflict, bookingID)
			}
		}

		now := time.Now().UTC()
		event := &domain.PaymentEvent{
			Amount:         amount,
			Method:         method,
			Status:         domain.PaymentStatusPaid,
			IdempotencyKey: key,
			RecordedBy:     actor.String(),
			CreatedAt:      now,
		}
		if capture != nil {
			event.Reference = capture.Reference
			event.Status = capture.Status
		}
		if err := appendPayment(ctx, repos, b, event, s.policy.BalanceEpsilon); err != nil {
			return err
		}
		summary, wasPromoted, err := reconcileAndPromote(ctx, repos, b, actor, s.policy.BalanceEpsilon, now)
		if err != nil {
			return err
		}
		result = &PaymentResult{Event: event, Summary: summary}
		promoted = wasPromoted
		return nil
	})
	if err != nil {
		voidCapture(ctx, s.gateway, capture)
		if key != "" && errors.Is(err, repository.ErrDuplicateKey) {
			return s.replay(ctx, actor, key)
		}
		return nil, err
	}

	logger.Info("Payment recorded", "bookingID", bookingID, "paymentID", result.Event.ID, "amount", amount,
		"method", method, "status", result.Event.Status, "balanceDue", result.Summary.BalanceDue, "actor", actor.String())

	booking, _ := s.bookingSnapshot(ctx, bookingID)
	s.fx.afterCommit(ctx, s.store, change{
		event: domain.EventPaymentRecorded, booking: booking, summary: result.Summary,
		payment: result.Event, actor: actor,
	})
	if promoted {
		s.fx.afterCommit(ctx, s.store, change{
			event: domain.EventBookingPaid, booking: booking, summary: result.Summary, actor: actor,
		})
	}
	return result, nil
}

func (s *paymentService) bookingSnapshot(ctx context.Context, bookingID int64) (*domain.Booking, error) {
	var b *domain.Booking
	err := s.store.View(ctx, func(ctx context.Context, repos repository.Repos) error {
		var err error
		b, err = repos.Bookings().GetByID(ctx, bookingID)
		return err
	})
	if err != nil {
		logger.Warn("Failed to reload booking after payment", "bookingID", bookingID, "error", err)
	}
	return b, err
}

func (s *paymentService) replay(ctx context.Context, actor domain.Actor, key string) (*PaymentResult, error) {
	var result *PaymentResult
	err := s.store.View(ctx, func(ctx context.Context, repos repository.Repos) error {
		event, err := repos.Payments().GetByIdempotencyKey(ctx, key)
		if err != nil {
			return err
		}
		b, err := repos.Bookings().GetByID(ctx, event.BookingID)
		if err != nil {
			return err
		}
		if err := authorizeBooking(actor, b); err != nil {
			return err
		}
		summary, err := repos.Summaries().Get(ctx, event.BookingID)
		if err != nil {
			return err
		}
		result = &PaymentResult{Event: event, Summary: summary, Replayed: true}
		return nil
	})
	return result, err
}

func (s *paymentService) GetPaymentSummary(ctx context.Context, actor domain.Actor, bookingID int64) (*domain.PaymentSummary, error) {
	var summary *domain.PaymentSummary
	err := s.store.View(ctx, func(ctx context.Context, repos repository.Repos) error {
		b, err := repos.Bookings().GetByID(ctx, bookingID)
		if err != nil {
			return err
		}
		if err := authorizeBooking(actor, b); err != nil {
			return err
		}
		summary, err = repos.Summaries().Get(ctx, bookingID)
		return err
	})
	return summary, err
}

func (s *paymentService) ListPayments(ctx context.Context, actor domain.Actor, bookingID int64) ([]domain.PaymentEvent, error) {
	var events []domain.PaymentEvent
	err := s.store.View(ctx, func(ctx context.Context, repos repository.Repos) error {
		b, err := repos.Bookings().GetByID(ctx, bookingID)
		if err != nil {
			return err
		}
		if err := authorizeBooking(actor, b); err != nil {
			return err
		}
		events, err = repos.Payments().ListByBooking(ctx, bookingID)
		return err
	})
	return events, err
}

func captureCard(ctx context.Context, gw CardGateway, reference string, amount decimal.Decimal, currency string) (*domain.CardCapture, error) {
	if gw == nil {
		return nil, nil
	}
	logger.ExternalServiceCall("card-gateway", "Capture", "reference", reference, "amount", amount)
	capture, err := gw.Capture(ctx, reference, amount, currency)
	logger.ExternalServiceResult("card-gateway", "Capture", err, "reference", reference)
	if err != nil {
		return nil, err
	}
	return capture, nil
}

// voidCapture releases a card capture whose transaction did not commit.
func voidCapture(ctx context.Context, gw CardGateway, capture *domain.CardCapture) {
	if gw == nil || capture == nil || capture.Reference == "" {
		return
	}
	if err := gw.Void(context.WithoutCancel(ctx), capture.Reference); err != nil {
		logger.Error("Failed to void card capture", "reference", capture.Reference, "error", err)
	}
}

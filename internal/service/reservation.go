package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"parkwise-booking-core/internal/domain"
	"parkwise-booking-core/internal/logger"
	"parkwise-booking-core/internal/repository"
	"parkwise-booking-core/internal/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
)

type reservationService struct {
	store   repository.Transactor
	gateway CardGateway
	fx      *SideEffects
	policy  Policy
}

func NewReservationService(store repository.Transactor, gateway CardGateway, fx *SideEffects, policy Policy) ReservationService {
	return &reservationService{store: store, gateway: gateway, fx: fx, policy: policy}
}

// CreateBooking validates the request, reserves every requested slot or none, prices the booking,
// records any advance payment and reconciles, all in one transaction.
func (s *reservationService) CreateBooking(ctx context.Context, req CreateBookingRequest) (result *BookingResult, err error) {
	ctx, span := startSpan(ctx, "ReservationService.CreateBooking",
		attribute.Int64("property.id", req.PropertyID),
		attribute.Int("slot.count", len(req.SlotIDs)),
		attribute.String("actor", req.Actor.String()))
	defer func() { endSpan(span, err) }()

	logger.EnterMethod("reservationService.CreateBooking", "propertyID", req.PropertyID, "slotIDs", req.SlotIDs, "actor", req.Actor.String())

	if err := s.normalize(&req); err != nil {
		logger.ExitMethodWithError("reservationService.CreateBooking", err)
		return nil, err
	}

	if req.IdempotencyKey != "" {
		replayed, err := s.replay(ctx, req.Actor, req.IdempotencyKey)
		if err == nil {
			logger.Info("Replayed booking for idempotency key", "bookingID", replayed.Booking.ID, "key", req.IdempotencyKey)
			return replayed, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}

	// Validate against the catalog and ledger before any card is charged. The transaction below
	// repeats every check under locks.
	var property *domain.Property
	err = s.store.View(ctx, func(ctx context.Context, repos repository.Repos) error {
		p, _, err := loadBookableSlots(ctx, repos, req.PropertyID, req.SlotIDs)
		if err != nil {
			return err
		}
		property = p
		return checkNoOverlap(ctx, repos, req.SlotIDs, req.StartTime, req.EndTime)
	})
	if err != nil {
		logger.ExitMethodWithError("reservationService.CreateBooking", err, "propertyID", req.PropertyID)
		return nil, err
	}

	var capture *domain.CardCapture
	if req.AdvanceAmount.IsPositive() && req.AdvanceMethod == domain.PaymentMethodCard {
		capture, err = captureCard(ctx, s.gateway, "adv-"+uuid.NewString(), req.AdvanceAmount, currencyOf(property, s.policy))
		if err != nil {
			logger.ExitMethodWithError("reservationService.CreateBooking", err, "propertyID", req.PropertyID)
			return nil, err
		}
	}

	err = s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repos) error {
		result = nil
		if req.IdempotencyKey != "" {
			if existing, err := loadBookingResult(ctx, repos, func() (*domain.Booking, error) {
				return repos.Bookings().GetByIdempotencyKey(ctx, req.IdempotencyKey)
			}); err == nil {
				existing.Replayed = true
				result = existing
				return nil
			} else if !errors.Is(err, domain.ErrNotFound) {
				return err
			}
		}
		res, err := s.createInTx(ctx, repos, req, capture, time.Now().UTC())
		result = res
		return err
	})
	if err != nil {
		voidCapture(ctx, s.gateway, capture)
		if req.IdempotencyKey != "" && errors.Is(err, repository.ErrDuplicateKey) {
			return s.replay(ctx, req.Actor, req.IdempotencyKey)
		}
		logger.ExitMethodWithError("reservationService.CreateBooking", err, "propertyID", req.PropertyID)
		return nil, err
	}
	if result.Replayed {
		voidCapture(ctx, s.gateway, capture)
		return result, nil
	}

	logger.Info("Booking created", "bookingID", result.Booking.ID, "status", result.Booking.Status,
		"total", result.Summary.TotalAmount, "balanceDue", result.Summary.BalanceDue, "actor", req.Actor.String())

	s.fx.afterCommit(ctx, s.store, change{
		event: domain.EventBookingCreated, booking: result.Booking, summary: result.Summary,
		actor: req.Actor, occupancyChange: true,
	})
	if result.Booking.Status == domain.BookingStatusPaid {
		s.fx.afterCommit(ctx, s.store, change{
			event: domain.EventBookingPaid, booking: result.Booking, summary: result.Summary, actor: req.Actor,
		})
	}

	logger.ExitMethod("reservationService.CreateBooking", "bookingID", result.Booking.ID)
	return result, nil
}

func (s *reservationService) normalize(req *CreateBookingRequest) error {
	if err := req.Actor.Validate(); err != nil {
		return err
	}
	if req.PropertyID <= 0 {
		return domain.NewValidationError("property_id", "is required")
	}
	if len(req.SlotIDs) == 0 {
		return domain.NewValidationError("slot_ids", "at least one slot is required")
	}
	ids := slices.Clone(req.SlotIDs)
	slices.Sort(ids)
	for i, id := range ids {
		if id <= 0 {
			return domain.NewValidationError("slot_ids", fmt.Sprintf("invalid slot id %d", id))
		}
		if i > 0 && ids[i-1] == id {
			return domain.NewValidationError("slot_ids", fmt.Sprintf("slot %d requested twice", id))
		}
	}
	req.SlotIDs = ids

	if req.StartTime.IsZero() || req.EndTime.IsZero() {
		return domain.NewValidationError("start_time", "start and end time are required")
	}
	req.StartTime = req.StartTime.UTC()
	req.EndTime = req.EndTime.UTC()
	if !req.StartTime.Before(req.EndTime) {
		return domain.NewValidationError("end_time", "must be after start_time")
	}

	switch {
	case req.Actor.Role == domain.RoleCustomer && req.CustomerRef == "":
		req.CustomerRef = req.Actor.ID
	case req.Actor.Role == domain.RoleCustomer && req.CustomerRef != req.Actor.ID:
		return fmt.Errorf("%w: customers book for themselves", domain.ErrForbidden)
	case req.CustomerRef == "":
		return domain.NewValidationError("customer_ref", "is required for staff bookings")
	}

	if req.AdvanceAmount.IsNegative() {
		return domain.NewValidationError("advance_amount", "must not be negative")
	}
	if err := domain.CheckAmount("advance_amount", req.AdvanceAmount); err != nil {
		return err
	}
	if req.ExplicitTotal != nil {
		if err := domain.CheckAmount("total_amount", *req.ExplicitTotal); err != nil {
			return err
		}
	}
	if req.AdvanceAmount.IsPositive() {
		method, err := resolveMethod(req.Actor, req.AdvanceMethod)
		if err != nil {
			return err
		}
		req.AdvanceMethod = method
	}
	return nil
}

func (s *reservationService) createInTx(ctx context.Context, repos repository.Repos, req CreateBookingRequest, capture *domain.CardCapture, now time.Time) (*BookingResult, error) {
	if err := repos.SlotLedger().LockSlots(ctx, req.SlotIDs); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewValidationError("slot_ids", err.Error())
		}
		return nil, err
	}
	property, slots, err := loadBookableSlots(ctx, repos, req.PropertyID, req.SlotIDs)
	if err != nil {
		return nil, err
	}
	if err := checkNoOverlap(ctx, repos, req.SlotIDs, req.StartTime, req.EndTime); err != nil {
		return nil, err
	}

	price, err := utils.CalculateBookingPrice(property, len(slots), req.StartTime, req.EndTime)
	if err != nil {
		return nil, err
	}
	total, note := s.resolveTotal(req, price)
	if !total.IsPositive() {
		return nil, domain.NewValidationError("total_amount", fmt.Sprintf("property %d has no applicable rate", property.ID))
	}
	if req.AdvanceAmount.GreaterThan(total.Add(s.policy.BalanceEpsilon)) {
		return nil, fmt.Errorf("%w: advance %s exceeds total %s", domain.ErrOverpayment, req.AdvanceAmount, total)
	}

	booking := &domain.Booking{
		CustomerRef:    req.CustomerRef,
		PropertyID:     property.ID,
		SlotIDs:        req.SlotIDs,
		StartTime:      req.StartTime,
		EndTime:        req.EndTime,
		Status:         domain.BookingStatusPending,
		Category:       domain.CategoryForSlots(slots),
		IdempotencyKey: req.IdempotencyKey,
		CreatedBy:      req.Actor.String(),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := repos.Bookings().Create(ctx, booking); err != nil {
		return nil, err
	}

	assignments := make([]domain.SlotAssignment, 0, len(slots))
	for _, slot := range slots {
		assignments = append(assignments, domain.SlotAssignment{
			BookingID: booking.ID,
			SlotID:    slot.ID,
			StartTime: booking.StartTime,
			EndTime:   booking.EndTime,
		})
	}
	if err := repos.SlotLedger().Assign(ctx, assignments); err != nil {
		return nil, err
	}

	if err := repos.History().Append(ctx, &domain.StatusHistoryEntry{
		BookingID: booking.ID,
		NewStatus: domain.BookingStatusPending,
		Actor:     req.Actor.String(),
		Note:      note,
		CreatedAt: now,
	}); err != nil {
		return nil, err
	}

	if err := repos.Summaries().Create(ctx, &domain.PaymentSummary{
		BookingID:   booking.ID,
		TotalAmount: total,
		OnlinePaid:  decimal.Zero,
		CashPaid:    decimal.Zero,
		BalanceDue:  total,
		Currency:    currencyOf(property, s.policy),
		UpdatedAt:   now,
	}); err != nil {
		return nil, err
	}

	if req.AdvanceAmount.IsPositive() {
		event := &domain.PaymentEvent{
			Amount:     req.AdvanceAmount,
			Method:     req.AdvanceMethod,
			Status:     domain.PaymentStatusPaid,
			RecordedBy: req.Actor.String(),
			CreatedAt:  now,
		}
		if capture != nil {
			event.Reference = capture.Reference
			event.Status = capture.Status
		}
		if err := appendPayment(ctx, repos, booking, event, s.policy.BalanceEpsilon); err != nil {
			return nil, err
		}
	}

	summary, _, err := reconcileAndPromote(ctx, repos, booking, req.Actor, s.policy.BalanceEpsilon, now)
	if err != nil {
		return nil, err
	}
	return &BookingResult{Booking: booking, Summary: summary}, nil
}

// resolveTotal honours an explicit total only for roles allowed to override pricing. The
// returned note is recorded on the initial history entry.
func (s *reservationService) resolveTotal(req CreateBookingRequest, price utils.PriceBreakdown) (decimal.Decimal, string) {
	note := fmt.Sprintf("booking created: %d slot(s) x %dh", price.SlotCount, price.BillableHours)
	if price.DailyRateUsed {
		note = fmt.Sprintf("booking created: %d slot(s) at daily rate", price.SlotCount)
	}
	if req.ExplicitTotal == nil {
		return price.Total, note
	}
	if !s.policy.canOverrideTotal(req.Actor.Role) {
		return price.Total, note + fmt.Sprintf("; explicit total %s ignored for role %s", req.ExplicitTotal, req.Actor.Role)
	}
	total, used := utils.ResolveTotal(price.Total, req.ExplicitTotal)
	if !used {
		return price.Total, note + fmt.Sprintf("; explicit total %s is not positive, calculated total used", req.ExplicitTotal)
	}
	return total, note + fmt.Sprintf("; total overridden to %s (calculated %s)", total, price.Total)
}

func (s *reservationService) replay(ctx context.Context, actor domain.Actor, key string) (*BookingResult, error) {
	var result *BookingResult
	err := s.store.View(ctx, func(ctx context.Context, repos repository.Repos) error {
		res, err := loadBookingResult(ctx, repos, func() (*domain.Booking, error) {
			return repos.Bookings().GetByIdempotencyKey(ctx, key)
		})
		if err != nil {
			return err
		}
		if err := authorizeBooking(actor, res.Booking); err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	result.Replayed = true
	return result, nil
}

// SetBookingStatus applies an explicit status change. Only cancellation can be requested; PAID
// is reached through reconciliation alone.
func (s *reservationService) SetBookingStatus(ctx context.Context, bookingID int64, status domain.BookingStatus, actor domain.Actor, note string) (booking *domain.Booking, err error) {
	ctx, span := startSpan(ctx, "ReservationService.SetBookingStatus",
		attribute.Int64("booking.id", bookingID),
		attribute.String("status", string(status)))
	defer func() { endSpan(span, err) }()

	logger.EnterMethod("reservationService.SetBookingStatus", "bookingID", bookingID, "status", status, "actor", actor.String())

	if err := actor.Validate(); err != nil {
		return nil, err
	}
	if status != domain.BookingStatusCancelled {
		err := fmt.Errorf("%w: only %s can be set explicitly, got %q", domain.ErrInvalidTransition, domain.BookingStatusCancelled, status)
		logger.ExitMethodWithError("reservationService.SetBookingStatus", err, "bookingID", bookingID)
		return nil, err
	}

	var summary *domain.PaymentSummary
	err = s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repos) error {
		b, err := repos.Bookings().GetForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		if err := authorizeBooking(actor, b); err != nil {
			return err
		}
		now := time.Now().UTC()
		if note == "" {
			note = "cancelled"
		}
		if err := transition(ctx, repos, b, domain.BookingStatusCancelled, actor, note, now); err != nil {
			return err
		}
		if err := repos.SlotLedger().Release(ctx, b.ID, now); err != nil {
			return err
		}
		if summary, err = repos.Summaries().Get(ctx, b.ID); err != nil {
			return err
		}
		booking = b
		return nil
	})
	if err != nil {
		logger.ExitMethodWithError("reservationService.SetBookingStatus", err, "bookingID", bookingID)
		return nil, err
	}

	logger.Info("Booking cancelled", "bookingID", bookingID, "balanceDue", summary.BalanceDue, "actor", actor.String())
	s.fx.afterCommit(ctx, s.store, change{
		event: domain.EventBookingCancelled, booking: booking, summary: summary,
		actor: actor, occupancyChange: true,
	})

	logger.ExitMethod("reservationService.SetBookingStatus", "bookingID", bookingID)
	return booking, nil
}

func (s *reservationService) GetBooking(ctx context.Context, actor domain.Actor, bookingID int64) (*domain.Booking, error) {
	var booking *domain.Booking
	err := s.store.View(ctx, func(ctx context.Context, repos repository.Repos) error {
		b, err := repos.Bookings().GetByID(ctx, bookingID)
		if err != nil {
			return err
		}
		if err := authorizeBooking(actor, b); err != nil {
			return err
		}
		booking = b
		return nil
	})
	return booking, err
}

func (s *reservationService) ListStatusHistory(ctx context.Context, actor domain.Actor, bookingID int64) ([]domain.StatusHistoryEntry, error) {
	var entries []domain.StatusHistoryEntry
	err := s.store.View(ctx, func(ctx context.Context, repos repository.Repos) error {
		b, err := repos.Bookings().GetByID(ctx, bookingID)
		if err != nil {
			return err
		}
		if err := authorizeBooking(actor, b); err != nil {
			return err
		}
		entries, err = repos.History().ListByBooking(ctx, bookingID)
		return err
	})
	return entries, err
}

// loadBookableSlots checks the property is active and every slot belongs to it and is in service.
func loadBookableSlots(ctx context.Context, repos repository.Repos, propertyID int64, slotIDs []int64) (*domain.Property, []domain.Slot, error) {
	property, err := repos.Catalog().GetProperty(ctx, propertyID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil, domain.NewValidationError("property_id", fmt.Sprintf("property %d does not exist", propertyID))
	}
	if err != nil {
		return nil, nil, err
	}
	if !property.Active {
		return nil, nil, fmt.Errorf("%w: property %d", domain.ErrPropertyInactive, propertyID)
	}

	slots, err := repos.Catalog().GetSlots(ctx, slotIDs)
	if err != nil {
		return nil, nil, err
	}
	found := make(map[int64]domain.Slot, len(slots))
	for _, slot := range slots {
		found[slot.ID] = slot
	}
	for _, id := range slotIDs {
		slot, ok := found[id]
		switch {
		case !ok:
			return nil, nil, domain.NewValidationError("slot_ids", fmt.Sprintf("slot %d does not exist", id))
		case slot.PropertyID != propertyID:
			return nil, nil, domain.NewValidationError("slot_ids", fmt.Sprintf("slot %d does not belong to property %d", id, propertyID))
		case !slot.Active:
			return nil, nil, fmt.Errorf("%w: slot %d is under maintenance", domain.ErrSlotInactive, id)
		}
	}
	return property, slots, nil
}

func checkNoOverlap(ctx context.Context, repos repository.Repos, slotIDs []int64, start, end time.Time) error {
	overlapping, err := repos.SlotLedger().IsOverlapping(ctx, slotIDs, start, end, nil)
	if err != nil {
		return err
	}
	if overlapping {
		return fmt.Errorf("%w: requested slots are already reserved between %s and %s",
			domain.ErrSlotConflict, start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return nil
}

func loadBookingResult(ctx context.Context, repos repository.Repos, load func() (*domain.Booking, error)) (*BookingResult, error) {
	b, err := load()
	if err != nil {
		return nil, err
	}
	summary, err := repos.Summaries().Get(ctx, b.ID)
	if err != nil {
		return nil, err
	}
	return &BookingResult{Booking: b, Summary: summary}, nil
}

func currencyOf(p *domain.Property, policy Policy) string {
	if p != nil && p.Currency != "" {
		return p.Currency
	}
	return policy.DefaultCurrency
}

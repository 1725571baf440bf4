package service

import (
	"context"
	"time"

	"parkwise-booking-core/internal/domain"

	"github.com/shopspring/decimal"
)

type ReservationService interface {
	CreateBooking(ctx context.Context, req CreateBookingRequest) (*BookingResult, error)
	SetBookingStatus(ctx context.Context, bookingID int64, status domain.BookingStatus, actor domain.Actor, note string) (*domain.Booking, error)
	GetBooking(ctx context.Context, actor domain.Actor, bookingID int64) (*domain.Booking, error)
	ListStatusHistory(ctx context.Context, actor domain.Actor, bookingID int64) ([]domain.StatusHistoryEntry, error)
}

type PaymentService interface {
	RecordPayment(ctx context.Context, req RecordPaymentRequest) (*PaymentResult, error)
	RecordTopUpPayment(ctx context.Context, req TopUpRequest) (*domain.PaymentSummary, error)
	GetPaymentSummary(ctx context.Context, actor domain.Actor, bookingID int64) (*domain.PaymentSummary, error)
	ListPayments(ctx context.Context, actor domain.Actor, bookingID int64) ([]domain.PaymentEvent, error)
}

type AvailabilityService interface {
	CheckAvailability(ctx context.Context, propertyID int64, slotIDs []int64, start, end time.Time) (bool, error)
	ActiveOccupancy(ctx context.Context, propertyID int64, asOf time.Time) ([]int64, error)
	WarmOccupancyCache(ctx context.Context, asOf time.Time) (int, error)
}

type AuditService interface {
	AuditLedgers(ctx context.Context) (*AuditReport, error)
}

// CardGateway charges cards. Implementations must be safe for concurrent use.
type CardGateway interface {
	Capture(ctx context.Context, reference string, amount decimal.Decimal, currency string) (*domain.CardCapture, error)
	Void(ctx context.Context, reference string) error
}

type OccupancyCache interface {
	Get(ctx context.Context, propertyID int64, asOf time.Time) ([]int64, bool, error)
	Set(ctx context.Context, propertyID int64, asOf time.Time, slotIDs []int64) error
	Invalidate(ctx context.Context, propertyID int64) error
}

type EventPublisher interface {
	Publish(ctx context.Context, event domain.BookingEvent) error
}

type ReceiptNotifier interface {
	SendReceipt(ctx context.Context, contact domain.CustomerContact, booking domain.Booking, summary domain.PaymentSummary) error
}

type CreateBookingRequest struct {
	PropertyID     int64
	SlotIDs        []int64
	StartTime      time.Time
	EndTime        time.Time
	CustomerRef    string
	AdvanceAmount  decimal.Decimal
	AdvanceMethod  domain.PaymentMethod
	ExplicitTotal  *decimal.Decimal
	IdempotencyKey string
	Actor          domain.Actor
}

type BookingResult struct {
	Booking  *domain.Booking
	Summary  *domain.PaymentSummary
	Replayed bool
}

// RecordPaymentRequest appends Amount as a new payment.
type RecordPaymentRequest struct {
	BookingID      int64
	Amount         decimal.Decimal
	Method         domain.PaymentMethod
	IdempotencyKey string
	Actor          domain.Actor
}

// TopUpRequest states the new cumulative amount paid on the booking across all methods; the
// difference from what is already recorded is appended.
type TopUpRequest struct {
	BookingID           int64
	NewCumulativeAmount decimal.Decimal
	Method              domain.PaymentMethod
	IdempotencyKey      string
	Actor               domain.Actor
}

type PaymentResult struct {
	Event    *domain.PaymentEvent
	Summary  *domain.PaymentSummary
	Replayed bool
}

// Policy carries the tunable business rules.
type Policy struct {
	BalanceEpsilon     decimal.Decimal
	DefaultCurrency    string
	AllowTotalOverride bool
	OverrideRoles      []domain.Role
}

func DefaultPolicy() Policy {
	return Policy{
		BalanceEpsilon:     domain.DefaultBalanceEpsilon,
		DefaultCurrency:    "INR",
		AllowTotalOverride: true,
		OverrideRoles:      []domain.Role{domain.RoleCounter, domain.RoleAdmin},
	}
}

func (p Policy) canOverrideTotal(role domain.Role) bool {
	if !p.AllowTotalOverride {
		return false
	}
	for _, r := range p.OverrideRoles {
		if r == role {
			return true
		}
	}
	return false
}

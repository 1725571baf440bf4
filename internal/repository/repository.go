package repository

import (
	"context"
	"errors"
	"time"

	"parkwise-booking-core/internal/domain"
)

// Transactor owns transaction boundaries. Every mutation of the reservation core runs inside
// WithinTx, which is serializable and re-runs fn on storage conflicts; fn must therefore be
// free of side effects outside the repositories it is handed.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repos) error) error
	View(ctx context.Context, fn func(ctx context.Context, repos Repos) error) error
}

// Repos is the set of repositories bound to one transaction.
type Repos interface {
	Catalog() CatalogRepository
	Bookings() BookingRepository
	SlotLedger() SlotLedgerRepository
	Payments() PaymentRepository
	Summaries() PaymentSummaryRepository
	History() StatusHistoryRepository
}

// CatalogRepository is a read-only view of externally owned properties, slots and customers.
type CatalogRepository interface {
	GetProperty(ctx context.Context, id int64) (*domain.Property, error)
	GetSlots(ctx context.Context, ids []int64) ([]domain.Slot, error)
	ListActiveProperties(ctx context.Context) ([]domain.Property, error)
	GetCustomerContact(ctx context.Context, customerRef string) (*domain.CustomerContact, error)
}

type SlotLedgerRepository interface {
	// LockSlots takes row locks on the slots in id order so concurrent allocations of the
	// same slot serialize behind each other.
	LockSlots(ctx context.Context, slotIDs []int64) error
	IsOverlapping(ctx context.Context, slotIDs []int64, start, end time.Time, excludeBookingID *int64) (bool, error)
	Assign(ctx context.Context, assignments []domain.SlotAssignment) error
	Release(ctx context.Context, bookingID int64, at time.Time) error
	ListAssignments(ctx context.Context, bookingID int64) ([]domain.SlotAssignment, error)
	ActiveOccupancy(ctx context.Context, propertyID int64, asOf time.Time) ([]int64, error)
}

type BookingRepository interface {
	Create(ctx context.Context, booking *domain.Booking) error
	GetByID(ctx context.Context, id int64) (*domain.Booking, error)
	GetForUpdate(ctx context.Context, id int64) (*domain.Booking, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*domain.Booking, error)
	UpdateStatus(ctx context.Context, id int64, status domain.BookingStatus, at time.Time) error
	ListIDs(ctx context.Context, afterID int64, limit int) ([]int64, error)
}

// PaymentRepository is append-only: there is no update or delete.
type PaymentRepository interface {
	Append(ctx context.Context, event *domain.PaymentEvent) error
	ListByBooking(ctx context.Context, bookingID int64) ([]domain.PaymentEvent, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*domain.PaymentEvent, error)
}

type PaymentSummaryRepository interface {
	Create(ctx context.Context, summary *domain.PaymentSummary) error
	Get(ctx context.Context, bookingID int64) (*domain.PaymentSummary, error)
	Save(ctx context.Context, summary *domain.PaymentSummary) error
}

type StatusHistoryRepository interface {
	Append(ctx context.Context, entry *domain.StatusHistoryEntry) error
	ListByBooking(ctx context.Context, bookingID int64) ([]domain.StatusHistoryEntry, error)
}

// ErrDuplicateKey reports a unique-key collision, used to detect idempotent replays.
var ErrDuplicateKey = errors.New("duplicate key")

package domain

import (
	"fmt"
	"time"
)

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "PENDING"
	BookingStatusPaid      BookingStatus = "PAID"
	BookingStatusCancelled BookingStatus = "CANCELLED"
)

var bookingStatusSynonyms = map[string]BookingStatus{
	"PENDING":         BookingStatusPending,
	"PENDING_PAYMENT": BookingStatusPending,
	"BOOKED":          BookingStatusPending,
	"PAID":            BookingStatusPaid,
	"CONFIRMED":       BookingStatusPaid,
	"CANCELLED":       BookingStatusCancelled,
	"CANCELED":        BookingStatusCancelled,
	"CANCEL":          BookingStatusCancelled,
}

func ParseBookingStatus(raw string) (BookingStatus, error) {
	if s, ok := bookingStatusSynonyms[normalizeToken(raw)]; ok {
		return s, nil
	}
	return "", NewValidationError("status", fmt.Sprintf("unknown booking status %q", raw))
}

// allowedTransitions is the complete booking state machine. CANCELLED has no outgoing edges.
var allowedTransitions = map[BookingStatus][]BookingStatus{
	BookingStatusPending: {BookingStatusPaid, BookingStatusCancelled},
	BookingStatusPaid:    {BookingStatusCancelled},
}

func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	for _, allowed := range allowedTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s BookingStatus) IsTerminal() bool {
	return len(allowedTransitions[s]) == 0
}

// Booking reserves a set of slots for the half-open window [StartTime, EndTime).
type Booking struct {
	ID             int64           `json:"id"`
	CustomerRef    string          `json:"customer_ref"`
	PropertyID     int64           `json:"property_id"`
	SlotIDs        []int64         `json:"slot_ids"`
	StartTime      time.Time       `json:"start_time"`
	EndTime        time.Time       `json:"end_time"`
	Status         BookingStatus   `json:"status"`
	Category       BookingCategory `json:"category"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
	CreatedBy      string          `json:"created_by"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func (b *Booking) IsActive() bool {
	return b.Status != BookingStatusCancelled
}

// Overlaps reports whether two half-open intervals intersect. Touching endpoints do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

// SlotAssignment joins a booking to one reserved slot for the booking's whole window.
type SlotAssignment struct {
	BookingID  int64      `json:"booking_id"`
	SlotID     int64      `json:"slot_id"`
	StartTime  time.Time  `json:"start_time"`
	EndTime    time.Time  `json:"end_time"`
	ReleasedAt *time.Time `json:"released_at,omitempty"`
}

type StatusHistoryEntry struct {
	ID        int64          `json:"id"`
	BookingID int64          `json:"booking_id"`
	OldStatus *BookingStatus `json:"old_status,omitempty"`
	NewStatus BookingStatus  `json:"new_status"`
	Actor     string         `json:"actor"`
	Note      string         `json:"note"`
	CreatedAt time.Time      `json:"created_at"`
}

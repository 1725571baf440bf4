package domain

import "time"

type BookingEventType string

const (
	EventBookingCreated   BookingEventType = "booking.created"
	EventBookingPaid      BookingEventType = "booking.paid"
	EventBookingCancelled BookingEventType = "booking.cancelled"
	EventPaymentRecorded  BookingEventType = "payment.recorded"
)

// BookingEvent is published after a reservation or payment change has committed.
type BookingEvent struct {
	Type       BookingEventType `json:"type"`
	BookingID  int64            `json:"booking_id"`
	PropertyID int64            `json:"property_id"`
	Status     BookingStatus    `json:"status"`
	Summary    *PaymentSummary  `json:"summary,omitempty"`
	Payment    *PaymentEvent    `json:"payment,omitempty"`
	Actor      string           `json:"actor"`
	OccurredAt time.Time        `json:"occurred_at"`
}

// CardCapture is the gateway's answer to a card charge.
type CardCapture struct {
	Reference string
	Status    PaymentStatus
}

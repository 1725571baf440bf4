// Package wire holds the request and response payloads shared by the gRPC and HTTP surfaces.
// Money travels as decimal strings so no precision is lost in JSON.
package wire

import "time"

type CreateBookingRequest struct {
	PropertyID     int64     `json:"property_id"`
	SlotIDs        []int64   `json:"slot_ids"`
	StartTime      time.Time `json:"start_time"`
	EndTime        time.Time `json:"end_time"`
	CustomerRef    string    `json:"customer_ref,omitempty"`
	AdvanceAmount  string    `json:"advance_amount,omitempty"`
	AdvanceMethod  string    `json:"advance_method,omitempty"`
	TotalAmount    string    `json:"total_amount,omitempty"`
	IdempotencyKey string    `json:"idempotency_key,omitempty"`
}

type BookingResponse struct {
	Booking  *Booking        `json:"booking"`
	Summary  *PaymentSummary `json:"summary,omitempty"`
	Replayed bool            `json:"replayed,omitempty"`
}

type GetBookingRequest struct {
	BookingID int64 `json:"booking_id"`
}

type SetBookingStatusRequest struct {
	BookingID int64  `json:"booking_id"`
	Status    string `json:"status"`
	Note      string `json:"note,omitempty"`
}

type RecordPaymentRequest struct {
	BookingID      int64  `json:"booking_id"`
	Amount         string `json:"amount"`
	Method         string `json:"method,omitempty"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

type RecordTopUpPaymentRequest struct {
	BookingID           int64  `json:"booking_id"`
	NewCumulativeAmount string `json:"new_cumulative_amount"`
	Method              string `json:"method,omitempty"`
	IdempotencyKey      string `json:"idempotency_key,omitempty"`
}

type PaymentResponse struct {
	Payment  *Payment        `json:"payment,omitempty"`
	Summary  *PaymentSummary `json:"summary"`
	Replayed bool            `json:"replayed,omitempty"`
}

type SummaryResponse struct {
	Summary *PaymentSummary `json:"summary"`
}

type ListPaymentsResponse struct {
	Payments []*Payment `json:"payments"`
}

type ListStatusHistoryResponse struct {
	Entries []*StatusHistoryEntry `json:"entries"`
}

type CheckAvailabilityRequest struct {
	PropertyID int64     `json:"property_id"`
	SlotIDs    []int64   `json:"slot_ids"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
}

type CheckAvailabilityResponse struct {
	Available bool `json:"available"`
}

type GetActiveOccupancyRequest struct {
	PropertyID int64      `json:"property_id"`
	AsOf       *time.Time `json:"as_of,omitempty"`
}

type GetActiveOccupancyResponse struct {
	PropertyID int64     `json:"property_id"`
	AsOf       time.Time `json:"as_of"`
	SlotIDs    []int64   `json:"slot_ids"`
}

type Booking struct {
	ID          int64     `json:"id"`
	CustomerRef string    `json:"customer_ref"`
	PropertyID  int64     `json:"property_id"`
	SlotIDs     []int64   `json:"slot_ids"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	Status      string    `json:"status"`
	Category    string    `json:"category"`
	CreatedBy   string    `json:"created_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type PaymentSummary struct {
	BookingID   int64  `json:"booking_id"`
	TotalAmount string `json:"total_amount"`
	OnlinePaid  string `json:"online_paid"`
	CashPaid    string `json:"cash_paid"`
	BalanceDue  string `json:"balance_due"`
	Currency    string `json:"currency"`
}

type Payment struct {
	ID         int64     `json:"id"`
	BookingID  int64     `json:"booking_id"`
	Amount     string    `json:"amount"`
	Method     string    `json:"method"`
	Status     string    `json:"status"`
	Reference  string    `json:"reference,omitempty"`
	RecordedBy string    `json:"recorded_by"`
	CreatedAt  time.Time `json:"created_at"`
}

type StatusHistoryEntry struct {
	OldStatus string    `json:"old_status,omitempty"`
	NewStatus string    `json:"new_status"`
	Actor     string    `json:"actor"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ErrorResponse is the HTTP error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentMethodCard PaymentMethod = "CARD"
	PaymentMethodCash PaymentMethod = "CASH"
)

var paymentMethodSynonyms = map[string]PaymentMethod{
	"CARD":        PaymentMethodCard,
	"CREDIT_CARD": PaymentMethodCard,
	"ONLINE":      PaymentMethodCard,
	"ADVANCE":     PaymentMethodCard,
	"CASH":        PaymentMethodCash,
	"COUNTER":     PaymentMethodCash,
}

func ParsePaymentMethod(raw string) (PaymentMethod, error) {
	if m, ok := paymentMethodSynonyms[normalizeToken(raw)]; ok {
		return m, nil
	}
	return "", NewValidationError("method", fmt.Sprintf("unknown payment method %q", raw))
}

// DefaultMethodFor picks the advance payment method implied by who is entering it.
func DefaultMethodFor(role Role) PaymentMethod {
	if role == RoleCounter {
		return PaymentMethodCash
	}
	return PaymentMethodCard
}

type PaymentStatus string

const (
	PaymentStatusPaid    PaymentStatus = "PAID"
	PaymentStatusPending PaymentStatus = "PENDING"
	PaymentStatusFailed  PaymentStatus = "FAILED"
)

// PaymentEvent is one append-only ledger row. Only PAID events count toward the summary.
type PaymentEvent struct {
	ID             int64           `json:"id"`
	BookingID      int64           `json:"booking_id"`
	Amount         decimal.Decimal `json:"amount"`
	Method         PaymentMethod   `json:"method"`
	Status         PaymentStatus   `json:"status"`
	Reference      string          `json:"reference,omitempty"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
	RecordedBy     string          `json:"recorded_by"`
	CreatedAt      time.Time       `json:"created_at"`
}

// PaymentSummary is the reconciled view of a booking's ledger.
// Invariant: OnlinePaid + CashPaid + BalanceDue == TotalAmount and BalanceDue >= 0.
type PaymentSummary struct {
	BookingID   int64           `json:"booking_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	OnlinePaid  decimal.Decimal `json:"online_paid"`
	CashPaid    decimal.Decimal `json:"cash_paid"`
	BalanceDue  decimal.Decimal `json:"balance_due"`
	Currency    string          `json:"currency"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (s *PaymentSummary) PaidTotal() decimal.Decimal {
	return s.OnlinePaid.Add(s.CashPaid)
}

func (s *PaymentSummary) IsSettled(epsilon decimal.Decimal) bool {
	return s.BalanceDue.LessThanOrEqual(epsilon)
}

// Equal compares the monetary fields; UpdatedAt is ignored.
func (s *PaymentSummary) Equal(o *PaymentSummary) bool {
	return s.BookingID == o.BookingID &&
		s.Currency == o.Currency &&
		s.TotalAmount.Equal(o.TotalAmount) &&
		s.OnlinePaid.Equal(o.OnlinePaid) &&
		s.CashPaid.Equal(o.CashPaid) &&
		s.BalanceDue.Equal(o.BalanceDue)
}

// CheckInvariant verifies the summary identity within epsilon.
func (s *PaymentSummary) CheckInvariant(epsilon decimal.Decimal) error {
	if s.BalanceDue.IsNegative() {
		return fmt.Errorf("booking %d: negative balance due %s", s.BookingID, s.BalanceDue)
	}
	diff := s.PaidTotal().Add(s.BalanceDue).Sub(s.TotalAmount).Abs()
	if diff.GreaterThan(epsilon) {
		return fmt.Errorf("booking %d: paid %s + balance %s != total %s", s.BookingID, s.PaidTotal(), s.BalanceDue, s.TotalAmount)
	}
	return nil
}

package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation             = errors.New("validation error")
	ErrNotFound               = errors.New("not found")
	ErrSlotConflict           = errors.New("slot conflict")
	ErrPropertyInactive       = errors.New("property inactive")
	ErrSlotInactive           = errors.New("slot inactive")
	ErrBookingClosed          = errors.New("booking closed")
	ErrAmountDecreaseRejected = errors.New("amount decrease rejected")
	ErrInvalidTransition      = errors.New("invalid status transition")
	ErrStorageConflict        = errors.New("storage conflict")
	ErrPaymentDeclined        = errors.New("payment declined")
	ErrForbidden              = errors.New("forbidden")
)

// ValidationError describes a malformed or out-of-range input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation error: %s", e.Reason)
	}
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// ErrOverpayment is returned when a payment would push the paid total past the booking total.
var ErrOverpayment = &ValidationError{Field: "amount", Reason: "payment exceeds outstanding balance"}

// IsRetryable reports whether err is safe to retry as a whole operation.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStorageConflict)
}

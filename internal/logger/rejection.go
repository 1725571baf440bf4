package logger

import (
	"errors"

	"parkwise-booking-core/internal/domain"
)

var businessRejections = []error{
	domain.ErrValidation,
	domain.ErrNotFound,
	domain.ErrSlotConflict,
	domain.ErrPropertyInactive,
	domain.ErrSlotInactive,
	domain.ErrBookingClosed,
	domain.ErrAmountDecreaseRejected,
	domain.ErrInvalidTransition,
	domain.ErrPaymentDeclined,
	domain.ErrForbidden,
}

func isBusinessRejection(err error) bool {
	for _, target := range businessRejections {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

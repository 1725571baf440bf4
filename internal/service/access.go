package service

import (
	"fmt"

	"parkwise-booking-core/internal/domain"
)

// authorizeBooking keeps customers on their own bookings. Staff and system actors may act on any.
func authorizeBooking(actor domain.Actor, b *domain.Booking) error {
	if actor.Role == domain.RoleCustomer && b.CustomerRef != actor.ID {
		return fmt.Errorf("%w: booking %d belongs to another customer", domain.ErrForbidden, b.ID)
	}
	return nil
}

// resolveMethod applies the role default and refuses cash entered by customers.
func resolveMethod(actor domain.Actor, method domain.PaymentMethod) (domain.PaymentMethod, error) {
	if method == "" {
		method = domain.DefaultMethodFor(actor.Role)
	}
	method, err := domain.ParsePaymentMethod(string(method))
	if err != nil {
		return "", err
	}
	if method == domain.PaymentMethodCash && actor.Role == domain.RoleCustomer {
		return "", fmt.Errorf("%w: cash payments are recorded by counter staff", domain.ErrForbidden)
	}
	return method, nil
}

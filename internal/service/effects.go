package service

import (
	"context"
	"errors"
	"time"

	"parkwise-booking-core/internal/domain"
	"parkwise-booking-core/internal/logger"
	"parkwise-booking-core/internal/repository"
)

// SideEffects are run after a transaction commits. They are best effort: a failure is logged
// and never undoes the committed change. Nil members are skipped.
type SideEffects struct {
	Cache     OccupancyCache
	Publisher EventPublisher
	Notifier  ReceiptNotifier
}

type change struct {
	event           domain.BookingEventType
	booking         *domain.Booking
	summary         *domain.PaymentSummary
	payment         *domain.PaymentEvent
	actor           domain.Actor
	occupancyChange bool
}

func (fx *SideEffects) afterCommit(ctx context.Context, store repository.Transactor, c change) {
	if fx == nil || c.booking == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)

	if c.occupancyChange && fx.Cache != nil {
		if err := fx.Cache.Invalidate(ctx, c.booking.PropertyID); err != nil {
			logger.Warn("Failed to invalidate occupancy cache", "propertyID", c.booking.PropertyID, "error", err)
		}
	}

	if fx.Publisher != nil {
		evt := domain.BookingEvent{
			Type:       c.event,
			BookingID:  c.booking.ID,
			PropertyID: c.booking.PropertyID,
			Status:     c.booking.Status,
			Summary:    c.summary,
			Payment:    c.payment,
			Actor:      c.actor.String(),
			OccurredAt: time.Now().UTC(),
		}
		if err := fx.Publisher.Publish(ctx, evt); err != nil {
			logger.Warn("Failed to publish booking event", "bookingID", c.booking.ID, "type", c.event, "error", err)
		}
	}

	if fx.Notifier != nil && c.summary != nil && (c.event == domain.EventBookingPaid || c.event == domain.EventBookingCancelled) {
		fx.sendReceipt(ctx, store, c.booking, c.summary)
	}
}

func (fx *SideEffects) sendReceipt(ctx context.Context, store repository.Transactor, b *domain.Booking, summary *domain.PaymentSummary) {
	var contact *domain.CustomerContact
	err := store.View(ctx, func(ctx context.Context, repos repository.Repos) error {
		var err error
		contact, err = repos.Catalog().GetCustomerContact(ctx, b.CustomerRef)
		return err
	})
	if errors.Is(err, domain.ErrNotFound) || (err == nil && contact.Email == "") {
		logger.Debug("No contact on file, skipping receipt", "bookingID", b.ID, "customerRef", b.CustomerRef)
		return
	}
	if err != nil {
		logger.Warn("Failed to load customer contact", "bookingID", b.ID, "error", err)
		return
	}
	if err := fx.Notifier.SendReceipt(ctx, *contact, *b, *summary); err != nil {
		logger.Warn("Failed to send booking receipt", "bookingID", b.ID, "error", err)
	}
}

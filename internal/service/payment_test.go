package service_test

import (
	"context"
	"sync"
	"testing"

	"parkwise-booking-core/internal/domain"
	"parkwise-booking-core/internal/service"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) pendingBooking(t *testing.T) int64 {
	t.Helper()
	res, err := f.bookings.CreateBooking(context.Background(), twoHours(10))
	require.NoError(t, err)
	return res.Booking.ID
}

func TestRecordTopUpPayment_ScenarioB(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	id := f.pendingBooking(t)

	summary, err := f.payments.RecordTopUpPayment(ctx, service.TopUpRequest{
		BookingID:           id,
		NewCumulativeAmount: dec("600"),
		Actor:               counter,
	})
	require.NoError(t, err)
	assert.True(t, summary.CashPaid.Equal(dec("600")))
	assert.True(t, summary.BalanceDue.IsZero())

	b, err := f.bookings.GetBooking(ctx, admin, id)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusPaid, b.Status)

	history := f.history(t, id)
	require.Len(t, history, 2)
	assert.Equal(t, domain.BookingStatusPending, *history[1].OldStatus)
	assert.Equal(t, domain.BookingStatusPaid, history[1].NewStatus)
	assert.Equal(t, "counter:clerk-7", history[1].Actor)
}

func TestRecordTopUpPayment_Cumulative(t *testing.T) {
	ctx := context.Background()

	t.Run("Records only the difference", func(t *testing.T) {
		f := newFixture(t, nil)
		id := f.pendingBooking(t)

		_, err := f.payments.RecordTopUpPayment(ctx, service.TopUpRequest{BookingID: id, NewCumulativeAmount: dec("200"), Actor: customer})
		require.NoError(t, err)
		summary, err := f.payments.RecordTopUpPayment(ctx, service.TopUpRequest{BookingID: id, NewCumulativeAmount: dec("350"), Actor: customer})
		require.NoError(t, err)

		events := f.ledger(t, id)
		require.Len(t, events, 2)
		assert.True(t, events[0].Amount.Equal(dec("200")))
		assert.True(t, events[1].Amount.Equal(dec("150")))
		assert.True(t, summary.OnlinePaid.Equal(dec("350")))
		assert.True(t, summary.BalanceDue.Equal(dec("250")))
	})

	t.Run("Decrease is rejected and ledger unchanged", func(t *testing.T) {
		f := newFixture(t, nil)
		id := f.pendingBooking(t)

		_, err := f.payments.RecordTopUpPayment(ctx, service.TopUpRequest{BookingID: id, NewCumulativeAmount: dec("300"), Actor: customer})
		require.NoError(t, err)

		_, err = f.payments.RecordTopUpPayment(ctx, service.TopUpRequest{BookingID: id, NewCumulativeAmount: dec("299.99"), Actor: customer})
		assert.ErrorIs(t, err, domain.ErrAmountDecreaseRejected)
		assert.Len(t, f.ledger(t, id), 1)
	})

	t.Run("Same cumulative amount is a no-op", func(t *testing.T) {
		f := newFixture(t, nil)
		id := f.pendingBooking(t)

		first, err := f.payments.RecordTopUpPayment(ctx, service.TopUpRequest{BookingID: id, NewCumulativeAmount: dec("300"), Actor: customer})
		require.NoError(t, err)
		second, err := f.payments.RecordTopUpPayment(ctx, service.TopUpRequest{BookingID: id, NewCumulativeAmount: dec("300.00"), Actor: customer})
		require.NoError(t, err)

		assert.True(t, first.Equal(second))
		assert.Len(t, f.ledger(t, id), 1)
		assert.Len(t, f.gateway.captured, 1)
	})

	t.Run("Cumulative includes both methods", func(t *testing.T) {
		f := newFixture(t, nil)
		id := f.pendingBooking(t)

		_, err := f.payments.RecordTopUpPayment(ctx, service.TopUpRequest{BookingID: id, NewCumulativeAmount: dec("100"), Actor: customer})
		require.NoError(t, err)
		summary, err := f.payments.RecordTopUpPayment(ctx, service.TopUpRequest{BookingID: id, NewCumulativeAmount: dec("600"), Actor: counter})
		require.NoError(t, err)

		assert.True(t, summary.OnlinePaid.Equal(dec("100")))
		assert.True(t, summary.CashPaid.Equal(dec("500")))
		assert.True(t, summary.BalanceDue.IsZero())
	})

	t.Run("Cumulative above total is overpayment", func(t *testing.T) {
		f := newFixture(t, nil)
		id := f.pendingBooking(t)

		_, err := f.payments.RecordTopUpPayment(ctx, service.TopUpRequest{BookingID: id, NewCumulativeAmount: dec("601"), Actor: counter})
		assert.ErrorIs(t, err, domain.ErrOverpayment)
		assert.Empty(t, f.ledger(t, id))
	})

	t.Run("Negative cumulative is invalid", func(t *testing.T) {
		f := newFixture(t, nil)
		id := f.pendingBooking(t)

		_, err := f.payments.RecordTopUpPayment(ctx, service.TopUpRequest{BookingID: id, NewCumulativeAmount: dec("-5"), Actor: counter})
		assert.ErrorIs(t, err, domain.ErrValidation)
	})
}

func TestRecordTopUpPayment_ScenarioD(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	id := f.pendingBooking(t)

	_, err := f.payments.RecordTopUpPayment(ctx, service.TopUpRequest{BookingID: id, NewCumulativeAmount: dec("200"), Actor: customer})
	require.NoError(t, err)

	_, err = f.bookings.SetBookingStatus(ctx, id, domain.BookingStatusCancelled, counter, "no show")
	require.NoError(t, err)

	_, err = f.payments.RecordTopUpPayment(ctx, service.TopUpRequest{BookingID: id, NewCumulativeAmount: dec("600"), Actor: counter})
	assert.ErrorIs(t, err, domain.ErrBookingClosed)

	// Closed wins over a decrease.
	_, err = f.payments.RecordTopUpPayment(ctx, service.TopUpRequest{BookingID: id, NewCumulativeAmount: dec("100"), Actor: counter})
	assert.ErrorIs(t, err, domain.ErrBookingClosed)

	summary, err := f.payments.GetPaymentSummary(ctx, customer, id)
	require.NoError(t, err)
	assert.True(t, summary.BalanceDue.Equal(dec("400")))
	assert.Len(t, f.ledger(t, id), 1)
}

func TestRecordPayment(t *testing.T) {
	ctx := context.Background()

	t.Run("Appends and promotes", func(t *testing.T) {
		f := newFixture(t, nil)
		id := f.pendingBooking(t)

		res, err := f.payments.RecordPayment(ctx, service.RecordPaymentRequest{BookingID: id, Amount: dec("600"), Actor: customer})
		require.NoError(t, err)
		assert.Equal(t, domain.PaymentMethodCard, res.Event.Method)
		assert.Equal(t, "customer:cust-1", res.Event.RecordedBy)
		assert.NotEmpty(t, res.Event.Reference)
		assert.True(t, res.Summary.IsSettled(domain.DefaultBalanceEpsilon))

		b, err := f.bookings.GetBooking(ctx, customer, id)
		require.NoError(t, err)
		assert.Equal(t, domain.BookingStatusPaid, b.Status)
	})

	t.Run("Zero amount is invalid", func(t *testing.T) {
		f := newFixture(t, nil)
		id := f.pendingBooking(t)

		_, err := f.payments.RecordPayment(ctx, service.RecordPaymentRequest{BookingID: id, Amount: dec("0"), Actor: customer})
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("Amounts finer than the ledger scale are invalid", func(t *testing.T) {
		f := newFixture(t, nil)
		id := f.pendingBooking(t)

		for _, amount := range []decimal.Decimal{decimal.New(1, -3000000), dec("0.00005"), dec("1e12")} {
			_, err := f.payments.RecordPayment(ctx, service.RecordPaymentRequest{BookingID: id, Amount: amount, Actor: counter})
			assert.ErrorIs(t, err, domain.ErrValidation, amount.String())
		}
		_, err := f.payments.RecordTopUpPayment(ctx, service.TopUpRequest{BookingID: id, NewCumulativeAmount: decimal.New(1, -3000000), Actor: counter})
		assert.ErrorIs(t, err, domain.ErrValidation)
		assert.Empty(t, f.ledger(t, id))
	})

	t.Run("Overpayment is rejected before charging", func(t *testing.T) {
		f := newFixture(t, nil)
		id := f.pendingBooking(t)

		_, err := f.payments.RecordPayment(ctx, service.RecordPaymentRequest{BookingID: id, Amount: dec("700"), Actor: customer})
		assert.ErrorIs(t, err, domain.ErrOverpayment)
		assert.Empty(t, f.gateway.captured)
	})

	t.Run("Overpayment on a paid booking", func(t *testing.T) {
		f := newFixture(t, nil)
		id := f.pendingBooking(t)
		_, err := f.payments.RecordPayment(ctx, service.RecordPaymentRequest{BookingID: id, Amount: dec("600"), Actor: counter})
		require.NoError(t, err)

		_, err = f.payments.RecordPayment(ctx, service.RecordPaymentRequest{BookingID: id, Amount: dec("1"), Actor: counter})
		assert.ErrorIs(t, err, domain.ErrOverpayment)
		assert.Len(t, f.ledger(t, id), 1)
	})

	t.Run("Declined card leaves the ledger alone", func(t *testing.T) {
		f := newFixture(t, nil)
		id := f.pendingBooking(t)
		f.gateway.decline = true

		_, err := f.payments.RecordPayment(ctx, service.RecordPaymentRequest{BookingID: id, Amount: dec("100"), Actor: customer})
		assert.ErrorIs(t, err, domain.ErrPaymentDeclined)
		assert.Empty(t, f.ledger(t, id))
	})

	t.Run("Idempotent replay", func(t *testing.T) {
		f := newFixture(t, nil)
		id := f.pendingBooking(t)
		req := service.RecordPaymentRequest{BookingID: id, Amount: dec("100"), Actor: customer, IdempotencyKey: "pay-1"}

		first, err := f.payments.RecordPayment(ctx, req)
		require.NoError(t, err)
		second, err := f.payments.RecordPayment(ctx, req)
		require.NoError(t, err)

		assert.True(t, second.Replayed)
		assert.Equal(t, first.Event.ID, second.Event.ID)
		assert.Len(t, f.ledger(t, id), 1)
		assert.Len(t, f.gateway.captured, 1)
	})

	t.Run("Customer cannot pay for another booking", func(t *testing.T) {
		f := newFixture(t, nil)
		id := f.pendingBooking(t)

		_, err := f.payments.RecordPayment(ctx, service.RecordPaymentRequest{BookingID: id, Amount: dec("100"), Actor: other})
		assert.ErrorIs(t, err, domain.ErrForbidden)
		_, err = f.payments.GetPaymentSummary(ctx, other, id)
		assert.ErrorIs(t, err, domain.ErrForbidden)
	})

	t.Run("Unknown booking", func(t *testing.T) {
		f := newFixture(t, nil)
		_, err := f.payments.RecordPayment(ctx, service.RecordPaymentRequest{BookingID: 77, Amount: dec("1"), Actor: counter})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestRecordPayment_ConcurrentTopUpsNeverOverpay(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	id := f.pendingBooking(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.payments.RecordPayment(ctx, service.RecordPaymentRequest{BookingID: id, Amount: dec("250"), Actor: counter})
		}()
	}
	wg.Wait()

	summary, err := f.payments.GetPaymentSummary(ctx, admin, id)
	require.NoError(t, err)
	assert.True(t, summary.CashPaid.Equal(dec("500")), "got %s", summary.CashPaid)
	assert.NoError(t, summary.CheckInvariant(domain.DefaultBalanceEpsilon))
	assert.Len(t, f.ledger(t, id), 2)
}

func TestRecordPayment_VoidsCaptureWhenTransactionFails(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	id := f.pendingBooking(t)

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.payments.RecordPayment(ctx, service.RecordPaymentRequest{BookingID: id, Amount: dec("400"), Actor: customer})
		}(i)
	}
	wg.Wait()

	failed := 0
	for _, err := range errs {
		if err != nil {
			assert.ErrorIs(t, err, domain.ErrOverpayment)
			failed++
		}
	}
	assert.Equal(t, 3, failed)
	assert.Equal(t, len(f.gateway.captured)-1, len(f.gateway.voided))
}

package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"parkwise-booking-core/internal/domain"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	sent     []*mail.SGMailV3
	response *rest.Response
	err      error
}

func (f *fakeSender) SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error) {
	f.sent = append(f.sent, email)
	return f.response, f.err
}

var (
	contact = domain.CustomerContact{Ref: "cust-1", Name: "Asha", Email: "asha@example.com"}
	booking = domain.Booking{
		ID:        42,
		Status:    domain.BookingStatusPaid,
		Category:  domain.CategoryParking,
		StartTime: time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC),
	}
	summary = domain.PaymentSummary{
		BookingID:   42,
		TotalAmount: decimal.NewFromInt(600),
		OnlinePaid:  decimal.NewFromInt(200),
		CashPaid:    decimal.NewFromInt(400),
		BalanceDue:  decimal.Zero,
		Currency:    "INR",
	}
)

func TestSendGridNotifier_SendReceipt(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		sender := &fakeSender{response: &rest.Response{StatusCode: 202}}
		n := &SendGridNotifier{client: sender, fromEmail: "noreply@parkwise.example", fromName: "ParkWise"}

		require.NoError(t, n.SendReceipt(ctx, contact, booking, summary))
		require.Len(t, sender.sent, 1)

		msg := sender.sent[0]
		assert.Equal(t, "Payment receipt for booking #42", msg.Subject)
		assert.Equal(t, "noreply@parkwise.example", msg.From.Address)
		require.Len(t, msg.Personalizations, 1)
		assert.Equal(t, "asha@example.com", msg.Personalizations[0].To[0].Address)
		assert.Contains(t, msg.Content[0].Value, "Paid at desk: 400.00 INR")
		assert.Contains(t, msg.Content[0].Value, "Balance due:  0.00 INR")
	})

	t.Run("Cancellation subject", func(t *testing.T) {
		sender := &fakeSender{response: &rest.Response{StatusCode: 202}}
		n := &SendGridNotifier{client: sender}

		cancelled := booking
		cancelled.Status = domain.BookingStatusCancelled
		require.NoError(t, n.SendReceipt(ctx, contact, cancelled, summary))
		assert.Equal(t, "Booking #42 cancelled", sender.sent[0].Subject)
	})

	t.Run("Rejected by provider", func(t *testing.T) {
		sender := &fakeSender{response: &rest.Response{StatusCode: 401, Body: "unauthorized"}}
		n := &SendGridNotifier{client: sender}

		err := n.SendReceipt(ctx, contact, booking, summary)
		assert.ErrorContains(t, err, "status 401")
	})

	t.Run("Transport error", func(t *testing.T) {
		sender := &fakeSender{err: errors.New("dial tcp: timeout")}
		n := &SendGridNotifier{client: sender}

		assert.Error(t, n.SendReceipt(ctx, contact, booking, summary))
	})
}

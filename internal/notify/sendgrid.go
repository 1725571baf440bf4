package notify

import (
	"context"
	"fmt"
	"strings"

	"parkwise-booking-core/internal/domain"
	"parkwise-booking-core/internal/logger"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

type mailSender interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// SendGridNotifier emails booking receipts to customers.
type SendGridNotifier struct {
	client    mailSender
	fromEmail string
	fromName  string
}

func NewSendGridNotifier(apiKey, fromEmail, fromName string) *SendGridNotifier {
	return &SendGridNotifier{
		client:    sendgrid.NewSendClient(apiKey),
		fromEmail: fromEmail,
		fromName:  fromName,
	}
}

func (n *SendGridNotifier) SendReceipt(ctx context.Context, contact domain.CustomerContact, b domain.Booking, summary domain.PaymentSummary) error {
	subject, plainText, htmlContent := renderReceipt(contact, b, summary)

	from := mail.NewEmail(n.fromName, n.fromEmail)
	recipient := mail.NewEmail(contact.Name, contact.Email)
	message := mail.NewSingleEmail(from, subject, recipient, plainText, htmlContent)

	logger.ExternalServiceCall("sendgrid", "Send", "bookingID", b.ID, "to", contact.Email)
	response, err := n.client.SendWithContext(ctx, message)
	logger.ExternalServiceResult("sendgrid", "Send", err, "bookingID", b.ID)
	if err != nil {
		return fmt.Errorf("failed to send receipt: %w", err)
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("sendgrid error: status %d, body: %s", response.StatusCode, response.Body)
	}
	return nil
}

func renderReceipt(contact domain.CustomerContact, b domain.Booking, s domain.PaymentSummary) (subject, plainText, htmlContent string) {
	name := contact.Name
	if name == "" {
		name = "there"
	}
	window := fmt.Sprintf("%s to %s", b.StartTime.Format("02 Jan 2006 15:04"), b.EndTime.Format("02 Jan 2006 15:04 MST"))

	switch b.Status {
	case domain.BookingStatusCancelled:
		subject = fmt.Sprintf("Booking #%d cancelled", b.ID)
	default:
		subject = fmt.Sprintf("Payment receipt for booking #%d", b.ID)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Hello %s,\n\n", name)
	fmt.Fprintf(&sb, "Booking #%d (%s) for %s is now %s.\n\n", b.ID, b.Category, window, b.Status)
	fmt.Fprintf(&sb, "Total:        %s %s\n", s.TotalAmount.StringFixed(2), s.Currency)
	fmt.Fprintf(&sb, "Paid online:  %s %s\n", s.OnlinePaid.StringFixed(2), s.Currency)
	fmt.Fprintf(&sb, "Paid at desk: %s %s\n", s.CashPaid.StringFixed(2), s.Currency)
	fmt.Fprintf(&sb, "Balance due:  %s %s\n", s.BalanceDue.StringFixed(2), s.Currency)
	plainText = sb.String()

	htmlContent = fmt.Sprintf(`
		<html>
			<body>
				<h2>%s</h2>
				<p>Booking <strong>#%d</strong> for %s is now <strong>%s</strong>.</p>
				<table>
					<tr><td>Total</td><td>%s %s</td></tr>
					<tr><td>Paid online</td><td>%s %s</td></tr>
					<tr><td>Paid at desk</td><td>%s %s</td></tr>
					<tr><td>Balance due</td><td>%s %s</td></tr>
				</table>
			</body>
		</html>
	`, subject, b.ID, window, b.Status,
		s.TotalAmount.StringFixed(2), s.Currency,
		s.OnlinePaid.StringFixed(2), s.Currency,
		s.CashPaid.StringFixed(2), s.Currency,
		s.BalanceDue.StringFixed(2), s.Currency)
	return subject, plainText, htmlContent
}

package postgres

import (
	"context"
	"database/sql"

	"parkwise-booking-core/internal/domain"
	"parkwise-booking-core/internal/repository"
)

type paymentSummaryRepository struct {
	db DBTX
}

func NewPaymentSummaryRepository(db DBTX) repository.PaymentSummaryRepository {
	return &paymentSummaryRepository{db: db}
}

func (r *paymentSummaryRepository) Create(ctx context.Context, s *domain.PaymentSummary) error {
	query := `
		INSERT INTO payment_summaries (booking_id, total_amount, online_paid, cash_paid, balance_due, currency, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query, s.BookingID, s.TotalAmount, s.OnlinePaid, s.CashPaid, s.BalanceDue, s.Currency, s.UpdatedAt)
	return err
}

func (r *paymentSummaryRepository) Get(ctx context.Context, bookingID int64) (*domain.PaymentSummary, error) {
	query := `
		SELECT booking_id, total_amount, online_paid, cash_paid, balance_due, currency, updated_at
		FROM payment_summaries WHERE booking_id = $1
	`
	s := &domain.PaymentSummary{}
	err := r.db.QueryRowContext(ctx, query, bookingID).Scan(
		&s.BookingID, &s.TotalAmount, &s.OnlinePaid, &s.CashPaid, &s.BalanceDue, &s.Currency, &s.UpdatedAt,
	)
	if err != nil {
		return nil, notFound(err, "payment summary for booking %d", bookingID)
	}
	return s, nil
}

// Save writes the reconciled amounts. total_amount is fixed at creation and never updated.
func (r *paymentSummaryRepository) Save(ctx context.Context, s *domain.PaymentSummary) error {
	query := `
		UPDATE payment_summaries
		SET online_paid = $1, cash_paid = $2, balance_due = $3, updated_at = $4
		WHERE booking_id = $5
	`
	res, err := r.db.ExecContext(ctx, query, s.OnlinePaid, s.CashPaid, s.BalanceDue, s.UpdatedAt, s.BookingID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return notFound(sql.ErrNoRows, "payment summary for booking %d", s.BookingID)
	}
	return nil
}

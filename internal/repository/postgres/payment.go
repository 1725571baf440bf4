package postgres

import (
	"context"

	"parkwise-booking-core/internal/domain"
	"parkwise-booking-core/internal/logger"
	"parkwise-booking-core/internal/repository"
)

type paymentRepository struct {
	db DBTX
}

func NewPaymentRepository(db DBTX) repository.PaymentRepository {
	return &paymentRepository{db: db}
}

const paymentColumns = `id, booking_id, amount, method, status, COALESCE(reference, ''),
	COALESCE(idempotency_key, ''), recorded_by, created_at`

func (r *paymentRepository) Append(ctx context.Context, e *domain.PaymentEvent) error {
	logger.EnterMethod("paymentRepository.Append", "bookingID", e.BookingID, "amount", e.Amount, "method", e.Method)

	query := `
		INSERT INTO payment_events (booking_id, amount, method, status, reference, idempotency_key, recorded_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	err := r.db.QueryRowContext(ctx, query,
		e.BookingID, e.Amount, e.Method, e.Status, nullString(e.Reference),
		nullString(e.IdempotencyKey), e.RecordedBy, e.CreatedAt,
	).Scan(&e.ID)
	if err != nil {
		logger.ExitMethodWithError("paymentRepository.Append", err, "bookingID", e.BookingID)
		return err
	}

	logger.ExitMethod("paymentRepository.Append", "paymentID", e.ID)
	return nil
}

// ListByBooking returns the ledger in creation order.
func (r *paymentRepository) ListByBooking(ctx context.Context, bookingID int64) ([]domain.PaymentEvent, error) {
	query := `SELECT ` + paymentColumns + ` FROM payment_events WHERE booking_id = $1 ORDER BY id`
	logger.DatabaseCall("ListPayments", query, "bookingID", bookingID)

	rows, err := r.db.QueryContext(ctx, query, bookingID)
	if err != nil {
		logger.DatabaseResult("ListPayments", 0, err)
		return nil, err
	}
	defer rows.Close()

	var events []domain.PaymentEvent
	for rows.Next() {
		var e domain.PaymentEvent
		if err := scanPayment(rows, &e); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	logger.DatabaseResult("ListPayments", int64(len(events)), rows.Err())
	return events, rows.Err()
}

func (r *paymentRepository) GetByIdempotencyKey(ctx context.Context, key string) (*domain.PaymentEvent, error) {
	query := `SELECT ` + paymentColumns + ` FROM payment_events WHERE idempotency_key = $1`
	e := &domain.PaymentEvent{}
	if err := scanPayment(r.db.QueryRowContext(ctx, query, key), e); err != nil {
		return nil, notFound(err, "payment idempotency key %q", key)
	}
	return e, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPayment(row scanner, e *domain.PaymentEvent) error {
	return row.Scan(&e.ID, &e.BookingID, &e.Amount, &e.Method, &e.Status, &e.Reference,
		&e.IdempotencyKey, &e.RecordedBy, &e.CreatedAt)
}

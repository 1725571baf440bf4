package postgres

import (
	"context"
	"database/sql"
	"time"

	"parkwise-booking-core/internal/domain"
	"parkwise-booking-core/internal/logger"
	"parkwise-booking-core/internal/repository"
)

type bookingRepository struct {
	db DBTX
}

func NewBookingRepository(db DBTX) repository.BookingRepository {
	return &bookingRepository{db: db}
}

const bookingColumns = `id, customer_ref, property_id, start_time, end_time, status, category,
	COALESCE(idempotency_key, ''), created_by, created_at, updated_at`

func (r *bookingRepository) Create(ctx context.Context, b *domain.Booking) error {
	logger.EnterMethod("bookingRepository.Create", "propertyID", b.PropertyID, "customerRef", b.CustomerRef)

	query := `
		INSERT INTO bookings (
			customer_ref, property_id, start_time, end_time, status, category,
			idempotency_key, created_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`
	err := r.db.QueryRowContext(ctx, query,
		b.CustomerRef, b.PropertyID, b.StartTime, b.EndTime, b.Status, b.Category,
		nullString(b.IdempotencyKey), b.CreatedBy, b.CreatedAt, b.UpdatedAt,
	).Scan(&b.ID)
	if err != nil {
		logger.ExitMethodWithError("bookingRepository.Create", err, "propertyID", b.PropertyID)
		return err
	}

	logger.ExitMethod("bookingRepository.Create", "bookingID", b.ID)
	return nil
}

func (r *bookingRepository) GetByID(ctx context.Context, id int64) (*domain.Booking, error) {
	return r.get(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
}

// GetForUpdate row-locks the booking so concurrent status changes and top-ups serialize.
func (r *bookingRepository) GetForUpdate(ctx context.Context, id int64) (*domain.Booking, error) {
	return r.get(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`, id)
}

func (r *bookingRepository) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Booking, error) {
	b := &domain.Booking{}
	err := r.db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE idempotency_key = $1`, key).Scan(bookingDest(b)...)
	if err != nil {
		return nil, notFound(err, "booking idempotency key %q", key)
	}
	if b.SlotIDs, err = r.slotIDs(ctx, b.ID); err != nil {
		return nil, err
	}
	return b, nil
}

func (r *bookingRepository) get(ctx context.Context, query string, id int64) (*domain.Booking, error) {
	logger.EnterMethod("bookingRepository.get", "bookingID", id)

	b := &domain.Booking{}
	if err := r.db.QueryRowContext(ctx, query, id).Scan(bookingDest(b)...); err != nil {
		logger.ExitMethodWithError("bookingRepository.get", err, "bookingID", id)
		return nil, notFound(err, "booking %d", id)
	}
	ids, err := r.slotIDs(ctx, id)
	if err != nil {
		return nil, err
	}
	b.SlotIDs = ids

	logger.ExitMethod("bookingRepository.get", "bookingID", id, "status", b.Status)
	return b, nil
}

func (r *bookingRepository) slotIDs(ctx context.Context, bookingID int64) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT slot_id FROM booking_slots WHERE booking_id = $1 ORDER BY slot_id`, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func bookingDest(b *domain.Booking) []any {
	return []any{
		&b.ID, &b.CustomerRef, &b.PropertyID, &b.StartTime, &b.EndTime, &b.Status, &b.Category,
		&b.IdempotencyKey, &b.CreatedBy, &b.CreatedAt, &b.UpdatedAt,
	}
}

func (r *bookingRepository) UpdateStatus(ctx context.Context, id int64, status domain.BookingStatus, at time.Time) error {
	logger.EnterMethod("bookingRepository.UpdateStatus", "bookingID", id, "status", status)

	res, err := r.db.ExecContext(ctx, `UPDATE bookings SET status = $1, updated_at = $2 WHERE id = $3`, status, at, id)
	if err != nil {
		logger.ExitMethodWithError("bookingRepository.UpdateStatus", err, "bookingID", id)
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return notFound(sql.ErrNoRows, "booking %d", id)
	}

	logger.ExitMethod("bookingRepository.UpdateStatus", "bookingID", id)
	return nil
}

func (r *bookingRepository) ListIDs(ctx context.Context, afterID int64, limit int) ([]int64, error) {
	if limit < 0 {
		limit = 0
	}
	// LIMIT NULL is unbounded.
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM bookings WHERE id > $1 ORDER BY id LIMIT NULLIF($2, 0)`, afterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"parkwise-booking-core/internal/domain"
	"parkwise-booking-core/internal/logger"
	"parkwise-booking-core/internal/repository"

	"github.com/lib/pq"
)

type slotLedgerRepository struct {
	db DBTX
}

func NewSlotLedgerRepository(db DBTX) repository.SlotLedgerRepository {
	return &slotLedgerRepository{db: db}
}

func (r *slotLedgerRepository) LockSlots(ctx context.Context, slotIDs []int64) error {
	query := `SELECT id FROM slots WHERE id = ANY($1) ORDER BY id FOR UPDATE`
	logger.DatabaseCall("LockSlots", query, "slotIDs", slotIDs)

	rows, err := r.db.QueryContext(ctx, query, pq.Array(slotIDs))
	if err != nil {
		logger.DatabaseResult("LockSlots", 0, err)
		return err
	}
	defer rows.Close()

	locked := map[int64]bool{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return err
		}
		locked[id] = true
	}
	if err := rows.Err(); err != nil {
		return err
	}
	logger.DatabaseResult("LockSlots", int64(len(locked)), nil)

	for _, id := range slotIDs {
		if !locked[id] {
			return fmt.Errorf("%w: slot %d", domain.ErrNotFound, id)
		}
	}
	return nil
}

func (r *slotLedgerRepository) IsOverlapping(ctx context.Context, slotIDs []int64, start, end time.Time, excludeBookingID *int64) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM booking_slots bs
			JOIN bookings b ON b.id = bs.booking_id
			WHERE bs.slot_id = ANY($1)
			  AND bs.released_at IS NULL
			  AND b.status <> 'CANCELLED'
			  AND bs.period && tstzrange($2, $3, '[)')
			  AND ($4::BIGINT IS NULL OR bs.booking_id <> $4)
		)
	`
	exclude := sql.NullInt64{}
	if excludeBookingID != nil {
		exclude = sql.NullInt64{Int64: *excludeBookingID, Valid: true}
	}

	var overlapping bool
	err := r.db.QueryRowContext(ctx, query, pq.Array(slotIDs), start, end, exclude).Scan(&overlapping)
	return overlapping, err
}

// Assign inserts one row per slot. A concurrent overlapping assignment fails the insert with an
// exclusion violation, which the store reports as domain.ErrSlotConflict.
func (r *slotLedgerRepository) Assign(ctx context.Context, assignments []domain.SlotAssignment) error {
	stmt, err := r.db.PrepareContext(ctx, `
		INSERT INTO booking_slots (booking_id, slot_id, period)
		VALUES ($1, $2, tstzrange($3, $4, '[)'))
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare slot assignment: %w", err)
	}
	defer stmt.Close()

	for _, a := range assignments {
		if _, err := stmt.ExecContext(ctx, a.BookingID, a.SlotID, a.StartTime, a.EndTime); err != nil {
			return fmt.Errorf("failed to assign slot %d to booking %d: %w", a.SlotID, a.BookingID, err)
		}
	}
	return nil
}

func (r *slotLedgerRepository) Release(ctx context.Context, bookingID int64, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE booking_slots SET released_at = $1 WHERE booking_id = $2 AND released_at IS NULL`, at, bookingID)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	logger.Debug("Released slot assignments", "bookingID", bookingID, "rows", n)
	return nil
}

func (r *slotLedgerRepository) ListAssignments(ctx context.Context, bookingID int64) ([]domain.SlotAssignment, error) {
	query := `
		SELECT booking_id, slot_id, lower(period), upper(period), released_at
		FROM booking_slots WHERE booking_id = $1 ORDER BY slot_id
	`
	rows, err := r.db.QueryContext(ctx, query, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.SlotAssignment
	for rows.Next() {
		var a domain.SlotAssignment
		if err := rows.Scan(&a.BookingID, &a.SlotID, &a.StartTime, &a.EndTime, &a.ReleasedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *slotLedgerRepository) ActiveOccupancy(ctx context.Context, propertyID int64, asOf time.Time) ([]int64, error) {
	query := `
		SELECT DISTINCT bs.slot_id
		FROM booking_slots bs
		JOIN bookings b ON b.id = bs.booking_id
		WHERE b.property_id = $1
		  AND b.status <> 'CANCELLED'
		  AND bs.released_at IS NULL
		  AND bs.period @> $2::TIMESTAMPTZ
		ORDER BY bs.slot_id
	`
	rows, err := r.db.QueryContext(ctx, query, propertyID, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

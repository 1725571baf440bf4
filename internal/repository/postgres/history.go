package postgres

import (
	"context"
	"database/sql"

	"parkwise-booking-core/internal/domain"
	"parkwise-booking-core/internal/repository"
)

type statusHistoryRepository struct {
	db DBTX
}

func NewStatusHistoryRepository(db DBTX) repository.StatusHistoryRepository {
	return &statusHistoryRepository{db: db}
}

func (r *statusHistoryRepository) Append(ctx context.Context, e *domain.StatusHistoryEntry) error {
	query := `
		INSERT INTO booking_status_history (booking_id, old_status, new_status, actor, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	var old sql.NullString
	if e.OldStatus != nil {
		old = sql.NullString{String: string(*e.OldStatus), Valid: true}
	}
	return r.db.QueryRowContext(ctx, query, e.BookingID, old, e.NewStatus, e.Actor, e.Note, e.CreatedAt).Scan(&e.ID)
}

func (r *statusHistoryRepository) ListByBooking(ctx context.Context, bookingID int64) ([]domain.StatusHistoryEntry, error) {
	query := `
		SELECT id, booking_id, old_status, new_status, actor, note, created_at
		FROM booking_status_history WHERE booking_id = $1 ORDER BY id
	`
	rows, err := r.db.QueryContext(ctx, query, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.StatusHistoryEntry
	for rows.Next() {
		var e domain.StatusHistoryEntry
		var old sql.NullString
		if err := rows.Scan(&e.ID, &e.BookingID, &old, &e.NewStatus, &e.Actor, &e.Note, &e.CreatedAt); err != nil {
			return nil, err
		}
		if old.Valid {
			s := domain.BookingStatus(old.String)
			e.OldStatus = &s
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

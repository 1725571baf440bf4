package postgres

import (
	"context"

	"parkwise-booking-core/internal/domain"
	"parkwise-booking-core/internal/logger"
	"parkwise-booking-core/internal/repository"

	"github.com/lib/pq"
)

type catalogRepository struct {
	db DBTX
}

func NewCatalogRepository(db DBTX) repository.CatalogRepository {
	return &catalogRepository{db: db}
}

func (r *catalogRepository) GetProperty(ctx context.Context, id int64) (*domain.Property, error) {
	query := `SELECT id, name, hourly_rate, daily_rate, currency, active FROM properties WHERE id = $1`
	p := &domain.Property{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&p.ID, &p.Name, &p.HourlyRate, &p.DailyRate, &p.Currency, &p.Active)
	if err != nil {
		return nil, notFound(err, "property %d", id)
	}
	return p, nil
}

func (r *catalogRepository) GetSlots(ctx context.Context, ids []int64) ([]domain.Slot, error) {
	query := `SELECT id, property_id, label, slot_type, active FROM slots WHERE id = ANY($1) ORDER BY id`
	logger.DatabaseCall("GetSlots", query, "slotIDs", ids)

	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		logger.DatabaseResult("GetSlots", 0, err)
		return nil, err
	}
	defer rows.Close()

	var slots []domain.Slot
	for rows.Next() {
		var s domain.Slot
		var rawType string
		if err := rows.Scan(&s.ID, &s.PropertyID, &s.Label, &rawType, &s.Active); err != nil {
			return nil, err
		}
		if s.Type, err = domain.ParseSlotType(rawType); err != nil {
			return nil, err
		}
		slots = append(slots, s)
	}
	logger.DatabaseResult("GetSlots", int64(len(slots)), rows.Err())
	return slots, rows.Err()
}

func (r *catalogRepository) ListActiveProperties(ctx context.Context) ([]domain.Property, error) {
	query := `SELECT id, name, hourly_rate, daily_rate, currency, active FROM properties WHERE active ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var props []domain.Property
	for rows.Next() {
		var p domain.Property
		if err := rows.Scan(&p.ID, &p.Name, &p.HourlyRate, &p.DailyRate, &p.Currency, &p.Active); err != nil {
			return nil, err
		}
		props = append(props, p)
	}
	return props, rows.Err()
}

func (r *catalogRepository) GetCustomerContact(ctx context.Context, customerRef string) (*domain.CustomerContact, error) {
	query := `SELECT ref, name, email FROM customers WHERE ref = $1`
	c := &domain.CustomerContact{}
	if err := r.db.QueryRowContext(ctx, query, customerRef).Scan(&c.Ref, &c.Name, &c.Email); err != nil {
		return nil, notFound(err, "customer %s", customerRef)
	}
	return c, nil
}

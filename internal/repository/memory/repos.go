package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"parkwise-booking-core/internal/domain"
	"parkwise-booking-core/internal/repository"
)

var errReadOnly = errors.New("memory store: write in read-only transaction")

type txRepos struct {
	st       *state
	readOnly bool
}

func (r *txRepos) Catalog() repository.CatalogRepository { return catalogRepo{r} }
func (r *txRepos) Bookings() repository.BookingRepository { return bookingRepo{r} }
func (r *txRepos) SlotLedger() repository.SlotLedgerRepository { return slotLedgerRepo{r} }
func (r *txRepos) Payments() repository.PaymentRepository { return paymentRepo{r} }
func (r *txRepos) Summaries() repository.PaymentSummaryRepository { return summaryRepo{r} }
func (r *txRepos) History() repository.StatusHistoryRepository { return historyRepo{r} }

func (r *txRepos) writable() error {
	if r.readOnly {
		return errReadOnly
	}
	return nil
}

type catalogRepo struct{ *txRepos }

func (r catalogRepo) GetProperty(ctx context.Context, id int64) (*domain.Property, error) {
	p, ok := r.st.properties[id]
	if !ok {
		return nil, fmt.Errorf("%w: property %d", domain.ErrNotFound, id)
	}
	return &p, nil
}

func (r catalogRepo) GetSlots(ctx context.Context, ids []int64) ([]domain.Slot, error) {
	slots := make([]domain.Slot, 0, len(ids))
	for _, id := range ids {
		if s, ok := r.st.slots[id]; ok {
			slots = append(slots, s)
		}
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].ID < slots[j].ID })
	return slots, nil
}

func (r catalogRepo) ListActiveProperties(ctx context.Context) ([]domain.Property, error) {
	var props []domain.Property
	for _, p := range r.st.properties {
		if p.Active {
			props = append(props, p)
		}
	}
	sort.Slice(props, func(i, j int) bool { return props[i].ID < props[j].ID })
	return props, nil
}

func (r catalogRepo) GetCustomerContact(ctx context.Context, customerRef string) (*domain.CustomerContact, error) {
	c, ok := r.st.customers[customerRef]
	if !ok {
		return nil, fmt.Errorf("%w: customer %s", domain.ErrNotFound, customerRef)
	}
	return &c, nil
}

type bookingRepo struct{ *txRepos }

func (r bookingRepo) Create(ctx context.Context, b *domain.Booking) error {
	if err := r.writable(); err != nil {
		return err
	}
	if b.IdempotencyKey != "" {
		if _, exists := r.st.bookingKeys[b.IdempotencyKey]; exists {
			return fmt.Errorf("%w: booking idempotency key %q", repository.ErrDuplicateKey, b.IdempotencyKey)
		}
	}
	r.st.nextBookingID++
	b.ID = r.st.nextBookingID
	stored := *b
	stored.SlotIDs = append([]int64(nil), b.SlotIDs...)
	r.st.bookings[b.ID] = stored
	if b.IdempotencyKey != "" {
		r.st.bookingKeys[b.IdempotencyKey] = b.ID
	}
	return nil
}

func (r bookingRepo) GetByID(ctx context.Context, id int64) (*domain.Booking, error) {
	b, ok := r.st.bookings[id]
	if !ok {
		return nil, fmt.Errorf("%w: booking %d", domain.ErrNotFound, id)
	}
	b.SlotIDs = append([]int64(nil), b.SlotIDs...)
	return &b, nil
}

// GetForUpdate is GetByID: the store already serializes transactions.
func (r bookingRepo) GetForUpdate(ctx context.Context, id int64) (*domain.Booking, error) {
	return r.GetByID(ctx, id)
}

func (r bookingRepo) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Booking, error) {
	id, ok := r.st.bookingKeys[key]
	if !ok {
		return nil, fmt.Errorf("%w: booking idempotency key %q", domain.ErrNotFound, key)
	}
	return r.GetByID(ctx, id)
}

func (r bookingRepo) UpdateStatus(ctx context.Context, id int64, status domain.BookingStatus, at time.Time) error {
	if err := r.writable(); err != nil {
		return err
	}
	b, ok := r.st.bookings[id]
	if !ok {
		return fmt.Errorf("%w: booking %d", domain.ErrNotFound, id)
	}
	b.Status = status
	b.UpdatedAt = at
	r.st.bookings[id] = b
	return nil
}

func (r bookingRepo) ListIDs(ctx context.Context, afterID int64, limit int) ([]int64, error) {
	var ids []int64
	for _, id := range r.st.sortedBookingIDs() {
		if id <= afterID {
			continue
		}
		ids = append(ids, id)
		if limit > 0 && len(ids) == limit {
			break
		}
	}
	return ids, nil
}

type slotLedgerRepo struct{ *txRepos }

func (r slotLedgerRepo) LockSlots(ctx context.Context, slotIDs []int64) error {
	for _, id := range slotIDs {
		if _, ok := r.st.slots[id]; !ok {
			return fmt.Errorf("%w: slot %d", domain.ErrNotFound, id)
		}
	}
	return nil
}

func (r slotLedgerRepo) IsOverlapping(ctx context.Context, slotIDs []int64, start, end time.Time, excludeBookingID *int64) (bool, error) {
	_, found := r.firstConflict(slotIDs, start, end, excludeBookingID)
	return found, nil
}

// firstConflict scans active assignments of non-cancelled bookings for any requested slot.
func (r slotLedgerRepo) firstConflict(slotIDs []int64, start, end time.Time, excludeBookingID *int64) (domain.SlotAssignment, bool) {
	wanted := make(map[int64]bool, len(slotIDs))
	for _, id := range slotIDs {
		wanted[id] = true
	}
	for bookingID, assigned := range r.st.assignments {
		if excludeBookingID != nil && bookingID == *excludeBookingID {
			continue
		}
		if b, ok := r.st.bookings[bookingID]; !ok || !b.IsActive() {
			continue
		}
		for _, a := range assigned {
			if a.ReleasedAt != nil || !wanted[a.SlotID] {
				continue
			}
			if domain.Overlaps(a.StartTime, a.EndTime, start, end) {
				return a, true
			}
		}
	}
	return domain.SlotAssignment{}, false
}

// Assign mirrors the storage exclusion constraint: no two unreleased assignments of one slot may overlap.
func (r slotLedgerRepo) Assign(ctx context.Context, assignments []domain.SlotAssignment) error {
	if err := r.writable(); err != nil {
		return err
	}
	for _, a := range assignments {
		if hit, found := r.firstConflict([]int64{a.SlotID}, a.StartTime, a.EndTime, &a.BookingID); found {
			return fmt.Errorf("%w: slot %d is held by booking %d", domain.ErrSlotConflict, a.SlotID, hit.BookingID)
		}
	}
	for _, a := range assignments {
		r.st.assignments[a.BookingID] = append(r.st.assignments[a.BookingID], a)
	}
	return nil
}

func (r slotLedgerRepo) Release(ctx context.Context, bookingID int64, at time.Time) error {
	if err := r.writable(); err != nil {
		return err
	}
	assigned := r.st.assignments[bookingID]
	for i := range assigned {
		if assigned[i].ReleasedAt == nil {
			released := at
			assigned[i].ReleasedAt = &released
		}
	}
	return nil
}

func (r slotLedgerRepo) ListAssignments(ctx context.Context, bookingID int64) ([]domain.SlotAssignment, error) {
	assigned := r.st.assignments[bookingID]
	out := make([]domain.SlotAssignment, len(assigned))
	for i, a := range assigned {
		if a.ReleasedAt != nil {
			at := *a.ReleasedAt
			a.ReleasedAt = &at
		}
		out[i] = a
	}
	return out, nil
}

func (r slotLedgerRepo) ActiveOccupancy(ctx context.Context, propertyID int64, asOf time.Time) ([]int64, error) {
	seen := map[int64]bool{}
	for bookingID, assigned := range r.st.assignments {
		b, ok := r.st.bookings[bookingID]
		if !ok || !b.IsActive() || b.PropertyID != propertyID {
			continue
		}
		for _, a := range assigned {
			if a.ReleasedAt == nil && !asOf.Before(a.StartTime) && asOf.Before(a.EndTime) {
				seen[a.SlotID] = true
			}
		}
	}
	ids := make([]int64, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

type paymentRepo struct{ *txRepos }

func (r paymentRepo) Append(ctx context.Context, e *domain.PaymentEvent) error {
	if err := r.writable(); err != nil {
		return err
	}
	if e.IdempotencyKey != "" {
		if _, exists := r.st.paymentKeys[e.IdempotencyKey]; exists {
			return fmt.Errorf("%w: payment idempotency key %q", repository.ErrDuplicateKey, e.IdempotencyKey)
		}
	}
	r.st.nextPaymentID++
	e.ID = r.st.nextPaymentID
	r.st.payments[e.BookingID] = append(r.st.payments[e.BookingID], *e)
	if e.IdempotencyKey != "" {
		r.st.paymentKeys[e.IdempotencyKey] = *e
	}
	return nil
}

func (r paymentRepo) ListByBooking(ctx context.Context, bookingID int64) ([]domain.PaymentEvent, error) {
	return append([]domain.PaymentEvent(nil), r.st.payments[bookingID]...), nil
}

func (r paymentRepo) GetByIdempotencyKey(ctx context.Context, key string) (*domain.PaymentEvent, error) {
	e, ok := r.st.paymentKeys[key]
	if !ok {
		return nil, fmt.Errorf("%w: payment idempotency key %q", domain.ErrNotFound, key)
	}
	return &e, nil
}

type summaryRepo struct{ *txRepos }

func (r summaryRepo) Create(ctx context.Context, s *domain.PaymentSummary) error {
	if err := r.writable(); err != nil {
		return err
	}
	if _, exists := r.st.summaries[s.BookingID]; exists {
		return fmt.Errorf("%w: payment summary for booking %d", repository.ErrDuplicateKey, s.BookingID)
	}
	r.st.summaries[s.BookingID] = *s
	return nil
}

func (r summaryRepo) Get(ctx context.Context, bookingID int64) (*domain.PaymentSummary, error) {
	s, ok := r.st.summaries[bookingID]
	if !ok {
		return nil, fmt.Errorf("%w: payment summary for booking %d", domain.ErrNotFound, bookingID)
	}
	return &s, nil
}

func (r summaryRepo) Save(ctx context.Context, s *domain.PaymentSummary) error {
	if err := r.writable(); err != nil {
		return err
	}
	if _, ok := r.st.summaries[s.BookingID]; !ok {
		return fmt.Errorf("%w: payment summary for booking %d", domain.ErrNotFound, s.BookingID)
	}
	r.st.summaries[s.BookingID] = *s
	return nil
}

type historyRepo struct{ *txRepos }

func (r historyRepo) Append(ctx context.Context, e *domain.StatusHistoryEntry) error {
	if err := r.writable(); err != nil {
		return err
	}
	r.st.nextHistoryID++
	e.ID = r.st.nextHistoryID
	r.st.history[e.BookingID] = append(r.st.history[e.BookingID], *e)
	return nil
}

func (r historyRepo) ListByBooking(ctx context.Context, bookingID int64) ([]domain.StatusHistoryEntry, error) {
	return append([]domain.StatusHistoryEntry(nil), r.st.history[bookingID]...), nil
}

package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"parkwise-booking-core/internal/domain"
	"parkwise-booking-core/internal/repository"
)

// Store keeps the whole reservation state in process. Transactions are serialized behind one
// mutex and run against a private copy that replaces the committed state only when fn succeeds,
// so a failed transaction leaves nothing behind. Views read the committed state in place and
// may run concurrently with each other.
type Store struct {
	mu    sync.RWMutex
	state *state
}

func NewStore() *Store {
	return &Store{state: newState()}
}

var _ repository.Transactor = (*Store)(nil)

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repos) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	working := s.state.clone()
	if err := fn(ctx, &txRepos{st: working}); err != nil {
		return err
	}
	s.state = working
	return nil
}

func (s *Store) View(ctx context.Context, fn func(ctx context.Context, repos repository.Repos) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	return fn(ctx, &txRepos{st: s.state, readOnly: true})
}

// SeedProperty registers a property and its slots in the catalog.
func (s *Store) SeedProperty(p domain.Property, slots ...domain.Slot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.properties[p.ID] = p
	for _, slot := range slots {
		slot.PropertyID = p.ID
		s.state.slots[slot.ID] = slot
	}
}

func (s *Store) SeedCustomer(c domain.CustomerContact) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.customers[c.Ref] = c
}

// SetSlotActive flips the maintenance flag of a slot.
func (s *Store) SetSlotActive(slotID int64, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	slot, ok := s.state.slots[slotID]
	if !ok {
		return fmt.Errorf("%w: slot %d", domain.ErrNotFound, slotID)
	}
	slot.Active = active
	s.state.slots[slotID] = slot
	return nil
}

type state struct {
	properties map[int64]domain.Property
	slots      map[int64]domain.Slot
	customers  map[string]domain.CustomerContact

	bookings    map[int64]domain.Booking
	bookingKeys map[string]int64
	assignments map[int64][]domain.SlotAssignment
	payments    map[int64][]domain.PaymentEvent
	paymentKeys map[string]domain.PaymentEvent
	summaries   map[int64]domain.PaymentSummary
	history     map[int64][]domain.StatusHistoryEntry

	nextBookingID int64
	nextPaymentID int64
	nextHistoryID int64
}

func newState() *state {
	return &state{
		properties:  map[int64]domain.Property{},
		slots:       map[int64]domain.Slot{},
		customers:   map[string]domain.CustomerContact{},
		bookings:    map[int64]domain.Booking{},
		bookingKeys: map[string]int64{},
		assignments: map[int64][]domain.SlotAssignment{},
		payments:    map[int64][]domain.PaymentEvent{},
		paymentKeys: map[string]domain.PaymentEvent{},
		summaries:   map[int64]domain.PaymentSummary{},
		history:     map[int64][]domain.StatusHistoryEntry{},
	}
}

func (st *state) clone() *state {
	c := newState()
	for k, v := range st.properties {
		c.properties[k] = v
	}
	for k, v := range st.slots {
		c.slots[k] = v
	}
	for k, v := range st.customers {
		c.customers[k] = v
	}
	for k, v := range st.bookings {
		v.SlotIDs = append([]int64(nil), v.SlotIDs...)
		c.bookings[k] = v
	}
	for k, v := range st.bookingKeys {
		c.bookingKeys[k] = v
	}
	for k, v := range st.assignments {
		cp := make([]domain.SlotAssignment, len(v))
		for i, a := range v {
			if a.ReleasedAt != nil {
				at := *a.ReleasedAt
				a.ReleasedAt = &at
			}
			cp[i] = a
		}
		c.assignments[k] = cp
	}
	for k, v := range st.payments {
		c.payments[k] = append([]domain.PaymentEvent(nil), v...)
	}
	for k, v := range st.paymentKeys {
		c.paymentKeys[k] = v
	}
	for k, v := range st.summaries {
		c.summaries[k] = v
	}
	for k, v := range st.history {
		c.history[k] = append([]domain.StatusHistoryEntry(nil), v...)
	}
	c.nextBookingID = st.nextBookingID
	c.nextPaymentID = st.nextPaymentID
	c.nextHistoryID = st.nextHistoryID
	return c
}

func (st *state) sortedBookingIDs() []int64 {
	ids := make([]int64, 0, len(st.bookings))
	for id := range st.bookings {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

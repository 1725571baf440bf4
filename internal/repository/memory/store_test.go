package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"parkwise-booking-core/internal/domain"
	"parkwise-booking-core/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func seeded() *Store {
	s := NewStore()
	s.SeedProperty(domain.Property{ID: 1, Name: "Central", HourlyRate: decimal.NewFromInt(300), Currency: "INR", Active: true},
		domain.Slot{ID: 10, Label: "A1", Type: domain.SlotTypeNormal, Active: true},
		domain.Slot{ID: 11, Label: "A2", Type: domain.SlotTypeEV, Active: true},
	)
	return s
}

func createBooking(t *testing.T, s *Store, slotIDs []int64, start, end time.Time) int64 {
	t.Helper()
	var id int64
	err := s.WithinTx(context.Background(), func(ctx context.Context, repos repository.Repos) error {
		b := &domain.Booking{PropertyID: 1, SlotIDs: slotIDs, StartTime: start, EndTime: end, Status: domain.BookingStatusPending}
		if err := repos.Bookings().Create(ctx, b); err != nil {
			return err
		}
		id = b.ID
		var as []domain.SlotAssignment
		for _, sid := range slotIDs {
			as = append(as, domain.SlotAssignment{BookingID: b.ID, SlotID: sid, StartTime: start, EndTime: end})
		}
		return repos.SlotLedger().Assign(ctx, as)
	})
	require.NoError(t, err)
	return id
}

func TestStore_RollbackOnError(t *testing.T) {
	s := seeded()
	boom := errors.New("boom")

	err := s.WithinTx(context.Background(), func(ctx context.Context, repos repository.Repos) error {
		b := &domain.Booking{PropertyID: 1, SlotIDs: []int64{10}, StartTime: t0, EndTime: t0.Add(time.Hour)}
		require.NoError(t, repos.Bookings().Create(ctx, b))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	err = s.View(context.Background(), func(ctx context.Context, repos repository.Repos) error {
		ids, err := repos.Bookings().ListIDs(ctx, 0, 0)
		assert.Empty(t, ids)
		return err
	})
	assert.NoError(t, err)
}

func TestStore_AssignRejectsOverlap(t *testing.T) {
	s := seeded()
	first := createBooking(t, s, []int64{10}, t0, t0.Add(2*time.Hour))

	err := s.WithinTx(context.Background(), func(ctx context.Context, repos repository.Repos) error {
		b := &domain.Booking{PropertyID: 1, SlotIDs: []int64{10, 11}, StartTime: t0.Add(time.Hour), EndTime: t0.Add(3 * time.Hour)}
		require.NoError(t, repos.Bookings().Create(ctx, b))
		return repos.SlotLedger().Assign(ctx, []domain.SlotAssignment{
			{BookingID: b.ID, SlotID: 11, StartTime: b.StartTime, EndTime: b.EndTime},
			{BookingID: b.ID, SlotID: 10, StartTime: b.StartTime, EndTime: b.EndTime},
		})
	})
	assert.ErrorIs(t, err, domain.ErrSlotConflict)

	// Nothing from the failed transaction, including the slot 11 assignment, is visible.
	err = s.View(context.Background(), func(ctx context.Context, repos repository.Repos) error {
		occupied, err := repos.SlotLedger().ActiveOccupancy(ctx, 1, t0.Add(90*time.Minute))
		require.NoError(t, err)
		assert.Equal(t, []int64{10}, occupied)

		overlap, err := repos.SlotLedger().IsOverlapping(ctx, []int64{10}, t0, t0.Add(time.Hour), &first)
		require.NoError(t, err)
		assert.False(t, overlap)
		return nil
	})
	assert.NoError(t, err)
}

func TestStore_TouchingWindowsAndRelease(t *testing.T) {
	s := seeded()
	first := createBooking(t, s, []int64{10}, t0, t0.Add(2*time.Hour))
	createBooking(t, s, []int64{10}, t0.Add(2*time.Hour), t0.Add(4*time.Hour))

	err := s.WithinTx(context.Background(), func(ctx context.Context, repos repository.Repos) error {
		overlap, err := repos.SlotLedger().IsOverlapping(ctx, []int64{10}, t0.Add(time.Hour), t0.Add(90*time.Minute), nil)
		require.NoError(t, err)
		assert.True(t, overlap)

		require.NoError(t, repos.Bookings().UpdateStatus(ctx, first, domain.BookingStatusCancelled, t0))
		require.NoError(t, repos.SlotLedger().Release(ctx, first, t0))

		overlap, err = repos.SlotLedger().IsOverlapping(ctx, []int64{10}, t0.Add(time.Hour), t0.Add(90*time.Minute), nil)
		require.NoError(t, err)
		assert.False(t, overlap)

		assigned, err := repos.SlotLedger().ListAssignments(ctx, first)
		require.NoError(t, err)
		require.Len(t, assigned, 1)
		assert.NotNil(t, assigned[0].ReleasedAt)
		return nil
	})
	assert.NoError(t, err)
}

func TestStore_IdempotencyKeys(t *testing.T) {
	s := seeded()
	ctx := context.Background()

	err := s.WithinTx(ctx, func(ctx context.Context, repos repository.Repos) error {
		return repos.Bookings().Create(ctx, &domain.Booking{PropertyID: 1, IdempotencyKey: "k-1"})
	})
	require.NoError(t, err)

	err = s.WithinTx(ctx, func(ctx context.Context, repos repository.Repos) error {
		return repos.Bookings().Create(ctx, &domain.Booking{PropertyID: 1, IdempotencyKey: "k-1"})
	})
	assert.ErrorIs(t, err, repository.ErrDuplicateKey)

	err = s.WithinTx(ctx, func(ctx context.Context, repos repository.Repos) error {
		e := &domain.PaymentEvent{BookingID: 1, Amount: decimal.NewFromInt(5), IdempotencyKey: "p-1"}
		if err := repos.Payments().Append(ctx, e); err != nil {
			return err
		}
		return repos.Payments().Append(ctx, &domain.PaymentEvent{BookingID: 1, Amount: decimal.NewFromInt(5), IdempotencyKey: "p-1"})
	})
	assert.ErrorIs(t, err, repository.ErrDuplicateKey)

	err = s.View(ctx, func(ctx context.Context, repos repository.Repos) error {
		b, err := repos.Bookings().GetByIdempotencyKey(ctx, "k-1")
		require.NoError(t, err)
		assert.Equal(t, int64(1), b.ID)

		_, err = repos.Payments().GetByIdempotencyKey(ctx, "p-1")
		assert.ErrorIs(t, err, domain.ErrNotFound)
		return nil
	})
	assert.NoError(t, err)
}

func TestStore_ViewIsReadOnly(t *testing.T) {
	s := seeded()
	err := s.View(context.Background(), func(ctx context.Context, repos repository.Repos) error {
		return repos.History().Append(ctx, &domain.StatusHistoryEntry{BookingID: 1})
	})
	assert.Error(t, err)
}

func TestStore_ViewReturnsCopies(t *testing.T) {
	s := seeded()
	id := createBooking(t, s, []int64{10, 11}, t0, t0.Add(2*time.Hour))
	require.NoError(t, s.WithinTx(context.Background(), func(ctx context.Context, repos repository.Repos) error {
		return repos.SlotLedger().Release(ctx, id, t0)
	}))

	read := func() (*domain.Booking, []domain.SlotAssignment) {
		var b *domain.Booking
		var as []domain.SlotAssignment
		require.NoError(t, s.View(context.Background(), func(ctx context.Context, repos repository.Repos) error {
			var err error
			if b, err = repos.Bookings().GetByID(ctx, id); err != nil {
				return err
			}
			as, err = repos.SlotLedger().ListAssignments(ctx, id)
			return err
		}))
		return b, as
	}

	b, as := read()
	b.SlotIDs[0] = 99
	*as[0].ReleasedAt = t0.Add(time.Hour)
	as[1].SlotID = 99

	b, as = read()
	assert.Equal(t, []int64{10, 11}, b.SlotIDs)
	assert.Equal(t, t0, *as[0].ReleasedAt)
	assert.Equal(t, int64(11), as[1].SlotID)
}

func TestStore_ViewsDoNotBlockEachOther(t *testing.T) {
	s := seeded()
	inner := make(chan error, 1)

	err := s.View(context.Background(), func(ctx context.Context, repos repository.Repos) error {
		go func() {
			inner <- s.View(ctx, func(ctx context.Context, repos repository.Repos) error {
				_, err := repos.Catalog().GetProperty(ctx, 1)
				return err
			})
		}()
		select {
		case err := <-inner:
			return err
		case <-time.After(2 * time.Second):
			return errors.New("second view blocked behind the first")
		}
	})
	assert.NoError(t, err)
}

func TestStore_Catalog(t *testing.T) {
	s := seeded()
	s.SeedCustomer(domain.CustomerContact{Ref: "cust-1", Email: "a@example.com"})
	require.NoError(t, s.SetSlotActive(11, false))
	assert.ErrorIs(t, s.SetSlotActive(99, false), domain.ErrNotFound)

	err := s.View(context.Background(), func(ctx context.Context, repos repository.Repos) error {
		slots, err := repos.Catalog().GetSlots(ctx, []int64{11, 10, 99})
		require.NoError(t, err)
		require.Len(t, slots, 2)
		assert.Equal(t, int64(10), slots[0].ID)
		assert.Equal(t, int64(1), slots[1].PropertyID)
		assert.False(t, slots[1].Active)

		_, err = repos.Catalog().GetProperty(ctx, 2)
		assert.ErrorIs(t, err, domain.ErrNotFound)

		c, err := repos.Catalog().GetCustomerContact(ctx, "cust-1")
		require.NoError(t, err)
		assert.Equal(t, "a@example.com", c.Email)
		return nil
	})
	assert.NoError(t, err)
}

package service

import (
	"context"
	"errors"
	"slices"
	"time"

	"parkwise-booking-core/internal/domain"
	"parkwise-booking-core/internal/logger"
	"parkwise-booking-core/internal/repository"
)

type availabilityService struct {
	store repository.Transactor
	cache OccupancyCache
}

func NewAvailabilityService(store repository.Transactor, cache OccupancyCache) AvailabilityService {
	return &availabilityService{store: store, cache: cache}
}

// CheckAvailability reports whether every slot is in service and free over [start, end).
func (s *availabilityService) CheckAvailability(ctx context.Context, propertyID int64, slotIDs []int64, start, end time.Time) (bool, error) {
	if len(slotIDs) == 0 {
		return false, domain.NewValidationError("slot_ids", "at least one slot is required")
	}
	if !start.Before(end) {
		return false, domain.NewValidationError("end_time", "must be after start_time")
	}
	ids := slices.Clone(slotIDs)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	available := false
	err := s.store.View(ctx, func(ctx context.Context, repos repository.Repos) error {
		_, _, err := loadBookableSlots(ctx, repos, propertyID, ids)
		if errors.Is(err, domain.ErrSlotInactive) {
			return nil
		}
		if err != nil {
			return err
		}
		overlapping, err := repos.SlotLedger().IsOverlapping(ctx, ids, start.UTC(), end.UTC(), nil)
		available = !overlapping
		return err
	})
	return available, err
}

// ActiveOccupancy lists the slots held at asOf, truncated to the minute so cached answers are
// shared by every request in that minute.
func (s *availabilityService) ActiveOccupancy(ctx context.Context, propertyID int64, asOf time.Time) ([]int64, error) {
	asOf = asOf.UTC().Truncate(time.Minute)

	if s.cache != nil {
		ids, ok, err := s.cache.Get(ctx, propertyID, asOf)
		if err != nil {
			logger.Warn("Occupancy cache read failed", "propertyID", propertyID, "error", err)
		} else if ok {
			return ids, nil
		}
	}

	var ids []int64
	err := s.store.View(ctx, func(ctx context.Context, repos repository.Repos) error {
		if _, err := repos.Catalog().GetProperty(ctx, propertyID); err != nil {
			return err
		}
		var err error
		ids, err = repos.SlotLedger().ActiveOccupancy(ctx, propertyID, asOf)
		return err
	})
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []int64{}
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, propertyID, asOf, ids); err != nil {
			logger.Warn("Occupancy cache write failed", "propertyID", propertyID, "error", err)
		}
	}
	return ids, nil
}

// WarmOccupancyCache precomputes occupancy for every active property and returns how many were cached.
func (s *availabilityService) WarmOccupancyCache(ctx context.Context, asOf time.Time) (int, error) {
	if s.cache == nil {
		return 0, nil
	}
	asOf = asOf.UTC().Truncate(time.Minute)

	occupancy := map[int64][]int64{}
	err := s.store.View(ctx, func(ctx context.Context, repos repository.Repos) error {
		props, err := repos.Catalog().ListActiveProperties(ctx)
		if err != nil {
			return err
		}
		for _, p := range props {
			ids, err := repos.SlotLedger().ActiveOccupancy(ctx, p.ID, asOf)
			if err != nil {
				return err
			}
			if ids == nil {
				ids = []int64{}
			}
			occupancy[p.ID] = ids
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	warmed := 0
	for propertyID, ids := range occupancy {
		if err := s.cache.Set(ctx, propertyID, asOf, ids); err != nil {
			logger.Warn("Failed to warm occupancy cache", "propertyID", propertyID, "error", err)
			continue
		}
		warmed++
	}
	return warmed, nil
}

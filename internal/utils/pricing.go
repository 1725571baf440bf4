package utils

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"parkwise-booking-core/internal/domain"
)

const hoursPerDay = 24

// PriceBreakdown provides a detailed view of how a booking total was derived
type PriceBreakdown struct {
	BillableHours int64           `json:"billable_hours"`
	SlotCount     int             `json:"slot_count"`
	DailyRateUsed bool            `json:"daily_rate_used"`
	PerSlot       decimal.Decimal `json:"per_slot"`
	Total         decimal.Decimal `json:"total"`
}

// BillableHours rounds the half-open window [start, end) up to whole hours, minimum 1
func BillableHours(start, end time.Time) (int64, error) {
	if !end.After(start) {
		return 0, domain.NewValidationError("end_time", "must be after start_time")
	}

	d := end.Sub(start)
	hours := int64(d / time.Hour)
	if d%time.Hour > 0 {
		hours++
	}
	if hours < 1 {
		hours = 1
	}
	return hours, nil
}

// CalculateBookingPrice derives the charge for slotCount slots of property over [start, end).
// Bookings of 24 billable hours or more use the flat daily rate when the property defines one.
func CalculateBookingPrice(property *domain.Property, slotCount int, start, end time.Time) (PriceBreakdown, error) {
	if property == nil {
		return PriceBreakdown{}, fmt.Errorf("property is required")
	}
	if slotCount < 1 {
		return PriceBreakdown{}, domain.NewValidationError("slot_ids", "at least one slot is required")
	}

	hours, err := BillableHours(start, end)
	if err != nil {
		return PriceBreakdown{}, err
	}

	breakdown := PriceBreakdown{
		BillableHours: hours,
		SlotCount:     slotCount,
	}

	if hours >= hoursPerDay && property.DailyRate.IsPositive() {
		breakdown.DailyRateUsed = true
		breakdown.PerSlot = property.DailyRate
	} else {
		breakdown.PerSlot = property.HourlyRate.Mul(decimal.NewFromInt(hours))
	}

	breakdown.Total = breakdown.PerSlot.Mul(decimal.NewFromInt(int64(slotCount)))
	return breakdown, nil
}

// ResolveTotal returns the explicit total when it is a usable positive amount, otherwise the calculated one.
// The second result reports whether the explicit value was taken.
func ResolveTotal(calculated decimal.Decimal, explicit *decimal.Decimal) (decimal.Decimal, bool) {
	if explicit != nil && explicit.IsPositive() {
		return *explicit, true
	}
	return calculated, false
}

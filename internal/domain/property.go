package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type Property struct {
	ID         int64           `json:"id"`
	Name       string          `json:"name"`
	HourlyRate decimal.Decimal `json:"hourly_rate"`
	DailyRate  decimal.Decimal `json:"daily_rate"`
	Currency   string          `json:"currency"`
	Active     bool            `json:"active"`
}

type SlotType string

const (
	SlotTypeNormal  SlotType = "NORMAL"
	SlotTypeEV      SlotType = "EV"
	SlotTypeWashBay SlotType = "WASH_BAY"
)

// slotTypeSynonyms is the single mapping from legacy and client spellings to the canonical slot type.
var slotTypeSynonyms = map[string]SlotType{
	"":            SlotTypeNormal,
	"NORMAL":      SlotTypeNormal,
	"REGULAR":     SlotTypeNormal,
	"STANDARD":    SlotTypeNormal,
	"PARKING":     SlotTypeNormal,
	"EV":          SlotTypeEV,
	"EV_SLOT":     SlotTypeEV,
	"EV_CHARGING": SlotTypeEV,
	"CHARGING":    SlotTypeEV,
	"WASH_BAY":    SlotTypeWashBay,
	"WASH":        SlotTypeWashBay,
	"CAR_WASH":    SlotTypeWashBay,
	"CAR_WASHING": SlotTypeWashBay,
}

func ParseSlotType(raw string) (SlotType, error) {
	if t, ok := slotTypeSynonyms[normalizeToken(raw)]; ok {
		return t, nil
	}
	return "", NewValidationError("slot_type", fmt.Sprintf("unknown slot type %q", raw))
}

type Slot struct {
	ID         int64    `json:"id"`
	PropertyID int64    `json:"property_id"`
	Label      string   `json:"label"`
	Type       SlotType `json:"type"`
	Active     bool     `json:"active"`
}

type BookingCategory string

const (
	CategoryParking    BookingCategory = "PARKING"
	CategoryEVCharging BookingCategory = "EV_CHARGING"
	CategoryCarWash    BookingCategory = "CAR_WASH"
	CategoryMixed      BookingCategory = "MIXED"
)

var categoryBySlotType = map[SlotType]BookingCategory{
	SlotTypeNormal:  CategoryParking,
	SlotTypeEV:      CategoryEVCharging,
	SlotTypeWashBay: CategoryCarWash,
}

// CategoryForSlots summarizes the slot types of a booking: a single shared type maps to its
// category, anything heterogeneous is MIXED.
func CategoryForSlots(slots []Slot) BookingCategory {
	if len(slots) == 0 {
		return CategoryParking
	}
	first := slots[0].Type
	for _, s := range slots[1:] {
		if s.Type != first {
			return CategoryMixed
		}
	}
	if c, ok := categoryBySlotType[first]; ok {
		return c
	}
	return CategoryMixed
}

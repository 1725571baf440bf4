package domain

import (
	"math"

	"github.com/shopspring/decimal"
)

// DefaultBalanceEpsilon absorbs rounding noise when deciding whether a booking is settled.
var DefaultBalanceEpsilon = decimal.New(1, -4)

// Amounts are stored as NUMERIC(14,4): at most 4 fractional digits and an absolute value below 1e10.
const (
	MaxAmountScale     = 4
	maxAmountIntDigits = 10
	maxAmountText      = 64
)

// MaxAmount is the exclusive upper bound on the absolute value of any amount.
var MaxAmount = decimal.New(1, maxAmountIntDigits)

// AmountFromFloat converts a wire float into a decimal amount, rejecting NaN and infinities.
func AmountFromFloat(field string, f float64) (decimal.Decimal, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero, NewValidationError(field, "must be a finite number")
	}
	d := decimal.NewFromFloat(f)
	if err := CheckAmount(field, d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// ParseAmount parses a decimal string such as "600" or "149.50".
func ParseAmount(field, s string) (decimal.Decimal, error) {
	if len(s) > maxAmountText {
		return decimal.Zero, NewValidationError(field, "is too long")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, NewValidationError(field, "must be a decimal number")
	}
	if err := CheckAmount(field, d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// CheckAmount rejects amounts the ledger cannot store exactly. The exponent is inspected before
// any arithmetic so that inputs like 1e-3000000 are refused without rescaling them.
func CheckAmount(field string, d decimal.Decimal) error {
	if d.IsZero() {
		return nil
	}
	exp := d.Exponent()
	if exp < -(MaxAmountScale + maxAmountText) {
		return NewValidationError(field, "must have at most 4 decimal places")
	}
	if exp > maxAmountIntDigits || d.Abs().GreaterThanOrEqual(MaxAmount) {
		return NewValidationError(field, "must be less than "+MaxAmount.String())
	}
	// Trailing zeros are fine ("1.50000"); anything finer than 4 places is not.
	if exp < -MaxAmountScale && !d.Equal(d.Truncate(MaxAmountScale)) {
		return NewValidationError(field, "must have at most 4 decimal places")
	}
	return nil
}

// RequirePositive rejects zero, negative and unstorable amounts.
func RequirePositive(field string, d decimal.Decimal) error {
	if !d.IsPositive() {
		return NewValidationError(field, "must be greater than zero")
	}
	return CheckAmount(field, d)
}

// MaxZero clamps d at zero.
func MaxZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

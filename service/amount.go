package service

import (
	"math"

	"github.com/shopspring/decimal"
)

// maxMinorUnits is the largest amount, in paise, that fits the int64 wire field.
var maxMinorUnits = decimal.NewFromInt(math.MaxInt64)

const msgAmountTooLarge = "Amount is too large"

// minorUnits converts a rupee amount to paise. Fractions finer than a paisa
// are rejected.
func minorUnits(amount *decimal.Decimal) (int64, error) {
	if amount == nil || amount.IsZero() {
		return 0, invalid("Amount is required")
	}
	if !amount.IsPositive() {
		return 0, invalid("Amount must be positive")
	}
	minor := amount.Shift(2)
	if !minor.IsInteger() {
		return 0, invalid("Amount must have at most two decimal places")
	}
	if minor.GreaterThan(maxMinorUnits) {
		return 0, invalid(msgAmountTooLarge)
	}
	return minor.IntPart(), nil
}

// orderAmount validates an amount already expressed in paise.
func orderAmount(amount *decimal.Decimal) (int64, error) {
	if amount == nil || amount.IsZero() {
		return 0, invalid("Amount is required")
	}
	if !amount.IsPositive() || !amount.IsInteger() {
		return 0, invalid("Amount must be a positive whole number of paise")
	}
	if amount.GreaterThan(maxMinorUnits) {
		return 0, invalid(msgAmountTooLarge)
	}
	return amount.IntPart(), nil
}

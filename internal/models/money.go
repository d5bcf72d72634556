package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MoneyPlaces is the number of decimal places stored for every price
const MoneyPlaces = 2

// ValidateAmount checks that an amount is positive and carries at most two decimal places
func ValidateAmount(d decimal.Decimal) error {
	if !d.IsPositive() {
		return fmt.Errorf("amount must be positive, got %s", d.String())
	}
	if !d.Equal(d.Truncate(MoneyPlaces)) {
		return fmt.Errorf("amount must have at most %d decimal places, got %s", MoneyPlaces, d.String())
	}
	return nil
}

// FloorCents drops everything below one cent. Used on computed prices so that
// rounding never lifts a price above the bound it was derived from.
func FloorCents(d decimal.Decimal) decimal.Decimal {
	return d.RoundFloor(MoneyPlaces)
}

// MinAmount returns the smaller of two amounts
func MinAmount(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

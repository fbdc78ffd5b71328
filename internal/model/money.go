package model

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Money errors surfaced at parse time.
var (
	ErrNegativeAmount = errors.New("negative amount")
	ErrSubCentAmount  = errors.New("amount has sub-cent precision")
)

// ParseAmount converts a decimal string ("30", "30.5", "30.00") to cents.
// Rejects negative values and precision finer than one cent.
func ParseAmount(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return AmountFromDecimal(d)
}

// AmountFromDecimal converts a decimal value to cents.
func AmountFromDecimal(d decimal.Decimal) (int64, error) {
	if d.IsNegative() {
		return 0, ErrNegativeAmount
	}
	cents := d.Shift(2)
	if !cents.IsInteger() {
		return 0, ErrSubCentAmount
	}
	return cents.IntPart(), nil
}

// FormatAmount renders cents as a decimal string with two places ("30.00").
func FormatAmount(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}

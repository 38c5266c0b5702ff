// Package money converts between decimal amounts at the API boundary and the
// int64 minor units (cents) stored and summed internally.
package money

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

const scale = 2

var (
	ErrInvalidAmount  = errors.New("invalid_amount")
	ErrNegativeAmount = errors.New("negative_amount")
	ErrAmountOverflow = errors.New("amount_overflow")
)

var (
	hundred  = decimal.NewFromInt(100)
	maxCents = decimal.NewFromInt(1 << 53)
)

// FromDecimal rounds d half away from zero to two places and returns cents.
func FromDecimal(d decimal.Decimal) (int64, error) {
	if d.IsNegative() {
		return 0, ErrNegativeAmount
	}
	cents := d.Round(scale).Mul(hundred)
	if cents.GreaterThan(maxCents) {
		return 0, ErrAmountOverflow
	}
	return cents.IntPart(), nil
}

// Parse reads a decimal string such as "12.5" into cents.
func Parse(value string) (int64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	return FromDecimal(d)
}

func ToDecimal(cents int64) decimal.Decimal {
	return decimal.New(cents, -scale)
}

// Format renders cents with exactly two decimal places.
func Format(cents int64) string {
	return ToDecimal(cents).StringFixed(scale)
}

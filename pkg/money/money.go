// Package money converts between user-entered amounts and int64 minor units.
package money

import (
	"errors"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// MinorDigits is the number of fraction digits carried in minor units.
const MinorDigits = 2

var (
	ErrNotANumber   = errors.New("amount is not a number")
	ErrNonPositive  = errors.New("amount must be greater than zero")
	ErrTooPrecise   = errors.New("amount has more than two decimal places")
	ErrOutOfBounds  = errors.New("amount is too large")
	maxMajorAmount  = decimal.NewFromInt(math.MaxInt64).Shift(-MinorDigits)
	stripAmountRune = strings.NewReplacer(",", "", "₹", "", " ", "")
)

// ParseAmount reads a positive major-unit amount such as "199" or "1,299.50"
// and returns it in minor units.
func ParseAmount(text string) (int64, error) {
	cleaned := stripAmountRune.Replace(strings.TrimSpace(text))
	if cleaned == "" {
		return 0, ErrNotANumber
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return 0, ErrNotANumber
	}
	if !d.IsPositive() {
		return 0, ErrNonPositive
	}
	if !d.Equal(d.Truncate(MinorDigits)) {
		return 0, ErrTooPrecise
	}
	if d.GreaterThan(maxMajorAmount) {
		return 0, ErrOutOfBounds
	}
	return d.Shift(MinorDigits).IntPart(), nil
}

// ToDecimal returns minor units as a major-unit decimal.
func ToDecimal(minor int64) decimal.Decimal {
	return decimal.New(minor, -MinorDigits)
}

// Format renders minor units with a currency symbol, e.g. "₹199.50".
func Format(minor int64, symbol string) string {
	return symbol + ToDecimal(minor).StringFixed(MinorDigits)
}

// Sum adds minor-unit amounts through decimal arithmetic so totals never wrap.
func Sum(amounts ...int64) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(ToDecimal(a))
	}
	return total
}

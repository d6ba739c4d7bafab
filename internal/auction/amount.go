package auction

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

var ErrInvalidAmount = errors.New("invalid amount")

// FormatAmount renders an amount in minor units with two decimals, e.g. 100010 -> "1000.10"
func FormatAmount(minor int64) string {
	return decimal.New(minor, -2).StringFixed(2)
}

var maxMinor = decimal.NewFromInt(math.MaxInt64)

// ParseAmount is the inverse of FormatAmount. The amount must be positive,
// fit in int64 minor units and have at most two decimals.
func ParseAmount(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	minor := d.Shift(2)
	if !minor.IsInteger() {
		return 0, fmt.Errorf("%w: %q has more than two decimals", ErrInvalidAmount, s)
	}
	if !minor.IsPositive() {
		return 0, fmt.Errorf("%w: %q is not positive", ErrInvalidAmount, s)
	}
	if minor.GreaterThan(maxMinor) {
		return 0, fmt.Errorf("%w: %q is out of range", ErrInvalidAmount, s)
	}
	return minor.IntPart(), nil
}

package money

import (
	"errors"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Amounts are held as int64 cents (the smallest currency unit) everywhere
// outside this package.

// ErrInvalidAmount is returned for unparsable, non-positive, over-precise or
// out-of-range amounts
var ErrInvalidAmount = errors.New("invalid amount")

const centsExp = -2

// MaxCents is the largest single amount ParseCents accepts ($1,000,000,000.00).
// Keeps per-affiliate sums far from int64 overflow.
const MaxCents int64 = 100_000_000_000

var (
	maxCents       = decimal.NewFromInt(MaxCents)
	maxStoredCents = decimal.NewFromInt(math.MaxInt64)
)

// ParseCents parses a decimal string such as "1234.50" into cents.
// More than two fraction digits is rejected rather than rounded.
func ParseCents(raw string) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return 0, ErrInvalidAmount
	}
	if !d.IsPositive() {
		return 0, ErrInvalidAmount
	}
	if d.Exponent() < centsExp && !d.Equal(d.Truncate(2)) {
		return 0, ErrInvalidAmount
	}
	cents := d.Shift(2)
	if cents.GreaterThan(maxCents) {
		return 0, ErrInvalidAmount
	}
	return cents.IntPart(), nil
}

// FormatCents renders cents as a fixed two-decimal string
func FormatCents(cents int64) string {
	return decimal.New(cents, centsExp).StringFixed(2)
}

// ApplyRate multiplies an amount in cents by rate and rounds half-up to
// whole cents.
func ApplyRate(cents int64, rate decimal.Decimal) int64 {
	// decimal.Round rounds half away from zero, which is half-up for the
	// non-negative amounts the ledger stores.
	return decimal.NewFromInt(cents).Mul(rate).Round(0).IntPart()
}

// ParseStoredCents parses a two-decimal string written by FormatCents.
// Zero is accepted; negative and over-precise values are not.
func ParseStoredCents(raw string) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil || d.IsNegative() {
		return 0, ErrInvalidAmount
	}
	if !d.Equal(d.Truncate(2)) {
		return 0, ErrInvalidAmount
	}
	cents := d.Shift(2)
	if cents.GreaterThan(maxStoredCents) {
		return 0, ErrInvalidAmount
	}
	return cents.IntPart(), nil
}

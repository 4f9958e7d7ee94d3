package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// RatePlaces is the precision of a stored rate snapshot (decimal(7,4))
const RatePlaces = 4

// RateTable holds the commission rate for levels 1..MaxLevels.
// Index 0 is level 1 (the producing affiliate's base commission).
type RateTable [MaxLevels]decimal.Decimal

// ParseRateTable parses a comma separated list of six decimal rates
func ParseRateTable(raw string) (RateTable, error) {
	var table RateTable

	parts := strings.Split(raw, ",")
	if len(parts) != MaxLevels {
		return table, fmt.Errorf("%w: expected %d rates, got %d", ErrInvalidRateTable, MaxLevels, len(parts))
	}

	for i, part := range parts {
		rate, err := decimal.NewFromString(strings.TrimSpace(part))
		if err != nil {
			return table, fmt.Errorf("%w: level %d: %v", ErrInvalidRateTable, i+1, err)
		}
		table[i] = rate
	}

	if err := table.Validate(); err != nil {
		return RateTable{}, err
	}
	return table, nil
}

// Validate checks every rate is within [0,1] with at most RatePlaces decimal
// places, and that the table sums to at most 1
func (t RateTable) Validate() error {
	one := decimal.NewFromInt(1)
	sum := decimal.Zero
	for i, rate := range t {
		if rate.IsNegative() || rate.GreaterThan(one) {
			return fmt.Errorf("%w: level %d rate %s outside [0,1]", ErrInvalidRateTable, i+1, rate)
		}
		if !rate.Equal(rate.Truncate(RatePlaces)) {
			return fmt.Errorf("%w: level %d rate %s has more than %d decimal places", ErrInvalidRateTable, i+1, rate, RatePlaces)
		}
		sum = sum.Add(rate)
	}
	if sum.GreaterThan(one) {
		return fmt.Errorf("%w: rates sum to %s (> 1)", ErrInvalidRateTable, sum)
	}
	return nil
}

// For returns the rate for a 1-based level
func (t RateTable) For(level int) decimal.Decimal {
	if level < 1 || level > MaxLevels {
		return decimal.Zero
	}
	return t[level-1]
}

// String renders the table in the COMMISSION_RATES format
func (t RateTable) String() string {
	parts := make([]string, len(t))
	for i, rate := range t {
		parts[i] = rate.String()
	}
	return strings.Join(parts, ",")
}

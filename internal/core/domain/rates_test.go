package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRateTable(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{name: "default table", raw: "0.10,0.05,0.03,0.02,0.01,0.01"},
		{name: "spaces are trimmed", raw: " 0.1, 0.05 ,0.03,0.02,0.01,0"},
		{name: "rates summing to exactly one", raw: "0.5,0.2,0.1,0.1,0.05,0.05"},
		{name: "too few rates", raw: "0.1,0.05,0.03", wantErr: true},
		{name: "not a number", raw: "0.1,abc,0.03,0.02,0.01,0.01", wantErr: true},
		{name: "negative rate", raw: "0.1,-0.05,0.03,0.02,0.01,0.01", wantErr: true},
		{name: "sum above one", raw: "0.6,0.2,0.1,0.1,0.05,0.05", wantErr: true},
		{name: "four decimal places", raw: "0.1025,0.05,0.03,0.02,0.01,0.0125"},
		{name: "trailing zeros past four places", raw: "0.100000,0.05,0.03,0.02,0.01,0.01"},
		{name: "finer than the stored precision", raw: "0.00125,0.05,0.03,0.02,0.01,0.01", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := ParseRateTable(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidRateTable)
				return
			}
			require.NoError(t, err)
			assert.NoError(t, table.Validate())
		})
	}
}

func TestRateTableFor(t *testing.T) {
	table, err := ParseRateTable("0.10,0.05,0.03,0.02,0.01,0.01")
	require.NoError(t, err)

	assert.True(t, table.For(1).Equal(decimal.RequireFromString("0.10")))
	assert.True(t, table.For(6).Equal(decimal.RequireFromString("0.01")))
	assert.True(t, table.For(0).IsZero())
	assert.True(t, table.For(7).IsZero())
}

func TestLedgerStatusCanTransition(t *testing.T) {
	tests := []struct {
		from, to LedgerStatus
		want     bool
	}{
		{StatusPending, StatusApproved, true},
		{StatusApproved, StatusPaid, true},
		{StatusPending, StatusPaid, false},
		{StatusPaid, StatusPending, false},
		{StatusApproved, StatusPending, false},
		{StatusPaid, StatusApproved, false},
		{StatusPending, StatusVoid, true},
		{StatusApproved, StatusVoid, true},
		{StatusPaid, StatusVoid, false},
		{StatusVoid, StatusPending, false},
		{StatusPending, StatusPending, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransition(tt.to))
		})
	}
}

func TestParseScope(t *testing.T) {
	scope, err := ParseScope("")
	require.NoError(t, err)
	assert.Equal(t, ScopeReal, scope.Kind)

	scope, err = ParseScope("run:abc")
	require.NoError(t, err)
	assert.Equal(t, ScopeRun, scope.Kind)
	assert.Equal(t, "abc", scope.RunID)

	_, err = ParseScope("run:")
	assert.ErrorIs(t, err, ErrInvalidScope)

	_, err = ParseScope("everything")
	assert.ErrorIs(t, err, ErrInvalidScope)
}

func TestProvenance(t *testing.T) {
	p := SyntheticProvenance("run-1")
	assert.True(t, p.IsSynthetic())
	assert.Equal(t, "run-1", p.RunID())
	assert.False(t, ProvenanceReal.IsSynthetic())
}

package validator

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func amounts(values ...string) []decimal.Decimal {
	out := make([]decimal.Decimal, len(values))
	for i, v := range values {
		out[i] = decimal.RequireFromString(v)
	}
	return out
}

func TestValidateMatch_ExactSplit(t *testing.T) {
	// Two orders billed as one charge
	result := ValidateMatch(decimal.RequireFromString("-75.00"), amounts("30.00", "45.00"), decimal.RequireFromString("1.50"))

	assert.True(t, result.Valid)
	assert.True(t, result.ContextSum.Equal(decimal.RequireFromString("75")))
	assert.True(t, result.Expected.Equal(decimal.RequireFromString("75")))
	assert.True(t, result.Difference.IsZero())
	assert.Empty(t, result.Reason)
}

func TestValidateMatch_WithinTolerance(t *testing.T) {
	result := ValidateMatch(decimal.RequireFromString("100.00"), amounts("99.96"), decimal.RequireFromString("0.05"))

	assert.True(t, result.Valid, "4 cent difference should be within a 5 cent tolerance")
}

func TestValidateMatch_ExactlyAtTolerance(t *testing.T) {
	result := ValidateMatch(decimal.RequireFromString("100.00"), amounts("99.95"), decimal.RequireFromString("0.05"))

	assert.True(t, result.Valid)
}

func TestValidateMatch_JustOutsideTolerance(t *testing.T) {
	result := ValidateMatch(decimal.RequireFromString("100.00"), amounts("99.94"), decimal.RequireFromString("0.05"))

	assert.False(t, result.Valid)
	assert.Contains(t, result.Reason, "less than the bank charge")
}

func TestValidateMatch_ContextExceedsCharge(t *testing.T) {
	result := ValidateMatch(decimal.RequireFromString("-50.00"), amounts("30.00", "30.00"), decimal.RequireFromString("1.00"))

	assert.False(t, result.Valid)
	assert.True(t, result.Difference.Equal(decimal.RequireFromString("10")))
	assert.Contains(t, result.Reason, "exceed the bank charge")
	assert.Contains(t, result.Reason, "$10.00")
}

func TestValidateMatch_SignsIgnored(t *testing.T) {
	result := ValidateMatch(decimal.RequireFromString("49.99"), amounts("-49.99"), decimal.RequireFromString("0.05"))

	assert.True(t, result.Valid)
}

func TestValidateMatch_EdgeCases(t *testing.T) {
	t.Run("no context records", func(t *testing.T) {
		result := ValidateMatch(decimal.RequireFromString("10.00"), nil, decimal.RequireFromString("1.00"))
		assert.False(t, result.Valid)
		assert.Contains(t, result.Reason, "no context records")
	})

	t.Run("negative tolerance", func(t *testing.T) {
		result := ValidateMatch(decimal.RequireFromString("10.00"), amounts("10.00"), decimal.RequireFromString("-0.01"))
		assert.False(t, result.Valid)
		assert.Contains(t, result.Reason, "cannot be negative")
	})

	t.Run("sub-cent noise is rounded away", func(t *testing.T) {
		result := ValidateMatch(decimal.RequireFromString("10.004"), amounts("9.996"), decimal.Zero)
		assert.True(t, result.Valid)
	})
}

package allocator

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, got.Equal(d(want)), "want %s, got %s", want, got)
}

func TestAllocate_BasicProRata(t *testing.T) {
	// Three orders totaling $100 settled by a $95 charge
	shares := []Share{
		{ID: "O1", Amount: d("50.00")},
		{ID: "O2", Amount: d("30.00")},
		{ID: "O3", Amount: d("20.00")},
	}

	result, err := Allocate(shares, d("95.00"))
	require.NoError(t, err)

	assertDecimal(t, "0.95", result.Multiplier)
	assertDecimal(t, "95", result.TotalAllocated)
	assertDecimal(t, "47.50", result.Allocations[0].Allocated)
	assertDecimal(t, "28.50", result.Allocations[1].Allocated)
	assertDecimal(t, "19.00", result.Allocations[2].Allocated)
}

func TestAllocate_WithFees(t *testing.T) {
	// Orders $100 total, bank charge $101 (PayPal currency fee)
	shares := []Share{
		{ID: "P1", Amount: d("60.00")},
		{ID: "P2", Amount: d("40.00")},
	}

	result, err := Allocate(shares, d("101.00"))
	require.NoError(t, err)

	assertDecimal(t, "60.60", result.Allocations[0].Allocated)
	assertDecimal(t, "40.40", result.Allocations[1].Allocated)
}

func TestAllocate_ExactMatch(t *testing.T) {
	shares := []Share{
		{ID: "O2", Amount: d("30.00")},
		{ID: "O3", Amount: d("45.00")},
	}

	result, err := Allocate(shares, d("75.00"))
	require.NoError(t, err)

	assertDecimal(t, "1", result.Multiplier)
	assertDecimal(t, "30", result.Allocations[0].Allocated)
	assertDecimal(t, "45", result.Allocations[1].Allocated)
}

func TestAllocate_SingleShare(t *testing.T) {
	result, err := Allocate([]Share{{ID: "O1", Amount: d("42.99")}}, d("45.50"))
	require.NoError(t, err)

	require.Len(t, result.Allocations, 1)
	assertDecimal(t, "45.50", result.Allocations[0].Allocated)
}

func TestAllocate_ZeroAmountShare(t *testing.T) {
	shares := []Share{
		{ID: "paid", Amount: d("100.00")},
		{ID: "free", Amount: d("0")},
	}

	result, err := Allocate(shares, d("95.00"))
	require.NoError(t, err)

	assertDecimal(t, "95", result.Allocations[0].Allocated)
	assertDecimal(t, "0", result.Allocations[1].Allocated)
}

func TestAllocate_AllZeroShares(t *testing.T) {
	shares := []Share{{ID: "a", Amount: d("0")}, {ID: "b", Amount: d("0")}}

	result, err := Allocate(shares, d("0"))
	require.NoError(t, err)

	assert.True(t, result.Multiplier.IsZero())
	assert.True(t, result.TotalAllocated.IsZero())
}

func TestAllocate_RoundingAdjustment(t *testing.T) {
	shares := []Share{
		{ID: "a", Amount: d("1")},
		{ID: "b", Amount: d("1")},
		{ID: "c", Amount: d("1")},
	}

	result, err := Allocate(shares, d("100.00"))
	require.NoError(t, err)

	// 33.33 * 3 = 99.99; the residue lands on the first largest share
	assertDecimal(t, "100", result.TotalAllocated)
	assertDecimal(t, "33.34", result.Allocations[0].Allocated)
	assertDecimal(t, "33.33", result.Allocations[1].Allocated)
}

func TestAllocate_ErrorCases(t *testing.T) {
	t.Run("empty shares", func(t *testing.T) {
		_, err := Allocate(nil, d("100"))
		assert.ErrorContains(t, err, "no shares")
	})

	t.Run("negative total", func(t *testing.T) {
		_, err := Allocate([]Share{{ID: "a", Amount: d("10")}}, d("-50"))
		assert.ErrorContains(t, err, "negative")
	})

	t.Run("negative share", func(t *testing.T) {
		_, err := Allocate([]Share{{ID: "a", Amount: d("-10")}}, d("50"))
		assert.ErrorContains(t, err, "negative")
	})
}

func TestAllocate_PreservesShareInfo(t *testing.T) {
	shares := []Share{
		{ID: "first", Amount: d("25.00")},
		{ID: "second", Amount: d("75.00")},
	}

	result, err := Allocate(shares, d("90.00"))
	require.NoError(t, err)

	assert.Equal(t, "first", result.Allocations[0].ID)
	assertDecimal(t, "25", result.Allocations[0].Amount)
	assert.Equal(t, "second", result.Allocations[1].ID)
	assertDecimal(t, "75", result.Allocations[1].Amount)
}

func BenchmarkAllocate(b *testing.B) {
	shares := make([]Share, 20)
	for i := range shares {
		shares[i] = Share{ID: "s", Amount: decimal.NewFromInt(int64(10 + i))}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = Allocate(shares, d("250.00"))
	}
}

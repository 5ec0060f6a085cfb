// Package allocator splits a bank charge across the records it was matched to.
//
// The pro-rata allocator distributes the amount actually charged across the
// matched context records proportionally to their own amounts. Fees, rounding
// and small discrepancies within tolerance end up spread in one simple ratio:
//
//	multiplier = charge_total / sum(context_amounts)
//	allocated = context_amount * multiplier
package allocator

import (
	"errors"

	"github.com/shopspring/decimal"
)

// maxRoundingFix bounds the residue pushed onto the largest share.
var maxRoundingFix = decimal.RequireFromString("0.10")

// Share is one record taking part in an allocation.
type Share struct {
	ID     string
	Amount decimal.Decimal
}

// Allocation is the portion of the charge attributed to one record.
type Allocation struct {
	ID        string
	Amount    decimal.Decimal
	Allocated decimal.Decimal
}

// Result contains the allocation results.
type Result struct {
	Multiplier     decimal.Decimal
	Allocations    []Allocation
	TotalAllocated decimal.Decimal
}

// Allocate distributes total across shares proportionally to their amounts.
// Returns an error if shares is empty or any amount is negative.
func Allocate(shares []Share, total decimal.Decimal) (*Result, error) {
	if len(shares) == 0 {
		return nil, errors.New("no shares to allocate")
	}
	if total.IsNegative() {
		return nil, errors.New("total cannot be negative")
	}

	// Step 1: Sum share amounts
	sum := decimal.Zero
	for _, s := range shares {
		if s.Amount.IsNegative() {
			return nil, errors.New("share amount cannot be negative")
		}
		sum = sum.Add(s.Amount)
	}

	allocations := make([]Allocation, len(shares))
	if sum.IsZero() {
		// Nothing to weigh by - distribute nothing
		for i, s := range shares {
			allocations[i] = Allocation{ID: s.ID, Amount: s.Amount, Allocated: decimal.Zero}
		}
		return &Result{
			Multiplier:     decimal.Zero,
			Allocations:    allocations,
			TotalAllocated: decimal.Zero,
		}, nil
	}

	// Step 2: Calculate multiplier
	multiplier := total.Div(sum)

	// Step 3: Allocate to each share
	totalAllocated := decimal.Zero
	for i, s := range shares {
		allocated := s.Amount.Mul(multiplier).Round(2)
		allocations[i] = Allocation{ID: s.ID, Amount: s.Amount, Allocated: allocated}
		totalAllocated = totalAllocated.Add(allocated)
	}

	// Step 4: Fix rounding - adjust the largest share if total is off
	diff := total.Round(2).Sub(totalAllocated)
	if !diff.IsZero() && diff.Abs().LessThan(maxRoundingFix) {
		maxIdx := 0
		for i, a := range allocations {
			if a.Allocated.GreaterThan(allocations[maxIdx].Allocated) {
				maxIdx = i
			}
		}
		allocations[maxIdx].Allocated = allocations[maxIdx].Allocated.Add(diff)
		totalAllocated = totalAllocated.Add(diff)
	}

	return &Result{
		Multiplier:     multiplier,
		Allocations:    allocations,
		TotalAllocated: totalAllocated,
	}, nil
}

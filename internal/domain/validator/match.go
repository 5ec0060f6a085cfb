// Package validator re-checks reconciliation outcomes before they are emitted.
//
// The match validator recomputes the sum of the context records behind a
// match from their raw amounts and compares it with the bank charge. A match
// whose difference exceeds the tolerance that produced it must never be
// persisted or applied.
package validator

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MatchValidation contains the result of validating a match.
type MatchValidation struct {
	// Valid is true if the context records explain the charge within tolerance
	Valid bool

	// ContextSum is the sum of the context record magnitudes
	ContextSum decimal.Decimal

	// Expected is the magnitude of the bank charge
	Expected decimal.Decimal

	// Difference is ContextSum - Expected (negative when context falls short)
	Difference decimal.Decimal

	// Tolerance is the allowed absolute difference
	Tolerance decimal.Decimal

	// Reason explains why validation failed (empty if valid)
	Reason string
}

// ValidateMatch checks that contextAmounts sum to chargeAmount within tolerance.
// Signs are ignored; amounts are compared by magnitude and rounded to cents.
func ValidateMatch(chargeAmount decimal.Decimal, contextAmounts []decimal.Decimal, tolerance decimal.Decimal) *MatchValidation {
	expected := chargeAmount.Abs().Round(2)

	sum := decimal.Zero
	for _, a := range contextAmounts {
		sum = sum.Add(a.Abs())
	}
	sum = sum.Round(2)

	diff := sum.Sub(expected)
	result := &MatchValidation{
		ContextSum: sum,
		Expected:   expected,
		Difference: diff,
		Tolerance:  tolerance,
	}

	switch {
	case len(contextAmounts) == 0:
		result.Reason = "no context records to validate"
	case tolerance.IsNegative():
		result.Reason = fmt.Sprintf("tolerance cannot be negative ($%s)", tolerance.StringFixed(2))
	case diff.Abs().LessThanOrEqual(tolerance):
		result.Valid = true
	case diff.IsNegative():
		result.Reason = fmt.Sprintf("context records ($%s) are less than the bank charge ($%s) by $%s, outside tolerance $%s",
			sum.StringFixed(2), expected.StringFixed(2), diff.Abs().StringFixed(2), tolerance.StringFixed(2))
	default:
		result.Reason = fmt.Sprintf("context records ($%s) exceed the bank charge ($%s) by $%s, outside tolerance $%s",
			sum.StringFixed(2), expected.StringFixed(2), diff.StringFixed(2), tolerance.StringFixed(2))
	}
	return result
}

package matcher

import (
	"math/bits"
	"sort"

	"github.com/shopspring/decimal"
)

// Solution is the outcome of a combination search.
//
// An empty Members slice means no combination was found. A non-empty
// solution with WithinTolerance false is a near miss: the closest subset
// the search could produce.
type Solution struct {
	Members         []Candidate // ordered by day difference, then id
	Total           decimal.Decimal
	Difference      decimal.Decimal // |target - Total|
	Tolerance       decimal.Decimal
	WithinTolerance bool
	Exhaustive      bool // true when the exhaustive fallback produced the result
}

// Found reports whether the search produced any subset.
func (s Solution) Found() bool {
	return len(s.Members) > 0
}

// Tolerance returns max(target * percent, floor).
func Tolerance(target decimal.Decimal, percent, floor float64) decimal.Decimal {
	return decimal.Max(
		target.Abs().Mul(decimal.NewFromFloat(percent)),
		decimal.NewFromFloat(floor),
	)
}

// Solve searches candidates for a subset whose magnitudes sum to target
// within tolerance.
//
// A greedy descent over candidates sorted by magnitude runs first. When it
// fails and there are at most limit candidates, every non-empty subset is
// tried and the one closest to target wins (ties go to fewer members). With
// more than limit candidates a greedy failure means no combination.
//
// A single-member result within tolerance is only kept when no subset of two
// or more members also fits, since one member cannot be auto-matched here.
func Solve(candidates []Candidate, target, tolerance decimal.Decimal, limit int) Solution {
	if len(candidates) == 0 {
		return Solution{Tolerance: tolerance}
	}
	target = target.Abs()

	ordered := make([]Candidate, len(candidates))
	copy(ordered, candidates)
	sort.SliceStable(ordered, func(i, j int) bool {
		if c := ordered[i].Amount.Cmp(ordered[j].Amount); c != 0 {
			return c > 0
		}
		if ordered[i].DayDiff != ordered[j].DayDiff {
			return ordered[i].DayDiff < ordered[j].DayDiff
		}
		return ordered[i].Record.ID < ordered[j].Record.ID
	})

	searchable := len(ordered) <= limit
	picked, ok := greedy(ordered, target, tolerance)
	if ok && len(picked) > 1 {
		return newSolution(picked, target, tolerance, false)
	}
	if !searchable {
		if ok {
			return newSolution(picked, target, tolerance, false)
		}
		return Solution{Tolerance: tolerance}
	}

	sol := newSolution(picked, target, tolerance, false)
	if !ok {
		sol = newSolution(exhaustive(ordered, target, 1), target, tolerance, true)
	}
	if sol.WithinTolerance && len(sol.Members) == 1 && len(ordered) > 1 {
		multi := newSolution(exhaustive(ordered, target, 2), target, tolerance, true)
		if multi.WithinTolerance {
			return multi
		}
	}
	return sol
}

func greedy(ordered []Candidate, target, tolerance decimal.Decimal) ([]Candidate, bool) {
	ceiling := target.Add(tolerance)
	total := decimal.Zero
	var picked []Candidate
	for _, c := range ordered {
		next := total.Add(c.Amount)
		if next.GreaterThan(ceiling) {
			continue
		}
		total = next
		picked = append(picked, c)
		if target.Sub(total).Abs().LessThanOrEqual(tolerance) {
			return picked, true
		}
	}
	return nil, false
}

// exhaustive returns the subset of at least minSize members closest to target.
// len(ordered) must fit in a mask and be at least minSize.
func exhaustive(ordered []Candidate, target decimal.Decimal, minSize int) []Candidate {
	n := len(ordered)
	var (
		bestMask uint64
		bestDiff decimal.Decimal
		bestSize int
	)
	for mask := uint64(1); mask < uint64(1)<<n; mask++ {
		size := bits.OnesCount64(mask)
		if size < minSize {
			continue
		}
		sum := decimal.Zero
		for i := 0; i < n; i++ {
			if mask&(uint64(1)<<i) != 0 {
				sum = sum.Add(ordered[i].Amount)
			}
		}
		diff := target.Sub(sum).Abs()
		if bestMask == 0 || diff.LessThan(bestDiff) || (diff.Equal(bestDiff) && size < bestSize) {
			bestMask, bestDiff, bestSize = mask, diff, size
		}
	}

	picked := make([]Candidate, 0, bestSize)
	for i := 0; i < n; i++ {
		if bestMask&(uint64(1)<<i) != 0 {
			picked = append(picked, ordered[i])
		}
	}
	return picked
}

func newSolution(picked []Candidate, target, tolerance decimal.Decimal, exhaustive bool) Solution {
	members := make([]Candidate, len(picked))
	copy(members, picked)
	sortByProximity(members)

	total := candidateTotal(members)
	diff := target.Sub(total).Abs()
	return Solution{
		Members:         members,
		Total:           total,
		Difference:      diff,
		Tolerance:       tolerance,
		WithinTolerance: diff.LessThanOrEqual(tolerance),
		Exhaustive:      exhaustive,
	}
}

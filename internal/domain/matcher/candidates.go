package matcher

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Candidate is a context record considered for a charge.
type Candidate struct {
	Record  Record
	Amount  decimal.Decimal // |Record.Amount|
	DayDiff int
}

// Candidates returns the records in pool within maxDays of charge (inclusive)
// that are not in excluded, ordered by day difference and then id.
func Candidates(charge Record, pool []Record, excluded map[string]bool, maxDays int) []Candidate {
	var out []Candidate
	for _, r := range pool {
		if excluded[r.ID] {
			continue
		}
		diff := DayDiff(charge.Date, r.Date)
		if diff > maxDays {
			continue
		}
		out = append(out, Candidate{
			Record:  r,
			Amount:  r.magnitude(),
			DayDiff: diff,
		})
	}
	sortByProximity(out)
	return out
}

func sortByProximity(cands []Candidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].DayDiff != cands[j].DayDiff {
			return cands[i].DayDiff < cands[j].DayDiff
		}
		return cands[i].Record.ID < cands[j].Record.ID
	})
}

// DayDiff returns the absolute number of calendar days between a and b.
func DayDiff(a, b time.Time) int {
	return int(math.Abs(dayOf(a).Sub(dayOf(b)).Hours() / 24))
}

func dayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func candidateIDs(cands []Candidate) []string {
	ids := make([]string, len(cands))
	for i, c := range cands {
		ids[i] = c.Record.ID
	}
	return ids
}

func candidateTotal(cands []Candidate) decimal.Decimal {
	total := decimal.Zero
	for _, c := range cands {
		total = total.Add(c.Amount)
	}
	return total
}

func maxDayDiff(cands []Candidate) int {
	m := 0
	for _, c := range cands {
		if c.DayDiff > m {
			m = c.DayDiff
		}
	}
	return m
}

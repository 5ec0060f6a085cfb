package matcher

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Scoring is the confidence, score and explanation attached to an outcome.
type Scoring struct {
	Confidence Confidence
	Score      float64
	Reason     string
}

// Scorer grades matches and suggestions.
type Scorer struct {
	exactTolerance decimal.Decimal
	highMaxDays    int
	proximityScore float64
}

// NewScorer creates a scorer from the engine config.
func NewScorer(cfg Config) Scorer {
	return Scorer{
		exactTolerance: decimal.NewFromFloat(cfg.ExactMatchTolerance),
		highMaxDays:    cfg.HighConfidenceMaxDays,
		proximityScore: cfg.ProximityScore,
	}
}

// ScoreMatch grades an accepted match. Callers guarantee the match is within tolerance.
//
// Rules are checked in order:
//   - high: difference within the exact tolerance and dates at most HighConfidenceMaxDays apart
//   - medium: everything else that was accepted (wider dates, or an N:1 combination)
func (s Scorer) ScoreMatch(count int, target, total decimal.Decimal, maxDays int) Scoring {
	diff := target.Sub(total).Abs()
	confidence := ConfidenceMedium
	if diff.LessThanOrEqual(s.exactTolerance) && maxDays <= s.highMaxDays {
		confidence = ConfidenceHigh
	}
	return Scoring{
		Confidence: confidence,
		Score:      AmountScore(target, total),
		Reason:     describe(count, target, total, maxDays),
	}
}

// ScoreNearMiss grades an amount-reconciled suggestion.
func (s Scorer) ScoreNearMiss(count int, target, total decimal.Decimal, maxDays int) Scoring {
	return Scoring{
		Confidence: ConfidenceLow,
		Score:      AmountScore(target, total),
		Reason:     "near miss: " + describe(count, target, total, maxDays),
	}
}

// ScoreProximity grades a suggestion based only on date proximity.
func (s Scorer) ScoreProximity(count int, target, total decimal.Decimal, maxDays int) Scoring {
	return Scoring{
		Confidence: ConfidenceLow,
		Score:      s.proximityScore,
		Reason:     "date proximity only: " + describe(count, target, total, maxDays),
	}
}

// AmountScore returns max(0, 100 - diff/target*100) rounded to two decimals.
// A zero target scores 0.
func AmountScore(target, total decimal.Decimal) float64 {
	target = target.Abs()
	if target.IsZero() {
		return 0
	}
	diff := target.Sub(total.Abs()).Abs()
	score := hundred.Sub(diff.Div(target).Mul(hundred)).Round(2)
	if score.IsNegative() {
		return 0
	}
	return score.InexactFloat64()
}

func describe(count int, target, total decimal.Decimal, maxDays int) string {
	diff := target.Sub(total).Abs()
	return fmt.Sprintf("%d %s totaling $%s vs bank amount $%s (difference $%s, max %d %s apart)",
		count, plural(count, "record", "records"),
		total.StringFixed(2), target.StringFixed(2), diff.StringFixed(2),
		maxDays, plural(maxDays, "day", "days"))
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

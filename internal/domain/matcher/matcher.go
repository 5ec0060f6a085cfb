// Package matcher links bank charges to the context records that explain them.
//
// A reconciliation pass runs for one pattern type at a time:
//   - Exact 1:1: a single context record within the tight date window and the exact tolerance
//   - Combinatorial N:1: a subset of context records summing to the charge within
//     max(target * percent, floor)
//   - Suggestions: near misses and date-proximity candidates, never applied automatically
//
// A context record is used by at most one match. Charges that already carry
// links are skipped. The engine performs no I/O and is deterministic.
//
// Example usage:
//
//	engine, err := matcher.NewEngine(matcher.DefaultConfig())
//	result, err := engine.Reconcile(records, matcher.PatternAmazon)
//	updated := matcher.Apply(records, result.Matches)
package matcher

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/eshaffer321/ledger-reconcile/internal/domain/validator"
)

// ErrUnknownPatternType is returned when no pattern table exists for a pattern type.
var ErrUnknownPatternType = errors.New("unknown pattern type")

// Engine runs reconciliation passes.
type Engine struct {
	config      Config
	classifiers map[PatternType]*Classifier
	scorer      Scorer
	logger      *slog.Logger
}

// NewEngine validates config and compiles its pattern tables.
func NewEngine(config Config) (*Engine, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid matcher config: %w", err)
	}
	classifiers := make(map[PatternType]*Classifier, len(config.PatternTables))
	for pt, table := range config.PatternTables {
		c, err := NewClassifier(pt, table)
		if err != nil {
			return nil, fmt.Errorf("pattern table %q: %w", pt, err)
		}
		classifiers[pt] = c
	}
	return &Engine{
		config:      config,
		classifiers: classifiers,
		scorer:      NewScorer(config),
		logger:      slog.New(slog.DiscardHandler),
	}, nil
}

// WithLogger sets the logger used for pass summaries.
func (e *Engine) WithLogger(logger *slog.Logger) *Engine {
	if logger != nil {
		e.logger = logger
	}
	return e
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.config
}

// Reconcile matches the charge and context records of patternType found in records.
// Records outside the pattern type are ignored. The input is not modified.
func (e *Engine) Reconcile(records []Record, patternType PatternType) (*Result, error) {
	classifier, ok := e.classifiers[patternType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPatternType, patternType)
	}

	r := newReconciliation(e, patternType, records, classifier.Classify(records))
	r.exactPass()
	r.combinationPass()
	r.suggestionPass()
	r.finish()

	e.logger.Debug("Reconciliation pass complete",
		"pattern_type", patternType,
		"charges", r.result.Stats.ChargeRecords,
		"context", r.result.Stats.ContextRecords,
		"matched", r.result.Stats.ChargesMatched,
		"suggested", r.result.Stats.ChargesSuggested,
		"invalid", r.result.Stats.InvalidRecords)

	return r.result, nil
}

// reconciliation carries the state of one Reconcile call.
type reconciliation struct {
	engine  *Engine
	charges []Record // unlinked charges, most recent first
	context []Record

	excludedContext map[string]bool // pre-linked plus matched
	matchedCharge   map[string]bool
	suggested       map[string]bool

	result *Result
}

func newReconciliation(e *Engine, pt PatternType, all []Record, p Partition) *reconciliation {
	r := &reconciliation{
		engine:          e,
		context:         p.Context,
		excludedContext: make(map[string]bool),
		matchedCharge:   make(map[string]bool),
		suggested:       make(map[string]bool),
		result:          &Result{PatternType: pt},
	}
	stats := &r.result.Stats
	stats.ChargeRecords = len(p.Charges)
	stats.ContextRecords = len(p.Context)
	stats.InvalidRecords = len(p.Invalid)
	for _, inv := range p.Invalid {
		stats.InvalidRecordIDs = append(stats.InvalidRecordIDs, inv.ID)
	}

	// Context already claimed by a link on either side is out of every pass.
	claimed := make(map[string]bool)
	for _, rec := range all {
		for _, id := range rec.ExistingLinks {
			claimed[id] = true
		}
	}
	for _, c := range p.Context {
		if c.Linked() || claimed[c.ID] {
			r.excludedContext[c.ID] = true
			stats.ContextAlreadyLinked++
		}
	}

	for _, ch := range p.Charges {
		if ch.Linked() {
			stats.ChargesAlreadyLinked++
			continue
		}
		r.charges = append(r.charges, ch)
	}
	sort.SliceStable(r.charges, func(i, j int) bool {
		if !r.charges[i].Date.Equal(r.charges[j].Date) {
			return r.charges[i].Date.After(r.charges[j].Date)
		}
		return r.charges[i].ID < r.charges[j].ID
	})
	return r
}

// exactPass links charges to a single context record within the exact tolerance.
func (r *reconciliation) exactPass() {
	cfg := r.engine.config
	exact := decimal.NewFromFloat(cfg.ExactMatchTolerance)

	for _, ch := range r.charges {
		target := ch.magnitude()
		var (
			best     *Candidate
			bestDiff decimal.Decimal
		)
		cands := Candidates(ch, r.context, r.excludedContext, cfg.MaxDateDifferenceInDays)
		for i := range cands {
			diff := target.Sub(cands[i].Amount).Abs()
			if diff.GreaterThan(exact) {
				continue
			}
			// Candidates are already ordered by day difference then id.
			if best == nil || diff.LessThan(bestDiff) {
				best, bestDiff = &cands[i], diff
			}
		}
		if best != nil {
			r.accept(ch, []Candidate{*best}, exact)
		}
	}
}

// combinationPass looks for N:1 combinations among the remaining tight-window candidates.
func (r *reconciliation) combinationPass() {
	cfg := r.engine.config

	for _, ch := range r.charges {
		if r.matchedCharge[ch.ID] {
			continue
		}
		target := ch.magnitude()
		tolerance := Tolerance(target, cfg.SumMatchTolerancePercent, cfg.AbsoluteToleranceFloor)
		cands := Candidates(ch, r.context, r.excludedContext, cfg.MaxDateDifferenceInDays)

		switch len(cands) {
		case 0:
			continue
		case 1:
			// Already failed the exact check, so it can only be a near miss.
			r.suggestAmount(ch, cands)
			continue
		}

		sol := Solve(cands, target, tolerance, cfg.CombinationSearchLimit)
		if !sol.Found() {
			continue
		}
		if sol.WithinTolerance && len(sol.Members) > 1 && r.accept(ch, sol.Members, tolerance) {
			continue
		}
		// A lone member would break the exact 1:1 tolerance, so it stays a suggestion.
		r.suggestAmount(ch, sol.Members)
	}
}

// suggestionPass offers the wide-window candidates of charges that got nothing so far.
func (r *reconciliation) suggestionPass() {
	cfg := r.engine.config

	for _, ch := range r.charges {
		if r.matchedCharge[ch.ID] || r.suggested[ch.ID] {
			continue
		}
		cands := Candidates(ch, r.context, r.excludedContext, cfg.SuggestionWindowDays())
		if len(cands) == 0 {
			continue
		}
		if len(cands) > cfg.SuggestionCandidateCap {
			cands = cands[:cfg.SuggestionCandidateCap]
		}
		target := ch.magnitude()
		total := candidateTotal(cands)
		days := maxDayDiff(cands)
		r.suggest(ch, cands, SourceProximity, r.engine.scorer.ScoreProximity(len(cands), target, total, days))
	}
}

// accept validates and records a match. It returns false if the match was rejected.
func (r *reconciliation) accept(ch Record, members []Candidate, tolerance decimal.Decimal) bool {
	target := ch.magnitude()
	amounts := make([]decimal.Decimal, len(members))
	for i, m := range members {
		amounts[i] = m.Amount
	}
	if v := validator.ValidateMatch(target, amounts, tolerance); !v.Valid {
		r.engine.logger.Warn("Rejected match outside tolerance",
			"charge_id", ch.ID, "reason", v.Reason)
		return false
	}

	total := candidateTotal(members)
	days := maxDayDiff(members)
	scoring := r.engine.scorer.ScoreMatch(len(members), target, total, days)
	match := MatchResult{
		ChargeID:         ch.ID,
		ContextIDs:       candidateIDs(members),
		Cardinality:      cardinalityFor(len(members)),
		Confidence:       scoring.Confidence,
		ChargeAmount:     target,
		TotalAmount:      total,
		AmountDifference: target.Sub(total).Abs(),
		Tolerance:        tolerance,
		MaxDayDiff:       days,
		Score:            scoring.Score,
		Reason:           scoring.Reason,
	}
	r.result.Matches = append(r.result.Matches, match)

	r.matchedCharge[ch.ID] = true
	for _, id := range match.ContextIDs {
		r.excludedContext[id] = true
	}
	r.result.Stats.ContextMatched += len(match.ContextIDs)
	if match.Cardinality == CardinalityOneToOne {
		r.result.Stats.OneToOneMatches++
	} else {
		r.result.Stats.ManyToOneMatches++
	}
	return true
}

func (r *reconciliation) suggestAmount(ch Record, members []Candidate) {
	target := ch.magnitude()
	total := candidateTotal(members)
	days := maxDayDiff(members)
	r.suggest(ch, members, SourceAmount, r.engine.scorer.ScoreNearMiss(len(members), target, total, days))
}

func (r *reconciliation) suggest(ch Record, members []Candidate, source SuggestionSource, scoring Scoring) {
	target := ch.magnitude()
	total := candidateTotal(members)
	r.result.Suggestions = append(r.result.Suggestions, MatchSuggestion{
		ChargeID:         ch.ID,
		CandidateIDs:     candidateIDs(members),
		Cardinality:      cardinalityFor(len(members)),
		Confidence:       scoring.Confidence,
		Source:           source,
		ChargeAmount:     target,
		TotalAmount:      total,
		AmountDifference: target.Sub(total).Abs(),
		MaxDayDiff:       maxDayDiff(members),
		Score:            scoring.Score,
		Reason:           scoring.Reason,
	})
	r.suggested[ch.ID] = true
}

func (r *reconciliation) finish() {
	stats := &r.result.Stats
	stats.ChargesMatched = len(r.matchedCharge)
	stats.ChargesSuggested = len(r.suggested)
	stats.UnmatchedCharges = len(r.charges) - stats.ChargesMatched - stats.ChargesSuggested
	stats.UnmatchedContext = stats.ContextRecords - stats.ContextAlreadyLinked - stats.ContextMatched
}

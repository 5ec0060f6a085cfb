package matcher

import (
	"fmt"
	"math"
	"regexp"
	"sort"
)

// PatternType selects which pattern table a reconciliation pass uses.
type PatternType string

const (
	PatternAmazon       PatternType = "amazon"
	PatternPayPal       PatternType = "paypal"
	PatternCardAcquirer PatternType = "card_acquirer"
)

// PatternTable decides which records take part in a pass.
//
// A record is on the charge side when it is not context-only and its
// description or beneficiary matches one of ChargePatterns. It is on the
// context side when it is context-only and its origin equals ContextOrigin.
type PatternTable struct {
	ChargePatterns []string
	ContextOrigin  Origin
}

// maxCombinationSearchLimit bounds the exhaustive search at 2^20 subsets.
const maxCombinationSearchLimit = 20

// Config holds engine configuration
type Config struct {
	MaxDateDifferenceInDays  int     // tight window, default 5; the suggestion window is twice this
	ExactMatchTolerance      float64 // 1:1 tolerance, default 0.05
	SumMatchTolerancePercent float64 // N:1 tolerance as a fraction of the target, default 0.02
	AbsoluteToleranceFloor   float64 // N:1 tolerance never drops below this, default 1.00
	CombinationSearchLimit   int     // exhaustive search only up to this many candidates, default 8
	SuggestionCandidateCap   int     // proximity suggestions list at most this many ids, default 10
	ProximityScore           float64 // flat score for date-only suggestions, default 30
	HighConfidenceMaxDays    int     // default 2

	PatternTables map[PatternType]PatternTable
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		MaxDateDifferenceInDays:  5,
		ExactMatchTolerance:      0.05,
		SumMatchTolerancePercent: 0.02,
		AbsoluteToleranceFloor:   1.00,
		CombinationSearchLimit:   8,
		SuggestionCandidateCap:   10,
		ProximityScore:           30,
		HighConfidenceMaxDays:    2,
		PatternTables:            DefaultPatternTables(),
	}
}

// DefaultPatternTables returns the built-in pattern tables.
func DefaultPatternTables() map[PatternType]PatternTable {
	return map[PatternType]PatternTable{
		PatternAmazon: {
			ChargePatterns: []string{
				`(?i)\bamazon\b`,
				`(?i)\bamzn\b`,
				`(?i)amazon\s*(eu|payments|mktp|marketplace)`,
			},
			ContextOrigin: OriginAmazon,
		},
		PatternPayPal: {
			ChargePatterns: []string{
				`(?i)\bpaypal\b`,
				`(?i)\bpp\.\d+`,
			},
			ContextOrigin: OriginPayPal,
		},
		PatternCardAcquirer: {
			ChargePatterns: []string{
				`(?i)\b(visa|mastercard|amex)\b.*\b(settlement|abrechnung|payment)\b`,
				`(?i)kreditkarten?abrechnung`,
				`(?i)credit\s*card\s*(bill|payment)`,
			},
			ContextOrigin: OriginCardStatement,
		},
	}
}

// SuggestionWindowDays returns the widened window used for suggestions.
func (c Config) SuggestionWindowDays() int {
	return c.MaxDateDifferenceInDays * 2
}

// PatternTypes returns the configured pattern types in sorted order.
func (c Config) PatternTypes() []PatternType {
	types := make([]PatternType, 0, len(c.PatternTables))
	for pt := range c.PatternTables {
		types = append(types, pt)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// Validate checks the configuration and compiles every pattern once.
func (c Config) Validate() error {
	if c.MaxDateDifferenceInDays < 0 {
		return fmt.Errorf("max date difference cannot be negative: %d", c.MaxDateDifferenceInDays)
	}
	if err := checkTolerance("exact match tolerance", c.ExactMatchTolerance); err != nil {
		return err
	}
	if err := checkTolerance("sum match tolerance percent", c.SumMatchTolerancePercent); err != nil {
		return err
	}
	if c.SumMatchTolerancePercent > 1 {
		return fmt.Errorf("sum match tolerance percent must be a fraction (0-1), got %v", c.SumMatchTolerancePercent)
	}
	if err := checkTolerance("absolute tolerance floor", c.AbsoluteToleranceFloor); err != nil {
		return err
	}
	if c.CombinationSearchLimit < 0 || c.CombinationSearchLimit > maxCombinationSearchLimit {
		return fmt.Errorf("combination search limit must be between 0 and %d, got %d",
			maxCombinationSearchLimit, c.CombinationSearchLimit)
	}
	if c.SuggestionCandidateCap < 1 {
		return fmt.Errorf("suggestion candidate cap must be at least 1, got %d", c.SuggestionCandidateCap)
	}
	if c.ProximityScore < 0 || c.ProximityScore > 100 || math.IsNaN(c.ProximityScore) {
		return fmt.Errorf("proximity score must be between 0 and 100, got %v", c.ProximityScore)
	}
	if c.HighConfidenceMaxDays < 0 {
		return fmt.Errorf("high confidence max days cannot be negative: %d", c.HighConfidenceMaxDays)
	}
	if len(c.PatternTables) == 0 {
		return fmt.Errorf("no pattern tables configured")
	}
	for _, pt := range c.PatternTypes() {
		if _, err := compileTable(c.PatternTables[pt]); err != nil {
			return fmt.Errorf("pattern table %q: %w", pt, err)
		}
	}
	return nil
}

func checkTolerance(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%s must be a finite number", name)
	}
	if v < 0 {
		return fmt.Errorf("%s cannot be negative: %v", name, v)
	}
	return nil
}

func compileTable(table PatternTable) ([]*regexp.Regexp, error) {
	if len(table.ChargePatterns) == 0 {
		return nil, fmt.Errorf("no charge patterns")
	}
	if !table.ContextOrigin.Valid() {
		return nil, fmt.Errorf("unknown context origin %q", table.ContextOrigin)
	}
	compiled := make([]*regexp.Regexp, 0, len(table.ChargePatterns))
	for _, p := range table.ChargePatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", p, err)
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}

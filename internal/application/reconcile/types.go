package reconcile

import (
	"github.com/eshaffer321/ledger-reconcile/internal/domain/matcher"
	"github.com/eshaffer321/ledger-reconcile/internal/infrastructure/storage"
)

// Options holds run configuration
type Options struct {
	PatternTypes []matcher.PatternType // empty = every configured pattern type
	LookbackDays int                   // 0 = all stored records
	DryRun       bool

	// ProgressCallback is called after each pattern type completes
	ProgressCallback func(Progress)
}

// Progress reports how far a run has got
type Progress struct {
	PatternType matcher.PatternType
	Completed   int
	Total       int
	Stats       matcher.Stats
}

// PatternResult holds the outcome for one pattern type
type PatternResult struct {
	PatternType  matcher.PatternType
	Matches      []*storage.Match
	Suggestions  []*storage.Suggestion
	Stats        matcher.Stats
	LinksUpdated int
}

// Result holds run results
type Result struct {
	RunID    int64
	DryRun   bool
	Patterns []PatternResult
	Counts   storage.RunCounts
}

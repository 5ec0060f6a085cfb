// Package reconcile runs the matching engine against the record store and
// writes the outcome back: matches, suggestions and link fields.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/eshaffer321/ledger-reconcile/internal/domain/matcher"
	"github.com/eshaffer321/ledger-reconcile/internal/infrastructure/storage"
)

// ErrSuggestionConflict is returned when a suggestion can no longer be
// resolved: it is closed, or one of its records was linked in the meantime.
var ErrSuggestionConflict = errors.New("suggestion conflict")

// Orchestrator runs reconciliation over stored records
type Orchestrator struct {
	repo   storage.Repository
	engine *matcher.Engine
	logger *slog.Logger
	now    func() time.Time
}

// NewOrchestrator creates a new reconciliation orchestrator
func NewOrchestrator(repo storage.Repository, engine *matcher.Engine, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Orchestrator{
		repo:   repo,
		engine: engine.WithLogger(logger),
		logger: logger,
		now:    time.Now,
	}
}

// Run reconciles each requested pattern type in turn. Each pattern type sees
// the links written by the ones before it.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (*Result, error) {
	patternTypes := opts.PatternTypes
	if len(patternTypes) == 0 {
		patternTypes = o.engine.Config().PatternTypes()
	}
	names := make([]string, len(patternTypes))
	for i, pt := range patternTypes {
		names[i] = string(pt)
	}

	o.logger.Debug("Starting reconciliation",
		"pattern_types", names,
		"lookback_days", opts.LookbackDays,
		"dry_run", opts.DryRun,
	)

	runID, err := o.repo.StartRun(names, opts.LookbackDays, opts.DryRun)
	if err != nil {
		return nil, fmt.Errorf("failed to start run: %w", err)
	}

	result := &Result{
		RunID:    runID,
		DryRun:   opts.DryRun,
		Patterns: make([]PatternResult, 0, len(patternTypes)),
	}

	for i, pt := range patternTypes {
		if err := ctx.Err(); err != nil {
			o.failRun(runID, err)
			return result, err
		}

		pr, err := o.runPattern(runID, pt, opts)
		if err != nil {
			err = fmt.Errorf("pattern type %s: %w", pt, err)
			o.failRun(runID, err)
			return result, err
		}
		result.Patterns = append(result.Patterns, *pr)
		addCounts(&result.Counts, pr)

		o.logger.Info("Pattern type reconciled",
			"pattern_type", pt,
			"matched", len(pr.Matches),
			"suggested", len(pr.Suggestions),
			"unmatched_charges", pr.Stats.UnmatchedCharges,
			"invalid", pr.Stats.InvalidRecords,
		)

		if opts.ProgressCallback != nil {
			opts.ProgressCallback(Progress{
				PatternType: pt,
				Completed:   i + 1,
				Total:       len(patternTypes),
				Stats:       pr.Stats,
			})
		}
	}

	if err := o.repo.CompleteRun(runID, result.Counts); err != nil {
		return result, fmt.Errorf("failed to complete run: %w", err)
	}
	return result, nil
}

func (o *Orchestrator) runPattern(runID int64, pt matcher.PatternType, opts Options) (*PatternResult, error) {
	records, err := o.loadRecords(opts.LookbackDays)
	if err != nil {
		return nil, err
	}

	outcome, err := o.engine.Reconcile(records, pt)
	if err != nil {
		return nil, err
	}

	pr := &PatternResult{
		PatternType: pt,
		Matches:     make([]*storage.Match, 0, len(outcome.Matches)),
		Suggestions: make([]*storage.Suggestion, 0, len(outcome.Suggestions)),
		Stats:       outcome.Stats,
	}
	for _, m := range outcome.Matches {
		match, err := toStorageMatch(runID, pt, m, records)
		if err != nil {
			return nil, err
		}
		pr.Matches = append(pr.Matches, match)
	}
	for _, s := range outcome.Suggestions {
		pr.Suggestions = append(pr.Suggestions, toStorageSuggestion(runID, pt, s))
	}

	if len(outcome.Stats.InvalidRecordIDs) > 0 {
		o.logger.Warn("Skipped invalid records",
			"pattern_type", pt,
			"count", len(outcome.Stats.InvalidRecordIDs),
			"ids", outcome.Stats.InvalidRecordIDs,
		)
	}

	if opts.DryRun {
		return pr, nil
	}

	pr.LinksUpdated, err = o.persist(pr, records, outcome.Matches)
	if err != nil {
		return nil, err
	}
	return pr, nil
}

// loadRecords reads the lookback window widened by the suggestion window,
// so context records just before the window can still be found.
func (o *Orchestrator) loadRecords(lookbackDays int) ([]matcher.Record, error) {
	filters := storage.RecordFilters{}
	if lookbackDays > 0 {
		span := lookbackDays + o.engine.Config().SuggestionWindowDays()
		filters.From = o.now().UTC().AddDate(0, 0, -span).Truncate(24 * time.Hour)
	}

	list, err := o.repo.ListRecords(filters)
	if err != nil {
		return nil, fmt.Errorf("failed to load records: %w", err)
	}

	records := make([]matcher.Record, len(list.Records))
	for i, r := range list.Records {
		records[i] = toMatcherRecord(r)
	}

	o.logger.Debug("Loaded records", "count", len(records), "from", filters.From.Format("2006-01-02"))
	return records, nil
}

// persist stores each match together with the link fields it changes, then
// replaces the open suggestions of every charge it touched. pr.Matches and
// matches are parallel.
func (o *Orchestrator) persist(pr *PatternResult, records []matcher.Record, matches []matcher.MatchResult) (int, error) {
	existing := make(map[string][]string, len(records))
	for _, r := range records {
		existing[r.ID] = r.ExistingLinks
	}

	linksUpdated := 0
	for i, match := range pr.Matches {
		changed := make(map[string][]string)
		for id, links := range matcher.LinkUpdates(matches[i : i+1]) {
			if !matcher.SameLinks(existing[id], links) {
				changed[id] = links
			}
		}
		if err := o.repo.SaveMatchWithLinks(match, changed); err != nil {
			return linksUpdated, fmt.Errorf("failed to save match for %s: %w", match.ChargeID, err)
		}
		linksUpdated += len(changed)

		if _, err := o.repo.SupersedeOpenSuggestions(match.ChargeID); err != nil {
			return linksUpdated, fmt.Errorf("failed to supersede suggestions for %s: %w", match.ChargeID, err)
		}
	}

	superseded := make(map[string]bool)
	for _, s := range pr.Suggestions {
		if !superseded[s.ChargeID] {
			if _, err := o.repo.SupersedeOpenSuggestions(s.ChargeID); err != nil {
				return linksUpdated, fmt.Errorf("failed to supersede suggestions for %s: %w", s.ChargeID, err)
			}
			superseded[s.ChargeID] = true
		}
		if err := o.repo.SaveSuggestion(s); err != nil {
			return linksUpdated, err
		}
	}
	return linksUpdated, nil
}

func (o *Orchestrator) failRun(runID int64, cause error) {
	if err := o.repo.FailRun(runID, cause.Error()); err != nil {
		o.logger.Error("Failed to record run failure", "run_id", runID, "error", err)
	}
}

func addCounts(counts *storage.RunCounts, pr *PatternResult) {
	counts.ChargeRecords += pr.Stats.ChargeRecords
	counts.ContextRecords += pr.Stats.ContextRecords
	counts.AutoMatched += len(pr.Matches)
	counts.Suggested += len(pr.Suggestions)
	counts.UnmatchedCharges += pr.Stats.UnmatchedCharges
	counts.UnmatchedContext += pr.Stats.UnmatchedContext
	// Every pattern type sees the same invalid records
	counts.InvalidRecords = max(counts.InvalidRecords, pr.Stats.InvalidRecords)
}

package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/eshaffer321/ledger-reconcile/internal/domain/allocator"
	"github.com/eshaffer321/ledger-reconcile/internal/domain/matcher"
	"github.com/eshaffer321/ledger-reconcile/internal/infrastructure/storage"
)

// AcceptSuggestion turns an open suggestion into a low-confidence match and
// links its records. It fails with ErrSuggestionConflict when the charge or
// any candidate has been linked since the suggestion was made.
func (o *Orchestrator) AcceptSuggestion(ctx context.Context, id string) (*storage.Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	suggestion, err := o.openSuggestion(id)
	if err != nil {
		return nil, err
	}

	charge, err := o.unlinkedRecord(suggestion.ChargeID)
	if err != nil {
		return nil, err
	}
	chargeAmount := decimal.NewFromFloat(charge.Amount).Abs()

	shares := make([]allocator.Share, len(suggestion.CandidateIDs))
	days := 0
	for i, cid := range suggestion.CandidateIDs {
		candidate, err := o.unlinkedRecord(cid)
		if err != nil {
			return nil, err
		}
		shares[i] = allocator.Share{ID: cid, Amount: decimal.NewFromFloat(candidate.Amount).Abs()}
		if d := matcher.DayDiff(charge.Date, candidate.Date); d > days {
			days = d
		}
	}

	allocations, err := allocate(shares, chargeAmount)
	if err != nil {
		return nil, fmt.Errorf("suggestion %s: %w", id, err)
	}
	total := decimal.Zero
	for _, s := range shares {
		total = total.Add(s.Amount)
	}

	match := &storage.Match{
		RunID:            suggestion.RunID,
		PatternType:      suggestion.PatternType,
		ChargeID:         charge.ID,
		Cardinality:      suggestion.Cardinality,
		Confidence:       string(matcher.ConfidenceLow),
		ChargeAmount:     chargeAmount,
		TotalAmount:      total,
		AmountDifference: chargeAmount.Sub(total).Abs(),
		MaxDayDiff:       days,
		Score:            suggestion.Score,
		Reason:           "accepted suggestion: " + suggestion.Reason,
		Source:           storage.MatchSourceAccepted,
		Allocations:      allocations,
	}
	links := map[string][]string{charge.ID: append([]string(nil), suggestion.CandidateIDs...)}
	for _, cid := range suggestion.CandidateIDs {
		links[cid] = []string{charge.ID}
	}
	if err := o.repo.SaveMatchWithLinks(match, links); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return nil, fmt.Errorf("%w: %v", ErrSuggestionConflict, err)
		}
		return nil, fmt.Errorf("failed to save match: %w", err)
	}

	if err := o.repo.UpdateSuggestionStatus(id, storage.SuggestionAccepted); err != nil {
		return nil, err
	}
	if _, err := o.repo.SupersedeOpenSuggestions(charge.ID); err != nil {
		return nil, err
	}

	o.logger.Info("Accepted suggestion",
		"suggestion_id", id,
		"charge_id", charge.ID,
		"candidates", len(suggestion.CandidateIDs),
		"match_id", match.ID,
	)
	return match, nil
}

// DismissSuggestion closes an open suggestion without linking anything
func (o *Orchestrator) DismissSuggestion(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := o.openSuggestion(id); err != nil {
		return err
	}
	if err := o.repo.UpdateSuggestionStatus(id, storage.SuggestionDismissed); err != nil {
		return err
	}
	o.logger.Info("Dismissed suggestion", "suggestion_id", id)
	return nil
}

// UnlinkMatch deletes a match and clears the links of its records, so the
// next run can match them again.
func (o *Orchestrator) UnlinkMatch(ctx context.Context, matchID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	match, err := o.repo.GetMatch(matchID)
	if err != nil {
		return err
	}

	if err := o.repo.DeleteMatch(matchID); err != nil {
		return err
	}
	links := map[string][]string{match.ChargeID: nil}
	for _, id := range match.ContextIDs() {
		links[id] = nil
	}
	if err := o.repo.UpdateLinks(links); err != nil {
		return fmt.Errorf("failed to clear links: %w", err)
	}

	o.logger.Info("Unlinked match", "match_id", matchID, "charge_id", match.ChargeID)
	return nil
}

func (o *Orchestrator) openSuggestion(id string) (*storage.Suggestion, error) {
	suggestion, err := o.repo.GetSuggestion(id)
	if err != nil {
		return nil, err
	}
	if suggestion.Status != storage.SuggestionOpen {
		return nil, fmt.Errorf("%w: suggestion %s is %s", ErrSuggestionConflict, id, suggestion.Status)
	}
	return suggestion, nil
}

func (o *Orchestrator) unlinkedRecord(id string) (*storage.Record, error) {
	record, err := o.repo.GetRecord(id)
	if err != nil {
		return nil, err
	}
	if err := toMatcherRecord(record).Validate(); err != nil {
		return nil, fmt.Errorf("%w: record %s: %v", ErrSuggestionConflict, id, err)
	}
	if len(record.Links) > 0 {
		return nil, fmt.Errorf("%w: record %s is already linked", ErrSuggestionConflict, id)
	}
	return record, nil
}

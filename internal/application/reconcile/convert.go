package reconcile

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/eshaffer321/ledger-reconcile/internal/domain/allocator"
	"github.com/eshaffer321/ledger-reconcile/internal/domain/matcher"
	"github.com/eshaffer321/ledger-reconcile/internal/infrastructure/storage"
)

func toMatcherRecord(r *storage.Record) matcher.Record {
	return matcher.Record{
		ID:            r.ID,
		Date:          r.Date,
		Amount:        r.Amount,
		Description:   r.Description,
		Beneficiary:   r.Beneficiary,
		Origin:        matcher.Origin(r.Origin),
		IsContextOnly: r.ContextOnly,
		ExistingLinks: r.Links,
	}
}

// toStorageMatch spreads the charge amount over the context records pro rata
func toStorageMatch(runID int64, pt matcher.PatternType, m matcher.MatchResult, records []matcher.Record) (*storage.Match, error) {
	byID := make(map[string]matcher.Record, len(records))
	for _, r := range records {
		byID[r.ID] = r
	}

	shares := make([]allocator.Share, len(m.ContextIDs))
	for i, id := range m.ContextIDs {
		r, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("match for %s references unknown record %s", m.ChargeID, id)
		}
		shares[i] = allocator.Share{ID: id, Amount: decimal.NewFromFloat(r.Amount).Abs()}
	}

	allocations, err := allocate(shares, m.ChargeAmount)
	if err != nil {
		return nil, fmt.Errorf("match for %s: %w", m.ChargeID, err)
	}

	return &storage.Match{
		RunID:            runID,
		PatternType:      string(pt),
		ChargeID:         m.ChargeID,
		Cardinality:      string(m.Cardinality),
		Confidence:       string(m.Confidence),
		ChargeAmount:     m.ChargeAmount,
		TotalAmount:      m.TotalAmount,
		AmountDifference: m.AmountDifference,
		MaxDayDiff:       m.MaxDayDiff,
		Score:            m.Score,
		Reason:           m.Reason,
		Source:           storage.MatchSourceEngine,
		Allocations:      allocations,
	}, nil
}

func allocate(shares []allocator.Share, total decimal.Decimal) ([]storage.Allocation, error) {
	result, err := allocator.Allocate(shares, total)
	if err != nil {
		return nil, err
	}
	out := make([]storage.Allocation, len(result.Allocations))
	for i, a := range result.Allocations {
		out[i] = storage.Allocation{ContextID: a.ID, Amount: a.Amount, Allocated: a.Allocated}
	}
	return out, nil
}

func toStorageSuggestion(runID int64, pt matcher.PatternType, s matcher.MatchSuggestion) *storage.Suggestion {
	return &storage.Suggestion{
		RunID:            runID,
		PatternType:      string(pt),
		ChargeID:         s.ChargeID,
		CandidateIDs:     append([]string(nil), s.CandidateIDs...),
		Cardinality:      string(s.Cardinality),
		Source:           string(s.Source),
		ChargeAmount:     s.ChargeAmount,
		TotalAmount:      s.TotalAmount,
		AmountDifference: s.AmountDifference,
		MaxDayDiff:       s.MaxDayDiff,
		Score:            s.Score,
		Reason:           s.Reason,
		Status:           storage.SuggestionOpen,
	}
}

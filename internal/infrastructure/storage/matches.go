package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"
)

// SaveMatch stores a match and its allocations in one transaction.
// A charge or context record already used by another match violates a unique
// constraint and fails the whole save with ErrConflict.
func (s *Storage) SaveMatch(match *Match) error {
	return s.SaveMatchWithLinks(match, nil)
}

// SaveMatchWithLinks stores a match, its allocations and the link fields of
// its records in one transaction.
func (s *Storage) SaveMatchWithLinks(match *Match, links map[string][]string) error {
	if match.ID == "" {
		match.ID = ulid.Make().String()
	}
	if match.CreatedAt.IsZero() {
		match.CreatedAt = time.Now().UTC()
	}
	if match.Source == "" {
		match.Source = MatchSourceEngine
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(`
	INSERT INTO matches
	(id, run_id, pattern_type, charge_id, cardinality, confidence, charge_amount,
	 total_amount, amount_difference, max_day_diff, score, reason, source, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		match.ID,
		nullRunID(match.RunID),
		match.PatternType,
		match.ChargeID,
		match.Cardinality,
		match.Confidence,
		match.ChargeAmount,
		match.TotalAmount,
		match.AmountDifference,
		match.MaxDayDiff,
		match.Score,
		match.Reason,
		match.Source,
		match.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save match for charge %s: %w", match.ChargeID, conflictErr(err))
	}

	for i, a := range match.Allocations {
		_, err := tx.Exec(`
		INSERT INTO match_allocations (match_id, position, context_id, amount, allocated)
		VALUES (?, ?, ?, ?, ?)
		`, match.ID, i, a.ContextID, a.Amount, a.Allocated)
		if err != nil {
			return fmt.Errorf("failed to save allocation of %s: %w", a.ContextID, conflictErr(err))
		}
	}

	if err := updateLinksTx(tx, links); err != nil {
		return err
	}

	return tx.Commit()
}

// conflictErr marks unique constraint violations as ErrConflict
func conflictErr(err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}

const matchColumns = `id, run_id, pattern_type, charge_id, cardinality, confidence, charge_amount,
	       total_amount, amount_difference, max_day_diff, score, reason, source, created_at`

// GetMatch retrieves a match by ID
func (s *Storage) GetMatch(id string) (*Match, error) {
	match, err := scanMatch(s.db.QueryRow(`SELECT `+matchColumns+` FROM matches WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("match %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if err := s.loadAllocations([]*Match{match}); err != nil {
		return nil, err
	}
	return match, nil
}

// ListMatches returns matches, newest first
func (s *Storage) ListMatches(filters MatchFilters) ([]*Match, error) {
	var (
		where []string
		args  []any
	)
	if filters.RunID != 0 {
		where = append(where, "run_id = ?")
		args = append(args, filters.RunID)
	}
	if filters.ChargeID != "" {
		where = append(where, "charge_id = ?")
		args = append(args, filters.ChargeID)
	}
	if filters.Confidence != "" {
		where = append(where, "confidence = ?")
		args = append(args, filters.Confidence)
	}

	query := `SELECT ` + matchColumns + ` FROM matches`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id DESC"
	query, args = paginate(query, args, filters.Limit, filters.Offset)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	matches := make([]*Match, 0)
	for rows.Next() {
		match, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, match)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := s.loadAllocations(matches); err != nil {
		return nil, err
	}
	return matches, nil
}

// DeleteMatch removes a match; allocations cascade
func (s *Storage) DeleteMatch(id string) error {
	res, err := s.db.Exec(`DELETE FROM matches WHERE id = ?`, id)
	return checkAffected(res, err, "match", id)
}

func (s *Storage) loadAllocations(matches []*Match) error {
	if len(matches) == 0 {
		return nil
	}
	byID := make(map[string]*Match, len(matches))
	placeholders := make([]string, len(matches))
	args := make([]any, len(matches))
	for i, m := range matches {
		byID[m.ID] = m
		placeholders[i] = "?"
		args[i] = m.ID
	}

	rows, err := s.db.Query(`
		SELECT match_id, context_id, amount, allocated
		FROM match_allocations
		WHERE match_id IN (`+strings.Join(placeholders, ",")+`)
		ORDER BY match_id, position
	`, args...)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			matchID string
			a       Allocation
		)
		if err := rows.Scan(&matchID, &a.ContextID, &a.Amount, &a.Allocated); err != nil {
			return err
		}
		if m, ok := byID[matchID]; ok {
			m.Allocations = append(m.Allocations, a)
		}
	}
	return rows.Err()
}

func scanMatch(row rowScanner) (*Match, error) {
	var (
		match Match
		runID sql.NullInt64
	)
	err := row.Scan(
		&match.ID,
		&runID,
		&match.PatternType,
		&match.ChargeID,
		&match.Cardinality,
		&match.Confidence,
		&match.ChargeAmount,
		&match.TotalAmount,
		&match.AmountDifference,
		&match.MaxDayDiff,
		&match.Score,
		&match.Reason,
		&match.Source,
		&match.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	match.RunID = runID.Int64
	return &match, nil
}

// SaveSuggestion stores a suggestion
func (s *Storage) SaveSuggestion(suggestion *Suggestion) error {
	if suggestion.ID == "" {
		suggestion.ID = ulid.Make().String()
	}
	if suggestion.CreatedAt.IsZero() {
		suggestion.CreatedAt = time.Now().UTC()
	}
	if suggestion.Status == "" {
		suggestion.Status = SuggestionOpen
	}
	candidates, err := encodeIDs(suggestion.CandidateIDs)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(`
	INSERT INTO suggestions
	(id, run_id, pattern_type, charge_id, candidate_ids, cardinality, source, charge_amount,
	 total_amount, amount_difference, max_day_diff, score, reason, status, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		suggestion.ID,
		nullRunID(suggestion.RunID),
		suggestion.PatternType,
		suggestion.ChargeID,
		candidates,
		suggestion.Cardinality,
		suggestion.Source,
		suggestion.ChargeAmount,
		suggestion.TotalAmount,
		suggestion.AmountDifference,
		suggestion.MaxDayDiff,
		suggestion.Score,
		suggestion.Reason,
		suggestion.Status,
		suggestion.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save suggestion for charge %s: %w", suggestion.ChargeID, err)
	}
	return nil
}

const suggestionColumns = `id, run_id, pattern_type, charge_id, candidate_ids, cardinality, source,
	       charge_amount, total_amount, amount_difference, max_day_diff, score, reason,
	       status, created_at, resolved_at`

// GetSuggestion retrieves a suggestion by ID
func (s *Storage) GetSuggestion(id string) (*Suggestion, error) {
	suggestion, err := scanSuggestion(s.db.QueryRow(`SELECT `+suggestionColumns+` FROM suggestions WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("suggestion %s: %w", id, ErrNotFound)
	}
	return suggestion, err
}

// ListSuggestions returns suggestions ordered by score, highest first
func (s *Storage) ListSuggestions(filters SuggestionFilters) ([]*Suggestion, error) {
	var (
		where []string
		args  []any
	)
	if filters.RunID != 0 {
		where = append(where, "run_id = ?")
		args = append(args, filters.RunID)
	}
	if filters.ChargeID != "" {
		where = append(where, "charge_id = ?")
		args = append(args, filters.ChargeID)
	}
	if filters.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filters.Status)
	}

	query := `SELECT ` + suggestionColumns + ` FROM suggestions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY score DESC, id ASC"
	query, args = paginate(query, args, filters.Limit, filters.Offset)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	suggestions := make([]*Suggestion, 0)
	for rows.Next() {
		suggestion, err := scanSuggestion(rows)
		if err != nil {
			return nil, err
		}
		suggestions = append(suggestions, suggestion)
	}
	return suggestions, rows.Err()
}

// UpdateSuggestionStatus resolves a suggestion
func (s *Storage) UpdateSuggestionStatus(id, status string) error {
	var resolvedAt any
	if status != SuggestionOpen {
		resolvedAt = time.Now().UTC()
	}
	res, err := s.db.Exec(`UPDATE suggestions SET status = ?, resolved_at = ? WHERE id = ?`, status, resolvedAt, id)
	return checkAffected(res, err, "suggestion", id)
}

// SupersedeOpenSuggestions marks every open suggestion for chargeID as superseded
func (s *Storage) SupersedeOpenSuggestions(chargeID string) (int, error) {
	res, err := s.db.Exec(`
		UPDATE suggestions SET status = ?, resolved_at = ?
		WHERE charge_id = ? AND status = ?
	`, SuggestionSuperseded, time.Now().UTC(), chargeID, SuggestionOpen)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func scanSuggestion(row rowScanner) (*Suggestion, error) {
	var (
		suggestion Suggestion
		runID      sql.NullInt64
		candidates string
		resolvedAt sql.NullTime
	)
	err := row.Scan(
		&suggestion.ID,
		&runID,
		&suggestion.PatternType,
		&suggestion.ChargeID,
		&candidates,
		&suggestion.Cardinality,
		&suggestion.Source,
		&suggestion.ChargeAmount,
		&suggestion.TotalAmount,
		&suggestion.AmountDifference,
		&suggestion.MaxDayDiff,
		&suggestion.Score,
		&suggestion.Reason,
		&suggestion.Status,
		&suggestion.CreatedAt,
		&resolvedAt,
	)
	if err != nil {
		return nil, err
	}
	suggestion.RunID = runID.Int64
	if suggestion.CandidateIDs, err = decodeIDs(candidates); err != nil {
		return nil, fmt.Errorf("suggestion %s has malformed candidates: %w", suggestion.ID, err)
	}
	if resolvedAt.Valid {
		t := resolvedAt.Time
		suggestion.ResolvedAt = &t
	}
	return &suggestion, nil
}

func nullRunID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}

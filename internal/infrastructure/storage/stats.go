package storage

import (
	"database/sql"
	"errors"
)

// GetStats returns aggregate statistics
func (s *Storage) GetStats() (*Stats, error) {
	stats := &Stats{
		RecordsByOrigin:     make(map[string]int),
		MatchesByConfidence: make(map[string]int),
	}

	err := s.db.QueryRow(`
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN is_context_only = 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN is_context_only = 1 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN links_json != '[]' THEN 1 ELSE 0 END), 0)
		FROM records
	`).Scan(&stats.TotalRecords, &stats.ChargeRecords, &stats.ContextRecords, &stats.LinkedRecords)
	if err != nil {
		return nil, err
	}
	stats.UnlinkedRecords = stats.TotalRecords - stats.LinkedRecords

	if err := s.countInto(`SELECT origin, COUNT(*) FROM records GROUP BY origin`, stats.RecordsByOrigin); err != nil {
		return nil, err
	}
	if err := s.countInto(`SELECT confidence, COUNT(*) FROM matches GROUP BY confidence`, stats.MatchesByConfidence); err != nil {
		return nil, err
	}
	for _, n := range stats.MatchesByConfidence {
		stats.TotalMatches += n
	}

	err = s.db.QueryRow(`SELECT COUNT(*) FROM suggestions WHERE status = ?`, SuggestionOpen).Scan(&stats.OpenSuggestions)
	if err != nil {
		return nil, err
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM reconcile_runs`).Scan(&stats.TotalRuns); err != nil {
		return nil, err
	}

	var lastRun sql.NullTime
	err = s.db.QueryRow(`SELECT started_at FROM reconcile_runs ORDER BY started_at DESC LIMIT 1`).Scan(&lastRun)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if lastRun.Valid {
		t := lastRun.Time
		stats.LastRunAt = &t
	}

	return stats, nil
}

func (s *Storage) countInto(query string, into map[string]int) error {
	rows, err := s.db.Query(query)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			key   string
			count int
		)
		if err := rows.Scan(&key, &count); err != nil {
			return err
		}
		into[key] = count
	}
	return rows.Err()
}

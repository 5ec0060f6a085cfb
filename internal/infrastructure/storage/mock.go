package storage

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// MockRepository is an in-memory implementation of Repository for testing.
// It enforces the same exclusivity as the SQLite schema: a charge backs at
// most one match and a context record at most one allocation.
type MockRepository struct {
	mu          sync.Mutex
	records     map[string]*Record
	runs        map[int64]*Run
	matches     map[string]*Match
	suggestions map[string]*Suggestion
	nextRunID   int64

	// Hooks for test assertions
	SaveRecordsCalled bool
	UpdateLinksCalled bool
	LastLinkUpdate    map[string][]string
	StartRunCalled    bool
	SaveMatchCalled   bool

	// Error injection for testing error paths
	SaveRecordsErr    error
	ListRecordsErr    error
	UpdateLinksErr    error
	StartRunErr       error
	CompleteRunErr    error
	SaveMatchErr      error
	SaveSuggestionErr error
	GetStatsErr       error
}

// NewMockRepository creates a new mock repository for testing
func NewMockRepository() *MockRepository {
	return &MockRepository{
		records:     make(map[string]*Record),
		runs:        make(map[int64]*Run),
		matches:     make(map[string]*Match),
		suggestions: make(map[string]*Suggestion),
		nextRunID:   1,
	}
}

// Compile-time check that MockRepository implements Repository
var _ Repository = (*MockRepository)(nil)

// Close does nothing for mock
func (m *MockRepository) Close() error {
	return nil
}

// SaveRecords upserts records, keeping stored links when the incoming record has none
func (m *MockRepository) SaveRecords(records []Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SaveRecordsCalled = true
	if m.SaveRecordsErr != nil {
		return m.SaveRecordsErr
	}
	now := time.Now().UTC()
	for _, r := range records {
		if r.ID == "" {
			return fmt.Errorf("record id is required")
		}
		copied := r
		copied.Links = append([]string(nil), r.Links...)
		copied.UpdatedAt = now
		if existing, ok := m.records[r.ID]; ok {
			copied.ImportedAt = existing.ImportedAt
			if len(copied.Links) == 0 {
				copied.Links = existing.Links
			}
		} else {
			copied.ImportedAt = now
		}
		m.records[r.ID] = &copied
	}
	return nil
}

// GetRecord returns a copy of the stored record
func (m *MockRepository) GetRecord(id string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.records[id]
	if !ok {
		return nil, fmt.Errorf("record %s: %w", id, ErrNotFound)
	}
	copied := *r
	copied.Links = append([]string(nil), r.Links...)
	return &copied, nil
}

// ListRecords filters the in-memory records, newest first
func (m *MockRepository) ListRecords(filters RecordFilters) (*RecordListResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ListRecordsErr != nil {
		return nil, m.ListRecordsErr
	}

	var filtered []*Record
	for _, r := range m.records {
		if !filters.From.IsZero() && (r.Date.IsZero() || r.Date.Before(filters.From)) {
			continue
		}
		if !filters.To.IsZero() && (r.Date.IsZero() || r.Date.After(filters.To)) {
			continue
		}
		if filters.Origin != "" && r.Origin != filters.Origin {
			continue
		}
		if filters.ContextOnly != nil && r.ContextOnly != *filters.ContextOnly {
			continue
		}
		if filters.Linked != nil && (len(r.Links) > 0) != *filters.Linked {
			continue
		}
		copied := *r
		copied.Links = append([]string(nil), r.Links...)
		filtered = append(filtered, &copied)
	}
	sort.Slice(filtered, func(i, j int) bool {
		if !filtered[i].Date.Equal(filtered[j].Date) {
			return filtered[i].Date.After(filtered[j].Date)
		}
		return filtered[i].ID < filtered[j].ID
	})

	result := &RecordListResult{
		Records:    page(filtered, filters.Limit, filters.Offset),
		TotalCount: len(filtered),
		Limit:      filters.Limit,
		Offset:     filters.Offset,
	}
	return result, nil
}

// UpdateLinks overwrites links, failing without changes if any id is unknown
func (m *MockRepository) UpdateLinks(links map[string][]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkLinks(links); err != nil {
		return err
	}
	m.writeLinks(links)
	return nil
}

func (m *MockRepository) checkLinks(links map[string][]string) error {
	m.UpdateLinksCalled = true
	m.LastLinkUpdate = links
	if m.UpdateLinksErr != nil {
		return m.UpdateLinksErr
	}
	for id := range links {
		if _, ok := m.records[id]; !ok {
			return fmt.Errorf("record %s: %w", id, ErrNotFound)
		}
	}
	return nil
}

func (m *MockRepository) writeLinks(links map[string][]string) {
	for id, ids := range links {
		m.records[id].Links = append([]string(nil), ids...)
	}
}

// StartRun creates a running run
func (m *MockRepository) StartRun(patternTypes []string, lookbackDays int, dryRun bool) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.StartRunCalled = true
	if m.StartRunErr != nil {
		return 0, m.StartRunErr
	}
	id := m.nextRunID
	m.nextRunID++
	m.runs[id] = &Run{
		ID:           id,
		PatternTypes: append([]string(nil), patternTypes...),
		StartedAt:    time.Now().UTC(),
		LookbackDays: lookbackDays,
		DryRun:       dryRun,
		Status:       RunStatusRunning,
	}
	return id, nil
}

// CompleteRun records run totals
func (m *MockRepository) CompleteRun(runID int64, counts RunCounts) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.CompleteRunErr != nil {
		return m.CompleteRunErr
	}
	run, ok := m.runs[runID]
	if !ok {
		return fmt.Errorf("run %d: %w", runID, ErrNotFound)
	}
	now := time.Now().UTC()
	run.CompletedAt = &now
	run.Status = RunStatusCompleted
	run.RunCounts = counts
	return nil
}

// FailRun marks a run failed
func (m *MockRepository) FailRun(runID int64, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	run, ok := m.runs[runID]
	if !ok {
		return fmt.Errorf("run %d: %w", runID, ErrNotFound)
	}
	now := time.Now().UTC()
	run.CompletedAt = &now
	run.Status = RunStatusFailed
	run.ErrorMessage = message
	return nil
}

// ListRuns returns runs, newest first
func (m *MockRepository) ListRuns(limit int) ([]Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if limit <= 0 {
		limit = 20
	}
	runs := make([]Run, 0, len(m.runs))
	for _, r := range m.runs {
		runs = append(runs, *r)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].ID > runs[j].ID })
	if len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// GetRun returns a copy of a run
func (m *MockRepository) GetRun(runID int64) (*Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	run, ok := m.runs[runID]
	if !ok {
		return nil, fmt.Errorf("run %d: %w", runID, ErrNotFound)
	}
	copied := *run
	return &copied, nil
}

// SaveMatch stores a match, rejecting a reused charge or context record
func (m *MockRepository) SaveMatch(match *Match) error {
	return m.SaveMatchWithLinks(match, nil)
}

// SaveMatchWithLinks stores a match and writes links, or nothing when either fails
func (m *MockRepository) SaveMatchWithLinks(match *Match, links map[string][]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SaveMatchCalled = true
	if m.SaveMatchErr != nil {
		return m.SaveMatchErr
	}

	allocated := make(map[string]bool)
	for _, existing := range m.matches {
		if existing.ChargeID == match.ChargeID {
			return fmt.Errorf("charge %s: %w", match.ChargeID, ErrConflict)
		}
		for _, a := range existing.Allocations {
			allocated[a.ContextID] = true
		}
	}
	for _, a := range match.Allocations {
		if allocated[a.ContextID] {
			return fmt.Errorf("context record %s: %w", a.ContextID, ErrConflict)
		}
	}
	if len(links) > 0 {
		if err := m.checkLinks(links); err != nil {
			return err
		}
	}

	if match.ID == "" {
		match.ID = ulid.Make().String()
	}
	if match.CreatedAt.IsZero() {
		match.CreatedAt = time.Now().UTC()
	}
	if match.Source == "" {
		match.Source = MatchSourceEngine
	}
	copied := *match
	copied.Allocations = append([]Allocation(nil), match.Allocations...)
	m.matches[match.ID] = &copied
	m.writeLinks(links)
	return nil
}

// GetMatch returns a copy of a match
func (m *MockRepository) GetMatch(id string) (*Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	match, ok := m.matches[id]
	if !ok {
		return nil, fmt.Errorf("match %s: %w", id, ErrNotFound)
	}
	copied := *match
	return &copied, nil
}

// ListMatches filters matches, newest first
func (m *MockRepository) ListMatches(filters MatchFilters) ([]*Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	matches := make([]*Match, 0)
	for _, match := range m.matches {
		if filters.RunID != 0 && match.RunID != filters.RunID {
			continue
		}
		if filters.ChargeID != "" && match.ChargeID != filters.ChargeID {
			continue
		}
		if filters.Confidence != "" && match.Confidence != filters.Confidence {
			continue
		}
		copied := *match
		matches = append(matches, &copied)
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].ID > matches[j].ID })
	return page(matches, filters.Limit, filters.Offset), nil
}

// DeleteMatch removes a match
func (m *MockRepository) DeleteMatch(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.matches[id]; !ok {
		return fmt.Errorf("match %s: %w", id, ErrNotFound)
	}
	delete(m.matches, id)
	return nil
}

// SaveSuggestion stores a suggestion
func (m *MockRepository) SaveSuggestion(suggestion *Suggestion) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SaveSuggestionErr != nil {
		return m.SaveSuggestionErr
	}
	if suggestion.ID == "" {
		suggestion.ID = ulid.Make().String()
	}
	if suggestion.CreatedAt.IsZero() {
		suggestion.CreatedAt = time.Now().UTC()
	}
	if suggestion.Status == "" {
		suggestion.Status = SuggestionOpen
	}
	copied := *suggestion
	copied.CandidateIDs = append([]string(nil), suggestion.CandidateIDs...)
	m.suggestions[suggestion.ID] = &copied
	return nil
}

// GetSuggestion returns a copy of a suggestion
func (m *MockRepository) GetSuggestion(id string) (*Suggestion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.suggestions[id]
	if !ok {
		return nil, fmt.Errorf("suggestion %s: %w", id, ErrNotFound)
	}
	copied := *s
	return &copied, nil
}

// ListSuggestions filters suggestions, highest score first
func (m *MockRepository) ListSuggestions(filters SuggestionFilters) ([]*Suggestion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	suggestions := make([]*Suggestion, 0)
	for _, s := range m.suggestions {
		if filters.RunID != 0 && s.RunID != filters.RunID {
			continue
		}
		if filters.ChargeID != "" && s.ChargeID != filters.ChargeID {
			continue
		}
		if filters.Status != "" && s.Status != filters.Status {
			continue
		}
		copied := *s
		suggestions = append(suggestions, &copied)
	}
	sort.Slice(suggestions, func(i, j int) bool {
		if suggestions[i].Score != suggestions[j].Score {
			return suggestions[i].Score > suggestions[j].Score
		}
		return suggestions[i].ID < suggestions[j].ID
	})
	return page(suggestions, filters.Limit, filters.Offset), nil
}

// UpdateSuggestionStatus resolves a suggestion
func (m *MockRepository) UpdateSuggestionStatus(id, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.suggestions[id]
	if !ok {
		return fmt.Errorf("suggestion %s: %w", id, ErrNotFound)
	}
	s.Status = status
	s.ResolvedAt = nil
	if status != SuggestionOpen {
		now := time.Now().UTC()
		s.ResolvedAt = &now
	}
	return nil
}

// SupersedeOpenSuggestions marks open suggestions for chargeID as superseded
func (m *MockRepository) SupersedeOpenSuggestions(chargeID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	n := 0
	for _, s := range m.suggestions {
		if s.ChargeID == chargeID && s.Status == SuggestionOpen {
			s.Status = SuggestionSuperseded
			s.ResolvedAt = &now
			n++
		}
	}
	return n, nil
}

// GetStats computes statistics from the in-memory data
func (m *MockRepository) GetStats() (*Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.GetStatsErr != nil {
		return nil, m.GetStatsErr
	}
	stats := &Stats{
		RecordsByOrigin:     make(map[string]int),
		MatchesByConfidence: make(map[string]int),
		TotalRecords:        len(m.records),
		TotalMatches:        len(m.matches),
		TotalRuns:           len(m.runs),
	}
	for _, r := range m.records {
		if r.ContextOnly {
			stats.ContextRecords++
		} else {
			stats.ChargeRecords++
		}
		if len(r.Links) > 0 {
			stats.LinkedRecords++
		}
		stats.RecordsByOrigin[r.Origin]++
	}
	stats.UnlinkedRecords = stats.TotalRecords - stats.LinkedRecords
	for _, match := range m.matches {
		stats.MatchesByConfidence[match.Confidence]++
	}
	for _, s := range m.suggestions {
		if s.Status == SuggestionOpen {
			stats.OpenSuggestions++
		}
	}
	for _, r := range m.runs {
		if stats.LastRunAt == nil || r.StartedAt.After(*stats.LastRunAt) {
			t := r.StartedAt
			stats.LastRunAt = &t
		}
	}
	return stats, nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return make([]T, 0)
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

package storage

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a lookup by id finds nothing.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a match reuses a charge or context record
	// that already backs another match.
	ErrConflict = errors.New("already matched")
)

// Repository defines the complete storage interface.
// This interface allows swapping implementations (SQLite, PostgreSQL, etc.)
// and makes testing with mocks straightforward.
type Repository interface {
	RecordRepository
	RunRepository
	MatchRepository
	StatsRepository
	Close() error
}

// RecordRepository handles imported transaction records
type RecordRepository interface {
	// SaveRecords inserts or replaces records, keeping existing links unless
	// the incoming record carries links of its own
	SaveRecords(records []Record) error

	// GetRecord retrieves a record by id
	GetRecord(id string) (*Record, error)

	// ListRecords returns records matching the given filters with pagination
	ListRecords(filters RecordFilters) (*RecordListResult, error)

	// UpdateLinks overwrites the link field of several records in one transaction
	UpdateLinks(links map[string][]string) error
}

// RecordFilters defines filters for listing records
type RecordFilters struct {
	From        time.Time // inclusive, zero = unbounded
	To          time.Time // inclusive, zero = unbounded
	Origin      string    // empty = all
	ContextOnly *bool     // nil = both sides
	Linked      *bool     // nil = linked and unlinked
	Limit       int       // 0 = no limit
	Offset      int
}

// RecordListResult contains paginated record results
type RecordListResult struct {
	Records    []*Record `json:"records"`
	TotalCount int       `json:"total_count"`
	Limit      int       `json:"limit"`
	Offset     int       `json:"offset"`
}

// RunRepository handles reconciliation run tracking
type RunRepository interface {
	// StartRun records the start of a run and returns the run ID
	StartRun(patternTypes []string, lookbackDays int, dryRun bool) (int64, error)

	// CompleteRun records the totals of a finished run
	CompleteRun(runID int64, counts RunCounts) error

	// FailRun marks a run as failed
	FailRun(runID int64, message string) error

	// ListRuns returns recent runs, newest first
	ListRuns(limit int) ([]Run, error)

	// GetRun retrieves a run by ID
	GetRun(runID int64) (*Run, error)
}

// MatchRepository handles matches and suggestions
type MatchRepository interface {
	// SaveMatch stores a match and its allocations, assigning an ID if empty
	SaveMatch(match *Match) error

	// SaveMatchWithLinks stores a match and overwrites the link fields of its
	// records in one transaction. Nothing is written when either part fails.
	SaveMatchWithLinks(match *Match, links map[string][]string) error

	// GetMatch retrieves a match by ID
	GetMatch(id string) (*Match, error)

	// ListMatches returns matches, newest first
	ListMatches(filters MatchFilters) ([]*Match, error)

	// DeleteMatch removes a match and its allocations
	DeleteMatch(id string) error

	// SaveSuggestion stores a suggestion, assigning an ID if empty
	SaveSuggestion(suggestion *Suggestion) error

	// GetSuggestion retrieves a suggestion by ID
	GetSuggestion(id string) (*Suggestion, error)

	// ListSuggestions returns suggestions ordered by score, highest first
	ListSuggestions(filters SuggestionFilters) ([]*Suggestion, error)

	// UpdateSuggestionStatus resolves a suggestion
	UpdateSuggestionStatus(id, status string) error

	// SupersedeOpenSuggestions marks every open suggestion for chargeID as superseded
	SupersedeOpenSuggestions(chargeID string) (int, error)
}

// MatchFilters defines filters for listing matches
type MatchFilters struct {
	RunID      int64  // 0 = all
	ChargeID   string // empty = all
	Confidence string // empty = all
	Limit      int    // 0 = no limit
	Offset     int
}

// SuggestionFilters defines filters for listing suggestions
type SuggestionFilters struct {
	RunID    int64
	ChargeID string
	Status   string // empty = all
	Limit    int    // 0 = no limit
	Offset   int
}

// StatsRepository provides aggregate statistics
type StatsRepository interface {
	GetStats() (*Stats, error)
}

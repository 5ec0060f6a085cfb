package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// Record is a stored transaction. Amount is NaN and Date is zero when the
// stored values are missing or unreadable; the matcher reports those as invalid.
type Record struct {
	ID          string    `json:"id"`
	Date        time.Time `json:"date"`
	Amount      float64   `json:"amount"`
	Description string    `json:"description"`
	Beneficiary string    `json:"beneficiary,omitempty"`
	Origin      string    `json:"origin"`
	ContextOnly bool      `json:"context_only"`
	Links       []string  `json:"links"`
	Source      string    `json:"source,omitempty"` // import file or tool
	ImportedAt  time.Time `json:"imported_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Run status values
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// Run is one reconciliation run over one or more pattern types
type Run struct {
	ID           int64      `json:"id"`
	PatternTypes []string   `json:"pattern_types"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	LookbackDays int        `json:"lookback_days"`
	DryRun       bool       `json:"dry_run"`
	Status       string     `json:"status"`
	ErrorMessage string     `json:"error_message,omitempty"`
	RunCounts
}

// RunCounts are the totals recorded when a run completes
type RunCounts struct {
	ChargeRecords    int `json:"charge_records"`
	ContextRecords   int `json:"context_records"`
	AutoMatched      int `json:"auto_matched"`
	Suggested        int `json:"suggested"`
	UnmatchedCharges int `json:"unmatched_charges"`
	UnmatchedContext int `json:"unmatched_context"`
	InvalidRecords   int `json:"invalid_records"`
}

// Match source values
const (
	MatchSourceEngine   = "engine"
	MatchSourceAccepted = "accepted_suggestion"
)

// Match is a persisted link between a charge and its context records
type Match struct {
	ID               string          `json:"id"`
	RunID            int64           `json:"run_id,omitempty"`
	PatternType      string          `json:"pattern_type"`
	ChargeID         string          `json:"charge_id"`
	Cardinality      string          `json:"cardinality"`
	Confidence       string          `json:"confidence"`
	ChargeAmount     decimal.Decimal `json:"charge_amount"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	AmountDifference decimal.Decimal `json:"amount_difference"`
	MaxDayDiff       int             `json:"max_day_diff"`
	Score            float64         `json:"score"`
	Reason           string          `json:"reason"`
	Source           string          `json:"source"`
	CreatedAt        time.Time       `json:"created_at"`
	Allocations      []Allocation    `json:"allocations"`
}

// ContextIDs returns the context record ids in allocation order
func (m *Match) ContextIDs() []string {
	ids := make([]string, len(m.Allocations))
	for i, a := range m.Allocations {
		ids[i] = a.ContextID
	}
	return ids
}

// Allocation is the share of a match's charge attributed to one context record
type Allocation struct {
	ContextID string          `json:"context_id"`
	Amount    decimal.Decimal `json:"amount"`
	Allocated decimal.Decimal `json:"allocated"`
}

// Suggestion status values
const (
	SuggestionOpen       = "open"
	SuggestionAccepted   = "accepted"
	SuggestionDismissed  = "dismissed"
	SuggestionSuperseded = "superseded"
)

// Suggestion is a persisted candidate link awaiting review
type Suggestion struct {
	ID               string          `json:"id"`
	RunID            int64           `json:"run_id,omitempty"`
	PatternType      string          `json:"pattern_type"`
	ChargeID         string          `json:"charge_id"`
	CandidateIDs     []string        `json:"candidate_ids"`
	Cardinality      string          `json:"cardinality"`
	Source           string          `json:"source"`
	ChargeAmount     decimal.Decimal `json:"charge_amount"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	AmountDifference decimal.Decimal `json:"amount_difference"`
	MaxDayDiff       int             `json:"max_day_diff"`
	Score            float64         `json:"score"`
	Reason           string          `json:"reason"`
	Status           string          `json:"status"`
	CreatedAt        time.Time       `json:"created_at"`
	ResolvedAt       *time.Time      `json:"resolved_at,omitempty"`
}

// Stats contains aggregate statistics over the whole store
type Stats struct {
	TotalRecords        int            `json:"total_records"`
	ChargeRecords       int            `json:"charge_records"`
	ContextRecords      int            `json:"context_records"`
	LinkedRecords       int            `json:"linked_records"`
	UnlinkedRecords     int            `json:"unlinked_records"`
	RecordsByOrigin     map[string]int `json:"records_by_origin"`
	TotalMatches        int            `json:"total_matches"`
	MatchesByConfidence map[string]int `json:"matches_by_confidence"`
	OpenSuggestions     int            `json:"open_suggestions"`
	TotalRuns           int            `json:"total_runs"`
	LastRunAt           *time.Time     `json:"last_run_at,omitempty"`
}

package dto

import "time"

// HealthResponse is returned by the health check endpoint.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// NewHealthResponse creates a health response with current timestamp.
func NewHealthResponse() HealthResponse {
	return HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// RecordResponse represents a transaction record in API responses.
// Date is empty and Amount is nil when the stored value is unreadable.
type RecordResponse struct {
	ID          string   `json:"id"`
	Date        string   `json:"date,omitempty"`
	Amount      *float64 `json:"amount"`
	Description string   `json:"description"`
	Beneficiary string   `json:"beneficiary,omitempty"`
	Origin      string   `json:"origin"`
	ContextOnly bool     `json:"context_only"`
	Links       []string `json:"links"`
	Source      string   `json:"source,omitempty"`
	ImportedAt  string   `json:"imported_at"`
}

// RecordListResponse is returned when listing records.
type RecordListResponse struct {
	Records    []RecordResponse `json:"records"`
	TotalCount int              `json:"total_count"`
	Limit      int              `json:"limit"`
	Offset     int              `json:"offset"`
}

// RunResponse represents a reconciliation run in API responses.
type RunResponse struct {
	ID               int64    `json:"id"`
	PatternTypes     []string `json:"pattern_types"`
	StartedAt        string   `json:"started_at"`
	CompletedAt      string   `json:"completed_at,omitempty"`
	LookbackDays     int      `json:"lookback_days"`
	DryRun           bool     `json:"dry_run"`
	Status           string   `json:"status"`
	ErrorMessage     string   `json:"error_message,omitempty"`
	ChargeRecords    int      `json:"charge_records"`
	ContextRecords   int      `json:"context_records"`
	AutoMatched      int      `json:"auto_matched"`
	Suggested        int      `json:"suggested"`
	UnmatchedCharges int      `json:"unmatched_charges"`
	UnmatchedContext int      `json:"unmatched_context"`
	InvalidRecords   int      `json:"invalid_records"`
}

// RunListResponse is returned when listing runs.
type RunListResponse struct {
	Runs  []RunResponse `json:"runs"`
	Count int           `json:"count"`
}

// AllocationResponse is one context record's share of a matched charge.
type AllocationResponse struct {
	ContextID string `json:"context_id"`
	Amount    string `json:"amount"`
	Allocated string `json:"allocated"`
}

// MatchResponse represents a confirmed match in API responses.
// Money values are decimal strings.
type MatchResponse struct {
	ID               string               `json:"id"`
	RunID            int64                `json:"run_id,omitempty"`
	PatternType      string               `json:"pattern_type"`
	ChargeID         string               `json:"charge_id"`
	Cardinality      string               `json:"cardinality"`
	Confidence       string               `json:"confidence"`
	ChargeAmount     string               `json:"charge_amount"`
	TotalAmount      string               `json:"total_amount"`
	AmountDifference string               `json:"amount_difference"`
	MaxDayDiff       int                  `json:"max_day_diff"`
	Score            float64              `json:"score"`
	Reason           string               `json:"reason"`
	Source           string               `json:"source"`
	CreatedAt        string               `json:"created_at"`
	Allocations      []AllocationResponse `json:"allocations"`
}

// MatchListResponse is returned when listing matches.
type MatchListResponse struct {
	Matches []MatchResponse `json:"matches"`
	Count   int             `json:"count"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
}

// SuggestionResponse represents a suggestion awaiting review.
type SuggestionResponse struct {
	ID               string   `json:"id"`
	RunID            int64    `json:"run_id,omitempty"`
	PatternType      string   `json:"pattern_type"`
	ChargeID         string   `json:"charge_id"`
	CandidateIDs     []string `json:"candidate_ids"`
	Cardinality      string   `json:"cardinality"`
	Source           string   `json:"source"`
	ChargeAmount     string   `json:"charge_amount"`
	TotalAmount      string   `json:"total_amount"`
	AmountDifference string   `json:"amount_difference"`
	MaxDayDiff       int      `json:"max_day_diff"`
	Score            float64  `json:"score"`
	Reason           string   `json:"reason"`
	Status           string   `json:"status"`
	CreatedAt        string   `json:"created_at"`
	ResolvedAt       string   `json:"resolved_at,omitempty"`
}

// SuggestionListResponse is returned when listing suggestions.
type SuggestionListResponse struct {
	Suggestions []SuggestionResponse `json:"suggestions"`
	Count       int                  `json:"count"`
	Limit       int                  `json:"limit"`
	Offset      int                  `json:"offset"`
}

// MessageResponse is a generic acknowledgement.
type MessageResponse struct {
	Message string `json:"message"`
}

// StatsResponse contains aggregate statistics.
type StatsResponse struct {
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
	LastRunAt           string         `json:"last_run_at,omitempty"`
}

package dto

// StartReconcileRequest is the request body for starting a reconciliation job.
type StartReconcileRequest struct {
	PatternTypes []string `json:"pattern_types"` // empty = configured pattern types
	LookbackDays int      `json:"lookback_days"` // 0 = configured lookback
	DryRun       bool     `json:"dry_run"`
	Verbose      bool     `json:"verbose"`
}

// StartReconcileResponse is returned when a job is started.
type StartReconcileResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// ReconcileJobResponse represents a job's status.
type ReconcileJobResponse struct {
	JobID        string                    `json:"job_id"`
	Status       string                    `json:"status"`
	PatternTypes []string                  `json:"pattern_types"`
	LookbackDays int                       `json:"lookback_days"`
	DryRun       bool                      `json:"dry_run"`
	StartedAt    string                    `json:"started_at"`
	CompletedAt  *string                   `json:"completed_at,omitempty"`
	Progress     ReconcileProgressResponse `json:"progress"`
	Result       *ReconcileResultResponse  `json:"result,omitempty"`
	Error        *string                   `json:"error,omitempty"`
}

// ReconcileProgressResponse represents real-time progress.
type ReconcileProgressResponse struct {
	CurrentPhase   string `json:"current_phase"`
	CurrentPattern string `json:"current_pattern,omitempty"`
	PatternsDone   int    `json:"patterns_done"`
	PatternsTotal  int    `json:"patterns_total"`
	Matched        int    `json:"matched"`
	Suggested      int    `json:"suggested"`
	LastUpdate     string `json:"last_update"`
}

// ReconcileResultResponse represents the final totals of a job.
type ReconcileResultResponse struct {
	RunID            int64 `json:"run_id"`
	ChargeRecords    int   `json:"charge_records"`
	ContextRecords   int   `json:"context_records"`
	AutoMatched      int   `json:"auto_matched"`
	Suggested        int   `json:"suggested"`
	UnmatchedCharges int   `json:"unmatched_charges"`
	UnmatchedContext int   `json:"unmatched_context"`
	InvalidRecords   int   `json:"invalid_records"`
}

// ReconcileJobListResponse lists jobs.
type ReconcileJobListResponse struct {
	Jobs  []ReconcileJobResponse `json:"jobs"`
	Count int                    `json:"count"`
}

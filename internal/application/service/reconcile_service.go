package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/eshaffer321/ledger-reconcile/internal/application/reconcile"
	"github.com/eshaffer321/ledger-reconcile/internal/domain/matcher"
	"github.com/eshaffer321/ledger-reconcile/internal/infrastructure/config"
	"github.com/eshaffer321/ledger-reconcile/internal/infrastructure/logging"
)

// ErrRunInProgress is returned when a run is requested while another one
// is still working on the same store.
var ErrRunInProgress = errors.New("reconciliation already running")

// ErrJobNotFound is returned for unknown job IDs.
var ErrJobNotFound = errors.New("job not found")

// JobStatus represents the current state of a reconciliation job.
type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
	StatusCancelled JobStatus = "cancelled"
)

// Job staleness thresholds
const (
	// DefaultJobStaleThreshold is how long a job can go without progress updates
	// before being considered stale.
	DefaultJobStaleThreshold = 30 * time.Minute

	// DefaultJobMaxDuration is the maximum time a job can run before being
	// forcefully marked as failed.
	DefaultJobMaxDuration = 2 * time.Hour
)

// RunRequest holds parameters for starting a run.
type RunRequest struct {
	PatternTypes []string // empty = configured pattern types
	LookbackDays int      // 0 = configured lookback
	DryRun       bool
	Verbose      bool
}

// JobProgress holds real-time progress information.
type JobProgress struct {
	CurrentPhase   string // "pending", "reconciling", "completed", "failed", "cancelled"
	CurrentPattern string
	PatternsDone   int
	PatternsTotal  int
	Matched        int
	Suggested      int
	LastUpdate     time.Time
}

// Job represents a running or completed reconciliation job.
type Job struct {
	ID          string
	Status      JobStatus
	Request     RunRequest
	StartedAt   time.Time
	CompletedAt *time.Time
	Progress    JobProgress
	Result      *reconcile.Result
	Error       error
	cancelFunc  context.CancelFunc
}

// Runner executes one reconciliation run.
type Runner interface {
	Run(ctx context.Context, opts reconcile.Options) (*reconcile.Result, error)
}

// RunnerFactory builds a runner that logs to logger.
type RunnerFactory func(logger *slog.Logger) Runner

// ReconcileService runs reconciliation jobs in the background. Only one job
// runs at a time because every run rewrites link fields in the same store.
type ReconcileService struct {
	cfg       *config.Config
	newRunner RunnerFactory
	logger    *slog.Logger

	// Job management
	jobs      map[string]*Job
	jobsMutex sync.RWMutex
	activeJob string // ID of the job holding the store, guarded by jobsMutex

	// Background cleanup
	cleanupStop chan struct{}
	cleanupDone chan struct{}
}

// NewReconcileService creates a new reconcile service.
func NewReconcileService(cfg *config.Config, newRunner RunnerFactory, logger *slog.Logger) *ReconcileService {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ReconcileService{
		cfg:       cfg,
		newRunner: newRunner,
		logger:    logger,
		jobs:      make(map[string]*Job),
	}
}

// StartRun starts a new reconciliation job asynchronously.
// The passed context is not the parent of the job; use CancelJob to stop it.
func (s *ReconcileService) StartRun(_ context.Context, req RunRequest) (string, error) {
	if s.newRunner == nil {
		return "", errors.New("no runner configured")
	}
	patternTypes, err := s.resolvePatternTypes(req.PatternTypes)
	if err != nil {
		return "", err
	}
	if req.LookbackDays < 0 {
		return "", fmt.Errorf("lookback days cannot be negative: %d", req.LookbackDays)
	}
	if req.LookbackDays == 0 {
		req.LookbackDays = s.cfg.Reconcile.LookbackDays
	}
	req.PatternTypes = make([]string, len(patternTypes))
	for i, pt := range patternTypes {
		req.PatternTypes[i] = string(pt)
	}

	jobID := uuid.NewString()
	jobCtx, cancel := context.WithCancel(context.Background())
	now := time.Now()
	job := &Job{
		ID:         jobID,
		Status:     StatusPending,
		Request:    req,
		StartedAt:  now,
		cancelFunc: cancel,
		Progress: JobProgress{
			CurrentPhase:  "pending",
			PatternsTotal: len(patternTypes),
			LastUpdate:    now,
		},
	}

	s.jobsMutex.Lock()
	if s.activeJob != "" {
		s.jobsMutex.Unlock()
		cancel()
		return "", ErrRunInProgress
	}
	s.activeJob = jobID
	s.jobs[jobID] = job
	s.jobsMutex.Unlock()

	go s.runJob(jobCtx, job.ID, req, patternTypes)

	s.logger.Info("reconcile job started",
		"job_id", jobID,
		"pattern_types", req.PatternTypes,
		"dry_run", req.DryRun,
		"lookback_days", req.LookbackDays,
	)

	return jobID, nil
}

func (s *ReconcileService) resolvePatternTypes(requested []string) ([]matcher.PatternType, error) {
	if len(requested) == 0 {
		types := s.cfg.Reconcile.EnabledPatternTypes()
		if len(types) == 0 {
			return nil, errors.New("no pattern types configured")
		}
		return types, nil
	}
	types := make([]matcher.PatternType, len(requested))
	for i, name := range requested {
		if _, ok := s.cfg.Reconcile.Patterns[name]; !ok {
			return nil, fmt.Errorf("%w: %q", matcher.ErrUnknownPatternType, name)
		}
		types[i] = matcher.PatternType(name)
	}
	return types, nil
}

// GetJob returns a snapshot of a job.
func (s *ReconcileService) GetJob(jobID string) (*Job, error) {
	s.jobsMutex.RLock()
	defer s.jobsMutex.RUnlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	snapshot := *job
	return &snapshot, nil
}

// ListActiveJobs returns all running or pending jobs.
func (s *ReconcileService) ListActiveJobs() []*Job {
	return s.listJobs(func(j *Job) bool {
		return j.Status == StatusPending || j.Status == StatusRunning
	})
}

// ListAllJobs returns every job still held in memory, newest first.
func (s *ReconcileService) ListAllJobs() []*Job {
	return s.listJobs(func(*Job) bool { return true })
}

func (s *ReconcileService) listJobs(keep func(*Job) bool) []*Job {
	s.jobsMutex.RLock()
	defer s.jobsMutex.RUnlock()

	jobs := make([]*Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		if keep(job) {
			snapshot := *job
			jobs = append(jobs, &snapshot)
		}
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].StartedAt.After(jobs[j].StartedAt) })
	return jobs
}

// CancelJob cancels a pending or running job.
func (s *ReconcileService) CancelJob(jobID string) error {
	s.jobsMutex.Lock()
	defer s.jobsMutex.Unlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}

	if job.Status != StatusPending && job.Status != StatusRunning {
		return fmt.Errorf("job cannot be cancelled: status=%s", job.Status)
	}

	job.cancelFunc()
	job.Status = StatusCancelled
	now := time.Now()
	job.CompletedAt = &now
	job.Progress.CurrentPhase = "cancelled"
	job.Progress.LastUpdate = now

	s.logger.Info("reconcile job cancelled", "job_id", jobID)
	return nil
}

// runJob executes the job in a background goroutine.
func (s *ReconcileService) runJob(ctx context.Context, jobID string, req RunRequest, patternTypes []matcher.PatternType) {
	defer s.releaseStore(jobID)

	s.updateJob(jobID, func(job *Job) {
		job.Status = StatusRunning
		job.Progress.CurrentPhase = "reconciling"
	})

	loggingCfg := s.cfg.Observability.Logging
	if req.Verbose {
		loggingCfg.Level = "debug"
	}
	runner := s.newRunner(logging.NewLoggerWithSystem(loggingCfg, "reconcile"))

	opts := reconcile.Options{
		PatternTypes: patternTypes,
		LookbackDays: req.LookbackDays,
		DryRun:       req.DryRun,
		ProgressCallback: func(p reconcile.Progress) {
			s.updateJob(jobID, func(job *Job) {
				job.Progress.CurrentPattern = string(p.PatternType)
				job.Progress.PatternsDone = p.Completed
				job.Progress.PatternsTotal = p.Total
				job.Progress.Matched += p.Stats.ChargesMatched
				job.Progress.Suggested += p.Stats.ChargesSuggested
			})
		},
	}

	result, err := runner.Run(ctx, opts)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			// Already marked as cancelled or stale
			return
		}
		s.failJob(jobID, err)
		return
	}

	s.completeJob(jobID, result)
}

// updateJob applies fn to a job that is still pending or running.
func (s *ReconcileService) updateJob(jobID string, fn func(*Job)) {
	s.jobsMutex.Lock()
	defer s.jobsMutex.Unlock()

	if job, exists := s.jobs[jobID]; exists && (job.Status == StatusPending || job.Status == StatusRunning) {
		fn(job)
		job.Progress.LastUpdate = time.Now()
	}
}

// completeJob marks a job as completed with results.
func (s *ReconcileService) completeJob(jobID string, result *reconcile.Result) {
	s.jobsMutex.Lock()
	defer s.jobsMutex.Unlock()

	if job, exists := s.jobs[jobID]; exists && job.Status == StatusRunning {
		now := time.Now()
		job.Status = StatusCompleted
		job.CompletedAt = &now
		job.Result = result
		job.Progress.CurrentPhase = "completed"
		job.Progress.Matched = result.Counts.AutoMatched
		job.Progress.Suggested = result.Counts.Suggested
		job.Progress.LastUpdate = now
		s.logger.Info("reconcile job completed",
			"job_id", jobID,
			"run_id", result.RunID,
			"matched", result.Counts.AutoMatched,
			"suggested", result.Counts.Suggested,
			"unmatched_charges", result.Counts.UnmatchedCharges,
		)
	}
}

// failJob marks a job as failed with an error.
func (s *ReconcileService) failJob(jobID string, err error) {
	s.jobsMutex.Lock()
	defer s.jobsMutex.Unlock()

	if job, exists := s.jobs[jobID]; exists && job.Status == StatusRunning {
		now := time.Now()
		job.Status = StatusFailed
		job.CompletedAt = &now
		job.Error = err
		job.Progress.CurrentPhase = "failed"
		job.Progress.LastUpdate = now
		s.logger.Error("reconcile job failed", "job_id", jobID, "error", err)
	}
}

// releaseStore frees the store if jobID still holds it.
func (s *ReconcileService) releaseStore(jobID string) {
	s.jobsMutex.Lock()
	defer s.jobsMutex.Unlock()

	if s.activeJob == jobID {
		s.activeJob = ""
	}
}

// CleanupOldJobs removes finished jobs older than maxAge.
func (s *ReconcileService) CleanupOldJobs(maxAge time.Duration) int {
	s.jobsMutex.Lock()
	defer s.jobsMutex.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0

	for id, job := range s.jobs {
		if job.Status == StatusCompleted || job.Status == StatusFailed || job.Status == StatusCancelled {
			if job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
				delete(s.jobs, id)
				removed++
			}
		}
	}

	if removed > 0 {
		s.logger.Debug("cleaned up old reconcile jobs", "removed", removed)
	}

	return removed
}

// MarkStaleJobsAsFailed finds jobs that appear to be stuck and marks them as failed.
// A job is considered stale if:
// 1. It has been running longer than maxDuration, OR
// 2. Its Progress.LastUpdate is older than staleThreshold
//
// A stale job also gives up the store so new runs can start.
func (s *ReconcileService) MarkStaleJobsAsFailed(staleThreshold, maxDuration time.Duration) int {
	s.jobsMutex.Lock()
	defer s.jobsMutex.Unlock()

	now := time.Now()
	marked := 0

	for id, job := range s.jobs {
		if job.Status != StatusRunning && job.Status != StatusPending {
			continue
		}

		reason := ""
		switch {
		case now.Sub(job.StartedAt) > maxDuration:
			reason = fmt.Sprintf("exceeded max duration of %v (started %v ago)", maxDuration, now.Sub(job.StartedAt).Round(time.Second))
		case now.Sub(job.Progress.LastUpdate) > staleThreshold:
			reason = fmt.Sprintf("no progress update for %v (threshold: %v)", now.Sub(job.Progress.LastUpdate).Round(time.Second), staleThreshold)
		default:
			continue
		}

		if job.cancelFunc != nil {
			job.cancelFunc()
		}
		lastUpdate := job.Progress.LastUpdate
		job.Status = StatusFailed
		job.CompletedAt = &now
		job.Error = fmt.Errorf("job marked as stale: %s", reason)
		job.Progress.CurrentPhase = "failed"
		job.Progress.LastUpdate = now

		if s.activeJob == id {
			s.activeJob = ""
		}

		s.logger.Warn("marked stale job as failed",
			"job_id", id,
			"reason", reason,
			"started_at", job.StartedAt,
			"last_update", lastUpdate,
		)
		marked++
	}

	return marked
}

// IsJobStale checks if a specific job is considered stale.
func (s *ReconcileService) IsJobStale(jobID string, staleThreshold, maxDuration time.Duration) bool {
	s.jobsMutex.RLock()
	defer s.jobsMutex.RUnlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return false
	}

	if job.Status != StatusRunning && job.Status != StatusPending {
		return false
	}

	now := time.Now()
	return now.Sub(job.StartedAt) > maxDuration || now.Sub(job.Progress.LastUpdate) > staleThreshold
}

// StartBackgroundCleanup starts a background goroutine that periodically:
// 1. Marks stale jobs as failed
// 2. Cleans up old completed jobs
//
// The cleanup runs every checkInterval. Call StopBackgroundCleanup to stop it.
func (s *ReconcileService) StartBackgroundCleanup(checkInterval time.Duration) {
	s.cleanupStop = make(chan struct{})
	s.cleanupDone = make(chan struct{})

	go func() {
		defer close(s.cleanupDone)

		ticker := time.NewTicker(checkInterval)
		defer ticker.Stop()

		s.logger.Info("background job cleanup started",
			"check_interval", checkInterval,
			"stale_threshold", DefaultJobStaleThreshold,
			"max_duration", DefaultJobMaxDuration,
		)

		for {
			select {
			case <-s.cleanupStop:
				s.logger.Info("background job cleanup stopped")
				return
			case <-ticker.C:
				if marked := s.MarkStaleJobsAsFailed(DefaultJobStaleThreshold, DefaultJobMaxDuration); marked > 0 {
					s.logger.Info("marked stale jobs as failed", "count", marked)
				}
				// Keep finished jobs for a day
				s.CleanupOldJobs(24 * time.Hour)
			}
		}
	}()
}

// StopBackgroundCleanup stops the background cleanup goroutine.
// This method blocks until the cleanup goroutine has fully stopped.
func (s *ReconcileService) StopBackgroundCleanup() {
	if s.cleanupStop == nil {
		return
	}

	close(s.cleanupStop)
	<-s.cleanupDone
}

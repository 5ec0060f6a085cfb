package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/eshaffer321/ledger-reconcile/internal/api/dto"
	"github.com/eshaffer321/ledger-reconcile/internal/application/service"
)

// ReconcileHandler handles reconciliation job HTTP requests.
type ReconcileHandler struct {
	*Base
	reconcileService *service.ReconcileService
}

// NewReconcileHandler creates a new reconcile handler.
func NewReconcileHandler(reconcileService *service.ReconcileService) *ReconcileHandler {
	return &ReconcileHandler{
		Base:             &Base{},
		reconcileService: reconcileService,
	}
}

// StartRun handles POST /api/reconcile - starts a new reconciliation job.
// An empty body runs every configured pattern type.
func (h *ReconcileHandler) StartRun(w http.ResponseWriter, r *http.Request) {
	var req dto.StartReconcileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid request body"))
		return
	}

	jobID, err := h.reconcileService.StartRun(r.Context(), service.RunRequest{
		PatternTypes: req.PatternTypes,
		LookbackDays: req.LookbackDays,
		DryRun:       req.DryRun,
		Verbose:      req.Verbose,
	})
	if err != nil {
		if errors.Is(err, service.ErrRunInProgress) {
			h.WriteError(w, http.StatusConflict, dto.ConflictError(err.Error()))
			return
		}
		h.WriteError(w, http.StatusBadRequest, dto.ValidationError(err.Error()))
		return
	}

	response := dto.StartReconcileResponse{
		JobID:  jobID,
		Status: string(service.StatusPending),
	}

	h.WriteJSON(w, http.StatusAccepted, response)
}

// GetStatus handles GET /api/reconcile/{jobId} - gets job status.
func (h *ReconcileHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	job, err := h.reconcileService.GetJob(chi.URLParam(r, "jobId"))
	if err != nil {
		h.WriteError(w, http.StatusNotFound, dto.NotFoundError("reconcile job"))
		return
	}

	h.WriteJSON(w, http.StatusOK, toJobResponse(job))
}

// ListActive handles GET /api/reconcile/active - lists pending and running jobs.
func (h *ReconcileHandler) ListActive(w http.ResponseWriter, r *http.Request) {
	h.writeJobs(w, h.reconcileService.ListActiveJobs())
}

// ListAll handles GET /api/reconcile - lists all jobs.
func (h *ReconcileHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	h.writeJobs(w, h.reconcileService.ListAllJobs())
}

// Cancel handles DELETE /api/reconcile/{jobId} - cancels a job.
func (h *ReconcileHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	err := h.reconcileService.CancelJob(chi.URLParam(r, "jobId"))
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			h.WriteError(w, http.StatusNotFound, dto.NotFoundError("reconcile job"))
			return
		}
		h.WriteError(w, http.StatusConflict, dto.ConflictError(err.Error()))
		return
	}

	h.WriteJSON(w, http.StatusOK, dto.MessageResponse{Message: "reconcile job cancelled"})
}

func (h *ReconcileHandler) writeJobs(w http.ResponseWriter, jobs []*service.Job) {
	response := dto.ReconcileJobListResponse{
		Jobs:  make([]dto.ReconcileJobResponse, 0, len(jobs)),
		Count: len(jobs),
	}
	for _, job := range jobs {
		response.Jobs = append(response.Jobs, toJobResponse(job))
	}
	h.WriteJSON(w, http.StatusOK, response)
}

func toJobResponse(job *service.Job) dto.ReconcileJobResponse {
	response := dto.ReconcileJobResponse{
		JobID:        job.ID,
		Status:       string(job.Status),
		PatternTypes: job.Request.PatternTypes,
		LookbackDays: job.Request.LookbackDays,
		DryRun:       job.Request.DryRun,
		StartedAt:    job.StartedAt.Format(time.RFC3339),
		Progress: dto.ReconcileProgressResponse{
			CurrentPhase:   job.Progress.CurrentPhase,
			CurrentPattern: job.Progress.CurrentPattern,
			PatternsDone:   job.Progress.PatternsDone,
			PatternsTotal:  job.Progress.PatternsTotal,
			Matched:        job.Progress.Matched,
			Suggested:      job.Progress.Suggested,
			LastUpdate:     job.Progress.LastUpdate.Format(time.RFC3339),
		},
	}

	if job.CompletedAt != nil {
		completedAt := job.CompletedAt.Format(time.RFC3339)
		response.CompletedAt = &completedAt
	}

	if job.Result != nil {
		counts := job.Result.Counts
		response.Result = &dto.ReconcileResultResponse{
			RunID:            job.Result.RunID,
			ChargeRecords:    counts.ChargeRecords,
			ContextRecords:   counts.ContextRecords,
			AutoMatched:      counts.AutoMatched,
			Suggested:        counts.Suggested,
			UnmatchedCharges: counts.UnmatchedCharges,
			UnmatchedContext: counts.UnmatchedContext,
			InvalidRecords:   counts.InvalidRecords,
		}
	}

	if job.Error != nil {
		errStr := job.Error.Error()
		response.Error = &errStr
	}

	return response
}

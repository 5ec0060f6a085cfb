package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/eshaffer321/ledger-reconcile/internal/api/dto"
	"github.com/eshaffer321/ledger-reconcile/internal/infrastructure/storage"
)

// RunsHandler handles reconciliation run HTTP requests.
type RunsHandler struct {
	*Base
}

// NewRunsHandler creates a new runs handler.
func NewRunsHandler(repo storage.Repository) *RunsHandler {
	return &RunsHandler{
		Base: NewBase(repo),
	}
}

// List handles GET /api/runs - returns recent runs, newest first.
func (h *RunsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := ParseIntParam(r, "limit", 20)

	runs, err := h.repo.ListRuns(limit)
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	response := dto.RunListResponse{
		Runs:  make([]dto.RunResponse, 0, len(runs)),
		Count: len(runs),
	}

	for _, run := range runs {
		response.Runs = append(response.Runs, toRunResponse(run))
	}

	h.WriteJSON(w, http.StatusOK, response)
}

// Get handles GET /api/runs/{id} - returns a single run by ID.
func (h *RunsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid run ID"))
		return
	}

	run, err := h.repo.GetRun(id)
	if err != nil {
		h.WriteLookupError(w, err, "run")
		return
	}

	h.WriteJSON(w, http.StatusOK, toRunResponse(*run))
}

func toRunResponse(run storage.Run) dto.RunResponse {
	response := dto.RunResponse{
		ID:               run.ID,
		PatternTypes:     run.PatternTypes,
		StartedAt:        run.StartedAt.Format(time.RFC3339),
		LookbackDays:     run.LookbackDays,
		DryRun:           run.DryRun,
		Status:           run.Status,
		ErrorMessage:     run.ErrorMessage,
		ChargeRecords:    run.ChargeRecords,
		ContextRecords:   run.ContextRecords,
		AutoMatched:      run.AutoMatched,
		Suggested:        run.Suggested,
		UnmatchedCharges: run.UnmatchedCharges,
		UnmatchedContext: run.UnmatchedContext,
		InvalidRecords:   run.InvalidRecords,
	}
	if run.CompletedAt != nil {
		response.CompletedAt = run.CompletedAt.Format(time.RFC3339)
	}
	return response
}

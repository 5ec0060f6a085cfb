package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/eshaffer321/ledger-reconcile/internal/api/dto"
	"github.com/eshaffer321/ledger-reconcile/internal/application/reconcile"
	"github.com/eshaffer321/ledger-reconcile/internal/infrastructure/storage"
)

// Reviewer applies manual review decisions. *reconcile.Orchestrator
// implements it.
type Reviewer interface {
	AcceptSuggestion(ctx context.Context, id string) (*storage.Match, error)
	DismissSuggestion(ctx context.Context, id string) error
	UnlinkMatch(ctx context.Context, matchID string) error
}

// MatchesHandler handles match-related HTTP requests.
type MatchesHandler struct {
	*Base
	reviewer Reviewer
}

// NewMatchesHandler creates a new matches handler. A nil reviewer makes
// Unlink answer 501.
func NewMatchesHandler(repo storage.Repository, reviewer Reviewer) *MatchesHandler {
	return &MatchesHandler{
		Base:     NewBase(repo),
		reviewer: reviewer,
	}
}

// List handles GET /api/matches - returns matches, newest first.
// Query params: run_id, charge_id, confidence, limit, offset
func (h *MatchesHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	filters := storage.MatchFilters{
		ChargeID:   r.URL.Query().Get("charge_id"),
		Confidence: r.URL.Query().Get("confidence"),
		Limit:      limit,
		Offset:     offset,
	}
	if runID := r.URL.Query().Get("run_id"); runID != "" {
		id, err := strconv.ParseInt(runID, 10, 64)
		if err != nil {
			h.WriteError(w, http.StatusBadRequest, dto.ValidationError("run_id must be a number"))
			return
		}
		filters.RunID = id
	}

	matches, err := h.repo.ListMatches(filters)
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	response := dto.MatchListResponse{
		Matches: make([]dto.MatchResponse, 0, len(matches)),
		Count:   len(matches),
		Limit:   limit,
		Offset:  offset,
	}
	for _, match := range matches {
		response.Matches = append(response.Matches, toMatchResponse(match))
	}

	h.WriteJSON(w, http.StatusOK, response)
}

// Get handles GET /api/matches/{id} - returns a match with its allocations.
func (h *MatchesHandler) Get(w http.ResponseWriter, r *http.Request) {
	match, err := h.repo.GetMatch(chi.URLParam(r, "id"))
	if err != nil {
		h.WriteLookupError(w, err, "match")
		return
	}

	h.WriteJSON(w, http.StatusOK, toMatchResponse(match))
}

// Unlink handles DELETE /api/matches/{id} - removes a match and clears the
// links it wrote.
func (h *MatchesHandler) Unlink(w http.ResponseWriter, r *http.Request) {
	if h.reviewer == nil {
		h.WriteError(w, http.StatusNotImplemented, dto.NewAPIError("not_implemented", "review is not available"))
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.reviewer.UnlinkMatch(r.Context(), id); err != nil {
		h.WriteLookupError(w, err, "match")
		return
	}

	h.WriteJSON(w, http.StatusOK, dto.MessageResponse{Message: "match unlinked"})
}

// writeReviewError maps review failures onto status codes.
func (b *Base) writeReviewError(w http.ResponseWriter, err error, resource string) {
	if errors.Is(err, reconcile.ErrSuggestionConflict) {
		b.WriteError(w, http.StatusConflict, dto.ConflictError(err.Error()))
		return
	}
	b.WriteLookupError(w, err, resource)
}

func toMatchResponse(match *storage.Match) dto.MatchResponse {
	response := dto.MatchResponse{
		ID:               match.ID,
		RunID:            match.RunID,
		PatternType:      match.PatternType,
		ChargeID:         match.ChargeID,
		Cardinality:      match.Cardinality,
		Confidence:       match.Confidence,
		ChargeAmount:     match.ChargeAmount.StringFixed(2),
		TotalAmount:      match.TotalAmount.StringFixed(2),
		AmountDifference: match.AmountDifference.StringFixed(2),
		MaxDayDiff:       match.MaxDayDiff,
		Score:            match.Score,
		Reason:           match.Reason,
		Source:           match.Source,
		CreatedAt:        match.CreatedAt.Format(time.RFC3339),
		Allocations:      make([]dto.AllocationResponse, 0, len(match.Allocations)),
	}
	for _, a := range match.Allocations {
		response.Allocations = append(response.Allocations, dto.AllocationResponse{
			ContextID: a.ContextID,
			Amount:    a.Amount.StringFixed(2),
			Allocated: a.Allocated.StringFixed(2),
		})
	}
	return response
}

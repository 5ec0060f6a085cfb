package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/eshaffer321/ledger-reconcile/internal/api/dto"
	"github.com/eshaffer321/ledger-reconcile/internal/infrastructure/storage"
)

// SuggestionsHandler handles suggestion review HTTP requests.
type SuggestionsHandler struct {
	*Base
	reviewer Reviewer
}

// NewSuggestionsHandler creates a new suggestions handler.
func NewSuggestionsHandler(repo storage.Repository, reviewer Reviewer) *SuggestionsHandler {
	return &SuggestionsHandler{
		Base:     NewBase(repo),
		reviewer: reviewer,
	}
}

// List handles GET /api/suggestions - returns suggestions, best score first.
// Query params: status (default open, "all" for every status), run_id, charge_id, limit, offset
func (h *SuggestionsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	filters := storage.SuggestionFilters{
		ChargeID: r.URL.Query().Get("charge_id"),
		Status:   r.URL.Query().Get("status"),
		Limit:    limit,
		Offset:   offset,
	}
	switch filters.Status {
	case "":
		filters.Status = storage.SuggestionOpen
	case "all":
		filters.Status = ""
	case storage.SuggestionOpen, storage.SuggestionAccepted, storage.SuggestionDismissed, storage.SuggestionSuperseded:
	default:
		h.WriteError(w, http.StatusBadRequest, dto.ValidationError("unknown status: "+filters.Status))
		return
	}
	if runID := r.URL.Query().Get("run_id"); runID != "" {
		id, err := strconv.ParseInt(runID, 10, 64)
		if err != nil {
			h.WriteError(w, http.StatusBadRequest, dto.ValidationError("run_id must be a number"))
			return
		}
		filters.RunID = id
	}

	suggestions, err := h.repo.ListSuggestions(filters)
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	response := dto.SuggestionListResponse{
		Suggestions: make([]dto.SuggestionResponse, 0, len(suggestions)),
		Count:       len(suggestions),
		Limit:       limit,
		Offset:      offset,
	}
	for _, s := range suggestions {
		response.Suggestions = append(response.Suggestions, toSuggestionResponse(s))
	}

	h.WriteJSON(w, http.StatusOK, response)
}

// Accept handles POST /api/suggestions/{id}/accept - turns a suggestion into a match.
func (h *SuggestionsHandler) Accept(w http.ResponseWriter, r *http.Request) {
	if h.reviewer == nil {
		h.WriteError(w, http.StatusNotImplemented, dto.NewAPIError("not_implemented", "review is not available"))
		return
	}

	match, err := h.reviewer.AcceptSuggestion(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeReviewError(w, err, "suggestion")
		return
	}

	h.WriteJSON(w, http.StatusCreated, toMatchResponse(match))
}

// Dismiss handles POST /api/suggestions/{id}/dismiss.
func (h *SuggestionsHandler) Dismiss(w http.ResponseWriter, r *http.Request) {
	if h.reviewer == nil {
		h.WriteError(w, http.StatusNotImplemented, dto.NewAPIError("not_implemented", "review is not available"))
		return
	}

	if err := h.reviewer.DismissSuggestion(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeReviewError(w, err, "suggestion")
		return
	}

	h.WriteJSON(w, http.StatusOK, dto.MessageResponse{Message: "suggestion dismissed"})
}

func toSuggestionResponse(s *storage.Suggestion) dto.SuggestionResponse {
	response := dto.SuggestionResponse{
		ID:               s.ID,
		RunID:            s.RunID,
		PatternType:      s.PatternType,
		ChargeID:         s.ChargeID,
		CandidateIDs:     s.CandidateIDs,
		Cardinality:      s.Cardinality,
		Source:           s.Source,
		ChargeAmount:     s.ChargeAmount.StringFixed(2),
		TotalAmount:      s.TotalAmount.StringFixed(2),
		AmountDifference: s.AmountDifference.StringFixed(2),
		MaxDayDiff:       s.MaxDayDiff,
		Score:            s.Score,
		Reason:           s.Reason,
		Status:           s.Status,
		CreatedAt:        s.CreatedAt.Format(time.RFC3339),
	}
	if response.CandidateIDs == nil {
		response.CandidateIDs = []string{}
	}
	if s.ResolvedAt != nil {
		response.ResolvedAt = s.ResolvedAt.Format(time.RFC3339)
	}
	return response
}

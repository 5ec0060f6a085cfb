package handlers

import (
	"net/http"
	"time"

	"github.com/eshaffer321/ledger-reconcile/internal/api/dto"
	"github.com/eshaffer321/ledger-reconcile/internal/infrastructure/storage"
)

// StatsHandler handles stats-related HTTP requests.
type StatsHandler struct {
	*Base
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(repo storage.Repository) *StatsHandler {
	return &StatsHandler{
		Base: NewBase(repo),
	}
}

// Get handles GET /api/stats - returns aggregate statistics.
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	stats, err := h.repo.GetStats()
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	response := dto.StatsResponse{
		TotalRecords:        stats.TotalRecords,
		ChargeRecords:       stats.ChargeRecords,
		ContextRecords:      stats.ContextRecords,
		LinkedRecords:       stats.LinkedRecords,
		UnlinkedRecords:     stats.UnlinkedRecords,
		RecordsByOrigin:     stats.RecordsByOrigin,
		TotalMatches:        stats.TotalMatches,
		MatchesByConfidence: stats.MatchesByConfidence,
		OpenSuggestions:     stats.OpenSuggestions,
		TotalRuns:           stats.TotalRuns,
	}
	if stats.LastRunAt != nil {
		response.LastRunAt = stats.LastRunAt.Format(time.RFC3339)
	}

	h.WriteJSON(w, http.StatusOK, response)
}

package handlers

import (
	"net/http"

	"github.com/eshaffer321/ledger-reconcile/internal/api/dto"
	"github.com/eshaffer321/ledger-reconcile/internal/infrastructure/storage"
)

// HealthHandler handles health check requests.
type HealthHandler struct {
	*Base
}

// NewHealthHandler creates a new health handler. A nil repo skips the
// database check.
func NewHealthHandler(repo storage.Repository) *HealthHandler {
	return &HealthHandler{Base: NewBase(repo)}
}

// ServeHTTP handles the health check request.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	response := dto.NewHealthResponse()

	if h.repo != nil {
		if _, err := h.repo.GetStats(); err != nil {
			response.Status = "degraded"
			h.WriteJSON(w, http.StatusServiceUnavailable, response)
			return
		}
	}

	h.WriteJSON(w, http.StatusOK, response)
}

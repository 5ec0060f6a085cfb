package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/ledger-reconcile/internal/api/dto"
	"github.com/eshaffer321/ledger-reconcile/internal/api/handlers"
	"github.com/eshaffer321/ledger-reconcile/internal/infrastructure/storage"
)

func TestRunsHandler_List(t *testing.T) {
	t.Run("returns empty list when no runs", func(t *testing.T) {
		handler := handlers.NewRunsHandler(storage.NewMockRepository())

		rec := httptest.NewRecorder()
		handler.List(rec, httptest.NewRequest(http.MethodGet, "/api/runs", nil))

		assert.Equal(t, http.StatusOK, rec.Code)

		var response dto.RunListResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
		assert.Empty(t, response.Runs)
		assert.Equal(t, 0, response.Count)
	})

	t.Run("returns runs newest first", func(t *testing.T) {
		repo := storage.NewMockRepository()

		runID1, _ := repo.StartRun([]string{"amazon"}, 30, false)
		_ = repo.CompleteRun(runID1, storage.RunCounts{ChargeRecords: 4, ContextRecords: 5, AutoMatched: 3})

		runID2, _ := repo.StartRun([]string{"amazon", "paypal"}, 7, true)
		_ = repo.CompleteRun(runID2, storage.RunCounts{ChargeRecords: 2, Suggested: 1})

		handler := handlers.NewRunsHandler(repo)

		rec := httptest.NewRecorder()
		handler.List(rec, httptest.NewRequest(http.MethodGet, "/api/runs", nil))

		var response dto.RunListResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
		require.Equal(t, 2, response.Count)
		assert.Equal(t, runID2, response.Runs[0].ID)
		assert.True(t, response.Runs[0].DryRun)
		assert.Equal(t, []string{"amazon", "paypal"}, response.Runs[0].PatternTypes)
		assert.Equal(t, 3, response.Runs[1].AutoMatched)
	})

	t.Run("respects limit parameter", func(t *testing.T) {
		repo := storage.NewMockRepository()
		for i := 0; i < 5; i++ {
			runID, _ := repo.StartRun([]string{"amazon"}, 30, false)
			_ = repo.CompleteRun(runID, storage.RunCounts{})
		}

		handler := handlers.NewRunsHandler(repo)

		rec := httptest.NewRecorder()
		handler.List(rec, httptest.NewRequest(http.MethodGet, "/api/runs?limit=3", nil))

		var response dto.RunListResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
		assert.Len(t, response.Runs, 3)
	})
}

func TestRunsHandler_Get(t *testing.T) {
	t.Run("returns run by ID", func(t *testing.T) {
		repo := storage.NewMockRepository()
		runID, _ := repo.StartRun([]string{"amazon"}, 30, false)
		_ = repo.CompleteRun(runID, storage.RunCounts{ChargeRecords: 4, UnmatchedCharges: 1})

		handler := handlers.NewRunsHandler(repo)

		rec := httptest.NewRecorder()
		handler.Get(rec, newRequest(http.MethodGet, "/api/runs/1", map[string]string{"id": "1"}))

		assert.Equal(t, http.StatusOK, rec.Code)

		var response dto.RunResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
		assert.Equal(t, runID, response.ID)
		assert.Equal(t, storage.RunStatusCompleted, response.Status)
		assert.Equal(t, 1, response.UnmatchedCharges)
		assert.NotEmpty(t, response.CompletedAt)
	})

	t.Run("returns 400 for invalid ID", func(t *testing.T) {
		handler := handlers.NewRunsHandler(storage.NewMockRepository())

		rec := httptest.NewRecorder()
		handler.Get(rec, newRequest(http.MethodGet, "/api/runs/abc", map[string]string{"id": "abc"}))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("returns 404 for unknown run", func(t *testing.T) {
		handler := handlers.NewRunsHandler(storage.NewMockRepository())

		rec := httptest.NewRecorder()
		handler.Get(rec, newRequest(http.MethodGet, "/api/runs/99", map[string]string{"id": "99"}))

		assert.Equal(t, http.StatusNotFound, rec.Code)

		var apiErr dto.APIError
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&apiErr))
		assert.Equal(t, dto.ErrCodeNotFound, apiErr.Code)
	})
}

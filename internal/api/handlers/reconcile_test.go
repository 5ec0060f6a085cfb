package handlers_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/ledger-reconcile/internal/api/dto"
	"github.com/eshaffer321/ledger-reconcile/internal/api/handlers"
	"github.com/eshaffer321/ledger-reconcile/internal/application/reconcile"
	"github.com/eshaffer321/ledger-reconcile/internal/application/service"
	"github.com/eshaffer321/ledger-reconcile/internal/infrastructure/config"
	"github.com/eshaffer321/ledger-reconcile/internal/infrastructure/storage"
)

// runnerFunc adapts a function to service.Runner.
type runnerFunc func(ctx context.Context, opts reconcile.Options) (*reconcile.Result, error)

func (f runnerFunc) Run(ctx context.Context, opts reconcile.Options) (*reconcile.Result, error) {
	return f(ctx, opts)
}

func newReconcileHandler(t *testing.T, runner runnerFunc) (*handlers.ReconcileHandler, *service.ReconcileService) {
	t.Helper()
	cfg := config.Default()
	cfg.Observability.Logging.Level = "error"
	svc := service.NewReconcileService(cfg, func(*slog.Logger) service.Runner { return runner }, nil)
	return handlers.NewReconcileHandler(svc), svc
}

// blockingRunner runs until its context is cancelled.
func blockingRunner(ctx context.Context, _ reconcile.Options) (*reconcile.Result, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func startJob(t *testing.T, handler *handlers.ReconcileHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/reconcile", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.StartRun(rec, req)
	return rec
}

func TestReconcileHandler_StartRun(t *testing.T) {
	t.Run("accepts a run and reports the result", func(t *testing.T) {
		handler, svc := newReconcileHandler(t, func(ctx context.Context, opts reconcile.Options) (*reconcile.Result, error) {
			return &reconcile.Result{RunID: 3, DryRun: opts.DryRun, Counts: storage.RunCounts{AutoMatched: 2}}, nil
		})

		rec := startJob(t, handler, `{"pattern_types":["amazon"],"dry_run":true}`)
		require.Equal(t, http.StatusAccepted, rec.Code)

		var started dto.StartReconcileResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&started))
		assert.Equal(t, "pending", started.Status)

		require.Eventually(t, func() bool {
			job, err := svc.GetJob(started.JobID)
			return err == nil && job.Status == service.StatusCompleted
		}, 2*time.Second, 5*time.Millisecond)

		status := httptest.NewRecorder()
		handler.GetStatus(status, newRequest(http.MethodGet, "/api/reconcile/"+started.JobID, map[string]string{"jobId": started.JobID}))
		require.Equal(t, http.StatusOK, status.Code)

		var job dto.ReconcileJobResponse
		require.NoError(t, json.NewDecoder(status.Body).Decode(&job))
		assert.Equal(t, "completed", job.Status)
		assert.True(t, job.DryRun)
		assert.Equal(t, []string{"amazon"}, job.PatternTypes)
		require.NotNil(t, job.Result)
		assert.Equal(t, int64(3), job.Result.RunID)
		assert.Equal(t, 2, job.Result.AutoMatched)
		assert.NotNil(t, job.CompletedAt)
		assert.Nil(t, job.Error)
	})

	t.Run("empty body uses configured defaults", func(t *testing.T) {
		handler, _ := newReconcileHandler(t, func(ctx context.Context, opts reconcile.Options) (*reconcile.Result, error) {
			return &reconcile.Result{}, nil
		})

		rec := startJob(t, handler, "")
		assert.Equal(t, http.StatusAccepted, rec.Code)
	})

	t.Run("rejects malformed body", func(t *testing.T) {
		handler, _ := newReconcileHandler(t, blockingRunner)

		rec := startJob(t, handler, `{"pattern_types":`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects unknown pattern type", func(t *testing.T) {
		handler, _ := newReconcileHandler(t, blockingRunner)

		rec := startJob(t, handler, `{"pattern_types":["venmo"]}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		var apiErr dto.APIError
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&apiErr))
		assert.Equal(t, dto.ErrCodeValidation, apiErr.Code)
	})

	t.Run("second run while one is active is a conflict", func(t *testing.T) {
		handler, svc := newReconcileHandler(t, blockingRunner)

		first := startJob(t, handler, `{}`)
		require.Equal(t, http.StatusAccepted, first.Code)
		var started dto.StartReconcileResponse
		require.NoError(t, json.NewDecoder(first.Body).Decode(&started))
		defer func() { _ = svc.CancelJob(started.JobID) }()

		second := startJob(t, handler, `{}`)
		assert.Equal(t, http.StatusConflict, second.Code)
	})
}

func TestReconcileHandler_ListAndCancel(t *testing.T) {
	handler, svc := newReconcileHandler(t, blockingRunner)

	rec := startJob(t, handler, `{}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	var started dto.StartReconcileResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&started))

	t.Run("active jobs include the running job", func(t *testing.T) {
		list := httptest.NewRecorder()
		handler.ListActive(list, httptest.NewRequest(http.MethodGet, "/api/reconcile/active", nil))

		var response dto.ReconcileJobListResponse
		require.NoError(t, json.NewDecoder(list.Body).Decode(&response))
		require.Equal(t, 1, response.Count)
		assert.Equal(t, started.JobID, response.Jobs[0].JobID)
	})

	t.Run("cancel stops the job", func(t *testing.T) {
		cancel := httptest.NewRecorder()
		handler.Cancel(cancel, newRequest(http.MethodDelete, "/api/reconcile/"+started.JobID, map[string]string{"jobId": started.JobID}))
		assert.Equal(t, http.StatusOK, cancel.Code)

		job, err := svc.GetJob(started.JobID)
		require.NoError(t, err)
		assert.Equal(t, service.StatusCancelled, job.Status)
	})

	t.Run("cancelling twice is a conflict", func(t *testing.T) {
		cancel := httptest.NewRecorder()
		handler.Cancel(cancel, newRequest(http.MethodDelete, "/api/reconcile/"+started.JobID, map[string]string{"jobId": started.JobID}))
		assert.Equal(t, http.StatusConflict, cancel.Code)
	})

	t.Run("all jobs include finished ones", func(t *testing.T) {
		list := httptest.NewRecorder()
		handler.ListAll(list, httptest.NewRequest(http.MethodGet, "/api/reconcile", nil))

		var response dto.ReconcileJobListResponse
		require.NoError(t, json.NewDecoder(list.Body).Decode(&response))
		assert.Equal(t, 1, response.Count)
	})

	t.Run("unknown job is 404", func(t *testing.T) {
		status := httptest.NewRecorder()
		handler.GetStatus(status, newRequest(http.MethodGet, "/api/reconcile/nope", map[string]string{"jobId": "nope"}))
		assert.Equal(t, http.StatusNotFound, status.Code)

		cancel := httptest.NewRecorder()
		handler.Cancel(cancel, newRequest(http.MethodDelete, "/api/reconcile/nope", map[string]string{"jobId": "nope"}))
		assert.Equal(t, http.StatusNotFound, cancel.Code)
	})
}

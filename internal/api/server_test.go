package api_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/ledger-reconcile/internal/api"
	"github.com/eshaffer321/ledger-reconcile/internal/api/dto"
	"github.com/eshaffer321/ledger-reconcile/internal/application/reconcile"
	"github.com/eshaffer321/ledger-reconcile/internal/domain/matcher"
	"github.com/eshaffer321/ledger-reconcile/internal/infrastructure/config"
	"github.com/eshaffer321/ledger-reconcile/internal/infrastructure/storage"
)

func newTestServer(t *testing.T) (*api.Server, *storage.MockRepository) {
	t.Helper()
	repo := storage.NewMockRepository()
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))

	engine, err := matcher.NewEngine(matcher.DefaultConfig())
	require.NoError(t, err)
	orchestrator := reconcile.NewOrchestrator(repo, engine, logger)

	// nil reconcile service for read and review tests
	server := api.NewServer(api.DefaultConfig(), repo, orchestrator, nil, logger)
	return server, repo
}

func testDay(d int) time.Time {
	return time.Date(2024, time.March, d, 0, 0, 0, 0, time.UTC)
}

func serve(server *api.Server, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)
	return rec
}

func TestServer_HealthEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	rec := serve(server, http.MethodGet, "/health")

	assert.Equal(t, http.StatusOK, rec.Code)

	var response dto.HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
	assert.Equal(t, "ok", response.Status)
}

func TestServer_RecordsEndpoints(t *testing.T) {
	server, repo := newTestServer(t)
	require.NoError(t, repo.SaveRecords([]storage.Record{
		{ID: "bank:1", Amount: -30, Description: "AMAZON.COM", Origin: "bank_statement"},
	}))

	t.Run("GET /api/records returns records", func(t *testing.T) {
		rec := serve(server, http.MethodGet, "/api/records")
		assert.Equal(t, http.StatusOK, rec.Code)

		var response dto.RecordListResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
		assert.Equal(t, 1, response.TotalCount)
	})

	t.Run("GET /api/records/{id} resolves ids with colons", func(t *testing.T) {
		rec := serve(server, http.MethodGet, "/api/records/bank:1")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("unknown route is 404", func(t *testing.T) {
		rec := serve(server, http.MethodGet, "/api/orders")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestServer_ReviewFlow(t *testing.T) {
	server, repo := newTestServer(t)
	require.NoError(t, repo.SaveRecords([]storage.Record{
		{ID: "bank-1", Date: testDay(10), Amount: -30, Description: "AMAZON.COM", Origin: "bank_statement"},
		{ID: "amz-1", Date: testDay(9), Amount: -29.50, Description: "Amazon order 1", Origin: "amazon", ContextOnly: true},
	}))
	suggestion := &storage.Suggestion{
		PatternType:      "amazon",
		ChargeID:         "bank-1",
		CandidateIDs:     []string{"amz-1"},
		Cardinality:      "one_to_one",
		Source:           "amount",
		ChargeAmount:     decimal.RequireFromString("30"),
		TotalAmount:      decimal.RequireFromString("29.50"),
		AmountDifference: decimal.RequireFromString("0.50"),
		MaxDayDiff:       1,
		Score:            55,
		Reason:           "amount within 0.50",
	}
	require.NoError(t, repo.SaveSuggestion(suggestion))

	var match dto.MatchResponse

	t.Run("accept creates a low-confidence match", func(t *testing.T) {
		rec := serve(server, http.MethodPost, "/api/suggestions/"+suggestion.ID+"/accept")
		require.Equal(t, http.StatusCreated, rec.Code)

		require.NoError(t, json.NewDecoder(rec.Body).Decode(&match))
		assert.Equal(t, "low", match.Confidence)
		assert.Equal(t, storage.MatchSourceAccepted, match.Source)
		assert.Equal(t, "30.00", match.ChargeAmount)
		require.Len(t, match.Allocations, 1)
		assert.Equal(t, "30.00", match.Allocations[0].Allocated)

		charge, err := repo.GetRecord("bank-1")
		require.NoError(t, err)
		assert.Equal(t, []string{"amz-1"}, charge.Links)
	})

	t.Run("accepting again is a conflict", func(t *testing.T) {
		rec := serve(server, http.MethodPost, "/api/suggestions/"+suggestion.ID+"/accept")
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("match is listed", func(t *testing.T) {
		rec := serve(server, http.MethodGet, "/api/matches?charge_id=bank-1")

		var response dto.MatchListResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
		require.Equal(t, 1, response.Count)
		assert.Equal(t, match.ID, response.Matches[0].ID)
	})

	t.Run("unlink clears links", func(t *testing.T) {
		rec := serve(server, http.MethodDelete, "/api/matches/"+match.ID)
		assert.Equal(t, http.StatusOK, rec.Code)

		charge, err := repo.GetRecord("bank-1")
		require.NoError(t, err)
		assert.Empty(t, charge.Links)
		order, err := repo.GetRecord("amz-1")
		require.NoError(t, err)
		assert.Empty(t, order.Links)

		rec = serve(server, http.MethodGet, "/api/matches/"+match.ID)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("dismiss an unknown suggestion is 404", func(t *testing.T) {
		rec := serve(server, http.MethodPost, "/api/suggestions/nope/dismiss")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestServer_ReconcileRoutesNeedService(t *testing.T) {
	server, _ := newTestServer(t)

	rec := serve(server, http.MethodGet, "/api/reconcile")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_CORSPreflight(t *testing.T) {
	server, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/records", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestConfigFrom(t *testing.T) {
	cfg := api.ConfigFrom(config.APIConfig{Port: 9090, AllowedOrigins: []string{"*"}})
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)

	defaults := api.DefaultConfig()
	assert.Equal(t, 8080, defaults.Port)
}

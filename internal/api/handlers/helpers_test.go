package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/eshaffer321/ledger-reconcile/internal/infrastructure/storage"
)

func day(d int) time.Time {
	return time.Date(2024, time.March, d, 0, 0, 0, 0, time.UTC)
}

// withURLParams attaches chi route params so handlers can be called directly.
func withURLParams(req *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func newRequest(method, target string, params map[string]string) *http.Request {
	return withURLParams(httptest.NewRequest(method, target, nil), params)
}

func testMatch(chargeID string, contextIDs ...string) *storage.Match {
	m := &storage.Match{
		PatternType:      "amazon",
		ChargeID:         chargeID,
		Cardinality:      "one_to_one",
		Confidence:       "high",
		ChargeAmount:     decimal.RequireFromString("-42.17"),
		TotalAmount:      decimal.RequireFromString("-42.17"),
		AmountDifference: decimal.Zero,
		MaxDayDiff:       1,
		Score:            97.5,
		Reason:           "exact amount, 1 day apart",
	}
	if len(contextIDs) > 1 {
		m.Cardinality = "many_to_one"
	}
	for _, id := range contextIDs {
		m.Allocations = append(m.Allocations, storage.Allocation{
			ContextID: id,
			Amount:    decimal.RequireFromString("-42.17"),
			Allocated: decimal.RequireFromString("-42.17"),
		})
	}
	return m
}

// mockReviewer is a testify mock of handlers.Reviewer.
type mockReviewer struct {
	mock.Mock
}

func (m *mockReviewer) AcceptSuggestion(ctx context.Context, id string) (*storage.Match, error) {
	args := m.Called(ctx, id)
	match, _ := args.Get(0).(*storage.Match)
	return match, args.Error(1)
}

func (m *mockReviewer) DismissSuggestion(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockReviewer) UnlinkMatch(ctx context.Context, matchID string) error {
	return m.Called(ctx, matchID).Error(0)
}

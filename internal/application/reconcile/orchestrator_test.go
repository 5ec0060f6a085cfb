package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/ledger-reconcile/internal/domain/matcher"
	"github.com/eshaffer321/ledger-reconcile/internal/infrastructure/storage"
)

func day(d int) time.Time {
	return time.Date(2024, time.March, d, 0, 0, 0, 0, time.UTC)
}

func bankCharge(id string, d int, amount float64, description string) storage.Record {
	return storage.Record{ID: id, Date: day(d), Amount: amount, Description: description, Origin: "bank_statement"}
}

func amazonOrder(id string, d int, amount float64) storage.Record {
	return storage.Record{ID: id, Date: day(d), Amount: amount, Description: "Amazon order " + id, Origin: "amazon", ContextOnly: true}
}

func newTestOrchestrator(t *testing.T, records ...storage.Record) (*Orchestrator, *storage.MockRepository) {
	t.Helper()
	engine, err := matcher.NewEngine(matcher.DefaultConfig())
	require.NoError(t, err)

	repo := storage.NewMockRepository()
	require.NoError(t, repo.SaveRecords(records))

	o := NewOrchestrator(repo, engine, nil)
	o.now = func() time.Time { return day(25) }
	return o, repo
}

func links(t *testing.T, repo *storage.MockRepository, id string) []string {
	t.Helper()
	r, err := repo.GetRecord(id)
	require.NoError(t, err)
	return r.Links
}

var standardRecords = []storage.Record{
	bankCharge("bank-1", 10, -42.17, "AMAZON MKTPL*2K4"),
	amazonOrder("amz-1", 9, -42.17),
	bankCharge("bank-2", 20, -30.00, "AMAZON.COM"),
	amazonOrder("amz-2", 19, -10.00),
	amazonOrder("amz-3", 18, -20.00),
	bankCharge("bank-3", 3, -15.00, "REWE MARKT"),
}

func TestOrchestrator_Run_PersistsMatchesAndLinks(t *testing.T) {
	o, repo := newTestOrchestrator(t, standardRecords...)

	var progress []Progress
	result, err := o.Run(context.Background(), Options{
		PatternTypes:     []matcher.PatternType{matcher.PatternAmazon},
		ProgressCallback: func(p Progress) { progress = append(progress, p) },
	})
	require.NoError(t, err)

	require.Len(t, result.Patterns, 1)
	pr := result.Patterns[0]
	require.Len(t, pr.Matches, 2)
	assert.Empty(t, pr.Suggestions)
	assert.Equal(t, 5, pr.LinksUpdated)

	byCharge := make(map[string]*storage.Match)
	for _, m := range pr.Matches {
		byCharge[m.ChargeID] = m
		assert.NotEmpty(t, m.ID)
		assert.Equal(t, result.RunID, m.RunID)
	}
	require.Contains(t, byCharge, "bank-1")
	require.Contains(t, byCharge, "bank-2")
	assert.Equal(t, "high", byCharge["bank-1"].Confidence)
	assert.Equal(t, "many_to_one", byCharge["bank-2"].Cardinality)
	assert.ElementsMatch(t, []string{"amz-2", "amz-3"}, byCharge["bank-2"].ContextIDs())

	// Allocations add up to the charge
	sum := byCharge["bank-2"].Allocations[0].Allocated.Add(byCharge["bank-2"].Allocations[1].Allocated)
	assert.Equal(t, "30", sum.String())

	assert.Equal(t, []string{"amz-1"}, links(t, repo, "bank-1"))
	assert.Equal(t, []string{"bank-1"}, links(t, repo, "amz-1"))
	assert.ElementsMatch(t, []string{"amz-2", "amz-3"}, links(t, repo, "bank-2"))
	assert.Equal(t, []string{"bank-2"}, links(t, repo, "amz-3"))
	assert.Empty(t, links(t, repo, "bank-3"))

	run, err := repo.GetRun(result.RunID)
	require.NoError(t, err)
	assert.Equal(t, storage.RunStatusCompleted, run.Status)
	assert.Equal(t, 2, run.AutoMatched)
	assert.Equal(t, 2, run.ChargeRecords)
	assert.Equal(t, 3, run.ContextRecords)

	require.Len(t, progress, 1)
	assert.Equal(t, 1, progress[0].Completed)
	assert.Equal(t, 1, progress[0].Total)
}

func TestOrchestrator_Run_AllPatternTypes(t *testing.T) {
	o, _ := newTestOrchestrator(t, standardRecords...)

	var seen []matcher.PatternType
	result, err := o.Run(context.Background(), Options{
		ProgressCallback: func(p Progress) { seen = append(seen, p.PatternType) },
	})
	require.NoError(t, err)

	assert.Equal(t, []matcher.PatternType{matcher.PatternAmazon, matcher.PatternCardAcquirer, matcher.PatternPayPal}, seen)
	assert.Equal(t, 2, result.Counts.AutoMatched)
}

func TestOrchestrator_Run_Rerun(t *testing.T) {
	o, repo := newTestOrchestrator(t, standardRecords...)
	opts := Options{PatternTypes: []matcher.PatternType{matcher.PatternAmazon}}

	_, err := o.Run(context.Background(), opts)
	require.NoError(t, err)

	repo.UpdateLinksCalled = false
	second, err := o.Run(context.Background(), opts)
	require.NoError(t, err)

	pr := second.Patterns[0]
	assert.Empty(t, pr.Matches)
	assert.Equal(t, 2, pr.Stats.ChargesAlreadyLinked)
	assert.Equal(t, 3, pr.Stats.ContextAlreadyLinked)
	assert.False(t, repo.UpdateLinksCalled)
}

func TestOrchestrator_Run_DryRun(t *testing.T) {
	o, repo := newTestOrchestrator(t, standardRecords...)

	result, err := o.Run(context.Background(), Options{
		PatternTypes: []matcher.PatternType{matcher.PatternAmazon},
		DryRun:       true,
	})
	require.NoError(t, err)

	assert.True(t, result.DryRun)
	assert.Len(t, result.Patterns[0].Matches, 2)
	assert.False(t, repo.SaveMatchCalled)
	assert.False(t, repo.UpdateLinksCalled)
	assert.Empty(t, links(t, repo, "bank-1"))

	run, err := repo.GetRun(result.RunID)
	require.NoError(t, err)
	assert.True(t, run.DryRun)
	assert.Equal(t, storage.RunStatusCompleted, run.Status)
}

func TestOrchestrator_Run_LookbackWindow(t *testing.T) {
	// now is day 25; 5 days back plus the 10 day suggestion window starts on day 10
	o, _ := newTestOrchestrator(t, standardRecords...)

	result, err := o.Run(context.Background(), Options{
		PatternTypes: []matcher.PatternType{matcher.PatternAmazon},
		LookbackDays: 5,
	})
	require.NoError(t, err)

	pr := result.Patterns[0]
	assert.Equal(t, 2, pr.Stats.ChargeRecords)
	assert.Equal(t, 2, pr.Stats.ContextRecords, "amz-1 on day 9 is outside the window")
	require.Len(t, pr.Matches, 1)
	assert.Equal(t, "bank-2", pr.Matches[0].ChargeID)
}

func TestOrchestrator_Run_Failures(t *testing.T) {
	t.Run("start run fails", func(t *testing.T) {
		o, repo := newTestOrchestrator(t, standardRecords...)
		repo.StartRunErr = errors.New("locked")

		_, err := o.Run(context.Background(), Options{})
		assert.Error(t, err)
	})

	t.Run("load fails marks run failed", func(t *testing.T) {
		o, repo := newTestOrchestrator(t, standardRecords...)
		repo.ListRecordsErr = errors.New("disk gone")

		result, err := o.Run(context.Background(), Options{})
		require.Error(t, err)

		run, getErr := repo.GetRun(result.RunID)
		require.NoError(t, getErr)
		assert.Equal(t, storage.RunStatusFailed, run.Status)
		assert.Contains(t, run.ErrorMessage, "disk gone")
	})

	t.Run("link write failure leaves nothing half saved", func(t *testing.T) {
		o, repo := newTestOrchestrator(t, standardRecords...)
		repo.UpdateLinksErr = errors.New("disk I/O error")

		_, err := o.Run(context.Background(), Options{})
		require.Error(t, err)
		matches, err := repo.ListMatches(storage.MatchFilters{})
		require.NoError(t, err)
		assert.Empty(t, matches)

		repo.UpdateLinksErr = nil
		result, err := o.Run(context.Background(), Options{})
		require.NoError(t, err)
		assert.Equal(t, 2, result.Counts.AutoMatched)
		assert.Equal(t, []string{"amz-1"}, links(t, repo, "bank-1"))
		assert.Equal(t, []string{"amz-2", "amz-3"}, links(t, repo, "bank-2"))
	})

	t.Run("unknown pattern type", func(t *testing.T) {
		o, _ := newTestOrchestrator(t, standardRecords...)

		_, err := o.Run(context.Background(), Options{PatternTypes: []matcher.PatternType{"venmo"}})
		assert.ErrorIs(t, err, matcher.ErrUnknownPatternType)
	})

	t.Run("cancelled context", func(t *testing.T) {
		o, repo := newTestOrchestrator(t, standardRecords...)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		result, err := o.Run(ctx, Options{})
		assert.ErrorIs(t, err, context.Canceled)
		assert.False(t, repo.SaveMatchCalled)

		run, getErr := repo.GetRun(result.RunID)
		require.NoError(t, getErr)
		assert.Equal(t, storage.RunStatusFailed, run.Status)
	})
}

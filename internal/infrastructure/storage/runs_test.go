package storage

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorage_RunLifecycle(t *testing.T) {
	store := newTestStorage(t)

	runID, err := store.StartRun([]string{"amazon", "paypal"}, 30, true)
	require.NoError(t, err)
	assert.Greater(t, runID, int64(0))

	run, err := store.GetRun(runID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusRunning, run.Status)
	assert.Equal(t, []string{"amazon", "paypal"}, run.PatternTypes)
	assert.Equal(t, 30, run.LookbackDays)
	assert.True(t, run.DryRun)
	assert.Nil(t, run.CompletedAt)

	counts := RunCounts{
		ChargeRecords:    4,
		ContextRecords:   6,
		AutoMatched:      3,
		Suggested:        1,
		UnmatchedContext: 2,
		InvalidRecords:   1,
	}
	require.NoError(t, store.CompleteRun(runID, counts))

	run, err = store.GetRun(runID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusCompleted, run.Status)
	assert.Equal(t, counts, run.RunCounts)
	require.NotNil(t, run.CompletedAt)
}

func TestStorage_FailRun(t *testing.T) {
	store := newTestStorage(t)

	runID, err := store.StartRun([]string{"amazon"}, 14, false)
	require.NoError(t, err)
	require.NoError(t, store.FailRun(runID, "boom"))

	run, err := store.GetRun(runID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusFailed, run.Status)
	assert.Equal(t, "boom", run.ErrorMessage)
}

func TestStorage_RunNotFound(t *testing.T) {
	store := newTestStorage(t)

	_, err := store.GetRun(99)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, errors.Is(store.CompleteRun(99, RunCounts{}), ErrNotFound))
	assert.True(t, errors.Is(store.FailRun(99, "x"), ErrNotFound))
}

func TestStorage_ListRuns(t *testing.T) {
	store := newTestStorage(t)

	for i := 0; i < 3; i++ {
		_, err := store.StartRun([]string{"amazon"}, 30, false)
		require.NoError(t, err)
	}

	runs, err := store.ListRuns(2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Greater(t, runs[0].ID, runs[1].ID)

	runs, err = store.ListRuns(0)
	require.NoError(t, err)
	assert.Len(t, runs, 3)
}

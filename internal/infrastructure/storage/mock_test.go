package storage

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockRepository_MirrorsStorageRules(t *testing.T) {
	repo := NewMockRepository()

	require.NoError(t, repo.SaveRecords([]Record{{ID: "a1", Date: day(1), Amount: -5, Origin: "amazon", ContextOnly: true}}))
	require.NoError(t, repo.UpdateLinks(map[string][]string{"a1": {"b1"}}))
	require.NoError(t, repo.SaveRecords([]Record{{ID: "a1", Date: day(1), Amount: -5, Origin: "amazon", ContextOnly: true}}))

	record, err := repo.GetRecord("a1")
	require.NoError(t, err)
	assert.Equal(t, []string{"b1"}, record.Links)

	require.NoError(t, repo.SaveMatch(testMatch("b1", "a1")))
	assert.True(t, errors.Is(repo.SaveMatch(testMatch("b2", "a1")), ErrConflict))

	err = repo.UpdateLinks(map[string][]string{"ghost": nil})
	assert.True(t, errors.Is(err, ErrNotFound))

	repo.SaveMatchErr = errors.New("disk full")
	assert.EqualError(t, repo.SaveMatch(testMatch("b3", "a3")), "disk full")
}

func TestMockRepository_SaveMatchWithLinks_AllOrNothing(t *testing.T) {
	repo := NewMockRepository()
	require.NoError(t, repo.SaveRecords([]Record{
		{ID: "b1", Date: day(2), Amount: -5, Origin: "bank_statement"},
		{ID: "a1", Date: day(1), Amount: -5, Origin: "amazon", ContextOnly: true},
	}))
	links := map[string][]string{"b1": {"a1"}, "a1": {"b1"}}

	repo.UpdateLinksErr = errors.New("disk I/O error")
	require.Error(t, repo.SaveMatchWithLinks(testMatch("b1", "a1"), links))

	matches, err := repo.ListMatches(MatchFilters{})
	require.NoError(t, err)
	assert.Empty(t, matches)

	repo.UpdateLinksErr = nil
	require.NoError(t, repo.SaveMatchWithLinks(testMatch("b1", "a1"), links))
	record, err := repo.GetRecord("a1")
	require.NoError(t, err)
	assert.Equal(t, []string{"b1"}, record.Links)
}

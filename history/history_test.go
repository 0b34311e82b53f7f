package history_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sonar-audit/history"
	"sonar-audit/model"
)

func openStore(t *testing.T) *history.Store {
	t.Helper()
	store, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestLastTotalEmpty(t *testing.T) {
	store := openStore(t)

	_, ok, err := store.LastTotal()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRecordRunAndLastTotal(t *testing.T) {
	store := openStore(t)

	first := []model.BranchRecord{
		{ProjectKey: "app", BranchName: "main", Lines: 10000},
		{ProjectKey: "app", BranchName: "feature-x", Lines: 2500},
		{ProjectKey: "lib", BranchName: "main", Lines: 500},
	}
	runID, err := store.RecordRun(first, 13000)
	require.NoError(t, err)
	assert.Positive(t, runID)

	second := []model.BranchRecord{
		{ProjectKey: "app", BranchName: "main", Lines: 11000},
	}
	_, err = store.RecordRun(second, 11000)
	require.NoError(t, err)

	total, ok, err := store.LastTotal()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 11000, total)
}

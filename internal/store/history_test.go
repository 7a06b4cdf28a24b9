package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeforge/internal/testparse"
)

func newTestStore(t *testing.T) *HistoryStore {
	t.Helper()
	s, err := NewHistoryStore(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err, "failed to open store")
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndQueryRuns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.RecordRun(ctx, RunRecord{
		SessionID:    "sess-1",
		Requirements: "build a todo api",
		Status:       "completed",
		ProjectType:  "node",
		TotalTests:   5,
		Passed:       5,
		DurationSec:  12.5,
	})
	require.NoError(t, err)
	assert.NotZero(t, id)

	runs, err := s.RunsBySession(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, runs, 1)

	rec := runs[0]
	assert.Equal(t, "build a todo api", rec.Requirements)
	assert.Equal(t, "node", rec.ProjectType)
	assert.Equal(t, 5, rec.Passed)
	assert.False(t, rec.CreatedAt.IsZero(), "created_at should be set")
}

func TestRecentRuns_NewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, session := range []string{"a", "b", "c"} {
		_, err := s.RecordRun(ctx, RunRecord{SessionID: session, Status: "completed"})
		require.NoError(t, err)
	}

	runs, err := s.RecentRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c", runs[0].SessionID)
	assert.Equal(t, "b", runs[1].SessionID)
}

func TestRecordTestRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run := testparse.Summarize([]testparse.TestResult{
		{Status: testparse.StatusPassed},
		{Status: testparse.StatusFailed},
	})
	run.ExecutionTime = 2.5

	_, err := s.RecordTestRun(ctx, "sess-t", "reqs", run)
	require.NoError(t, err)

	runs, err := s.RunsBySession(ctx, "sess-t")
	require.NoError(t, err)
	require.Len(t, runs, 1)

	assert.Equal(t, "failed", runs[0].Status, "a run with failures must be recorded as failed")
	assert.Equal(t, 2, runs[0].TotalTests)
	assert.Equal(t, 1, runs[0].Failed)
}

func TestEmptyStoreQueries(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	runs, err := s.RecentRuns(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, runs)

	runs, err = s.RunsBySession(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, runs)
}

package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thomasruntaochen-ops/art-activity-collection/internal/domain"
	"github.com/thomasruntaochen-ops/art-activity-collection/internal/store"
)

func TestCreateAndFinishRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	src := seedSource(t, s, "moma_teens")

	run := &domain.IngestionRun{SourceID: src.ID}
	require.NoError(t, s.CreateRun(ctx, run))
	require.NotEmpty(t, run.ID)
	assert.Equal(t, domain.RunRunning, run.Status)

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunRunning, got.Status)
	assert.Nil(t, got.FinishedAt)
	assert.False(t, got.Finished())

	require.NoError(t, s.FinishRun(ctx, run.ID, domain.RunSuccess, 12, 10, ""))

	got, err = s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunSuccess, got.Status)
	require.NotNil(t, got.FinishedAt)
	assert.Equal(t, 12, got.ItemsFound)
	assert.Equal(t, 10, got.ItemsSaved)
	assert.True(t, got.Finished())
}

func TestFinishRunOnlyOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	src := seedSource(t, s, "moma_teens")

	run := &domain.IngestionRun{SourceID: src.ID}
	require.NoError(t, s.CreateRun(ctx, run))
	require.NoError(t, s.FinishRun(ctx, run.ID, domain.RunFailed, 3, 0, "fetch timed out"))

	// A finished run is immutable.
	err := s.FinishRun(ctx, run.ID, domain.RunSuccess, 5, 5, "")
	assert.ErrorIs(t, err, store.ErrConflict)

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunFailed, got.Status)
	assert.Equal(t, "fetch timed out", got.Errors)
}

func TestFinishRunRejectsNonTerminalStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	src := seedSource(t, s, "moma_teens")

	run := &domain.IngestionRun{SourceID: src.ID}
	require.NoError(t, s.CreateRun(ctx, run))

	err := s.FinishRun(ctx, run.ID, domain.RunRunning, 0, 0, "")
	assert.ErrorIs(t, err, store.ErrInvalidInput)
}

func TestFinishRunNotFound(t *testing.T) {
	s := newTestStore(t)

	err := s.FinishRun(context.Background(), "run-missing", domain.RunSuccess, 0, 0, "")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestListRuns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	met := seedSource(t, s, "met_teens_free_workshops")
	moma := seedSource(t, s, "moma_teens")

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		run := &domain.IngestionRun{
			SourceID:  met.ID,
			StartedAt: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, s.CreateRun(ctx, run))
	}
	require.NoError(t, s.CreateRun(ctx, &domain.IngestionRun{SourceID: moma.ID, StartedAt: base.Add(time.Hour)}))

	all, err := s.ListRuns(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, moma.ID, all[0].SourceID, "newest first")

	metOnly, err := s.ListRuns(ctx, met.ID, 2)
	require.NoError(t, err)
	require.Len(t, metOnly, 2)
	for _, r := range metOnly {
		assert.Equal(t, met.ID, r.SourceID)
	}
}

func TestCloseStaleRuns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	src := seedSource(t, s, "moma_teens")

	stale := &domain.IngestionRun{
		SourceID:  src.ID,
		StartedAt: time.Now().UTC().Add(-3 * time.Hour),
	}
	require.NoError(t, s.CreateRun(ctx, stale))

	recent := &domain.IngestionRun{SourceID: src.ID}
	require.NoError(t, s.CreateRun(ctx, recent))

	n, err := s.CloseStaleRuns(ctx, time.Now().UTC().Add(-2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := s.GetRun(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunFailed, got.Status)
	require.NotNil(t, got.FinishedAt)
	assert.Contains(t, got.Errors, "stale-run timeout")

	got, err = s.GetRun(ctx, recent.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunRunning, got.Status)
}

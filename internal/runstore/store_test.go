package runstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "state", "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRecordAndHistory(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := openTestStore(t)

	first, err := store.Record(ctx, "default", "trainer-1", "launching")
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)

	second, err := store.Record(ctx, "cpu-sim", "", "launching")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	runs, err := store.History(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	runs, err = store.History(ctx, 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
}

func TestSetStateAppendsTransitions(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := openTestStore(t)

	run, err := store.Record(ctx, "default", "trainer-1", "launching")
	require.NoError(t, err)

	require.NoError(t, store.SetState(ctx, run.ID, "running", "setup complete"))
	require.NoError(t, store.SetState(ctx, run.ID, "preempted", "node left ready state"))

	transitions, err := store.Transitions(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, transitions, 2)
	assert.Equal(t, "running", transitions[0].State)
	assert.Equal(t, "preempted", transitions[1].State)
	assert.Equal(t, "node left ready state", transitions[1].Detail)

	runs, err := store.History(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "preempted", runs[0].State)
}

func TestFinishStoresExitCode(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := openTestStore(t)

	run, err := store.Record(ctx, "default", "", "launching")
	require.NoError(t, err)
	require.NoError(t, store.Finish(ctx, run.ID, 137))

	runs, err := store.History(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "finished", runs[0].State)
	require.NotNil(t, runs[0].ExitCode)
	assert.Equal(t, 137, *runs[0].ExitCode)
}

func TestUnknownRunErrors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := openTestStore(t)

	assert.Error(t, store.SetState(ctx, "missing", "running", ""))
	assert.Error(t, store.Finish(ctx, "missing", 0))
}

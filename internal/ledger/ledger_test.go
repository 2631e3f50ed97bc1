package ledger

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() }) //nolint:errcheck
	require.NoError(t, l.Migrate(context.Background()))
	return l
}

func TestLedger_Lifecycle(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	id, err := l.Start(ctx, KindSimulation, "/cache/abc/iterations10_chunksize5_seed1")
	require.NoError(t, err)

	e, err := l.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, e.Status)
	assert.Nil(t, e.CompletedAt)

	require.NoError(t, l.Complete(ctx, id, map[string]int{"written": 2}))
	e, err = l.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusComplete, e.Status)
	assert.JSONEq(t, `{"written":2}`, string(e.Result))
	require.NotNil(t, e.CompletedAt)

	last, err := l.LastSuccess(ctx, KindSimulation, "/cache/abc/iterations10_chunksize5_seed1")
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.WithinDuration(t, e.StartedAt, *last, 0)

	none, err := l.LastSuccess(ctx, KindValidation, "/cache/abc/iterations10_chunksize5_seed1")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestLedger_FailAndCancel(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	a, err := l.Start(ctx, KindValidation, "/d")
	require.NoError(t, err)
	b, err := l.Start(ctx, KindValidation, "/d")
	require.NoError(t, err)

	require.NoError(t, l.Fail(ctx, a, "engine down"))
	require.NoError(t, l.Cancel(ctx, b))

	e, err := l.Get(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, e.Status)
	assert.Equal(t, "engine down", e.Error)

	e, err = l.Get(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, e.Status)

	assert.Error(t, l.Fail(ctx, "missing", "x"))
	_, err = l.Get(ctx, "missing")
	assert.Error(t, err)
}

func TestLedger_ListAndInterrupted(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	sim, err := l.Start(ctx, KindSimulation, "/a")
	require.NoError(t, err)
	_, err = l.Start(ctx, KindAnalysis, "/a")
	require.NoError(t, err)
	_, err = l.Start(ctx, KindSimulation, "/b")
	require.NoError(t, err)
	require.NoError(t, l.Complete(ctx, sim, nil))

	all, err := l.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	sims, err := l.List(ctx, Filter{Kind: KindSimulation})
	require.NoError(t, err)
	assert.Len(t, sims, 2)

	onA, err := l.List(ctx, Filter{Dir: "/a", Status: StatusRunning})
	require.NoError(t, err)
	require.Len(t, onA, 1)
	assert.Equal(t, KindAnalysis, onA[0].Kind)

	n, err := l.MarkInterrupted(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	running, err := l.List(ctx, Filter{Status: StatusRunning})
	require.NoError(t, err)
	assert.Empty(t, running)

	limited, err := l.List(ctx, Filter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

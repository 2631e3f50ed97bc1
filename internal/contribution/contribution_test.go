package contribution

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lca-gsa/internal/cache"
	"github.com/sells-group/lca-gsa/internal/engine"
	"github.com/sells-group/lca-gsa/internal/engine/enginetest"
	"github.com/sells-group/lca-gsa/internal/model"
)

func testStudyDir(t *testing.T) cache.StudyDir {
	t.Helper()
	dir, err := cache.NewResolver(t.TempDir(), cache.PolicyStrict).Resolve(model.StudyConfig{
		Project:  "gsa",
		Database: "fg",
		Activity: "electricity production, CH",
		Amount:   1,
		Method:   "IPCC 2013, climate change, GWP 100a",
	})
	require.NoError(t, err)
	return dir
}

func TestReduce(t *testing.T) {
	got := Reduce([]engine.Edge{
		{From: 2, To: 1, Impact: 0.5},
		{From: 3, To: 1, Impact: 1.5},
		{From: 2, To: 1, Impact: 0.25},
	})
	assert.Equal(t, map[model.ParameterIndex]float64{
		{Row: 2, Col: 1}: 0.75,
		{Row: 3, Col: 1}: 1.5,
	}, got)
	assert.Empty(t, Reduce(nil))
}

func TestContributions_CachesTraversal(t *testing.T) {
	f := &enginetest.Fake{
		Weights: []float64{1, 2},
		Edges:   []engine.Edge{{From: 1, To: 1000, Amount: 1, Impact: 1}, {From: 2, To: 1000, Amount: 1, Impact: 2}},
	}
	study := testStudyDir(t)
	a := NewAnalyzer(f, 0.005, 10000)

	got, err := a.Contributions(context.Background(), study)
	require.NoError(t, err)
	assert.Equal(t, 2.0, got[enginetest.Param(1)])
	assert.Equal(t, 1, f.Traversals())

	ok, err := cache.Exists(study.ContributionPath(0.005, 10000))
	require.NoError(t, err)
	assert.True(t, ok)

	again, err := a.Contributions(context.Background(), study)
	require.NoError(t, err)
	assert.Equal(t, got, again)
	assert.Equal(t, 1, f.Traversals(), "cache reused")

	// Different bounds are a different cache entry.
	_, err = NewAnalyzer(f, 0.01, 10000).Contributions(context.Background(), study)
	require.NoError(t, err)
	assert.Equal(t, 2, f.Traversals())
}

func TestContributions_InvalidBounds(t *testing.T) {
	f := &enginetest.Fake{}
	study := testStudyDir(t)
	for _, a := range []*Analyzer{NewAnalyzer(f, -0.1, 10), NewAnalyzer(f, 1, 10), NewAnalyzer(f, 0.1, 0)} {
		_, err := a.Contributions(context.Background(), study)
		assert.True(t, eris.Is(err, model.ErrInvalidConfig))
	}
	assert.Zero(t, f.Traversals())
}

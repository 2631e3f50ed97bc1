package sensitivity

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lca-gsa/internal/cache"
	"github.com/sells-group/lca-gsa/internal/engine/enginetest"
	"github.com/sells-group/lca-gsa/internal/model"
	"github.com/sells-group/lca-gsa/internal/montecarlo"
)

type mockContributions struct {
	mock.Mock
}

func (m *mockContributions) Contributions(ctx context.Context, study cache.StudyDir) (map[model.ParameterIndex]float64, error) {
	args := m.Called(ctx, study)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[model.ParameterIndex]float64), args.Error(1)
}

func simulatedRun(t *testing.T, f *enginetest.Fake, iterations int) cache.RunDir {
	t.Helper()
	study, err := cache.NewResolver(t.TempDir(), cache.PolicyStrict).Resolve(model.StudyConfig{
		Project:  "gsa",
		Database: "fg",
		Activity: "electricity production, CH",
		Amount:   1,
		Method:   "IPCC 2013, climate change, GWP 100a",
	})
	require.NoError(t, err)
	dir := study.Run(model.SimulationConfig{Iterations: iterations, ChunkSize: 50, Seed: 11})
	if iterations > 0 {
		_, err = montecarlo.NewRunner(f).Run(context.Background(), dir)
		require.NoError(t, err)
	}
	return dir
}

func TestCombine(t *testing.T) {
	f := &enginetest.Fake{Weights: []float64{1, 1, 1}}
	params := f.Params()
	contributions := map[model.ParameterIndex]float64{enginetest.Param(2): 0.75}

	rows, err := Combine(context.Background(), f, params, []float64{0.2, -0.1, 0.9}, contributions, model.MethodSpearman)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, 1, rows[0].Rank)
	assert.Equal(t, enginetest.Param(2), rows[0].Parameter)
	assert.Equal(t, 0.75, rows[0].Contribution)
	assert.Equal(t, "input 3", rows[0].Provenance.InputName)
	assert.Equal(t, enginetest.Param(0), rows[1].Parameter)
	assert.Equal(t, 0.0, rows[1].Contribution)
	assert.Equal(t, enginetest.Param(1), rows[2].Parameter)
	assert.Equal(t, 3, rows[2].Rank)
	assert.Equal(t, model.MethodSpearman, rows[2].Method)

	_, err = Combine(context.Background(), f, params, []float64{1}, nil, model.MethodSpearman)
	assert.Error(t, err)
}

func TestPipeline_Run(t *testing.T) {
	f := &enginetest.Fake{Weights: []float64{3, 2, 1}}
	dir := simulatedRun(t, f, 300)

	contrib := &mockContributions{}
	contrib.On("Contributions", mock.Anything, dir.Study).
		Return(map[model.ParameterIndex]float64{enginetest.Param(0): 3}, nil)

	p := &Pipeline{Analyzer: NewAnalyzer(0.7, 20, 0.1), Contributions: contrib, Graph: f, Scores: f}
	report, err := p.Run(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, model.MethodSpearman, report.Method)
	assert.InDelta(t, 6.0, report.Score, 1e-12, "every parameter at 1")
	assert.Equal(t, f.Unit, report.Unit)
	assert.Len(t, report.Linearity, 10)
	require.Len(t, report.Rows, 3)
	for i, row := range report.Rows {
		assert.Equal(t, i+1, row.Rank)
		assert.Equal(t, enginetest.Param(i), row.Parameter)
	}
	assert.Equal(t, 3.0, report.Rows[0].Contribution)

	again, err := p.Run(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, report, again)
	contrib.AssertNumberOfCalls(t, "Contributions", 2)
}

func TestPipeline_ContributionFailure(t *testing.T) {
	f := &enginetest.Fake{Weights: []float64{1, 1}}
	dir := simulatedRun(t, f, 50)

	contrib := &mockContributions{}
	contrib.On("Contributions", mock.Anything, mock.Anything).Return(nil, eris.New("traversal failed"))

	p := &Pipeline{Analyzer: NewAnalyzer(0.7, 5, 0.1), Contributions: contrib, Graph: f, Scores: f}
	_, err := p.Run(context.Background(), dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "traversal failed")
}

func TestPipeline_NoSimulation(t *testing.T) {
	f := &enginetest.Fake{Weights: []float64{1}}
	dir := simulatedRun(t, f, 0)

	p := &Pipeline{Analyzer: NewAnalyzer(0.7, 5, 0.1), Contributions: &mockContributions{}, Graph: f, Scores: f}
	_, err := p.Run(context.Background(), dir)
	assert.Error(t, err)
}

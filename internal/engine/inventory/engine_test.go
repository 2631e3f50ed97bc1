package inventory

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lca-gsa/internal/engine"
	"github.com/sells-group/lca-gsa/internal/model"
)

const testModel = `
project: gsa
databases:
  - name: fg
  - name: bg
    background: true
  - name: biosphere3
activities:
  - {id: 1, database: fg, name: electricity production, location: CH, unit: kWh}
  - {id: 2, database: fg, name: steel production, location: GLO, unit: kg}
  - {id: 3, database: bg, name: coal mining, location: GLO, unit: kg}
  - {id: 100, database: biosphere3, name: carbon dioxide, category: air, type: emission, unit: kg}
  - {id: 101, database: biosphere3, name: methane, category: air, type: emission, unit: kg}
exchanges:
  - {input: 2, output: 1, amount: 0.5, type: technosphere, uncertainty: {type: 3, loc: 0.5, scale: 0.05}}
  - {input: 100, output: 1, amount: 2.0, type: biosphere, uncertainty: {type: 2, scale: 0.1}}
  - {input: 101, output: 1, amount: 0.1, type: biosphere}
  - {input: 3, output: 2, amount: 3.0, type: technosphere}
  - {input: 100, output: 2, amount: 1.0, type: biosphere, uncertainty: {type: 4, minimum: 0.8, maximum: 1.2}}
  - {input: 100, output: 3, amount: 0.2, type: biosphere, uncertainty: {type: 5, minimum: 0.1, maximum: 0.3}}
methods:
  - name: IPCC 2013, climate change, GWP 100a
    unit: kg CO2-Eq
    factors:
      - {flow: 100, factor: 1}
      - {flow: 101, factor: 28}
`

func testStudy() model.StudyConfig {
	return model.StudyConfig{
		Project:  "gsa",
		Database: "fg",
		Activity: "electricity production, CH",
		Amount:   1,
		Method:   "IPCC 2013, climate change, GWP 100a",
	}
}

func openTestEngine(t *testing.T, yml string) *Engine {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "model.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck

	ctx := context.Background()
	require.NoError(t, st.Migrate(ctx))
	mf, err := DecodeModel(strings.NewReader(yml))
	require.NoError(t, err)
	require.NoError(t, st.Import(ctx, mf))
	return NewEngine(st)
}

func TestDeterministicScore(t *testing.T) {
	e := openTestEngine(t, testModel)
	score, err := e.DeterministicScore(context.Background(), testStudy())
	require.NoError(t, err)
	// 2*1 + 0.1*28 + 0.5*(1*1 + 3*0.2)
	assert.InDelta(t, 5.6, score.Value, 1e-12)
	assert.Equal(t, "kg CO2-Eq", score.Unit)

	s := testStudy()
	s.Amount = 2
	score, err = e.DeterministicScore(context.Background(), s)
	require.NoError(t, err)
	assert.InDelta(t, 11.2, score.Value, 1e-12)
}

func TestResolveErrors(t *testing.T) {
	e := openTestEngine(t, testModel)
	ctx := context.Background()

	cases := map[string]func(*model.StudyConfig){
		"unknown activity": func(s *model.StudyConfig) { s.Activity = "heat production, CH" },
		"wrong database":   func(s *model.StudyConfig) { s.Database = "bg" },
		"unknown method":   func(s *model.StudyConfig) { s.Method = "ReCiPe" },
		"wrong project":    func(s *model.StudyConfig) { s.Project = "other" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			s := testStudy()
			mutate(&s)
			_, err := e.DeterministicScore(ctx, s)
			require.Error(t, err)
			assert.True(t, eris.Is(err, engine.ErrCannotResolveStudy), err.Error())
		})
	}
}

func TestAmbiguousActivity(t *testing.T) {
	e := openTestEngine(t, testModel)
	mf, err := DecodeModel(strings.NewReader(`
activities:
  - {id: 9, database: fg, name: electricity production, location: CH}
`))
	require.NoError(t, err)
	require.NoError(t, e.store.Import(context.Background(), mf))

	_, err = e.DeterministicScore(context.Background(), testStudy())
	require.Error(t, err)
	assert.True(t, eris.Is(err, engine.ErrCannotResolveStudy))
}

func TestCycleRejected(t *testing.T) {
	e := openTestEngine(t, testModel)
	mf, err := DecodeModel(strings.NewReader(`
exchanges:
  - {input: 1, output: 2, amount: 0.1, type: technosphere}
`))
	require.NoError(t, err)
	require.NoError(t, e.store.Import(context.Background(), mf))

	_, err = e.DeterministicScore(context.Background(), testStudy())
	require.Error(t, err)
	assert.True(t, eris.Is(err, engine.ErrCannotResolveStudy))
	assert.Contains(t, err.Error(), "cycle")
}

func TestImportRejectsUnknownExchangeType(t *testing.T) {
	st, err := Open(filepath.Join(t.TempDir(), "model.db"))
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	mf := &ModelFile{
		Databases:  []DatabaseSpec{{Name: "fg"}},
		Activities: []ActivitySpec{{ID: 1, Database: "fg", Name: "a"}},
		Exchanges:  []ExchangeSpec{{Input: 1, Output: 1, Amount: 1, Type: "production"}},
	}
	assert.Error(t, st.Import(context.Background(), mf))
}

func TestImportRejectsDuplicatePair(t *testing.T) {
	st, err := Open(filepath.Join(t.TempDir(), "model.db"))
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	mf, err := DecodeModel(strings.NewReader(testModel))
	require.NoError(t, err)
	mf.Exchanges = append(mf.Exchanges, ExchangeSpec{Input: 100, Output: 1, Amount: 0.5, Type: ExchangeBiosphere})

	err = st.Import(context.Background(), mf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "100->1")
}

func TestImportRejectsDuplicatePairAcrossImports(t *testing.T) {
	e := openTestEngine(t, testModel)
	mf, err := DecodeModel(strings.NewReader(`
exchanges:
  - {input: 100, output: 1, amount: 0.5, type: biosphere, uncertainty: {type: 2, scale: 0.2}}
`))
	require.NoError(t, err)
	assert.Error(t, e.store.Import(context.Background(), mf))

	seq, err := e.OpenSequence(context.Background(), testStudy(), engine.SequenceOptions{Seed: 1, UseDistributions: true})
	require.NoError(t, err)
	defer seq.Close() //nolint:errcheck
	assert.Len(t, seq.Indices(), 3)
}

func TestDuplicatePairInExistingDatabase(t *testing.T) {
	e := openTestEngine(t, testModel)
	ctx := context.Background()
	_, err := e.store.db.ExecContext(ctx, `DROP INDEX idx_exchanges_unique_pair`)
	require.NoError(t, err)
	_, err = e.store.db.ExecContext(ctx,
		`INSERT INTO exchanges (input_id, output_id, amount, type, uncertainty_type, scale) VALUES (100, 1, 0.5, 'biosphere', 2, 0.2)`)
	require.NoError(t, err)

	_, err = e.OpenSequence(ctx, testStudy(), engine.SequenceOptions{Seed: 1, UseDistributions: true})
	require.Error(t, err)
	assert.True(t, eris.Is(err, engine.ErrCannotResolveStudy))
	assert.Contains(t, err.Error(), "duplicate exchange")
}

func TestSequence_IndicesAreForegroundUncertain(t *testing.T) {
	e := openTestEngine(t, testModel)
	seq, err := e.OpenSequence(context.Background(), testStudy(), engine.SequenceOptions{Seed: 1, UseDistributions: true, PinFirst: true})
	require.NoError(t, err)
	defer seq.Close() //nolint:errcheck

	assert.Equal(t, []model.ParameterIndex{{Row: 2, Col: 1}, {Row: 100, Col: 1}, {Row: 100, Col: 2}}, seq.Indices())
}

func TestSequence_SameSeedReproduces(t *testing.T) {
	e := openTestEngine(t, testModel)
	ctx := context.Background()
	opts := engine.SequenceOptions{Seed: 42, UseDistributions: true, PinFirst: true}

	a, err := e.OpenSequence(ctx, testStudy(), opts)
	require.NoError(t, err)
	b, err := e.OpenSequence(ctx, testStudy(), opts)
	require.NoError(t, err)

	ya, xa, err := engine.DrawN(ctx, a, 5)
	require.NoError(t, err)
	yb, xb, err := engine.DrawN(ctx, b, 5)
	require.NoError(t, err)
	assert.Equal(t, ya, yb)
	assert.Equal(t, xa, xb)

	// Uniform samples stay in bounds.
	for _, row := range xa {
		assert.GreaterOrEqual(t, row[2], 0.8)
		assert.LessOrEqual(t, row[2], 1.2)
		assert.Greater(t, row[1], 0.0)
	}

	c, err := e.OpenSequence(ctx, testStudy(), engine.SequenceOptions{Seed: 43, UseDistributions: true, PinFirst: true})
	require.NoError(t, err)
	yc, _, err := engine.DrawN(ctx, c, 5)
	require.NoError(t, err)
	assert.NotEqual(t, ya, yc)
}

func TestSequence_PinFirst(t *testing.T) {
	e := openTestEngine(t, testModel)
	ctx := context.Background()

	pinned, err := e.OpenSequence(ctx, testStudy(), engine.SequenceOptions{Seed: 7, UseDistributions: true, PinFirst: true})
	require.NoError(t, err)
	loose, err := e.OpenSequence(ctx, testStudy(), engine.SequenceOptions{Seed: 7, UseDistributions: true})
	require.NoError(t, err)

	yp, _, err := engine.DrawN(ctx, pinned, 3)
	require.NoError(t, err)
	yl, _, err := engine.DrawN(ctx, loose, 2)
	require.NoError(t, err)

	// Without pinning the draw sampled at open is skipped.
	assert.Equal(t, yp[1:], yl)
}

func TestSequence_WithoutDistributionsIsStatic(t *testing.T) {
	e := openTestEngine(t, testModel)
	ctx := context.Background()
	seq, err := e.OpenSequence(ctx, testStudy(), engine.SequenceOptions{Seed: 1, PinFirst: true})
	require.NoError(t, err)

	ys, xs, err := engine.DrawN(ctx, seq, 3)
	require.NoError(t, err)
	for i := range ys {
		assert.InDelta(t, 5.6, ys[i], 1e-12)
		assert.Equal(t, []float64{0.5, 2.0, 1.0}, xs[i])
	}
}

func TestSequence_OverrideReplaysSamples(t *testing.T) {
	e := openTestEngine(t, testModel)
	ctx := context.Background()

	full, err := e.OpenSequence(ctx, testStudy(), engine.SequenceOptions{Seed: 3, UseDistributions: true, PinFirst: true})
	require.NoError(t, err)
	ys, xs, err := engine.DrawN(ctx, full, 4)
	require.NoError(t, err)

	replay, err := e.OpenSequence(ctx, testStudy(), engine.SequenceOptions{
		PinFirst: true,
		Override: &engine.Override{Parameters: full.Indices(), Samples: xs},
	})
	require.NoError(t, err)
	yr, xr, err := engine.DrawN(ctx, replay, 4)
	require.NoError(t, err)
	assert.Equal(t, xs, xr)
	for i := range ys {
		assert.InDelta(t, ys[i], yr[i], 1e-12)
	}

	_, err = replay.Next(ctx)
	assert.Error(t, err, "override rows are exhausted")
}

func TestSequence_OverrideFreezesOthers(t *testing.T) {
	e := openTestEngine(t, testModel)
	ctx := context.Background()

	seq, err := e.OpenSequence(ctx, testStudy(), engine.SequenceOptions{
		PinFirst: true,
		Override: &engine.Override{
			Parameters: []model.ParameterIndex{{Row: 100, Col: 1}},
			Samples:    [][]float64{{3.0}, {1.0}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []model.ParameterIndex{{Row: 100, Col: 1}}, seq.Indices())

	ys, _, err := engine.DrawN(ctx, seq, 2)
	require.NoError(t, err)
	assert.InDelta(t, 6.6, ys[0], 1e-12)
	assert.InDelta(t, 4.6, ys[1], 1e-12)
}

func TestSequence_OverrideErrors(t *testing.T) {
	e := openTestEngine(t, testModel)
	ctx := context.Background()

	_, err := e.OpenSequence(ctx, testStudy(), engine.SequenceOptions{
		Override: &engine.Override{Parameters: []model.ParameterIndex{{Row: 55, Col: 1}}, Samples: [][]float64{{1}}},
	})
	assert.Error(t, err)

	_, err = e.OpenSequence(ctx, testStudy(), engine.SequenceOptions{
		Override: &engine.Override{Parameters: []model.ParameterIndex{{Row: 2, Col: 1}}, Samples: [][]float64{{1, 2}}},
	})
	assert.Error(t, err)
}

func TestTraverse(t *testing.T) {
	e := openTestEngine(t, testModel)
	ctx := context.Background()

	tr, err := e.Traverse(ctx, testStudy(), 0, 100)
	require.NoError(t, err)
	assert.InDelta(t, 5.6, tr.Score, 1e-12)
	assert.Equal(t, 3, tr.Calculations)

	impacts := map[model.ParameterIndex]float64{}
	for _, edge := range tr.Edges {
		impacts[model.ParameterIndex{Row: edge.From, Col: edge.To}] += edge.Impact
	}
	assert.InDelta(t, 2.0, impacts[model.ParameterIndex{Row: 100, Col: 1}], 1e-12)
	assert.InDelta(t, 2.8, impacts[model.ParameterIndex{Row: 101, Col: 1}], 1e-12)
	assert.InDelta(t, 0.8, impacts[model.ParameterIndex{Row: 2, Col: 1}], 1e-12)
	assert.InDelta(t, 0.5, impacts[model.ParameterIndex{Row: 100, Col: 2}], 1e-12)
	assert.InDelta(t, 0.3, impacts[model.ParameterIndex{Row: 3, Col: 2}], 1e-12)
	assert.InDelta(t, 0.3, impacts[model.ParameterIndex{Row: 100, Col: 3}], 1e-12)
}

func TestTraverse_CutoffAndMaxCalc(t *testing.T) {
	e := openTestEngine(t, testModel)
	ctx := context.Background()

	// 0.8/5.6 ~ 0.14: a 0.2 cutoff keeps only the direct emissions of the unit.
	tr, err := e.Traverse(ctx, testStudy(), 0.2, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, tr.Calculations)
	assert.Len(t, tr.Edges, 2)

	tr, err = e.Traverse(ctx, testStudy(), 0, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, tr.Calculations)
	assert.Len(t, tr.Edges, 3)
}

func TestDescribe(t *testing.T) {
	e := openTestEngine(t, testModel)
	pv, err := e.Describe(context.Background(), model.ParameterIndex{Row: 100, Col: 2})
	require.NoError(t, err)
	assert.Equal(t, model.Provenance{
		InputName:       "carbon dioxide",
		InputLocation:   "",
		InputCategories: "air",
		OutputName:      "steel production",
		OutputLocation:  "GLO",
		ExchangeType:    "biosphere",
		ExchangeAmount:  1.0,
		ExchangeUnit:    "kg",
	}, pv)

	_, err = e.Describe(context.Background(), model.ParameterIndex{Row: 1, Col: 100})
	assert.Error(t, err)
}

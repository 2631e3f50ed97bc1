package sensitivity

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/lca-gsa/internal/cache"
	"github.com/sells-group/lca-gsa/internal/engine"
	"github.com/sells-group/lca-gsa/internal/model"
	"github.com/sells-group/lca-gsa/internal/montecarlo"
)

// ContributionSource reduces a graph traversal of the study to per-parameter impacts.
type ContributionSource interface {
	Contributions(ctx context.Context, study cache.StudyDir) (map[model.ParameterIndex]float64, error)
}

// Pipeline produces the sensitivity report of a run directory.
type Pipeline struct {
	Analyzer      *Analyzer
	Contributions ContributionSource
	Graph         engine.ModelGraph
	Scores        engine.ScoringEngine
}

// Run analyzes every persisted chunk of dir. The index and contribution passes run
// concurrently; the report is recomputed from scratch on each call.
func (p *Pipeline) Run(ctx context.Context, dir cache.RunDir) (*model.SensitivityReport, error) {
	log := zap.L().With(zap.String("component", "sensitivity.pipeline"), zap.String("dir", dir.Path))

	params, err := montecarlo.ReadIndices(dir)
	if err != nil {
		return nil, eris.Wrap(err, "sensitivity: no parameter indices, run the simulation first")
	}
	x, y, err := montecarlo.CollectXY(dir)
	if err != nil {
		return nil, err
	}
	if len(x) > 0 && width(x) != len(params) {
		return nil, eris.Errorf("sensitivity: samples have %d columns for %d parameters", width(x), len(params))
	}

	var (
		analysis      *Analysis
		contributions map[model.ParameterIndex]float64
		score         engine.Score
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		analysis, err = p.Analyzer.Analyze(gctx, x, y)
		return err
	})
	g.Go(func() error {
		var err error
		contributions, err = p.Contributions.Contributions(gctx, dir.Study)
		return err
	})
	g.Go(func() error {
		var err error
		score, err = p.Scores.DeterministicScore(gctx, dir.Config.Study)
		return eris.Wrap(err, "sensitivity: deterministic score")
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	indices := analysis.Indices
	if len(y) == 0 {
		indices = make([]float64, len(params))
	}
	rows, err := Combine(ctx, p.Graph, params, indices, contributions, analysis.Method)
	if err != nil {
		return nil, err
	}

	log.Info("sensitivity report ready",
		zap.Int("samples", len(y)),
		zap.Int("parameters", len(params)),
		zap.String("method", analysis.Method),
		zap.Float64("score", score.Value),
	)
	return &model.SensitivityReport{
		Score:     score.Value,
		Unit:      score.Unit,
		Linearity: analysis.Linearity,
		Method:    analysis.Method,
		Rows:      rows,
	}, nil
}

// Package contribution decomposes the deterministic score of a study into impacts of
// parameter pairs, caching the raw graph traversal in the study directory.
package contribution

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lca-gsa/internal/cache"
	"github.com/sells-group/lca-gsa/internal/engine"
	"github.com/sells-group/lca-gsa/internal/model"
)

// Analyzer runs graph traversals with fixed truncation bounds.
type Analyzer struct {
	traverser engine.GraphTraverser
	cutoff    float64
	maxCalc   int
}

// NewAnalyzer creates an analyzer. cutoff is relative to the total score.
func NewAnalyzer(t engine.GraphTraverser, cutoff float64, maxCalc int) *Analyzer {
	return &Analyzer{traverser: t, cutoff: cutoff, maxCalc: maxCalc}
}

// Traversal returns the cached traversal for the study, computing and caching it
// when absent.
func (a *Analyzer) Traversal(ctx context.Context, study cache.StudyDir) (*engine.Traversal, error) {
	if a.cutoff < 0 || a.cutoff >= 1 || a.maxCalc <= 0 {
		return nil, eris.Wrapf(model.ErrInvalidConfig, "contribution: cutoff %g, max calc %d", a.cutoff, a.maxCalc)
	}
	log := zap.L().With(zap.String("component", "contribution.analyzer"))
	path := study.ContributionPath(a.cutoff, a.maxCalc)

	ok, err := cache.Exists(path)
	if err != nil {
		return nil, err
	}
	if ok {
		var t engine.Traversal
		if err := cache.ReadJSON(path, &t); err != nil {
			return nil, err
		}
		log.Debug("using cached traversal", zap.String("path", path))
		return &t, nil
	}

	t, err := a.traverser.Traverse(ctx, study.Study, a.cutoff, a.maxCalc)
	if err != nil {
		return nil, eris.Wrap(err, "contribution: traverse")
	}
	if err := cache.WriteJSON(path, t); err != nil {
		return nil, err
	}
	log.Info("graph traversal cached",
		zap.String("path", path),
		zap.Int("edges", len(t.Edges)),
		zap.Int("calculations", t.Calculations),
	)
	return t, nil
}

// Contributions reduces the traversal to the summed impact of each (input, output) pair.
func (a *Analyzer) Contributions(ctx context.Context, study cache.StudyDir) (map[model.ParameterIndex]float64, error) {
	t, err := a.Traversal(ctx, study)
	if err != nil {
		return nil, err
	}
	return Reduce(t.Edges), nil
}

// Reduce sums edge impacts by (From, To).
func Reduce(edges []engine.Edge) map[model.ParameterIndex]float64 {
	out := make(map[model.ParameterIndex]float64, len(edges))
	for _, e := range edges {
		out[model.ParameterIndex{Row: e.From, Col: e.To}] += e.Impact
	}
	return out
}

// Package engine defines the contracts of the external collaborators the analysis
// core consumes: the scoring engine, the graph traversal engine and the model graph
// used to describe parameters.
package engine

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lca-gsa/internal/model"
)

// ErrCannotResolveStudy marks configuration errors: missing or ambiguous functional
// unit, unknown method, or an unusable model. These are never retried.
var ErrCannotResolveStudy = eris.New("engine: cannot resolve study")

// Score is a deterministic result.
type Score struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

// Draw is one stochastic evaluation: the score and the sampled parameter values,
// ordered like Sequence.Indices.
type Draw struct {
	Score  float64
	Sample []float64
}

// Override builds a reduced-uncertainty configuration: the listed parameters replay
// Samples row by row, every other parameter is frozen at its point estimate.
type Override struct {
	Parameters []model.ParameterIndex
	Samples    [][]float64
}

// SequenceOptions configures a stochastic sequence.
type SequenceOptions struct {
	Seed             int64
	UseDistributions bool
	// PinFirst makes the first Next return the draw sampled when the sequence was
	// opened instead of advancing past it, so a sequence is reproducible from draw 0.
	PinFirst bool
	Override *Override
}

// Sequence is a lazily advancing, restartable stream of stochastic draws.
type Sequence interface {
	// Indices identifies the parameter behind each Sample column. It is stable for
	// the lifetime of the sequence.
	Indices() []model.ParameterIndex
	Next(ctx context.Context) (Draw, error)
	Close() error
}

// ScoringEngine evaluates a study.
type ScoringEngine interface {
	DeterministicScore(ctx context.Context, study model.StudyConfig) (Score, error)
	OpenSequence(ctx context.Context, study model.StudyConfig, opts SequenceOptions) (Sequence, error)
}

// Edge is one pairwise contribution returned by a graph traversal. From is the
// supplying (input) node, To the consuming (output) node.
type Edge struct {
	From   int64   `json:"from"`
	To     int64   `json:"to"`
	Amount float64 `json:"amount"`
	Impact float64 `json:"impact"`
}

// Traversal is the raw result of a graph traversal.
type Traversal struct {
	Score        float64 `json:"score"`
	Edges        []Edge  `json:"edges"`
	Calculations int     `json:"calculations"`
}

// GraphTraverser decomposes the deterministic score into pairwise contributions.
type GraphTraverser interface {
	Traverse(ctx context.Context, study model.StudyConfig, cutoff float64, maxCalc int) (*Traversal, error)
}

// ModelGraph resolves parameter identifiers to human-readable provenance.
type ModelGraph interface {
	Describe(ctx context.Context, p model.ParameterIndex) (model.Provenance, error)
}

// DrawN pulls n draws from seq, returning scores and the parallel sample matrix.
func DrawN(ctx context.Context, seq Sequence, n int) ([]float64, [][]float64, error) {
	scores := make([]float64, 0, n)
	samples := make([][]float64, 0, n)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, nil, eris.Wrap(err, "engine: draw cancelled")
		}
		d, err := seq.Next(ctx)
		if err != nil {
			return nil, nil, eris.Wrapf(err, "engine: draw %d", i)
		}
		scores = append(scores, d.Score)
		samples = append(samples, d.Sample)
	}
	return scores, samples, nil
}

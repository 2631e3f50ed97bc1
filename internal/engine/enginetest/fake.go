// Package enginetest provides an in-memory scoring engine for tests: a linear model
// whose parameters are normally distributed around 1.
package enginetest

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lca-gsa/internal/engine"
	"github.com/sells-group/lca-gsa/internal/model"
)

// Fake scores sum(Weights[j] * x[j]). Parameter j is identified as (j+1, 1000).
type Fake struct {
	Weights []float64
	Unit    string
	// Sigma is the standard deviation of every parameter. Zero means 0.1.
	Sigma float64
	Edges []engine.Edge
	// FailOpen, when set, is called with the 1-based count of OpenSequence calls;
	// a non-nil result fails that call.
	FailOpen func(n int) error

	mu         sync.Mutex
	opens      int
	traversals int
}

var (
	_ engine.ScoringEngine  = (*Fake)(nil)
	_ engine.GraphTraverser = (*Fake)(nil)
	_ engine.ModelGraph     = (*Fake)(nil)
)

// Param identifies parameter j.
func Param(j int) model.ParameterIndex {
	return model.ParameterIndex{Row: int64(j + 1), Col: 1000}
}

// Params lists the parameters of f in column order.
func (f *Fake) Params() []model.ParameterIndex {
	out := make([]model.ParameterIndex, len(f.Weights))
	for j := range out {
		out[j] = Param(j)
	}
	return out
}

// Opens counts OpenSequence calls.
func (f *Fake) Opens() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opens
}

// Traversals counts Traverse calls.
func (f *Fake) Traversals() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.traversals
}

func (f *Fake) score(x []float64) float64 {
	var s float64
	for j, w := range f.Weights {
		s += w * x[j]
	}
	return s
}

func (f *Fake) static() []float64 {
	x := make([]float64, len(f.Weights))
	for j := range x {
		x[j] = 1
	}
	return x
}

// DeterministicScore scores every parameter at 1.
func (f *Fake) DeterministicScore(_ context.Context, _ model.StudyConfig) (engine.Score, error) {
	return engine.Score{Value: f.score(f.static()), Unit: f.Unit}, nil
}

// OpenSequence opens a sequence with the same pinning rules as a real engine.
func (f *Fake) OpenSequence(_ context.Context, _ model.StudyConfig, opts engine.SequenceOptions) (engine.Sequence, error) {
	f.mu.Lock()
	f.opens++
	n := f.opens
	f.mu.Unlock()
	if f.FailOpen != nil {
		if err := f.FailOpen(n); err != nil {
			return nil, err
		}
	}

	seq := &sequence{f: f, pin: opts.PinFirst}
	if o := opts.Override; o != nil {
		seq.override = o
		seq.indices = o.Parameters
		for _, p := range o.Parameters {
			j := int(p.Row) - 1
			if p.Col != 1000 || j < 0 || j >= len(f.Weights) {
				return nil, eris.Errorf("enginetest: unknown parameter %s", p)
			}
			seq.columns = append(seq.columns, j)
		}
	} else {
		seq.indices = f.Params()
		if opts.UseDistributions {
			seed := uint64(opts.Seed)
			seq.rng = rand.New(rand.NewPCG(seed, seed+1))
		}
	}

	first, err := seq.draw(0)
	if err != nil {
		return nil, err
	}
	seq.first = first
	return seq, nil
}

// Traverse returns the configured edges.
func (f *Fake) Traverse(ctx context.Context, study model.StudyConfig, _ float64, _ int) (*engine.Traversal, error) {
	f.mu.Lock()
	f.traversals++
	f.mu.Unlock()
	score, _ := f.DeterministicScore(ctx, study)
	return &engine.Traversal{Score: score.Value, Edges: f.Edges, Calculations: len(f.Edges)}, nil
}

// Describe names both ends of a parameter after its row and column.
func (f *Fake) Describe(_ context.Context, p model.ParameterIndex) (model.Provenance, error) {
	return model.Provenance{
		InputName:      fmt.Sprintf("input %d", p.Row),
		InputLocation:  "GLO",
		OutputName:     fmt.Sprintf("output %d", p.Col),
		OutputLocation: "CH",
		ExchangeType:   "technosphere",
		ExchangeAmount: 1,
		ExchangeUnit:   "kg",
	}, nil
}

type sequence struct {
	f        *Fake
	indices  []model.ParameterIndex
	columns  []int
	override *engine.Override
	rng      *rand.Rand
	pin      bool
	served   bool
	first    engine.Draw
	cursor   int
}

func (s *sequence) Indices() []model.ParameterIndex { return s.indices }

func (s *sequence) Next(ctx context.Context) (engine.Draw, error) {
	if err := ctx.Err(); err != nil {
		return engine.Draw{}, err
	}
	if s.pin && !s.served {
		s.served = true
		return s.first, nil
	}
	s.cursor++
	return s.draw(s.cursor)
}

func (s *sequence) Close() error { return nil }

func (s *sequence) draw(row int) (engine.Draw, error) {
	x := s.f.static()
	switch {
	case s.override != nil:
		if row >= len(s.override.Samples) {
			return engine.Draw{}, eris.Errorf("enginetest: override exhausted at row %d", row)
		}
		for i, j := range s.columns {
			x[j] = s.override.Samples[row][i]
		}
		sample := append([]float64(nil), s.override.Samples[row]...)
		return engine.Draw{Score: s.f.score(x), Sample: sample}, nil
	case s.rng != nil:
		sigma := s.f.Sigma
		if sigma == 0 {
			sigma = 0.1
		}
		for j := range x {
			x[j] = 1 + sigma*s.rng.NormFloat64()
		}
	}
	return engine.Draw{Score: s.f.score(x), Sample: x}, nil
}

package inventory

import (
	"context"
	"math/rand/v2"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lca-gsa/internal/engine"
	"github.com/sells-group/lca-gsa/internal/model"
)

// sequence evaluates the graph once per draw. Draw 0 is computed when the sequence
// is opened; with PinFirst it is returned by the first Next, otherwise skipped.
type sequence struct {
	g         *graph
	indices   []model.ParameterIndex
	positions []int
	samplers  []sampler
	override  *engine.Override
	static    []float64

	pinFirst bool
	served   bool
	first    engine.Draw
	cursor   int
}

func newSequence(g *graph, opts engine.SequenceOptions) (*sequence, error) {
	seq := &sequence{
		g:        g,
		static:   g.staticAmounts(),
		pinFirst: opts.PinFirst,
		override: opts.Override,
	}

	if opts.Override != nil {
		positions, err := g.positions(opts.Override.Parameters)
		if err != nil {
			return nil, err
		}
		for i, row := range opts.Override.Samples {
			if len(row) != len(positions) {
				return nil, eris.Errorf("inventory: override row %d has %d values for %d parameters", i, len(row), len(positions))
			}
		}
		seq.positions = positions
		seq.indices = append([]model.ParameterIndex(nil), opts.Override.Parameters...)
	} else {
		seq.positions = g.parameters()
		seq.indices = make([]model.ParameterIndex, len(seq.positions))
		for i, pos := range seq.positions {
			seq.indices[i] = g.exchanges[pos].pair()
		}
		if opts.UseDistributions {
			seed := uint64(opts.Seed)
			src := rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
			seq.samplers = make([]sampler, len(seq.positions))
			for i, pos := range seq.positions {
				s, err := newSampler(g.exchanges[pos], src)
				if err != nil {
					return nil, err
				}
				seq.samplers[i] = s
			}
		}
	}

	first, err := seq.draw(0)
	if err != nil {
		return nil, err
	}
	seq.first = first
	return seq, nil
}

func (s *sequence) Indices() []model.ParameterIndex {
	return s.indices
}

func (s *sequence) Next(ctx context.Context) (engine.Draw, error) {
	if err := ctx.Err(); err != nil {
		return engine.Draw{}, eris.Wrap(err, "inventory: next draw")
	}
	if s.pinFirst && !s.served {
		s.served = true
		return s.first, nil
	}
	s.cursor++
	return s.draw(s.cursor)
}

func (s *sequence) Close() error { return nil }

func (s *sequence) draw(row int) (engine.Draw, error) {
	amounts := append([]float64(nil), s.static...)
	sample := make([]float64, len(s.positions))

	for i, pos := range s.positions {
		var v float64
		switch {
		case s.override != nil:
			if row >= len(s.override.Samples) {
				return engine.Draw{}, eris.Errorf("inventory: override has %d rows, draw %d requested", len(s.override.Samples), row)
			}
			v = s.override.Samples[row][i]
		case s.samplers != nil:
			v = s.samplers[i].Rand()
		default:
			v = s.static[pos]
		}
		amounts[pos] = v
		sample[i] = v
	}
	return engine.Draw{Score: s.g.score(amounts), Sample: sample}, nil
}

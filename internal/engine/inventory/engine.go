package inventory

import (
	"context"
	"database/sql"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lca-gsa/internal/engine"
	"github.com/sells-group/lca-gsa/internal/model"
)

// Engine serves the scoring, traversal and description contracts from a Store.
type Engine struct {
	store *Store
}

var (
	_ engine.ScoringEngine  = (*Engine)(nil)
	_ engine.GraphTraverser = (*Engine)(nil)
	_ engine.ModelGraph     = (*Engine)(nil)
)

// NewEngine creates an engine over st.
func NewEngine(st *Store) *Engine {
	return &Engine{store: st}
}

// DeterministicScore evaluates the study at static exchange amounts.
func (e *Engine) DeterministicScore(ctx context.Context, study model.StudyConfig) (engine.Score, error) {
	g, err := e.store.loadGraph(ctx, study)
	if err != nil {
		return engine.Score{}, err
	}
	return engine.Score{Value: g.score(g.staticAmounts()), Unit: g.methodUnit}, nil
}

// OpenSequence opens a stochastic sequence over the study's foreground parameters,
// or over the override's parameters when one is given.
func (e *Engine) OpenSequence(ctx context.Context, study model.StudyConfig, opts engine.SequenceOptions) (engine.Sequence, error) {
	g, err := e.store.loadGraph(ctx, study)
	if err != nil {
		return nil, err
	}
	seq, err := newSequence(g, opts)
	if err != nil {
		return nil, err
	}
	zap.L().Debug("opened sequence",
		zap.String("component", "inventory.engine"),
		zap.Int64("seed", opts.Seed),
		zap.Int("parameters", len(seq.indices)),
		zap.Bool("override", opts.Override != nil),
	)
	return seq, nil
}

// Describe resolves the provenance of a parameter from the exchange and its endpoints.
func (e *Engine) Describe(ctx context.Context, p model.ParameterIndex) (model.Provenance, error) {
	var pv model.Provenance
	err := e.store.db.QueryRowContext(ctx,
		`SELECT i.name, i.location, i.category, o.name, o.location, x.type, x.amount, i.unit
		 FROM exchanges x
		 JOIN activities i ON i.id = x.input_id
		 JOIN activities o ON o.id = x.output_id
		 WHERE x.input_id = ? AND x.output_id = ?
		 ORDER BY x.id LIMIT 1`, p.Row, p.Col,
	).Scan(&pv.InputName, &pv.InputLocation, &pv.InputCategories,
		&pv.OutputName, &pv.OutputLocation, &pv.ExchangeType, &pv.ExchangeAmount, &pv.ExchangeUnit)
	if eris.Is(err, sql.ErrNoRows) {
		return model.Provenance{}, eris.Errorf("inventory: no exchange for parameter %s", p)
	}
	if err != nil {
		return model.Provenance{}, eris.Wrapf(err, "inventory: describe %s", p)
	}
	return pv, nil
}

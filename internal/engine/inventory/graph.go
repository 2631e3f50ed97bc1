package inventory

import (
	"context"
	"database/sql"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lca-gsa/internal/engine"
	"github.com/sells-group/lca-gsa/internal/model"
)

// Brightway uncertainty type codes.
const (
	UncertaintyUndefined  = 0
	UncertaintyNone       = 1
	UncertaintyLognormal  = 2
	UncertaintyNormal     = 3
	UncertaintyUniform    = 4
	UncertaintyTriangular = 5
)

type activity struct {
	id         int64
	database   string
	name       string
	location   string
	category   string
	typ        string
	unit       string
	background bool
}

type uncertainty struct {
	typ     int
	loc     sql.NullFloat64
	scale   sql.NullFloat64
	minimum sql.NullFloat64
	maximum sql.NullFloat64
}

type exchange struct {
	id     int64
	input  int64
	output int64
	amount float64
	typ    string
	unc    uncertainty
}

func (e exchange) pair() model.ParameterIndex {
	return model.ParameterIndex{Row: e.input, Col: e.output}
}

// graph is the part of the model reachable from one functional unit, scored with
// one method.
type graph struct {
	fu         int64
	demand     float64
	methodUnit string
	acts       map[int64]*activity
	exchanges  []exchange
	tech       map[int64][]int
	bio        map[int64][]int
	cf         map[int64]float64
	// order lists reachable activities with every consumer before its suppliers.
	order []int64
}

func (s *Store) loadGraph(ctx context.Context, study model.StudyConfig) (*graph, error) {
	project, err := s.Project(ctx)
	if err != nil {
		return nil, err
	}
	if project != "" && project != study.Project {
		return nil, eris.Wrapf(engine.ErrCannotResolveStudy, "inventory: model belongs to project %q, not %q", project, study.Project)
	}

	g := &graph{
		demand: study.Amount,
		acts:   make(map[int64]*activity),
		tech:   make(map[int64][]int),
		bio:    make(map[int64][]int),
		cf:     make(map[int64]float64),
	}

	if g.fu, err = s.findActivity(ctx, study); err != nil {
		return nil, err
	}

	err = s.db.QueryRowContext(ctx, `SELECT unit FROM methods WHERE name = ?`, study.Method).Scan(&g.methodUnit)
	if eris.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(engine.ErrCannotResolveStudy, "inventory: unknown method %q", study.Method)
	}
	if err != nil {
		return nil, eris.Wrap(err, "inventory: read method")
	}

	if err := s.loadActivities(ctx, g); err != nil {
		return nil, err
	}
	if err := s.loadExchanges(ctx, g); err != nil {
		return nil, err
	}
	if err := s.loadFactors(ctx, g, study.Method); err != nil {
		return nil, err
	}
	if err := g.sort(); err != nil {
		return nil, err
	}
	return g, nil
}

func (s *Store) findActivity(ctx context.Context, study model.StudyConfig) (int64, error) {
	name, location := study.ActivityName()
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM activities WHERE database = ? AND name = ? AND location = ?`,
		study.Database, name, location)
	if err != nil {
		return 0, eris.Wrap(err, "inventory: find activity")
	}
	defer rows.Close() //nolint:errcheck

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return 0, eris.Wrap(err, "inventory: scan activity id")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return 0, eris.Wrap(err, "inventory: find activity")
	}
	if len(ids) != 1 {
		return 0, eris.Wrapf(engine.ErrCannotResolveStudy, "inventory: %d activities match %q in %s", len(ids), study.Activity, study.Database)
	}
	return ids[0], nil
}

func (s *Store) loadActivities(ctx context.Context, g *graph) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT a.id, a.database, a.name, a.location, a.category, a.type, a.unit, d.background
		 FROM activities a JOIN databases d ON d.name = a.database`)
	if err != nil {
		return eris.Wrap(err, "inventory: load activities")
	}
	defer rows.Close() //nolint:errcheck

	for rows.Next() {
		a := &activity{}
		if err := rows.Scan(&a.id, &a.database, &a.name, &a.location, &a.category, &a.typ, &a.unit, &a.background); err != nil {
			return eris.Wrap(err, "inventory: scan activity")
		}
		g.acts[a.id] = a
	}
	return eris.Wrap(rows.Err(), "inventory: load activities")
}

func (s *Store) loadExchanges(ctx context.Context, g *graph) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, input_id, output_id, amount, type, uncertainty_type, loc, scale, minimum, maximum
		 FROM exchanges ORDER BY id`)
	if err != nil {
		return eris.Wrap(err, "inventory: load exchanges")
	}
	defer rows.Close() //nolint:errcheck

	seen := make(map[model.ParameterIndex]bool)
	for rows.Next() {
		var e exchange
		if err := rows.Scan(&e.id, &e.input, &e.output, &e.amount, &e.typ,
			&e.unc.typ, &e.unc.loc, &e.unc.scale, &e.unc.minimum, &e.unc.maximum); err != nil {
			return eris.Wrap(err, "inventory: scan exchange")
		}
		if seen[e.pair()] {
			return eris.Wrapf(engine.ErrCannotResolveStudy, "inventory: duplicate exchange %s", e.pair())
		}
		seen[e.pair()] = true
		pos := len(g.exchanges)
		g.exchanges = append(g.exchanges, e)
		switch e.typ {
		case ExchangeTechnosphere:
			g.tech[e.output] = append(g.tech[e.output], pos)
		case ExchangeBiosphere:
			g.bio[e.output] = append(g.bio[e.output], pos)
		}
	}
	return eris.Wrap(rows.Err(), "inventory: load exchanges")
}

func (s *Store) loadFactors(ctx context.Context, g *graph, method string) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT flow_id, factor FROM characterization_factors WHERE method = ?`, method)
	if err != nil {
		return eris.Wrap(err, "inventory: load factors")
	}
	defer rows.Close() //nolint:errcheck

	for rows.Next() {
		var flow int64
		var factor float64
		if err := rows.Scan(&flow, &factor); err != nil {
			return eris.Wrap(err, "inventory: scan factor")
		}
		g.cf[flow] = factor
	}
	return eris.Wrap(rows.Err(), "inventory: load factors")
}

// sort orders the activities reachable from the functional unit so that supply can
// be pushed in a single pass. Cycles are rejected.
func (g *graph) sort() error {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[int64]int)
	var post []int64

	var visit func(id int64) error
	visit = func(id int64) error {
		switch state[id] {
		case visiting:
			return eris.Wrapf(engine.ErrCannotResolveStudy, "inventory: technosphere cycle through activity %d", id)
		case done:
			return nil
		}
		state[id] = visiting
		for _, pos := range g.tech[id] {
			if err := visit(g.exchanges[pos].input); err != nil {
				return err
			}
		}
		state[id] = done
		post = append(post, id)
		return nil
	}
	if err := visit(g.fu); err != nil {
		return err
	}

	g.order = make([]int64, len(post))
	for i, id := range post {
		g.order[len(post)-1-i] = id
	}
	return nil
}

func (g *graph) staticAmounts() []float64 {
	amounts := make([]float64, len(g.exchanges))
	for i, e := range g.exchanges {
		amounts[i] = e.amount
	}
	return amounts
}

// supply propagates the functional demand through the technosphere.
func (g *graph) supply(amounts []float64) map[int64]float64 {
	supply := map[int64]float64{g.fu: g.demand}
	for _, id := range g.order {
		s := supply[id]
		if s == 0 {
			continue
		}
		for _, pos := range g.tech[id] {
			supply[g.exchanges[pos].input] += s * amounts[pos]
		}
	}
	return supply
}

// score characterizes the biosphere exchanges of every supplied activity.
func (g *graph) score(amounts []float64) float64 {
	supply := g.supply(amounts)
	var total float64
	for _, id := range g.order {
		s := supply[id]
		if s == 0 {
			continue
		}
		for _, pos := range g.bio[id] {
			total += s * amounts[pos] * g.cf[g.exchanges[pos].input]
		}
	}
	return total
}

// unitScores is the score of one unit of each reachable activity.
func (g *graph) unitScores(amounts []float64) map[int64]float64 {
	unit := make(map[int64]float64, len(g.order))
	for i := len(g.order) - 1; i >= 0; i-- {
		id := g.order[i]
		var u float64
		for _, pos := range g.bio[id] {
			u += amounts[pos] * g.cf[g.exchanges[pos].input]
		}
		for _, pos := range g.tech[id] {
			u += amounts[pos] * unit[g.exchanges[pos].input]
		}
		unit[id] = u
	}
	return unit
}

// parameters lists the uncertain exchanges of reachable foreground activities, in
// exchange id order.
func (g *graph) parameters() []int {
	reachable := make(map[int64]bool, len(g.order))
	for _, id := range g.order {
		reachable[id] = true
	}
	var out []int
	for pos, e := range g.exchanges {
		if e.unc.typ < UncertaintyLognormal || !reachable[e.output] {
			continue
		}
		if a := g.acts[e.output]; a != nil && a.background {
			continue
		}
		out = append(out, pos)
	}
	return out
}

// positions maps parameter identifiers onto exchange positions. Pairs are unique
// once loadExchanges succeeds.
func (g *graph) positions(params []model.ParameterIndex) ([]int, error) {
	byPair := make(map[model.ParameterIndex]int, len(g.exchanges))
	for pos, e := range g.exchanges {
		byPair[e.pair()] = pos
	}
	out := make([]int, len(params))
	for i, p := range params {
		pos, ok := byPair[p]
		if !ok {
			return nil, eris.Errorf("inventory: no exchange for parameter %s", p)
		}
		out[i] = pos
	}
	return out, nil
}

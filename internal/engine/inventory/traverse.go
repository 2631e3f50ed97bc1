package inventory

import (
	"container/heap"
	"context"
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lca-gsa/internal/engine"
	"github.com/sells-group/lca-gsa/internal/model"
)

type frontierItem struct {
	id     int64
	impact float64
}

// frontier is a max-heap on absolute cumulative impact.
type frontier []frontierItem

func (f frontier) Len() int           { return len(f) }
func (f frontier) Less(i, j int) bool { return math.Abs(f[i].impact) > math.Abs(f[j].impact) }
func (f frontier) Swap(i, j int)      { f[i], f[j] = f[j], f[i] }
func (f *frontier) Push(x any)        { *f = append(*f, x.(frontierItem)) }
func (f *frontier) Pop() any {
	old := *f
	item := old[len(old)-1]
	*f = old[:len(old)-1]
	return item
}

// Traverse expands activities from the functional unit in order of cumulative impact.
// Edges whose impact is below cutoff times the total score are dropped and their
// suppliers are not expanded; at most maxCalc activities are expanded.
func (e *Engine) Traverse(ctx context.Context, study model.StudyConfig, cutoff float64, maxCalc int) (*engine.Traversal, error) {
	g, err := e.store.loadGraph(ctx, study)
	if err != nil {
		return nil, err
	}

	amounts := g.staticAmounts()
	supply := g.supply(amounts)
	unit := g.unitScores(amounts)
	total := g.demand * unit[g.fu]
	threshold := math.Abs(total) * cutoff

	result := &engine.Traversal{Score: total}
	queued := map[int64]bool{g.fu: true}
	f := &frontier{{id: g.fu, impact: total}}

	for f.Len() > 0 && result.Calculations < maxCalc {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "inventory: traverse")
		}
		item := heap.Pop(f).(frontierItem)
		result.Calculations++
		s := supply[item.id]

		for _, pos := range g.bio[item.id] {
			x := g.exchanges[pos]
			impact := s * amounts[pos] * g.cf[x.input]
			if impact == 0 || math.Abs(impact) < threshold {
				continue
			}
			result.Edges = append(result.Edges, engine.Edge{From: x.input, To: x.output, Amount: s * amounts[pos], Impact: impact})
		}
		for _, pos := range g.tech[item.id] {
			x := g.exchanges[pos]
			impact := s * amounts[pos] * unit[x.input]
			if impact == 0 || math.Abs(impact) < threshold {
				continue
			}
			result.Edges = append(result.Edges, engine.Edge{From: x.input, To: x.output, Amount: s * amounts[pos], Impact: impact})
			if !queued[x.input] {
				queued[x.input] = true
				heap.Push(f, frontierItem{id: x.input, impact: supply[x.input] * unit[x.input]})
			}
		}
	}
	return result, nil
}

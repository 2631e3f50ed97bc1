package sensitivity

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lca-gsa/internal/engine"
	"github.com/sells-group/lca-gsa/internal/model"
)

// Order returns column positions sorted by descending index. Ties keep column order.
func Order(indices []float64) []int {
	order := make([]int, len(indices))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return indices[order[a]] > indices[order[b]] })
	return order
}

// Combine describes every parameter and emits rows in rank order. Parameters
// without a contribution get 0.
func Combine(ctx context.Context, graph engine.ModelGraph, params []model.ParameterIndex, indices []float64,
	contributions map[model.ParameterIndex]float64, method string) ([]model.SensitivityRow, error) {
	if len(indices) != len(params) {
		return nil, eris.Errorf("sensitivity: %d indices for %d parameters", len(indices), len(params))
	}

	rows := make([]model.SensitivityRow, 0, len(params))
	for rank, col := range Order(indices) {
		p := params[col]
		pv, err := graph.Describe(ctx, p)
		if err != nil {
			return nil, eris.Wrapf(err, "sensitivity: describe %s", p)
		}
		rows = append(rows, model.SensitivityRow{
			Rank:         rank + 1,
			Parameter:    p,
			Provenance:   pv,
			Index:        indices[col],
			Contribution: contributions[p],
			Method:       method,
		})
	}
	return rows, nil
}

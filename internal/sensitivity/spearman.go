package sensitivity

import (
	"context"
	"math"
	"sort"

	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/stat"

	"github.com/sells-group/lca-gsa/internal/model"
)

// Spearman indexes each parameter by the rank correlation of its samples with the scores.
type Spearman struct{}

// Name implements Method.
func (Spearman) Name() string { return model.MethodSpearman }

// Indices implements Method.
func (Spearman) Indices(ctx context.Context, x [][]float64, y []float64) ([]float64, error) {
	if err := checkShape(x, y); err != nil {
		return nil, err
	}
	out := make([]float64, width(x))
	ry := Ranks(y)
	for j := range out {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "sensitivity: spearman")
		}
		out[j] = pearson(Ranks(column(x, j)), ry)
	}
	return out, nil
}

// SpearmanCorrelation is the rank correlation of a and b, or 0 when either is constant.
func SpearmanCorrelation(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}
	return pearson(Ranks(a), Ranks(b))
}

func pearson(a, b []float64) float64 {
	if len(a) < 2 {
		return 0
	}
	if stat.Variance(a, nil) == 0 || stat.Variance(b, nil) == 0 {
		return 0
	}
	r := stat.Correlation(a, b, nil)
	if math.IsNaN(r) {
		return 0
	}
	return r
}

// Ranks assigns 1-based ranks, averaging the ranks of tied values.
func Ranks(v []float64) []float64 {
	order := make([]int, len(v))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return v[order[a]] < v[order[b]] })

	ranks := make([]float64, len(v))
	for i := 0; i < len(order); {
		j := i + 1
		for j < len(order) && v[order[j]] == v[order[i]] {
			j++
		}
		// positions i..j-1 share ranks i+1..j
		avg := float64(i+1+j) / 2
		for k := i; k < j; k++ {
			ranks[order[k]] = avg
		}
		i = j
	}
	return ranks
}

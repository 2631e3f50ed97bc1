package sensitivity

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/sells-group/lca-gsa/internal/model"
)

// GradientBoosting indexes each parameter by its feature importance in a
// squared-loss boosted ensemble of depth-1 regression trees.
type GradientBoosting struct {
	Rounds       int
	LearningRate float64
}

// Name implements Method.
func (GradientBoosting) Name() string { return model.MethodGradientBoosting }

type stump struct {
	feature   int
	threshold float64
	left      float64
	right     float64
	gain      float64
}

// Indices implements Method. Importances are the total squared-error reduction of
// every split on a parameter, normalized to sum to 1. A constant score yields zeros.
func (g GradientBoosting) Indices(ctx context.Context, x [][]float64, y []float64) ([]float64, error) {
	if err := checkShape(x, y); err != nil {
		return nil, err
	}
	p := width(x)
	importance := make([]float64, p)
	if len(y) < 2 || p == 0 {
		return importance, nil
	}

	// Sample order along each feature, computed once.
	sorted := make([][]int, p)
	for j := range sorted {
		idx := make([]int, len(y))
		for i := range idx {
			idx[i] = i
		}
		sort.SliceStable(idx, func(a, b int) bool { return x[idx[a]][j] < x[idx[b]][j] })
		sorted[j] = idx
	}

	pred := make([]float64, len(y))
	floats.AddConst(stat.Mean(y, nil), pred)
	resid := make([]float64, len(y))

	for round := 0; round < g.Rounds; round++ {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "sensitivity: gradient boosting")
		}
		floats.SubTo(resid, y, pred)

		best := stump{feature: -1}
		for j := 0; j < p; j++ {
			if s := bestSplit(x, resid, sorted[j], j); s.gain > best.gain {
				best = s
			}
		}
		if best.feature < 0 {
			break
		}

		importance[best.feature] += best.gain
		for i, row := range x {
			if row[best.feature] <= best.threshold {
				pred[i] += g.LearningRate * best.left
			} else {
				pred[i] += g.LearningRate * best.right
			}
		}
	}

	if total := floats.Sum(importance); total > 0 {
		floats.Scale(1/total, importance)
	}
	return importance, nil
}

// bestSplit finds the threshold on feature j that most reduces the squared error of
// fitting resid with two constants.
func bestSplit(x [][]float64, resid []float64, order []int, j int) stump {
	n := len(order)
	total := 0.0
	for _, i := range order {
		total += resid[i]
	}
	base := total * total / float64(n)

	best := stump{feature: -1}
	var leftSum float64
	for k := 0; k < n-1; k++ {
		leftSum += resid[order[k]]
		cur, next := x[order[k]][j], x[order[k+1]][j]
		if cur == next {
			continue
		}
		nl, nr := float64(k+1), float64(n-k-1)
		rightSum := total - leftSum
		gain := leftSum*leftSum/nl + rightSum*rightSum/nr - base
		if gain > best.gain+1e-12 {
			best = stump{
				feature:   j,
				threshold: (cur + next) / 2,
				left:      leftSum / nl,
				right:     rightSum / nr,
				gain:      gain,
			}
		}
	}
	return best
}

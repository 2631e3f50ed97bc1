// Package sensitivity ranks model parameters by their influence on the score. It
// decides from a linearity curve whether a rank correlation is adequate and falls
// back to a tree-based feature importance when it is not.
package sensitivity

import (
	"math"

	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/sells-group/lca-gsa/internal/model"
)

const linearityWindows = 10

// LinearityCurve fits the first k*stride samples for k = 1..10, stride = len(y)/10,
// and reports the sum of squared standardized regression coefficients of each fit.
// Fewer than 10 samples give a single point over all of them.
func LinearityCurve(x [][]float64, y []float64) ([]model.LinearityPoint, error) {
	if err := checkShape(x, y); err != nil {
		return nil, err
	}
	if len(y) == 0 {
		return nil, nil
	}

	stride := len(y) / linearityWindows
	var sizes []int
	if stride == 0 {
		sizes = []int{len(y)}
	} else {
		for k := 1; k <= linearityWindows; k++ {
			sizes = append(sizes, k*stride)
		}
	}

	curve := make([]model.LinearityPoint, len(sizes))
	for i, n := range sizes {
		curve[i] = model.LinearityPoint{Iterations: n, Statistic: SRCStatistic(x[:n], y[:n])}
	}
	return curve, nil
}

// SRCStatistic is the sum of squared standardized regression coefficients of the
// least-squares fit of y on x with an intercept. It is 1 for an exactly linear model
// with uncorrelated inputs and 0 when y is constant.
func SRCStatistic(x [][]float64, y []float64) float64 {
	n := len(y)
	if n < 2 || len(x[0]) == 0 {
		return 0
	}
	p := len(x[0])

	sdY := stat.StdDev(y, nil)
	if sdY == 0 || math.IsNaN(sdY) {
		return 0
	}
	meanY := stat.Mean(y, nil)

	a := mat.NewDense(n, p, nil)
	sdX := make([]float64, p)
	col := make([]float64, n)
	for j := 0; j < p; j++ {
		for i := 0; i < n; i++ {
			col[i] = x[i][j]
		}
		mean, sd := stat.MeanStdDev(col, nil)
		sdX[j] = sd
		for i := 0; i < n; i++ {
			a.Set(i, j, col[i]-mean)
		}
	}
	b := mat.NewVecDense(n, nil)
	for i, v := range y {
		b.SetVec(i, v-meanY)
	}

	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDThin) {
		return 0
	}
	rank := svd.Rank(float64(max(n, p)) * eps)
	if rank == 0 {
		return 0
	}
	var coef mat.VecDense
	svd.SolveVecTo(&coef, b, rank)

	var sum float64
	for j := 0; j < p; j++ {
		src := coef.AtVec(j) * sdX[j] / sdY
		sum += src * src
	}
	return sum
}

const eps = 2.220446049250313e-16

func checkShape(x [][]float64, y []float64) error {
	if len(x) != len(y) {
		return eris.Errorf("sensitivity: %d sample rows for %d scores", len(x), len(y))
	}
	for i, row := range x {
		if len(row) != len(x[0]) {
			return eris.Errorf("sensitivity: sample row %d has %d columns, want %d", i, len(row), len(x[0]))
		}
	}
	return nil
}

// column copies column j of x.
func column(x [][]float64, j int) []float64 {
	out := make([]float64, len(x))
	for i, row := range x {
		out[i] = row[j]
	}
	return out
}

func width(x [][]float64) int {
	if len(x) == 0 {
		return 0
	}
	return len(x[0])
}

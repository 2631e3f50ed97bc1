package sensitivity

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/lca-gsa/internal/model"
)

// Method computes one sensitivity index per sample column.
type Method interface {
	Name() string
	Indices(ctx context.Context, x [][]float64, y []float64) ([]float64, error)
}

var (
	_ Method = Spearman{}
	_ Method = GradientBoosting{}
)

// Analyzer chooses the method from the linearity of the model.
type Analyzer struct {
	// Threshold is the linearity statistic above which Linear is used.
	Threshold float64
	Linear    Method
	NonLinear Method
}

// NewAnalyzer pairs Spearman correlations with gradient boosting.
func NewAnalyzer(threshold float64, rounds int, learningRate float64) *Analyzer {
	return &Analyzer{
		Threshold: threshold,
		Linear:    Spearman{},
		NonLinear: GradientBoosting{Rounds: rounds, LearningRate: learningRate},
	}
}

// Analysis is the outcome of Analyze. Indices are in sample column order.
type Analysis struct {
	Linearity []model.LinearityPoint
	Method    string
	Indices   []float64
}

// Statistic is the linearity statistic of the largest window, or 0 without samples.
func (a *Analysis) Statistic() float64 {
	if len(a.Linearity) == 0 {
		return 0
	}
	return a.Linearity[len(a.Linearity)-1].Statistic
}

// Analyze computes the linearity curve and the indices of the selected method.
func (a *Analyzer) Analyze(ctx context.Context, x [][]float64, y []float64) (*Analysis, error) {
	curve, err := LinearityCurve(x, y)
	if err != nil {
		return nil, err
	}
	out := &Analysis{Linearity: curve}

	m := a.NonLinear
	if out.Statistic() > a.Threshold {
		m = a.Linear
	}
	out.Method = m.Name()
	if out.Indices, err = m.Indices(ctx, x, y); err != nil {
		return nil, err
	}

	zap.L().Debug("sensitivity analysis complete",
		zap.String("component", "sensitivity.analyzer"),
		zap.Int("samples", len(y)),
		zap.Float64("linearity", out.Statistic()),
		zap.String("method", out.Method),
	)
	return out, nil
}

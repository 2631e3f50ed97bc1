// Package validation checks a sensitivity ranking by re-simulating with only the
// top-K parameters varying and correlating the result with the full-variance run.
package validation

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lca-gsa/internal/cache"
	"github.com/sells-group/lca-gsa/internal/engine"
	"github.com/sells-group/lca-gsa/internal/model"
	"github.com/sells-group/lca-gsa/internal/montecarlo"
	"github.com/sells-group/lca-gsa/internal/sensitivity"
)

var stepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "gsa_validation_steps_total",
	Help: "Reduced-variance validation runs by outcome",
}, []string{"result"})

// Validator runs reduced-variance simulations.
type Validator struct {
	engine     engine.ScoringEngine
	onProgress func(done, total int)
}

// Option configures a Validator.
type Option func(*Validator)

// WithProgress registers fn to receive the number of finished K values.
func WithProgress(fn func(done, total int)) Option {
	return func(v *Validator) { v.onProgress = fn }
}

// NewValidator creates a validator over e.
func NewValidator(e engine.ScoringEngine, opts ...Option) *Validator {
	v := &Validator{engine: e}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Result summarizes one Validate call.
type Result struct {
	Influential []int `json:"influential"`
	Written     int   `json:"written"`
	Skipped     int   `json:"skipped"`
}

// Influential lists the swept K values clamped to the number of parameters, without
// duplicates.
func Influential(cfg model.ValidationConfig, parameters int) []int {
	var ks []int
	for _, k := range cfg.Sweep() {
		k = min(k, parameters)
		if k > 0 && !slices.Contains(ks, k) {
			ks = append(ks, k)
		}
	}
	return ks
}

// Validate persists one reduced-variance score sequence per K. K values whose
// result file exists are skipped. The top-K parameters replay their samples from the
// first cfg.Iterations draws of the run; every other parameter is frozen.
func (v *Validator) Validate(ctx context.Context, dir cache.RunDir, ranking []model.SensitivityRow, cfg model.ValidationConfig) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := zap.L().With(
		zap.String("component", "validation.validator"),
		zap.String("dir", dir.Path),
		zap.Int("iterations", cfg.Iterations),
	)

	params, err := montecarlo.ReadIndices(dir)
	if err != nil {
		return nil, err
	}
	x, _, err := montecarlo.CollectXY(dir)
	if err != nil {
		return nil, err
	}
	if len(x) < cfg.Iterations {
		return nil, eris.Errorf("validation: %d iterations requested, run has %d samples", cfg.Iterations, len(x))
	}
	order, err := rankedColumns(params, ranking)
	if err != nil {
		return nil, err
	}

	lock, err := cache.Acquire(dir.ValidationDir(cfg.Iterations))
	if err != nil {
		return nil, err
	}
	defer lock.Release() //nolint:errcheck

	res := &Result{Influential: Influential(cfg, len(order))}
	for i, k := range res.Influential {
		if err := ctx.Err(); err != nil {
			return res, eris.Wrap(err, "validation: cancelled")
		}
		path := dir.InfluentialPath(cfg.Iterations, k)
		ok, err := cache.Exists(path)
		if err != nil {
			return res, err
		}
		if ok {
			res.Skipped++
			stepsTotal.WithLabelValues("skipped").Inc()
			log.Debug("validation step exists, skipping", zap.Int("influential", k))
		} else {
			scores, err := v.step(ctx, dir, params, x[:cfg.Iterations], order[:k])
			if err != nil {
				log.Error("validation step failed", zap.Int("influential", k), zap.Error(err))
				return res, eris.Wrapf(err, "validation: influential %d", k)
			}
			if err := cache.WriteJSON(path, scores); err != nil {
				return res, err
			}
			res.Written++
			stepsTotal.WithLabelValues("written").Inc()
			log.Info("validation step written", zap.Int("influential", k))
		}
		if v.onProgress != nil {
			v.onProgress(i+1, len(res.Influential))
		}
	}
	return res, nil
}

func (v *Validator) step(ctx context.Context, dir cache.RunDir, params []model.ParameterIndex, x [][]float64, cols []int) ([]float64, error) {
	override := &engine.Override{
		Parameters: make([]model.ParameterIndex, len(cols)),
		Samples:    make([][]float64, len(x)),
	}
	for i, c := range cols {
		override.Parameters[i] = params[c]
	}
	for r, row := range x {
		sample := make([]float64, len(cols))
		for i, c := range cols {
			sample[i] = row[c]
		}
		override.Samples[r] = sample
	}

	seq, err := v.engine.OpenSequence(ctx, dir.Config.Study, engine.SequenceOptions{PinFirst: true, Override: override})
	if err != nil {
		return nil, err
	}
	defer seq.Close() //nolint:errcheck

	scores, _, err := engine.DrawN(ctx, seq, len(x))
	return scores, err
}

// rankedColumns maps the ranking onto sample columns, best first.
func rankedColumns(params []model.ParameterIndex, ranking []model.SensitivityRow) ([]int, error) {
	col := make(map[model.ParameterIndex]int, len(params))
	for i, p := range params {
		if _, dup := col[p]; dup {
			return nil, eris.Errorf("validation: parameter %s labels more than one sample column", p)
		}
		col[p] = i
	}
	rows := slices.Clone(ranking)
	sort.SliceStable(rows, func(a, b int) bool { return rows[a].Rank < rows[b].Rank })

	out := make([]int, 0, len(rows))
	ranked := make(map[model.ParameterIndex]bool, len(rows))
	for _, r := range rows {
		c, ok := col[r.Parameter]
		if !ok {
			return nil, eris.Errorf("validation: ranked parameter %s is not in the run", r.Parameter)
		}
		if ranked[r.Parameter] {
			return nil, eris.Errorf("validation: parameter %s is ranked twice", r.Parameter)
		}
		ranked[r.Parameter] = true
		out = append(out, c)
	}
	return out, nil
}

// RankingFromIndices builds a ranking from indices in sample column order.
func RankingFromIndices(params []model.ParameterIndex, indices []float64) []model.SensitivityRow {
	rows := make([]model.SensitivityRow, 0, len(params))
	for rank, c := range sensitivity.Order(indices) {
		rows = append(rows, model.SensitivityRow{Rank: rank + 1, Parameter: params[c], Index: indices[c]})
	}
	return rows
}

// CollectMetric correlates every persisted reduced-variance run with the first
// `iterations` scores of the full run, ordered by K.
func CollectMetric(dir cache.RunDir, iterations int) ([]model.ValidationPoint, error) {
	paths, err := filepath.Glob(filepath.Join(dir.ValidationDir(iterations), "Yinf*.json"))
	if err != nil {
		return nil, eris.Wrap(err, "validation: glob results")
	}
	sort.Strings(paths)

	all, err := montecarlo.Collect(dir)
	if err != nil {
		return nil, err
	}
	if len(all) > iterations {
		all = all[:iterations]
	}

	var out []model.ValidationPoint
	for _, path := range paths {
		var k int
		if _, err := fmt.Sscanf(filepath.Base(path), "Yinf%d.json", &k); err != nil {
			continue
		}
		var ys []float64
		if err := cache.ReadJSON(path, &ys); err != nil {
			return nil, err
		}
		n := min(len(ys), len(all))
		if n == 0 {
			continue
		}
		out = append(out, model.ValidationPoint{
			Influential: k,
			Correlation: sensitivity.SpearmanCorrelation(all[:n], ys[:n]),
		})
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Influential < out[b].Influential })
	return out, nil
}

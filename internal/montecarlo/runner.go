// Package montecarlo runs chunked, resumable Monte Carlo simulations against a run
// directory and reports their progress from the files they leave behind.
package montecarlo

import (
	"context"
	"math"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/lca-gsa/internal/cache"
	"github.com/sells-group/lca-gsa/internal/engine"
	"github.com/sells-group/lca-gsa/internal/model"
)

// Runner drives a scoring engine's stochastic sequence chunk by chunk.
type Runner struct {
	engine     engine.ScoringEngine
	onProgress func(Progress)
	logEvery   time.Duration
}

// Option configures a Runner.
type Option func(*Runner)

// WithProgress registers fn to receive progress after every chunk, skipped or written.
func WithProgress(fn func(Progress)) Option {
	return func(r *Runner) { r.onProgress = fn }
}

// WithLogInterval sets the minimum spacing of progress log lines.
func WithLogInterval(d time.Duration) Option {
	return func(r *Runner) { r.logEvery = d }
}

// NewRunner creates a runner over e.
func NewRunner(e engine.ScoringEngine, opts ...Option) *Runner {
	r := &Runner{engine: e, logEvery: 5 * time.Second}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunResult summarizes one invocation of Run.
type RunResult struct {
	Chunks  int `json:"chunks"`
	Written int `json:"written"`
	Skipped int `json:"skipped"`
	Purged  int `json:"purged"`
}

// ChunkSeeds derives one seed per chunk from seed. The sequence depends only on seed,
// so seeds(n)[:k] == seeds(k).
func ChunkSeeds(seed int64, n int) []int64 {
	rng := rand.New(rand.NewPCG(uint64(seed), 0))
	seeds := make([]int64, n)
	for i := range seeds {
		seeds[i] = 1 + rng.Int64N(math.MaxInt32-1)
	}
	return seeds
}

// Run computes every missing chunk of dir in index order. Complete chunks are
// skipped, interrupted or corrupt ones are purged and recomputed. Any engine error
// aborts the run; a re-invocation resumes after the last complete chunk.
func (r *Runner) Run(ctx context.Context, dir cache.RunDir) (*RunResult, error) {
	if err := dir.Config.Validate(); err != nil {
		return nil, err
	}
	lock, err := cache.Acquire(dir.Path)
	if err != nil {
		return nil, err
	}
	defer lock.Release() //nolint:errcheck

	sim := dir.Simulation()
	log := zap.L().With(
		zap.String("component", "montecarlo.runner"),
		zap.String("dir", dir.Path),
	)
	throttle := rate.Sometimes{Interval: r.logEvery}

	indices, err := readIndicesIfPresent(dir)
	if err != nil {
		return nil, err
	}

	n := sim.NumChunks()
	seeds := ChunkSeeds(sim.Seed, n)
	res := &RunResult{Chunks: n}
	collected := 0

	for i := range n {
		if err := ctx.Err(); err != nil {
			return res, eris.Wrap(err, "montecarlo: run cancelled")
		}

		want := sim.ChunkLen(i)
		state, err := dir.ChunkState(i)
		if err != nil {
			return res, err
		}

		if state == cache.ChunkComplete && indices != nil {
			res.Skipped++
			collected += want
			chunksTotal.WithLabelValues("skipped").Inc()
			log.Debug("chunk complete, skipping", zap.Int("chunk", i))
			r.report(collected, i+1, sim)
			continue
		}

		if state != cache.ChunkPending {
			if state == cache.ChunkCorrupt {
				log.Warn("purging corrupt chunk", zap.Int("chunk", i))
			}
			if err := dir.PurgeChunk(i); err != nil {
				return res, err
			}
			res.Purged++
			chunksTotal.WithLabelValues("purged").Inc()
		}

		start := time.Now()
		got, err := r.runChunk(ctx, dir, i, seeds[i], want, indices)
		if err != nil {
			log.Error("chunk failed", zap.Int("chunk", i), zap.Error(err))
			return res, err
		}
		indices = got
		chunkDuration.Observe(time.Since(start).Seconds())
		chunksTotal.WithLabelValues("written").Inc()
		drawsTotal.Add(float64(want))
		res.Written++
		collected += want

		throttle.Do(func() {
			log.Info("simulation progress",
				zap.Int("chunk", i),
				zap.Int("chunks", n),
				zap.Float64("fraction", float64(collected)/float64(sim.Iterations)),
			)
		})
		r.report(collected, i+1, sim)
	}

	log.Info("simulation run complete",
		zap.Int("written", res.Written),
		zap.Int("skipped", res.Skipped),
		zap.Int("purged", res.Purged),
	)
	return res, nil
}

// runChunk draws one chunk and persists samples, then indices if new, then scores.
func (r *Runner) runChunk(ctx context.Context, dir cache.RunDir, i int, seed int64, n int, indices []model.ParameterIndex) ([]model.ParameterIndex, error) {
	seq, err := r.engine.OpenSequence(ctx, dir.Config.Study, engine.SequenceOptions{
		Seed:             seed,
		UseDistributions: true,
		PinFirst:         true,
	})
	if err != nil {
		return nil, eris.Wrapf(err, "montecarlo: open sequence for chunk %d", i)
	}
	defer seq.Close() //nolint:errcheck

	scores, samples, err := engine.DrawN(ctx, seq, n)
	if err != nil {
		return nil, eris.Wrapf(err, "montecarlo: chunk %d", i)
	}

	got := seq.Indices()
	if got == nil {
		got = []model.ParameterIndex{}
	}
	if indices != nil && !slices.Equal(indices, got) {
		return nil, eris.Errorf("montecarlo: chunk %d: parameter indices differ from %s", i, dir.IndicesPath())
	}

	if err := cache.WriteJSON(dir.XPath(i), samples); err != nil {
		return nil, err
	}
	if indices == nil {
		if err := cache.WriteGob(dir.IndicesPath(), got); err != nil {
			return nil, err
		}
	}
	if err := cache.WriteJSON(dir.YPath(i), scores); err != nil {
		return nil, err
	}
	return got, nil
}

func (r *Runner) report(collected, chunks int, sim model.SimulationConfig) {
	if r.onProgress == nil {
		return
	}
	r.onProgress(Progress{
		Chunks:    chunks,
		Collected: collected,
		Total:     sim.Iterations,
		Fraction:  float64(collected) / float64(sim.Iterations),
	})
}

func readIndicesIfPresent(dir cache.RunDir) ([]model.ParameterIndex, error) {
	ok, err := cache.Exists(dir.IndicesPath())
	if err != nil || !ok {
		return nil, err
	}
	indices, err := ReadIndices(dir)
	if err != nil {
		return nil, err
	}
	if indices == nil {
		indices = []model.ParameterIndex{}
	}
	return indices, nil
}

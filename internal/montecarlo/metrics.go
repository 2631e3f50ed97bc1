package montecarlo

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// chunksTotal counts chunk outcomes.
	// Labels: "written", "skipped", "purged"
	chunksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gsa_runner_chunks_total",
		Help: "Simulation chunks by outcome",
	}, []string{"result"})

	drawsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gsa_runner_draws_total",
		Help: "Stochastic draws pulled from the scoring engine",
	})

	chunkDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gsa_runner_chunk_duration_seconds",
		Help:    "Time to draw and persist one chunk",
		Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
	})
)

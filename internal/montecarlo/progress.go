package montecarlo

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/singleflight"

	"github.com/sells-group/lca-gsa/internal/cache"
	"github.com/sells-group/lca-gsa/internal/model"
)

// Progress is derived from the chunk score files of a run directory.
type Progress struct {
	Chunks    int     `json:"chunks"`
	Collected int     `json:"collected"`
	Total     int     `json:"total"`
	Fraction  float64 `json:"fraction"`
}

// Done reports whether every requested draw has been collected.
func (p Progress) Done() bool {
	return p.Total > 0 && p.Collected >= p.Total
}

// scoreFiles lists the chunk score files of dir in index order.
func scoreFiles(dir cache.RunDir) ([]string, error) {
	paths, err := filepath.Glob(dir.ScoreGlob())
	if err != nil {
		return nil, eris.Wrap(err, "montecarlo: glob score files")
	}
	sort.Strings(paths)
	return paths, nil
}

// ReadProgress counts the scores persisted in dir. It never computes anything.
func ReadProgress(dir cache.RunDir) (Progress, error) {
	files, err := scoreFiles(dir)
	if err != nil {
		return Progress{}, err
	}
	p := Progress{Chunks: len(files), Total: dir.Simulation().Iterations}
	for _, path := range files {
		var ys []float64
		if err := cache.ReadJSON(path, &ys); err != nil {
			return Progress{}, err
		}
		p.Collected += len(ys)
	}
	if p.Total > 0 {
		p.Fraction = float64(p.Collected) / float64(p.Total)
	}
	return p, nil
}

// Collect concatenates the scores of every persisted chunk in index order.
func Collect(dir cache.RunDir) ([]float64, error) {
	files, err := scoreFiles(dir)
	if err != nil {
		return nil, err
	}
	var out []float64
	for _, path := range files {
		var ys []float64
		if err := cache.ReadJSON(path, &ys); err != nil {
			return nil, err
		}
		out = append(out, ys...)
	}
	return out, nil
}

// CollectXY reads the samples and scores of every persisted chunk in index order.
// A score file without its sample file is reported as cache.ErrCorruptChunk.
func CollectXY(dir cache.RunDir) ([][]float64, []float64, error) {
	files, err := scoreFiles(dir)
	if err != nil {
		return nil, nil, err
	}
	var xs [][]float64
	var ys []float64
	for _, yPath := range files {
		xPath := filepath.Join(filepath.Dir(yPath), "X"+strings.TrimPrefix(filepath.Base(yPath), "Y"))
		ok, err := cache.Exists(xPath)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			return nil, nil, eris.Wrapf(cache.ErrCorruptChunk, "montecarlo: %s has no samples", filepath.Base(yPath))
		}

		var y []float64
		if err := cache.ReadJSON(yPath, &y); err != nil {
			return nil, nil, err
		}
		var x [][]float64
		if err := cache.ReadJSON(xPath, &x); err != nil {
			return nil, nil, err
		}
		if len(x) != len(y) {
			return nil, nil, eris.Wrapf(cache.ErrCorruptChunk, "montecarlo: %s has %d samples for %d scores",
				filepath.Base(xPath), len(x), len(y))
		}
		xs = append(xs, x...)
		ys = append(ys, y...)
	}
	return xs, ys, nil
}

// ReadIndices loads the parameter index artifact of dir.
func ReadIndices(dir cache.RunDir) ([]model.ParameterIndex, error) {
	var indices []model.ParameterIndex
	if err := cache.ReadGob(dir.IndicesPath(), &indices); err != nil {
		return nil, err
	}
	return indices, nil
}

// Tracker serves progress polls, collapsing concurrent polls of the same directory
// into one filesystem scan.
type Tracker struct {
	group singleflight.Group
}

// NewTracker creates a Tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Progress returns the progress of dir.
func (t *Tracker) Progress(dir cache.RunDir) (Progress, error) {
	v, err, _ := t.group.Do(dir.Path, func() (any, error) {
		return ReadProgress(dir)
	})
	if err != nil {
		return Progress{}, err
	}
	return v.(Progress), nil
}

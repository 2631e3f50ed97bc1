package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lca-gsa/internal/model"
)

const indicesFile = "indices.gob"

var runDirPattern = regexp.MustCompile(`^iterations(\d+)_chunksize(\d+)_seed(-?\d+)$`)

// StudyDir is the cache directory of one StudyConfig.
type StudyDir struct {
	Path  string
	Study model.StudyConfig
}

// MetadataPath is the provenance record of the study.
func (d StudyDir) MetadataPath() string {
	return filepath.Join(d.Path, metadataFile)
}

// ContributionPath is the cached graph traversal for the given truncation bounds.
func (d StudyDir) ContributionPath(cutoff float64, maxCalc int) string {
	return filepath.Join(d.Path, fmt.Sprintf("graph_traversal_cutoff%s_maxcalc%d.json",
		strconv.FormatFloat(cutoff, 'g', -1, 64), maxCalc))
}

// Run returns the run directory for sim. It is not created.
func (d StudyDir) Run(sim model.SimulationConfig) RunDir {
	return RunDir{
		Path:   filepath.Join(d.Path, sim.DirName()),
		Study:  d,
		Config: model.RunConfig{Study: d.Study, Simulation: sim},
	}
}

// OpenRunDir reopens a run directory, recovering the simulation settings from its name
// and the study from the parent's metadata.
func OpenRunDir(path string) (RunDir, error) {
	path = filepath.Clean(path)
	m := runDirPattern.FindStringSubmatch(filepath.Base(path))
	if m == nil {
		return RunDir{}, eris.Errorf("cache: %s is not a run directory", path)
	}
	iterations, err := strconv.Atoi(m[1])
	if err != nil {
		return RunDir{}, eris.Wrapf(err, "cache: %s: iterations", path)
	}
	chunkSize, err := strconv.Atoi(m[2])
	if err != nil {
		return RunDir{}, eris.Wrapf(err, "cache: %s: chunk size", path)
	}
	seed, err := strconv.ParseInt(m[3], 10, 64)
	if err != nil {
		return RunDir{}, eris.Wrapf(err, "cache: %s: seed", path)
	}
	sim := model.SimulationConfig{Iterations: iterations, ChunkSize: chunkSize, Seed: seed}
	if err := sim.Validate(); err != nil {
		return RunDir{}, eris.Wrapf(err, "cache: %s", path)
	}

	study, err := LoadStudyDir(filepath.Dir(path))
	if err != nil {
		return RunDir{}, err
	}
	return study.Run(sim), nil
}

// RunDir is the directory of one RunConfig.
type RunDir struct {
	Path   string
	Study  StudyDir
	Config model.RunConfig
}

// Ensure creates the run directory.
func (r RunDir) Ensure() error {
	if err := os.MkdirAll(r.Path, 0o755); err != nil {
		return eris.Wrapf(err, "cache: create %s", r.Path)
	}
	return nil
}

// Simulation is shorthand for the run's simulation settings.
func (r RunDir) Simulation() model.SimulationConfig {
	return r.Config.Simulation
}

// IndexWidth is the zero-padding width of chunk indices in this run, wide enough for
// lexicographic order to match numeric order.
func (r RunDir) IndexWidth() int {
	n := r.Config.Simulation.NumChunks() - 1
	return max(3, len(strconv.Itoa(max(n, 0))))
}

func (r RunDir) chunkName(prefix string, i int) string {
	return fmt.Sprintf("%s%0*d.json", prefix, r.IndexWidth(), i)
}

// YPath holds the scores of chunk i. Its presence marks the chunk complete.
func (r RunDir) YPath(i int) string { return filepath.Join(r.Path, r.chunkName("Y", i)) }

// XPath holds the sampled input vectors of chunk i.
func (r RunDir) XPath(i int) string { return filepath.Join(r.Path, r.chunkName("X", i)) }

// IndicesPath holds the shared parameter index artifact.
func (r RunDir) IndicesPath() string { return filepath.Join(r.Path, indicesFile) }

// ScoreGlob matches every chunk score file of the run.
func (r RunDir) ScoreGlob() string { return filepath.Join(r.Path, "Y*.json") }

// SampleGlob matches every chunk sample file of the run.
func (r RunDir) SampleGlob() string { return filepath.Join(r.Path, "X*.json") }

// ValidationDir holds reduced-variance runs of the given length.
func (r RunDir) ValidationDir(iterations int) string {
	return filepath.Join(r.Path, fmt.Sprintf("validation_iterations%d", iterations))
}

// InfluentialPath holds the reduced-variance scores for influential count k.
func (r RunDir) InfluentialPath(iterations, k int) string {
	return filepath.Join(r.ValidationDir(iterations), fmt.Sprintf("Yinf%04d.json", k))
}

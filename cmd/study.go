package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/lca-gsa/internal/cache"
	"github.com/sells-group/lca-gsa/internal/engine/inventory"
	"github.com/sells-group/lca-gsa/internal/ledger"
	"github.com/sells-group/lca-gsa/internal/model"
)

// addStudyFlags registers the flags that identify a study and its simulation.
func addStudyFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("study", "", "YAML file with study and simulation sections")
	f.String("project", "", "project name")
	f.String("database", "", "foreground database of the functional unit")
	f.String("activity", "", `functional unit activity as "<name>, <location>"`)
	f.Float64("amount", 0, "functional unit amount")
	f.String("method", "", `impact method as "a, b, c"`)
	f.Int("iterations", 0, "Monte Carlo iterations (default from config)")
	f.Int("chunk-size", 0, "iterations per chunk (default from config)")
	f.Int64("seed", 0, "simulation seed (default from config)")
}

// loadRunConfig merges the --study file, config defaults and explicit flags, in
// increasing priority.
func loadRunConfig(cmd *cobra.Command) (model.RunConfig, error) {
	var rc model.RunConfig
	if path, _ := cmd.Flags().GetString("study"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return rc, eris.Wrapf(err, "read study file %s", path)
		}
		if err := yaml.Unmarshal(data, &rc); err != nil {
			return rc, eris.Wrapf(err, "parse study file %s", path)
		}
	}

	defaults := cfg.SimulationDefaults()
	if rc.Simulation.Iterations == 0 {
		rc.Simulation.Iterations = defaults.Iterations
	}
	if rc.Simulation.ChunkSize == 0 {
		rc.Simulation.ChunkSize = defaults.ChunkSize
	}
	if rc.Simulation.Seed == 0 {
		rc.Simulation.Seed = defaults.Seed
	}

	f := cmd.Flags()
	if f.Changed("project") {
		rc.Study.Project, _ = f.GetString("project")
	}
	if f.Changed("database") {
		rc.Study.Database, _ = f.GetString("database")
	}
	if f.Changed("activity") {
		rc.Study.Activity, _ = f.GetString("activity")
	}
	if f.Changed("amount") {
		rc.Study.Amount, _ = f.GetFloat64("amount")
	}
	if f.Changed("method") {
		rc.Study.Method, _ = f.GetString("method")
	}
	if f.Changed("iterations") {
		rc.Simulation.Iterations, _ = f.GetInt("iterations")
	}
	if f.Changed("chunk-size") {
		rc.Simulation.ChunkSize, _ = f.GetInt("chunk-size")
	}
	if f.Changed("seed") {
		rc.Simulation.Seed, _ = f.GetInt64("seed")
	}

	return rc, rc.Validate()
}

func newResolver() (*cache.Resolver, error) {
	policy, err := cache.ParsePolicy(cfg.Cache.Fingerprint)
	if err != nil {
		return nil, err
	}
	return cache.NewResolver(cfg.Cache.Root, policy), nil
}

// resolveRun resolves the study directory and the run directory inside it.
func resolveRun(cmd *cobra.Command) (cache.StudyDir, cache.RunDir, error) {
	rc, err := loadRunConfig(cmd)
	if err != nil {
		return cache.StudyDir{}, cache.RunDir{}, err
	}
	resolver, err := newResolver()
	if err != nil {
		return cache.StudyDir{}, cache.RunDir{}, err
	}
	study, err := resolver.Resolve(rc.Study)
	if err != nil {
		return cache.StudyDir{}, cache.RunDir{}, err
	}
	return study, study.Run(rc.Simulation), nil
}

// openModelStore opens and migrates the inventory model database configured under
// engine.model_db.
func openModelStore(ctx context.Context) (*inventory.Store, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Engine.ModelDB), 0o755); err != nil {
		return nil, eris.Wrapf(err, "create model directory for %s", cfg.Engine.ModelDB)
	}
	st, err := inventory.Open(cfg.Engine.ModelDB)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

func openEngine(ctx context.Context) (*inventory.Engine, func() error, error) {
	st, err := openModelStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	return inventory.NewEngine(st), st.Close, nil
}

func openLedger(ctx context.Context) (*ledger.Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Ledger.Path), 0o755); err != nil {
		return nil, eris.Wrapf(err, "create ledger directory for %s", cfg.Ledger.Path)
	}
	l, err := ledger.Open(cfg.Ledger.Path)
	if err != nil {
		return nil, err
	}
	if err := l.Migrate(ctx); err != nil {
		l.Close() //nolint:errcheck
		return nil, err
	}
	return l, nil
}

// runDirFromFlags opens --run-dir when given, otherwise resolves the study flags.
func runDirFromFlags(cmd *cobra.Command) (cache.RunDir, error) {
	if path, _ := cmd.Flags().GetString("run-dir"); path != "" {
		return cache.OpenRunDir(path)
	}
	_, run, err := resolveRun(cmd)
	return run, err
}

func addRunDirFlag(cmd *cobra.Command) {
	cmd.Flags().String("run-dir", "", "existing run directory, instead of the study flags")
}

package main

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/lca-gsa/internal/cache"
	"github.com/sells-group/lca-gsa/internal/contribution"
	"github.com/sells-group/lca-gsa/internal/engine/inventory"
	"github.com/sells-group/lca-gsa/internal/export"
	"github.com/sells-group/lca-gsa/internal/jobs"
	"github.com/sells-group/lca-gsa/internal/ledger"
	"github.com/sells-group/lca-gsa/internal/model"
	"github.com/sells-group/lca-gsa/internal/sensitivity"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Rank uncertain exchanges by sensitivity index",
	Long:  "Reads every persisted chunk of the run, picks Spearman correlations or gradient boosting from the linearity of the model and combines the indices with graph-traversal contributions.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		run, err := runDirFromFlags(cmd)
		if err != nil {
			return err
		}
		eng, closeEngine, err := openEngine(ctx)
		if err != nil {
			return err
		}
		defer closeEngine() //nolint:errcheck

		report, err := analyzeRun(ctx, cmd, eng, run)
		if err != nil {
			return err
		}

		if path, _ := cmd.Flags().GetString("xlsx"); path != "" {
			if err := export.WriteXLSX(path, report, nil); err != nil {
				return err
			}
		}
		return writeJSON(cmd.OutOrStdout(), report)
	},
}

func newPipeline(eng *inventory.Engine) *sensitivity.Pipeline {
	return &sensitivity.Pipeline{
		Analyzer: sensitivity.NewAnalyzer(
			cfg.Sensitivity.LinearityThreshold,
			cfg.Sensitivity.BoostingRounds,
			cfg.Sensitivity.BoostingLearningRate,
		),
		Contributions: contribution.NewAnalyzer(eng, cfg.Contribution.Cutoff, cfg.Contribution.MaxCalc),
		Graph:         eng,
		Scores:        eng,
	}
}

// analyzeRun runs the sensitivity pipeline as a recorded analysis job.
func analyzeRun(ctx context.Context, cmd *cobra.Command, eng *inventory.Engine, run cache.RunDir) (*model.SensitivityReport, error) {
	pipeline := newPipeline(eng)
	result, err := runJob(ctx, cmd.ErrOrStderr(), ledger.KindAnalysis, run.Path,
		func(ctx context.Context, _ *jobs.Task) (any, error) {
			return pipeline.Run(ctx, run)
		})
	if err != nil {
		return nil, err
	}
	report, ok := result.(*model.SensitivityReport)
	if !ok {
		return nil, eris.Errorf("analysis of %s returned %T", run.Path, result)
	}
	return report, nil
}

func init() {
	addStudyFlags(analyzeCmd)
	addRunDirFlag(analyzeCmd)
	analyzeCmd.Flags().String("xlsx", "", "also write the ranking to this spreadsheet")
	rootCmd.AddCommand(analyzeCmd)
}

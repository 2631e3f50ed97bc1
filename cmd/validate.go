package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/sells-group/lca-gsa/internal/cache"
	"github.com/sells-group/lca-gsa/internal/export"
	"github.com/sells-group/lca-gsa/internal/jobs"
	"github.com/sells-group/lca-gsa/internal/ledger"
	"github.com/sells-group/lca-gsa/internal/model"
	"github.com/sells-group/lca-gsa/internal/validation"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Re-simulate with only the top-ranked parameters uncertain",
	Long:  "Analyzes the run, then for each influential count K re-samples the model with the K highest-ranked parameters replaying the run's samples and all others fixed, and reports the Spearman correlation against the full run.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		run, err := runDirFromFlags(cmd)
		if err != nil {
			return err
		}
		vc, err := validationFlags(cmd)
		if err != nil {
			return err
		}
		if force, _ := cmd.Flags().GetBool("force-unlock"); force {
			if err := cache.ForceUnlock(run.ValidationDir(vc.Iterations)); err != nil {
				return err
			}
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

		_, err = runJob(ctx, cmd.ErrOrStderr(), ledger.KindValidation, run.ValidationDir(vc.Iterations),
			func(ctx context.Context, t *jobs.Task) (any, error) {
				v := validation.NewValidator(eng, validation.WithProgress(func(done, total int) {
					t.Report(float64(done) / float64(total))
				}))
				return v.Validate(ctx, run, report.Rows, vc)
			})
		if err != nil {
			return err
		}

		curve, err := validation.CollectMetric(run, vc.Iterations)
		if err != nil {
			return err
		}
		if path, _ := cmd.Flags().GetString("xlsx"); path != "" {
			if err := export.WriteXLSX(path, report, curve); err != nil {
				return err
			}
		}
		return writeJSON(cmd.OutOrStdout(), curve)
	},
}

var metricCmd = &cobra.Command{
	Use:   "metric",
	Short: "Print the validation curve from persisted results",
	RunE: func(cmd *cobra.Command, _ []string) error {
		run, err := runDirFromFlags(cmd)
		if err != nil {
			return err
		}
		vc, err := validationFlags(cmd)
		if err != nil {
			return err
		}
		curve, err := validation.CollectMetric(run, vc.Iterations)
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), curve)
	},
}

func addValidationFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Int("min-influential", 0, "smallest influential count (default from config)")
	f.Int("max-influential", 0, "largest influential count (default from config)")
	f.Int("step-influential", 0, "influential count step (default from config)")
	f.Int("validation-iterations", 0, "draws per validation step (default from config)")
}

func validationFlags(cmd *cobra.Command) (model.ValidationConfig, error) {
	vc := cfg.ValidationDefaults()
	f := cmd.Flags()
	if f.Changed("min-influential") {
		vc.MinInfluential, _ = f.GetInt("min-influential")
	}
	if f.Changed("max-influential") {
		vc.MaxInfluential, _ = f.GetInt("max-influential")
	}
	if f.Changed("step-influential") {
		vc.StepInfluential, _ = f.GetInt("step-influential")
	}
	if f.Changed("validation-iterations") {
		vc.Iterations, _ = f.GetInt("validation-iterations")
	}
	return vc, vc.Validate()
}

func init() {
	for _, c := range []*cobra.Command{validateCmd, metricCmd} {
		addStudyFlags(c)
		addRunDirFlag(c)
		addValidationFlags(c)
		rootCmd.AddCommand(c)
	}
	validateCmd.Flags().String("xlsx", "", "write ranking and validation curve to this spreadsheet")
	validateCmd.Flags().Bool("force-unlock", false, "remove a stale validation lock left by a killed process")
}

package main

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/lca-gsa/internal/cache"
	"github.com/sells-group/lca-gsa/internal/jobs"
	"github.com/sells-group/lca-gsa/internal/ledger"
	"github.com/sells-group/lca-gsa/internal/montecarlo"
	"github.com/sells-group/lca-gsa/internal/resilience"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run or resume the Monte Carlo simulation of a study",
	Long:  "Computes every missing chunk of the run directory. Completed chunks are kept, so an interrupted simulation resumes where it stopped.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		_, run, err := resolveRun(cmd)
		if err != nil {
			return err
		}
		if force, _ := cmd.Flags().GetBool("force-unlock"); force {
			if err := cache.ForceUnlock(run.Path); err != nil {
				return err
			}
		}

		eng, closeEngine, err := openEngine(ctx)
		if err != nil {
			return err
		}
		defer closeEngine() //nolint:errcheck

		result, err := runJob(ctx, cmd.ErrOrStderr(), ledger.KindSimulation, run.Path,
			func(ctx context.Context, t *jobs.Task) (any, error) {
				runner := montecarlo.NewRunner(eng, montecarlo.WithProgress(func(p montecarlo.Progress) {
					t.Report(p.Fraction)
				}))
				return resilience.DoVal(ctx, retryConfig("simulate"), func(ctx context.Context) (*montecarlo.RunResult, error) {
					return runner.Run(ctx, run)
				})
			})
		if err != nil {
			return err
		}

		zap.L().Info("simulation finished", zap.String("dir", run.Path))
		return writeJSON(cmd.OutOrStdout(), result)
	},
}

func init() {
	addStudyFlags(simulateCmd)
	simulateCmd.Flags().Bool("force-unlock", false, "remove a stale lock left by a killed process")
	rootCmd.AddCommand(simulateCmd)
}

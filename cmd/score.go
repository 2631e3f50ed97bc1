package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/lca-gsa/internal/model"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Print the deterministic impact score of a study",
	Long:  "Computes the study's impact with every exchange at its static amount. The Monte Carlo scores of a run scatter around this value.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		rc, err := loadRunConfig(cmd)
		if err != nil {
			return err
		}
		eng, closeEngine, err := openEngine(ctx)
		if err != nil {
			return err
		}
		defer closeEngine() //nolint:errcheck

		score, err := eng.DeterministicScore(ctx, rc.Study)
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), scoreOutput{Study: rc.Study, Score: score.Value, Unit: score.Unit})
	},
}

type scoreOutput struct {
	Study model.StudyConfig `json:"study"`
	Score float64           `json:"score"`
	Unit  string            `json:"unit"`
}

func init() {
	addStudyFlags(scoreCmd)
	rootCmd.AddCommand(scoreCmd)
}

package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/lca-gsa/internal/montecarlo"
)

var progressCmd = &cobra.Command{
	Use:   "progress",
	Short: "Report how much of a simulation is on disk",
	RunE: func(cmd *cobra.Command, _ []string) error {
		run, err := runDirFromFlags(cmd)
		if err != nil {
			return err
		}
		p, err := montecarlo.NewTracker().Progress(run)
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), p)
	},
}

func init() {
	addStudyFlags(progressCmd)
	addRunDirFlag(progressCmd)
	rootCmd.AddCommand(progressCmd)
}

package main

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"

	"github.com/sells-group/lca-gsa/internal/model"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Print the cache directories of a study",
	RunE: func(cmd *cobra.Command, _ []string) error {
		study, run, err := resolveRun(cmd)
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), resolveOutput{
			StudyDir:   study.Path,
			RunDir:     run.Path,
			Study:      study.Study,
			Simulation: run.Simulation(),
			Policy:     cfg.Cache.Fingerprint,
		})
	},
}

type resolveOutput struct {
	StudyDir   string                 `json:"study_dir"`
	RunDir     string                 `json:"run_dir"`
	Study      model.StudyConfig      `json:"study"`
	Simulation model.SimulationConfig `json:"simulation"`
	Policy     string                 `json:"policy"`
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	addStudyFlags(resolveCmd)
	rootCmd.AddCommand(resolveCmd)
}

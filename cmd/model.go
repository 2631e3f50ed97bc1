package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/lca-gsa/internal/engine/inventory"
)

var modelCmd = &cobra.Command{
	Use:   "model",
	Short: "Manage the inventory model database",
}

var modelImportCmd = &cobra.Command{
	Use:   "import <model.yaml>",
	Short: "Load databases, activities, exchanges and methods from a YAML model file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		f, err := os.Open(args[0])
		if err != nil {
			return eris.Wrapf(err, "open model file %s", args[0])
		}
		defer f.Close() //nolint:errcheck

		mf, err := inventory.DecodeModel(f)
		if err != nil {
			return err
		}

		st, err := openModelStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.Import(ctx, mf); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "imported %d activities, %d exchanges and %d methods into %s\n",
			len(mf.Activities), len(mf.Exchanges), len(mf.Methods), cfg.Engine.ModelDB)
		return nil
	},
}

func init() {
	modelCmd.AddCommand(modelImportCmd)
	rootCmd.AddCommand(modelCmd)
}

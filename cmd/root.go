package main

import (
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/lca-gsa/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "gsa-cli",
	Short: "Global sensitivity analysis for life cycle assessment studies",
	Long:  "Runs resumable Monte Carlo simulations of an LCA study, ranks uncertain exchanges by sensitivity index and validates the ranking by re-simulating with reduced uncertainty.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := c.Validate(); err != nil {
			return err
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		path, _ := cmd.Flags().GetString("metrics-file")
		if path == "" && cfg != nil {
			path = cfg.Metrics.Textfile
		}
		if path != "" {
			if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
				zap.L().Warn("failed to write metrics textfile", zap.String("path", path), zap.Error(err))
			}
		}
		_ = zap.L().Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().String("metrics-file", "", "write prometheus metrics to this textfile on exit")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

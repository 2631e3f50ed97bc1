package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/lca-gsa/internal/ledger"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect the job ledger",
	Long:  "Commands for listing, viewing, and summarizing recorded simulation, analysis and validation jobs.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded jobs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		l, err := openLedger(ctx)
		if err != nil {
			return err
		}
		defer l.Close() //nolint:errcheck

		kind, _ := cmd.Flags().GetString("kind")
		status, _ := cmd.Flags().GetString("status")
		dir, _ := cmd.Flags().GetString("dir")
		limit, _ := cmd.Flags().GetInt("limit")

		entries, err := l.List(ctx, ledger.Filter{
			Kind:   ledger.Kind(kind),
			Status: ledger.Status(status),
			Dir:    dir,
			Limit:  limit,
		})
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(entries) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(cmd.OutOrStdout(), entries)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show full details of a job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		l, err := openLedger(ctx)
		if err != nil {
			return err
		}
		defer l.Close() //nolint:errcheck

		entry, err := l.Get(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}
		return writeJSON(cmd.OutOrStdout(), entry)
	},
}

// -- runs stats --

var runsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate job statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		l, err := openLedger(ctx)
		if err != nil {
			return err
		}
		defer l.Close() //nolint:errcheck

		entries, err := l.List(ctx, ledger.Filter{Limit: 10000})
		if err != nil {
			return eris.Wrap(err, "runs stats")
		}
		formatRunStats(cmd.OutOrStdout(), computeRunStats(entries))
		return nil
	},
}

// -- runs reap --

var runsReapCmd = &cobra.Command{
	Use:   "reap",
	Short: "Mark jobs left running by a killed process as failed",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		l, err := openLedger(ctx)
		if err != nil {
			return err
		}
		defer l.Close() //nolint:errcheck

		n, err := l.MarkInterrupted(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "marked %d interrupted jobs\n", n)
		return nil
	},
}

func init() {
	runsListCmd.Flags().String("kind", "", "filter by job kind (simulation, analysis, validation)")
	runsListCmd.Flags().String("status", "", "filter by status (running, complete, failed, cancelled)")
	runsListCmd.Flags().String("dir", "", "filter by run directory")
	runsListCmd.Flags().Int("limit", 50, "max number of jobs to display")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsStatsCmd)
	runsCmd.AddCommand(runsReapCmd)
	rootCmd.AddCommand(runsCmd)
}

// runStats holds aggregate statistics computed from a set of jobs.
type runStats struct {
	Total      int
	Complete   int
	Failed     int
	Cancelled  int
	Running    int
	ByKind     map[ledger.Kind]int
	AvgDurSecs float64
}

// computeRunStats computes aggregate statistics from a list of jobs.
func computeRunStats(entries []ledger.Entry) runStats {
	s := runStats{Total: len(entries), ByKind: make(map[ledger.Kind]int)}

	var totalDur time.Duration
	var durCount int

	for _, e := range entries {
		s.ByKind[e.Kind]++
		switch e.Status {
		case ledger.StatusComplete:
			s.Complete++
			if e.CompletedAt != nil {
				totalDur += e.CompletedAt.Sub(e.StartedAt)
				durCount++
			}
		case ledger.StatusFailed:
			s.Failed++
		case ledger.StatusCancelled:
			s.Cancelled++
		default:
			s.Running++
		}
	}

	if durCount > 0 {
		s.AvgDurSecs = totalDur.Seconds() / float64(durCount)
	}
	return s
}

// formatRunsList writes a tabular list of jobs to w.
func formatRunsList(out io.Writer, entries []ledger.Entry) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tKIND\tRUN\tSTATUS\tSTARTED\tDURATION")
	_, _ = fmt.Fprintln(w, "--\t----\t---\t------\t-------\t--------")

	for _, e := range entries {
		dur := ""
		if e.CompletedAt != nil {
			dur = e.CompletedAt.Sub(e.StartedAt).Round(time.Second).String()
		}

		run := filepath.Base(e.Dir)
		if len(run) > 40 {
			run = run[:37] + "..."
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			truncateID(e.ID),
			e.Kind,
			run,
			e.Status,
			e.StartedAt.Format("2006-01-02 15:04"),
			dur,
		)
	}
	_ = w.Flush()
}

// formatRunStats writes aggregate stats to w.
func formatRunStats(out io.Writer, s runStats) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Total jobs:\t%d\n", s.Total)
	for _, k := range []ledger.Kind{ledger.KindSimulation, ledger.KindAnalysis, ledger.KindValidation} {
		_, _ = fmt.Fprintf(w, "  %s:\t%d\n", k, s.ByKind[k])
	}
	_, _ = fmt.Fprintf(w, "Complete:\t%d\n", s.Complete)
	_, _ = fmt.Fprintf(w, "Failed:\t%d\n", s.Failed)
	_, _ = fmt.Fprintf(w, "Cancelled:\t%d\n", s.Cancelled)
	_, _ = fmt.Fprintf(w, "Running:\t%d\n", s.Running)
	if s.AvgDurSecs > 0 {
		_, _ = fmt.Fprintf(w, "Avg duration:\t%.1fs\n", s.AvgDurSecs)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

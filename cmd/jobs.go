package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lca-gsa/internal/jobs"
	"github.com/sells-group/lca-gsa/internal/ledger"
	"github.com/sells-group/lca-gsa/internal/resilience"
)

// runJob runs fn as a ledger-recorded task keyed by dir, printing progress to out
// until it finishes. SIGINT and SIGTERM cancel the task at its next checkpoint.
func runJob(ctx context.Context, out io.Writer, kind ledger.Kind, dir string, fn jobs.Func) (any, error) {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	l, err := openLedger(ctx)
	if err != nil {
		return nil, err
	}
	defer l.Close() //nolint:errcheck

	mgr := jobs.NewManager(l)
	task, _, err := mgr.Start(ctx, kind, dir, fn)
	if err != nil {
		return nil, err
	}

	for {
		select {
		case f := <-task.Progress():
			fmt.Fprintf(out, "%s: %.0f%%\n", kind, 100*f)
		case <-ctx.Done():
			zap.L().Warn("interrupt received, stopping at next checkpoint",
				zap.String("kind", string(kind)), zap.String("dir", dir))
			task.Cancel()
			<-task.Done()
			if err := task.Err(); err != nil {
				return nil, eris.Wrap(err, "interrupted")
			}
			return task.Result(), nil
		case <-task.Done():
			return task.Result(), task.Err()
		}
	}
}

// retryConfig retries transient engine failures of whole runs. Runs resume from
// their persisted chunks, so a retry only redoes the chunk that failed.
func retryConfig(operation string) resilience.RetryConfig {
	rc := resilience.FromSettings(cfg.Retry.MaxAttempts, cfg.Retry.InitialBackoff, cfg.Retry.MaxBackoff)
	rc.OnRetry = resilience.RetryLogger("cli", operation)
	return rc
}

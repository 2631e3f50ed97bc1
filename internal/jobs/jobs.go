// Package jobs runs long simulations and validations as background tasks with a
// cancellation handle and push-based progress. At most one task runs per key.
package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/lca-gsa/internal/ledger"
)

// Recorder persists task lifecycles. *ledger.Ledger satisfies it.
type Recorder interface {
	Start(ctx context.Context, kind ledger.Kind, dir string) (string, error)
	Complete(ctx context.Context, id string, result any) error
	Fail(ctx context.Context, id string, errMsg string) error
	Cancel(ctx context.Context, id string) error
}

var _ Recorder = (*ledger.Ledger)(nil)

// Func is the body of a task. It reports progress through t and returns a result
// recorded by the ledger.
type Func func(ctx context.Context, t *Task) (any, error)

// Task is a running or finished unit of work.
type Task struct {
	Key  string
	Kind ledger.Kind
	// ID is the ledger id, empty without a recorder.
	ID string

	cancel   context.CancelFunc
	done     chan struct{}
	progress chan float64
	limiter  *rate.Limiter

	mu     sync.Mutex
	err    error
	result any
	last   float64
}

// Done is closed when the task finishes.
func (t *Task) Done() <-chan struct{} { return t.done }

// Progress delivers the latest reported fraction. Stale values are dropped, so a
// slow reader only sees the most recent one.
func (t *Task) Progress() <-chan float64 { return t.progress }

// Cancel asks the task to stop. Tasks stop cooperatively at their next checkpoint.
func (t *Task) Cancel() { t.cancel() }

// Err is the task's error once Done is closed.
func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Result is the task's result once Done is closed.
func (t *Task) Result() any {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result
}

// Fraction is the last reported progress.
func (t *Task) Fraction() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}

// Wait blocks until the task finishes or ctx ends.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Report publishes a progress fraction. Intermediate values are rate limited;
// completion (>= 1) is always delivered.
func (t *Task) Report(fraction float64) {
	t.mu.Lock()
	t.last = fraction
	t.mu.Unlock()
	if fraction < 1 && !t.limiter.Allow() {
		return
	}
	select {
	case <-t.progress:
	default:
	}
	select {
	case t.progress <- fraction:
	default:
	}
}

// Manager owns the running tasks.
type Manager struct {
	rec      Recorder
	interval time.Duration

	mu    sync.Mutex
	tasks map[string]*Task
}

// NewManager creates a manager. rec may be nil.
func NewManager(rec Recorder) *Manager {
	return &Manager{rec: rec, interval: 200 * time.Millisecond, tasks: make(map[string]*Task)}
}

// Get returns the running task for key.
func (m *Manager) Get(key string) (*Task, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[key]
	return t, ok
}

// Start runs fn in the background under key, typically a run directory. If a task
// for key is still running it is returned instead and started is false. The task
// outlives ctx; use Task.Cancel to stop it.
func (m *Manager) Start(ctx context.Context, kind ledger.Kind, key string, fn Func) (task *Task, started bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tasks[key]; ok {
		return t, false, nil
	}

	t := &Task{
		Key:      key,
		Kind:     kind,
		done:     make(chan struct{}),
		progress: make(chan float64, 1),
		limiter:  rate.NewLimiter(rate.Every(m.interval), 1),
	}
	if m.rec != nil {
		if t.ID, err = m.rec.Start(ctx, kind, key); err != nil {
			return nil, false, eris.Wrap(err, "jobs: record start")
		}
	}

	taskCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	t.cancel = cancel
	m.tasks[key] = t

	go m.run(taskCtx, t, fn)
	return t, true, nil
}

func (m *Manager) run(ctx context.Context, t *Task, fn Func) {
	log := zap.L().With(
		zap.String("component", "jobs.manager"),
		zap.String("kind", string(t.Kind)),
		zap.String("key", t.Key),
	)
	defer t.cancel()

	result, err := fn(ctx, t)
	cancelled := ctx.Err() != nil

	// Ledger writes must not inherit the task's cancellation.
	recCtx := context.WithoutCancel(ctx)
	if m.rec != nil && t.ID != "" {
		var recErr error
		switch {
		case err == nil:
			recErr = m.rec.Complete(recCtx, t.ID, result)
		case cancelled:
			recErr = m.rec.Cancel(recCtx, t.ID)
		default:
			recErr = m.rec.Fail(recCtx, t.ID, err.Error())
		}
		if recErr != nil {
			log.Error("failed to record task outcome", zap.Error(recErr))
		}
	}

	switch {
	case err == nil:
		log.Info("task complete")
	case cancelled:
		log.Warn("task cancelled", zap.Error(err))
	default:
		log.Error("task failed", zap.Error(err))
	}

	t.mu.Lock()
	t.err = err
	t.result = result
	t.mu.Unlock()

	m.mu.Lock()
	delete(m.tasks, t.Key)
	m.mu.Unlock()
	close(t.done)
}

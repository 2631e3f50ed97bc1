package resilience

import (
	"errors"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lca-gsa/internal/cache"
	"github.com/sells-group/lca-gsa/internal/engine"
	"github.com/sells-group/lca-gsa/internal/model"
)

// TransientError wraps a scoring engine or storage failure that is safe to retry.
type TransientError struct {
	Err error
	Op  string
}

func (e *TransientError) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError marks err from operation op as retryable.
func NewTransientError(err error, op string) *TransientError {
	return &TransientError{Err: err, Op: op}
}

// IsPermanent reports errors that fail identically on every attempt: configuration
// errors and a directory held by another worker.
func IsPermanent(err error) bool {
	return eris.Is(err, engine.ErrCannotResolveStudy) ||
		eris.Is(err, model.ErrInvalidConfig) ||
		eris.Is(err, cache.ErrLocked)
}

// IsTransient returns true if the error (or any error in its chain) is a
// TransientError, or matches a busy database or interrupted system call. Permanent
// errors are never transient.
func IsTransient(err error) bool {
	if err == nil || IsPermanent(err) {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	if errors.Is(err, syscall.EAGAIN) ||
		errors.Is(err, syscall.EINTR) ||
		errors.Is(err, syscall.EBUSY) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, p := range []string{
		"database is locked",
		"sqlite_busy",
		"resource temporarily unavailable",
		"interrupted system call",
	} {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

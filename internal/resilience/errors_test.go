package resilience

import (
	"errors"
	"fmt"
	"syscall"
	"testing"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lca-gsa/internal/cache"
	"github.com/sells-group/lca-gsa/internal/engine"
	"github.com/sells-group/lca-gsa/internal/model"
)

func TestIsTransient_ExplicitTransientError(t *testing.T) {
	err := NewTransientError(errors.New("solver busy"), "open sequence")
	if !IsTransient(err) {
		t.Error("expected TransientError to be transient")
	}
	if err.Error() != "open sequence: solver busy" {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestIsTransient_WrappedTransientError(t *testing.T) {
	inner := NewTransientError(errors.New("solver busy"), "")
	wrapped := fmt.Errorf("chunk 3: %w", inner)
	if !IsTransient(wrapped) {
		t.Error("expected wrapped TransientError to be transient")
	}
}

func TestIsTransient_NilAndRegular(t *testing.T) {
	if IsTransient(nil) {
		t.Error("nil error should not be transient")
	}
	if IsTransient(errors.New("singular technosphere matrix")) {
		t.Error("regular error should not be transient")
	}
}

func TestIsTransient_Syscalls(t *testing.T) {
	for _, errno := range []syscall.Errno{syscall.EAGAIN, syscall.EINTR, syscall.EBUSY} {
		if !IsTransient(fmt.Errorf("write chunk: %w", errno)) {
			t.Errorf("%v should be transient", errno)
		}
	}
}

func TestIsTransient_BusyDatabase(t *testing.T) {
	if !IsTransient(errors.New("inventory: load exchanges: database is locked (5) (SQLITE_BUSY)")) {
		t.Error("busy database should be transient")
	}
}

func TestIsTransient_PermanentWins(t *testing.T) {
	for _, err := range []error{
		eris.Wrap(engine.ErrCannotResolveStudy, "inventory: 0 activities match"),
		eris.Wrap(model.ErrInvalidConfig, "simulation"),
		eris.Wrap(cache.ErrLocked, "cache: /tmp/run"),
	} {
		if IsTransient(err) {
			t.Errorf("%v should not be transient", err)
		}
		if !IsPermanent(err) {
			t.Errorf("%v should be permanent", err)
		}
	}
}

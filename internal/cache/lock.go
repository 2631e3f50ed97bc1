package cache

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrLocked is returned when another worker holds the directory lock.
var ErrLocked = eris.New("cache: directory is locked by another worker")

const lockFile = ".lock"

// unreadableLockAge is how long a lock without a parseable pid may stand before
// it is treated as left behind by a worker that died mid-write.
const unreadableLockAge = time.Minute

// Lock is an exclusive, cross-process claim on a directory.
type Lock struct {
	path string
}

// Acquire claims dir for a single worker. It fails with ErrLocked if the lock is
// held by a live process. A lock whose recorded pid no longer exists is removed
// and the claim retried once.
func Acquire(dir string) (*Lock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "cache: create %s", dir)
	}
	path := filepath.Join(dir, lockFile)
	l, err := create(path)
	if err == nil || !errors.Is(err, fs.ErrExist) {
		return l, wrapLockErr(err, dir)
	}
	if !recoverStale(path, time.Now()) {
		return nil, eris.Wrapf(ErrLocked, "cache: %s", dir)
	}
	l, err = create(path)
	return l, wrapLockErr(err, dir)
}

func create(path string) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(f, "pid=%d acquired=%s\n", os.Getpid(), time.Now().UTC().Format(time.RFC3339))
	if err := f.Close(); err != nil {
		return nil, err
	}
	return &Lock{path: path}, nil
}

func wrapLockErr(err error, dir string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, fs.ErrExist):
		return eris.Wrapf(ErrLocked, "cache: %s", dir)
	default:
		return eris.Wrapf(err, "cache: lock %s", dir)
	}
}

// recoverStale removes the lock at path when its owner is gone. The file is
// re-read before removal so a lock taken over by another worker survives.
func recoverStale(path string, now time.Time) bool {
	content, err := os.ReadFile(path)
	if err != nil {
		// Released between our create and read.
		return errors.Is(err, fs.ErrNotExist)
	}
	var pid int
	if _, err := fmt.Sscanf(string(content), "pid=%d", &pid); err != nil || pid <= 0 {
		info, statErr := os.Stat(path)
		if statErr != nil || now.Sub(info.ModTime()) < unreadableLockAge {
			return false
		}
	} else if processAlive(pid) {
		return false
	}

	again, err := os.ReadFile(path)
	if err != nil || !bytes.Equal(again, content) {
		return errors.Is(err, fs.ErrNotExist)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return false
	}
	zap.L().Warn("removed stale lock",
		zap.String("component", "cache.lock"),
		zap.String("path", path),
		zap.Int("pid", pid),
	)
	return true
}

// processAlive reports whether pid names a running process. Errors other than
// "no such process" count as alive, so permission failures keep the lock.
func processAlive(pid int) bool {
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = p.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	return !errors.Is(err, os.ErrProcessDone) && !errors.Is(err, syscall.ESRCH)
}

// Release drops the lock. Safe on a nil Lock.
func (l *Lock) Release() error {
	if l == nil {
		return nil
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return eris.Wrapf(err, "cache: unlock %s", l.path)
	}
	return nil
}

// ForceUnlock removes a lock from dir regardless of its owner.
func ForceUnlock(dir string) error {
	path := filepath.Join(dir, lockFile)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return eris.Wrapf(err, "cache: force unlock %s", dir)
	}
	return nil
}

// Package runlock guards mutating pipeline commands with a cross-process
// file lock, so two acquisition or ingestion runs never write to the
// store or index concurrently. Works on all platforms.
package runlock

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrHeld is returned when another process already holds the run lock.
var ErrHeld = fmt.Errorf("another run is already in progress")

// Lock is a cross-process exclusive lock on the data directory.
type Lock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// New creates a lock for the given data directory. The lock file is
// created at <dir>/.run.lock.
func New(dir string) *Lock {
	path := filepath.Join(dir, ".run.lock")
	return &Lock{path: path, flock: flock.New(path)}
}

// Acquire takes the lock without blocking. A lock held elsewhere returns
// ErrHeld so the caller can tell the operator instead of queueing runs.
func (l *Lock) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}

	acquired, err := l.flock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire run lock: %w", err)
	}
	if !acquired {
		return ErrHeld
	}
	l.locked = true
	return nil
}

// Release releases the lock. Safe to call on an unlocked Lock.
func (l *Lock) Release() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("release run lock: %w", err)
	}
	return nil
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.path
}

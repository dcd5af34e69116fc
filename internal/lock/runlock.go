// Package lock serializes verification runs on a host. Cron fires the tool on
// a schedule regardless of how long the previous run took; the lock makes the
// overlapping invocation a no-op instead of a second concurrent run.
package lock

import (
	"errors"
	"fmt"
	"os"
	"syscall"

	"mysql-backup-verify/internal/logging"
)

// ErrAlreadyHeld is returned when another process holds the run lock
var ErrAlreadyHeld = errors.New("run lock is held by another process")

// RunLock is an advisory flock(2) on a well-known path. The kernel releases
// it when the process exits, however it exits, so a crashed run never leaves
// a stale lock behind.
type RunLock struct {
	path   string
	file   *os.File
	logger *logging.Logger
}

// NewRunLock creates a run lock for the given path
func NewRunLock(path string, logger *logging.Logger) *RunLock {
	return &RunLock{
		path:   path,
		logger: logger,
	}
}

// Acquire takes the lock without blocking. If another process holds it,
// ErrAlreadyHeld is returned and the caller is expected to exit successfully;
// an overlapping scheduled run is normal operation, not a failure.
func (l *RunLock) Acquire() error {
	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("failed to open lock file %s: %w", l.path, err)
	}

	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		file.Close()
		if err == syscall.EWOULDBLOCK {
			return ErrAlreadyHeld
		}
		return fmt.Errorf("failed to lock %s: %w", l.path, err)
	}

	// The PID is advisory, for operators inspecting the file; the flock is
	// what actually guards the run.
	file.Truncate(0)
	fmt.Fprintf(file, "%d\n", os.Getpid())
	file.Sync()

	l.file = file
	l.logger.WithFields(map[string]interface{}{
		"path": l.path,
		"pid":  os.Getpid(),
	}).Debug("Run lock acquired")
	return nil
}

// Release drops the lock. Safe to call when the lock was never acquired.
func (l *RunLock) Release() error {
	if l.file == nil {
		return nil
	}

	if err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN); err != nil {
		l.file.Close()
		l.file = nil
		return fmt.Errorf("failed to unlock %s: %w", l.path, err)
	}

	err := l.file.Close()
	l.file = nil
	l.logger.WithField("path", l.path).Debug("Run lock released")
	return err
}

// Package lock serializes chartfold operations on a chart directory
// through per-operation lock files.
package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// errLockHeld reports that another process holds the lock.
var errLockHeld = errors.New("lock already held")

// Lock is one operation's file-based lock.
type Lock struct {
	path string
	file *os.File
}

// New returns the lock guarding an operation on dir. Nothing is acquired
// yet.
func New(dir, operation string) *Lock {
	return &Lock{
		path: filepath.Join(dir, ".chartfold", "locks", operation+".lock"),
	}
}

// Acquire takes the lock without blocking. It fails when another process
// holds it.
func (l *Lock) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("open lock file: %w", err)
	}

	if err := lockFile(f); err != nil {
		f.Close()
		l.file = nil
		if errors.Is(err, errLockHeld) {
			operation := strings.TrimSuffix(filepath.Base(l.path), ".lock")
			return fmt.Errorf("another %s operation is already running", operation)
		}
		return fmt.Errorf("acquire lock: %w", err)
	}

	// PID in the lock file helps identify a stale holder.
	f.Truncate(0)
	f.Seek(0, 0)
	fmt.Fprintf(f, "%d\n", os.Getpid())

	l.file = f
	return nil
}

// Release drops the lock and removes its file. Releasing an unheld lock
// is a no-op.
func (l *Lock) Release() error {
	if l.file == nil {
		return nil
	}

	if err := unlockFile(l.file); err != nil {
		l.file.Close()
		return fmt.Errorf("release lock: %w", err)
	}

	l.file.Close()
	os.Remove(l.path)
	l.file = nil

	return nil
}

// WithLock runs fn while holding the named lock.
func WithLock(dir, operation string, fn func() error) error {
	lock := New(dir, operation)
	if err := lock.Acquire(); err != nil {
		return err
	}
	defer lock.Release()

	return fn()
}

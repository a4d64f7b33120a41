//go:build !windows

package lock

import (
	"os"
	"syscall"
)

// lockFile takes a non-blocking exclusive lock on f.
// On Unix systems, this uses flock(2) for file locking.
func lockFile(f *os.File) error {
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		if err == syscall.EWOULDBLOCK {
			return errLockHeld
		}
		return err
	}
	return nil
}

// unlockFile releases the lock on f.
func unlockFile(f *os.File) error {
	return syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
}

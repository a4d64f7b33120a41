//go:build windows

package lock

import (
	"os"

	"golang.org/x/sys/windows"
)

// lockFile takes a non-blocking exclusive lock on f.
// On Windows, this uses LockFileEx for file locking.
func lockFile(f *os.File) error {
	// LOCKFILE_EXCLUSIVE_LOCK | LOCKFILE_FAIL_IMMEDIATELY
	overlapped := &windows.Overlapped{}
	err := windows.LockFileEx(
		windows.Handle(f.Fd()),
		windows.LOCKFILE_EXCLUSIVE_LOCK|windows.LOCKFILE_FAIL_IMMEDIATELY,
		0,          // reserved
		1,          // lock 1 byte
		0,          // high-order size (0 for small files)
		overlapped, // overlapped structure
	)
	if err != nil {
		return errLockHeld
	}
	return nil
}

// unlockFile releases the lock on f.
func unlockFile(f *os.File) error {
	overlapped := &windows.Overlapped{}
	return windows.UnlockFileEx(windows.Handle(f.Fd()), 0, 1, 0, overlapped)
}

package store

import (
	"os"

	"golang.org/x/sys/unix"
)

// fileLock wraps an advisory flock(2) exclusive lock on a dedicated
// lockfile, held for the lifetime of a single Store operation that
// mutates a SessionRecord. golang.org/x/sys is already part of the
// dependency graph (pulled in transitively); using unix.Flock directly
// here is grounded on that and avoids reinventing platform lock syscalls.
type fileLock struct {
	f *os.File
}

// lockFile opens (creating if necessary) path and takes a blocking
// exclusive advisory lock on it. The caller must call Unlock when done.
func lockFile(path string) (*fileLock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, err
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		_ = f.Close()
		return nil, err
	}
	return &fileLock{f: f}, nil
}

// Unlock releases the lock and closes the underlying file handle.
func (l *fileLock) Unlock() error {
	if l == nil || l.f == nil {
		return nil
	}
	unlockErr := unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
	closeErr := l.f.Close()
	if unlockErr != nil {
		return unlockErr
	}
	return closeErr
}

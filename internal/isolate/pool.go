package isolate

import (
	"os"

	"golang.org/x/sys/unix"

	"github.com/para-dev/para/internal/corerr"
)

// poolLock is the host-wide advisory flock every Launch call takes
// before checking and incrementing the container count,
// mirroring internal/store's per-record fileLock idiom at host scope.
type poolLock struct{ f *os.File }

func lockPool(path string) (*poolLock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, corerr.Wrap(corerr.IoError, err, "opening container pool lock")
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		_ = f.Close()
		return nil, corerr.Wrap(corerr.IoError, err, "locking container pool")
	}
	return &poolLock{f: f}, nil
}

func (l *poolLock) Unlock() error {
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

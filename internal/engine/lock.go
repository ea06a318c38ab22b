package engine

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// FileLock guards an index location across processes. Writers hold it
// exclusively and readers share it.
type FileLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewFileLock creates the lock for the index at indexPath. The lock file sits
// next to the index directory as <indexPath>.lock.
func NewFileLock(indexPath string) *FileLock {
	lockPath := filepath.Clean(indexPath) + ".lock"
	return &FileLock{
		path:  lockPath,
		flock: flock.New(lockPath),
	}
}

// TryLock attempts the exclusive lock without blocking.
func (l *FileLock) TryLock() (bool, error) {
	return l.try(l.flock.TryLock)
}

// TryRLock attempts the shared lock without blocking.
func (l *FileLock) TryRLock() (bool, error) {
	return l.try(l.flock.TryRLock)
}

func (l *FileLock) try(acquire func() (bool, error)) (bool, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return false, fmt.Errorf("failed to create lock directory: %w", err)
	}
	acquired, err := acquire()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}
	l.locked = acquired
	return acquired, nil
}

// Unlock releases the lock. It is safe to call on an unlocked FileLock.
func (l *FileLock) Unlock() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// Path returns the path to the lock file.
func (l *FileLock) Path() string {
	return l.path
}

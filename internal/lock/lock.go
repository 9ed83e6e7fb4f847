// Package lock keeps two sweeps from running at the same time.
package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gofrs/flock"
)

// ErrLocked is returned by Acquire when another process holds the lock.
var ErrLocked = errors.New("another sweep is running")

type Lock struct {
	flock *flock.Flock
	path  string
}

// Acquire takes an exclusive, non-blocking lock on path and records the
// current pid in it. The parent directory is created if missing.
func Acquire(path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}

	fl := flock.New(path)
	acquired, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("locking %s: %w", path, err)
	}
	if !acquired {
		if pid, err := Owner(path); err == nil {
			return nil, fmt.Errorf("%w (pid %d holds %s)", ErrLocked, pid, path)
		}
		return nil, fmt.Errorf("%w (could not lock %s)", ErrLocked, path)
	}

	// The pid is informational; failing to write it does not release the lock.
	_ = os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o600)

	return &Lock{flock: fl, path: path}, nil
}

func (l *Lock) Path() string {
	return l.path
}

// Release unlocks. The lock file is left in place so the next run reuses it.
func (l *Lock) Release() error {
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("releasing lock %s: %w", l.path, err)
	}
	return nil
}

// Owner returns the pid recorded in the lock file.
func Owner(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(string(data))
	if err != nil {
		return 0, fmt.Errorf("parsing pid: %w", err)
	}
	return pid, nil
}

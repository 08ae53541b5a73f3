package singleinstance

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrAlreadyRunning is returned by AcquireLock when another resident holds the lock.
var ErrAlreadyRunning = errors.New("another resident instance holds the lock")

// Lock is the resident's exclusive ownership of a lock file.
type Lock struct {
	fl *flock.Flock
}

// DefaultLockPath returns <user config dir>/ScreenCapture/resident.lock.
func DefaultLockPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	return filepath.Join(dir, "ScreenCapture", "resident.lock"), nil
}

// AcquireLock takes the lock at path without blocking.
func AcquireLock(path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}
	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}
	if !ok {
		return nil, ErrAlreadyRunning
	}
	log.Printf("singleinstance: acquired %s", path)
	return &Lock{fl: fl}, nil
}

// Path returns the lock file path.
func (l *Lock) Path() string { return l.fl.Path() }

// Release gives up ownership.
func (l *Lock) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	return l.fl.Unlock()
}

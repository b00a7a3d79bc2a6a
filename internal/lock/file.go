// Package lock provides cross-process guards for the ingestion cycle.
package lock

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/amishk599/statejobs/internal/scheduler"
)

// FileLocker guards cycles with an advisory lock on a local file. It only
// coordinates processes that share a filesystem.
type FileLocker struct {
	fl *flock.Flock
}

var _ scheduler.Locker = (*FileLocker)(nil)

// NewFileLocker prepares a lock on path, creating its directory if needed.
func NewFileLocker(path string) (*FileLocker, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating lock dir: %w", err)
		}
	}
	return &FileLocker{fl: flock.New(path)}, nil
}

// TryLock takes the lock without blocking.
func (l *FileLocker) TryLock(_ context.Context) (func(), bool, error) {
	ok, err := l.fl.TryLock()
	if err != nil {
		return nil, false, fmt.Errorf("locking %s: %w", l.fl.Path(), err)
	}
	if !ok {
		return nil, false, nil
	}
	return func() { _ = l.fl.Unlock() }, true, nil
}

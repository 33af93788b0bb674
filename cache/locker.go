package cache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
)

const lockRetryDelay = 100 * time.Millisecond

// Locker manages file-based locks for installation directories.
type Locker struct {
	locksDir string
}

// NewLocker creates a new Locker that stores lock files in the given directory.
func NewLocker(locksDir string) *Locker {
	return &Locker{locksDir: locksDir}
}

// lockPath returns the path to the lock file guarding an installation.
// The version is not part of the name: every version shares one directory.
func (l *Locker) lockPath(id ArtifactIdentifier) string {
	name := strings.NewReplacer("/", "-", "\\", "-", ":", "-").Replace(id.Name)
	return filepath.Join(l.locksDir, "."+name+".lock")
}

// AcquireExclusive acquires an exclusive lock for the given artifact.
// The returned function releases the lock and should be called when done.
// Returns an error if the context is cancelled while waiting for the lock.
func (l *Locker) AcquireExclusive(ctx context.Context, id ArtifactIdentifier) (unlock func() error, err error) {
	if err := os.MkdirAll(l.locksDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create locks directory: %w", err)
	}

	fl := flock.New(l.lockPath(id))

	locked, err := fl.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("failed to acquire lock: %v", ctx.Err())
	}

	return fl.Unlock, nil
}

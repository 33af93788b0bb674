package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-logr/logr"
)

// FilesystemCache implements Cache using a directory on the local filesystem.
// Each artifact is installed as root/<Name>; scratch directories and lock
// files live next to it so the final move is a same-filesystem rename.
type FilesystemCache struct {
	root   string
	locker *Locker
	logger logr.Logger
}

// NewFilesystemCache creates a new filesystem-based cache rooted at the given directory.
func NewFilesystemCache(root string, logger logr.Logger) *FilesystemCache {
	return &FilesystemCache{
		root:   root,
		locker: NewLocker(root),
		logger: logger,
	}
}

// InstallDir returns the installation directory for an artifact.
func (c *FilesystemCache) InstallDir(id ArtifactIdentifier) string {
	return filepath.Join(c.root, id.Name)
}

// ExecutablePath returns where the artifact's executable is expected to live.
func (c *FilesystemCache) ExecutablePath(id ArtifactIdentifier) string {
	return filepath.Join(c.InstallDir(id), filepath.FromSlash(id.Executable))
}

// lookup inspects the installed executable without modifying anything.
// A non-empty path means the installation is usable; stale reports that
// something is present but unusable.
func (c *FilesystemCache) lookup(id ArtifactIdentifier) (path string, stale bool, err error) {
	execPath := c.ExecutablePath(id)
	info, err := os.Stat(execPath)
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to stat executable: %w", err)
	}
	if !info.Mode().IsRegular() {
		c.logger.Info("installed executable is not a regular file", "path", execPath)
		return "", true, nil
	}

	if id.MD5 == "" {
		return execPath, false, nil
	}

	sum, err := MD5File(execPath)
	if err != nil {
		return "", false, fmt.Errorf("failed to checksum executable: %w", err)
	}
	if !strings.EqualFold(sum, id.MD5) {
		c.logger.Info("installed executable checksum mismatch", "path", execPath, "expected", id.MD5, "actual", sum)
		return "", true, nil
	}
	return execPath, false, nil
}

// removeStale deletes an installation directory. Failure is not fatal: the
// following install replaces the directory anyway.
func (c *FilesystemCache) removeStale(id ArtifactIdentifier) {
	dir := c.InstallDir(id)
	c.logger.V(1).Info("removing stale installation", "dir", dir)
	if err := os.RemoveAll(dir); err != nil {
		c.logger.V(1).Info("failed to remove stale installation", "dir", dir, "error", err.Error())
	}
}

// Get returns the executable path for an installed artifact whose digest
// matches. Returns empty string and nil error if the artifact is missing.
// A stale installation is removed.
func (c *FilesystemCache) Get(ctx context.Context, id ArtifactIdentifier) (string, error) {
	execPath, stale, err := c.lookup(id)
	if err != nil || !stale {
		return execPath, err
	}

	unlock, err := c.locker.AcquireExclusive(ctx, id)
	if err != nil {
		return "", fmt.Errorf("failed to acquire cache lock: %w", err)
	}
	defer unlock()

	// Another process may have repaired it while we waited.
	execPath, stale, err = c.lookup(id)
	if err != nil || !stale {
		return execPath, err
	}
	c.removeStale(id)
	return "", nil
}

// Put extracts an in-memory release archive and installs its single
// top-level entry as the artifact's installation directory. Callers that may
// race with other processes should use GetOrPut, which holds the lock.
func (c *FilesystemCache) Put(ctx context.Context, id ArtifactIdentifier, archive []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if err := os.MkdirAll(c.root, 0o755); err != nil {
		return "", fmt.Errorf("failed to create cache directory: %w", err)
	}

	scratch, err := os.MkdirTemp(c.root, "."+id.Name+"-scratch-*")
	if err != nil {
		return "", fmt.Errorf("failed to create scratch directory: %w", err)
	}
	defer os.RemoveAll(scratch)

	if err := extractArchive(id.Format, archive, scratch); err != nil {
		return "", fmt.Errorf("failed to extract %s archive: %w", id.Format, err)
	}

	entries, err := os.ReadDir(scratch)
	if err != nil {
		return "", fmt.Errorf("failed to read scratch directory: %w", err)
	}
	if len(entries) != 1 {
		names := make([]string, len(entries))
		for i, e := range entries {
			names[i] = e.Name()
		}
		return "", &LayoutError{Entries: names}
	}

	finalDir := c.InstallDir(id)
	if err := os.RemoveAll(finalDir); err != nil {
		return "", fmt.Errorf("failed to remove previous installation: %w", err)
	}

	extracted := filepath.Join(scratch, entries[0].Name())
	if err := os.Rename(extracted, finalDir); err != nil {
		return "", fmt.Errorf("failed to move installation into place: %w", err)
	}

	execPath, err := c.verify(id)
	if err != nil {
		os.RemoveAll(finalDir)
		return "", err
	}

	c.logger.Info("installed artifact", "version", id.Version, "path", execPath)
	return execPath, nil
}

// verify checks a freshly installed executable against the expected digest.
func (c *FilesystemCache) verify(id ArtifactIdentifier) (string, error) {
	execPath := c.ExecutablePath(id)
	info, err := os.Stat(execPath)
	if err != nil {
		return "", fmt.Errorf("executable not found after extraction: %w", err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("executable %s is not a regular file", execPath)
	}

	if id.MD5 != "" {
		sum, err := MD5File(execPath)
		if err != nil {
			return "", fmt.Errorf("failed to checksum executable: %w", err)
		}
		if !strings.EqualFold(sum, id.MD5) {
			return "", &ChecksumError{Path: execPath, Expected: id.MD5, Actual: sum}
		}
	}

	if err := os.Chmod(execPath, info.Mode().Perm()|0o755); err != nil {
		return "", fmt.Errorf("failed to make executable: %w", err)
	}
	return execPath, nil
}

// GetOrPut retrieves an installed artifact or invokes fetchFn to populate it.
// A valid installation is returned without taking the lock, so the common
// case touches neither the network nor the lock file.
func (c *FilesystemCache) GetOrPut(ctx context.Context, id ArtifactIdentifier,
	fetchFn func(ctx context.Context) ([]byte, error)) (string, error) {

	execPath, _, err := c.lookup(id)
	if err != nil {
		return "", err
	}
	if execPath != "" {
		return execPath, nil
	}

	unlock, err := c.locker.AcquireExclusive(ctx, id)
	if err != nil {
		return "", fmt.Errorf("failed to acquire cache lock: %w", err)
	}
	defer unlock()

	// Re-check: another process may have installed it while we waited for the lock.
	execPath, stale, err := c.lookup(id)
	if err != nil {
		return "", err
	}
	if execPath != "" {
		return execPath, nil
	}
	if stale {
		c.removeStale(id)
	}

	archive, err := fetchFn(ctx)
	if err != nil {
		return "", err
	}

	return c.Put(ctx, id, archive)
}

// Remove deletes the installation directory, if any.
func (c *FilesystemCache) Remove(ctx context.Context, id ArtifactIdentifier) error {
	unlock, err := c.locker.AcquireExclusive(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to acquire cache lock: %w", err)
	}
	defer unlock()

	if err := os.RemoveAll(c.InstallDir(id)); err != nil {
		return fmt.Errorf("failed to remove installation: %w", err)
	}
	return nil
}

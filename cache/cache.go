// Package cache manages the local installation of a downloaded artifact.
//
// FilesystemCache installs an artifact as <root>/<name>. Installs are
// serialized through a lock file, <root>/.<name>.lock, which stays in place
// between runs; when root is a repository checkout, add it to .gitignore
// together with the installation directory. Scratch directories named
// .<name>-scratch-* exist only while an archive is being unpacked.
package cache

import "context"

// Cache defines the interface for the local artifact installation.
type Cache interface {
	// Get returns the executable path for an installed artifact whose digest
	// matches. Returns empty string and nil error if the artifact is missing.
	// A stale installation is removed.
	Get(ctx context.Context, id ArtifactIdentifier) (executablePath string, err error)

	// Put extracts an in-memory release archive and installs its single
	// top-level entry as the artifact's installation directory.
	Put(ctx context.Context, id ArtifactIdentifier, archive []byte) (executablePath string, err error)

	// GetOrPut retrieves an installed artifact or invokes fetchFn to populate it.
	// This method is safe for concurrent use across multiple processes.
	GetOrPut(ctx context.Context, id ArtifactIdentifier,
		fetchFn func(ctx context.Context) ([]byte, error)) (executablePath string, err error)

	// Remove deletes the installation directory, if any.
	Remove(ctx context.Context, id ArtifactIdentifier) error
}

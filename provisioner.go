// Package verible provisions a pinned build of the Verible formatter and
// runs it.
//
// The executable is installed under a directory relative to the working
// directory (default "verible"). Ensure downloads and unpacks the release
// archive only when the executable is missing or its MD5 does not match;
// otherwise it returns without touching the network.
//
// Installs take a lock file next to the installation directory (by default
// ".verible.lock" in the working directory). It is kept between runs, so a
// repository using the formatter should ignore both "verible/" and
// ".verible.lock".
package verible

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"

	"github.com/go-logr/logr"
	"github.com/rtl-tools/verible-format/cache"
	"github.com/rtl-tools/verible-format/release"
)

// Provisioner makes sure the pinned executable is installed.
type Provisioner struct {
	release  Release
	platform Platform
	url      string

	fetcher    release.Fetcher
	cache      cache.Cache
	logger     logr.Logger
	httpClient *http.Client
	progress   *os.File
}

// New creates a new Provisioner with the given options.
// If no options are provided, it uses default settings:
// - the pinned release installed into ./verible
// - the platform matching runtime.GOOS
// - plain HTTP downloads without a progress bar
func New(opts ...Option) (*Provisioner, error) {
	p := &Provisioner{
		release:  DefaultRelease(),
		platform: PlatformFor(runtime.GOOS),
		logger:   logr.Discard(),
	}

	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}

	p.release.Dir = filepath.Clean(p.release.Dir)

	url, err := release.ResolveURL(p.release.URLTemplate, release.URLData{
		Tag:    p.release.Tag,
		Suffix: p.platform.Suffix,
	})
	if err != nil {
		return nil, err
	}
	p.url = url

	if p.fetcher == nil {
		p.fetcher = release.NewHTTPFetcher(p.httpClient, p.progress)
	}

	if p.cache == nil {
		p.cache = cache.NewFilesystemCache(filepath.Dir(p.release.Dir), p.logger.WithName("cache"))
	}

	return p, nil
}

// Artifact returns the identifier of the pinned artifact for this platform.
func (p *Provisioner) Artifact() cache.ArtifactIdentifier {
	return cache.ArtifactIdentifier{
		Name:       filepath.Base(p.release.Dir),
		Version:    p.release.Tag,
		Format:     p.platform.Format,
		Executable: p.platform.Executable,
		MD5:        p.release.Checksums[p.platform.Suffix],
	}
}

// URL returns the download URL of the release archive.
func (p *Provisioner) URL() string {
	return p.url
}

// ExecutablePath returns where the executable lives once installed.
func (p *Provisioner) ExecutablePath() string {
	return filepath.Join(p.release.Dir, filepath.FromSlash(p.platform.Executable))
}

// Ensure returns the path to a verified executable, downloading and
// installing the release archive first if needed.
func (p *Provisioner) Ensure(ctx context.Context) (string, error) {
	id := p.Artifact()
	if id.MD5 == "" {
		p.logger.Info("no checksum known for platform, executable is not verified", "suffix", p.platform.Suffix)
	}

	execPath, err := p.cache.GetOrPut(ctx, id, func(ctx context.Context) ([]byte, error) {
		p.logger.Info("downloading verible", "version", id.Version, "url", p.url)
		data, err := p.fetcher.Fetch(ctx, p.url)
		if err != nil {
			return nil, &ErrFetchFailed{URL: p.url, Version: id.Version, Err: err}
		}
		p.logger.V(1).Info("downloaded archive", "bytes", len(data))
		return data, nil
	})
	if err != nil {
		var fetchErr *ErrFetchFailed
		if errors.As(err, &fetchErr) {
			return "", err
		}
		return "", &ErrInstallFailed{Dir: p.release.Dir, Version: id.Version, Err: err}
	}

	p.logger.V(1).Info("verible ready", "path", execPath)
	return execPath, nil
}

// Clean removes the installation.
func (p *Provisioner) Clean(ctx context.Context) error {
	if err := p.cache.Remove(ctx, p.Artifact()); err != nil {
		return fmt.Errorf("failed to clean %s: %w", p.release.Dir, err)
	}
	return nil
}

// Version returns the pinned release tag.
func (p *Provisioner) Version() string {
	return p.release.Tag
}

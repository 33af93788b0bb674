package verible

import (
	"net/http"
	"os"

	"github.com/go-logr/logr"
	"github.com/rtl-tools/verible-format/cache"
	"github.com/rtl-tools/verible-format/release"
)

// Option configures a Provisioner.
type Option func(*Provisioner) error

// WithLogger sets a custom logger for the provisioner and its cache.
// If not set, logging is disabled (logr.Discard() is used).
func WithLogger(logger logr.Logger) Option {
	return func(p *Provisioner) error {
		p.logger = logger
		return nil
	}
}

// WithRelease overrides the pinned release.
func WithRelease(r Release) Option {
	return func(p *Provisioner) error {
		if err := r.Validate(); err != nil {
			return err
		}
		p.release = r
		return nil
	}
}

// WithPlatform overrides the platform detected from runtime.GOOS.
func WithPlatform(platform Platform) Option {
	return func(p *Provisioner) error {
		p.platform = platform
		return nil
	}
}

// WithCache sets a custom cache implementation.
func WithCache(c cache.Cache) Option {
	return func(p *Provisioner) error {
		p.cache = c
		return nil
	}
}

// WithFetcher sets a custom release fetcher.
func WithFetcher(f release.Fetcher) Option {
	return func(p *Provisioner) error {
		p.fetcher = f
		return nil
	}
}

// WithHTTPClient sets a custom HTTP client for the default fetcher.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Provisioner) error {
		p.httpClient = client
		return nil
	}
}

// WithProgress draws a download progress bar on f when it is a terminal.
func WithProgress(f *os.File) Option {
	return func(p *Provisioner) error {
		p.progress = f
		return nil
	}
}

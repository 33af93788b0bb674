package release

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"text/template"
	"time"

	"github.com/cheggaaa/pb/v3"
	"github.com/mattn/go-isatty"
)

// Fetcher defines the interface for retrieving release archives.
type Fetcher interface {
	// Fetch downloads the archive at url and returns its full contents.
	Fetch(ctx context.Context, url string) ([]byte, error)
}

const progressTemplate = `{{string . "prefix"}}{{counters . }}` +
	` {{bar . "[" "=" ">" " " "]" }} {{percent . }}` +
	` {{speed . "%s/s" }}{{string . "suffix"}}`

// maxPrealloc caps how much of an announced Content-Length is allocated up
// front; larger bodies grow the buffer as they arrive.
const maxPrealloc = 256 << 20

// HTTPFetcher implements Fetcher with a plain HTTP GET.
type HTTPFetcher struct {
	client   *http.Client
	progress *os.File
}

// NewHTTPFetcher creates a new HTTPFetcher with the given HTTP client.
// If client is nil, http.DefaultClient is used. When progress is a terminal,
// a progress bar is drawn on it while downloading.
func NewHTTPFetcher(client *http.Client, progress *os.File) *HTTPFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPFetcher{
		client:   client,
		progress: progress,
	}
}

// Fetch downloads the archive at url, buffering the whole body in memory.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	r, finish := f.progressReader(resp.Body, resp.ContentLength)
	defer finish()

	var buf bytes.Buffer
	if n := resp.ContentLength; n > 0 && n <= maxPrealloc {
		buf.Grow(int(n))
	}
	if _, err := io.Copy(&buf, r); err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return buf.Bytes(), nil
}

func (f *HTTPFetcher) progressReader(r io.Reader, size int64) (io.Reader, func()) {
	if f.progress == nil {
		return r, func() {}
	}
	fd := f.progress.Fd()
	if !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd) {
		return r, func() {}
	}

	bar := pb.New64(size).
		SetTemplate(pb.ProgressBarTemplate(progressTemplate)).
		SetRefreshRate(time.Second / 60).
		SetMaxWidth(100).
		SetWriter(f.progress).
		Start()

	return bar.NewProxyReader(r), func() { bar.Finish() }
}

// ResolveURL renders a download URL template such as
// "https://example.com/{{.Tag}}/tool-{{.Tag}}-{{.Suffix}}".
func ResolveURL(urlTemplate string, data URLData) (string, error) {
	tmpl, err := template.New("url").Option("missingkey=error").Parse(urlTemplate)
	if err != nil {
		return "", fmt.Errorf("invalid url template: %w", err)
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("unable to execute url template: %w", err)
	}
	return sb.String(), nil
}

package verible

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rtl-tools/verible-format/cache"
	"github.com/rtl-tools/verible-format/internal/archivetest"
	"github.com/rtl-tools/verible-format/release"
)

const (
	testTag    = "v0.0-1-gabc"
	fakeFormat = "#!/bin/sh\necho formatted\n"
)

// releaseServer serves archive for every request and counts the requests.
type releaseServer struct {
	*httptest.Server
	requests atomic.Int32
	lastPath atomic.Value
}

func newReleaseServer(t *testing.T, status int, archive []byte) *releaseServer {
	s := &releaseServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.requests.Add(1)
		s.lastPath.Store(r.URL.Path)
		w.WriteHeader(status)
		w.Write(archive)
	}))
	t.Cleanup(s.Close)
	return s
}

func testRelease(srv *releaseServer, dir string, checksums map[string]string) Release {
	return Release{
		Tag:         testTag,
		URLTemplate: srv.URL + "/download/{{.Tag}}/verible-{{.Tag}}-{{.Suffix}}",
		Dir:         dir,
		Checksums:   checksums,
	}
}

func linuxArchive(t *testing.T, entries ...archivetest.Entry) []byte {
	if len(entries) == 0 {
		entries = []archivetest.Entry{
			{Name: "verible-" + testTag + "/bin/verible-verilog-format", Body: fakeFormat, Mode: 0o755},
			{Name: "verible-" + testTag + "/bin/verible-verilog-lint", Body: "lint", Mode: 0o755},
		}
	}
	return archivetest.TarGz(t, entries...)
}

func newTestProvisioner(t *testing.T, srv *releaseServer, platform Platform, checksums map[string]string) (*Provisioner, string) {
	dir := filepath.Join(t.TempDir(), "verible")
	p, err := New(
		WithRelease(testRelease(srv, dir, checksums)),
		WithPlatform(platform),
		WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	return p, dir
}

func TestNewDefaults(t *testing.T) {
	p, err := New()
	require.NoError(t, err)

	assert.Equal(t, DefaultTag, p.Version())
	if runtime.GOOS == "windows" {
		assert.Equal(t, "https://github.com/chipsalliance/verible/releases/download/v0.0-3756-gda9a0f8c/verible-v0.0-3756-gda9a0f8c-win64.zip", p.URL())
		assert.Equal(t, filepath.Join("verible", "verible-verilog-format.exe"), p.ExecutablePath())
		return
	}
	assert.Equal(t, "https://github.com/chipsalliance/verible/releases/download/v0.0-3756-gda9a0f8c/verible-v0.0-3756-gda9a0f8c-linux-static-x86_64.tar.gz", p.URL())
	assert.Equal(t, filepath.Join("verible", "bin", "verible-verilog-format"), p.ExecutablePath())
	assert.Equal(t, cache.ArtifactIdentifier{
		Name:       "verible",
		Version:    DefaultTag,
		Format:     cache.FormatTarGz,
		Executable: "bin/verible-verilog-format",
		MD5:        "450bc9e482aa124157647a64bb50404b",
	}, p.Artifact())
}

func TestNewRejectsInvalidRelease(t *testing.T) {
	_, err := New(WithRelease(Release{}))
	require.Error(t, err)

	_, err = New(WithRelease(Release{Tag: "t", URLTemplate: "{{.Nope", Dir: "d"}))
	require.ErrorContains(t, err, "invalid url template")
}

func TestEnsureInstallsOnceThenUsesFastPath(t *testing.T) {
	srv := newReleaseServer(t, http.StatusOK, linuxArchive(t))
	p, dir := newTestProvisioner(t, srv, PlatformLinux, map[string]string{
		PlatformLinux.Suffix: archivetest.MD5(fakeFormat),
	})

	execPath, err := p.Ensure(context.Background())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "bin", "verible-verilog-format"), execPath)
	assert.Equal(t, p.ExecutablePath(), execPath)
	assert.Equal(t, int32(1), srv.requests.Load())
	assert.Equal(t, "/download/"+testTag+"/verible-"+testTag+"-linux-static-x86_64.tar.gz", srv.lastPath.Load())

	sum, err := cache.MD5File(execPath)
	require.NoError(t, err)
	assert.Equal(t, archivetest.MD5(fakeFormat), sum)

	_, err = p.Ensure(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), srv.requests.Load(), "valid installation must not be downloaded again")
}

func TestEnsureRefetchesOnChecksumMismatch(t *testing.T) {
	srv := newReleaseServer(t, http.StatusOK, linuxArchive(t))
	p, dir := newTestProvisioner(t, srv, PlatformLinux, map[string]string{
		PlatformLinux.Suffix: archivetest.MD5(fakeFormat),
	})

	execPath, err := p.Ensure(context.Background())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(execPath, []byte("truncated"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stray"), []byte("x"), 0o644))

	execPath, err = p.Ensure(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), srv.requests.Load())

	content, err := os.ReadFile(execPath)
	require.NoError(t, err)
	assert.Equal(t, fakeFormat, string(content))
	assert.NoFileExists(t, filepath.Join(dir, "stray"), "stale installation must be replaced wholesale")
}

func TestEnsureFetchError(t *testing.T) {
	srv := newReleaseServer(t, http.StatusNotFound, []byte("not found"))
	p, dir := newTestProvisioner(t, srv, PlatformLinux, nil)

	_, err := p.Ensure(context.Background())
	var fetchErr *ErrFetchFailed
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, http.StatusNotFound, fetchErr.StatusCode())
	assert.Equal(t, testTag, fetchErr.Version)

	var statusErr *release.StatusError
	require.ErrorAs(t, err, &statusErr)

	assert.NoDirExists(t, dir)
	entries, err := os.ReadDir(filepath.Dir(dir))
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), "scratch", "extraction must not start after a failed download")
	}
}

func TestEnsureLayoutError(t *testing.T) {
	archive := linuxArchive(t,
		archivetest.Entry{Name: "first/bin/verible-verilog-format", Body: fakeFormat},
		archivetest.Entry{Name: "second/README", Body: "docs"},
	)
	srv := newReleaseServer(t, http.StatusOK, archive)
	p, dir := newTestProvisioner(t, srv, PlatformLinux, nil)

	_, err := p.Ensure(context.Background())
	var installErr *ErrInstallFailed
	require.ErrorAs(t, err, &installErr)
	var layoutErr *cache.LayoutError
	require.ErrorAs(t, err, &layoutErr)
	assert.ElementsMatch(t, []string{"first", "second"}, layoutErr.Entries)
	assert.NoDirExists(t, dir)
}

func TestEnsureVerifiesFreshInstallation(t *testing.T) {
	srv := newReleaseServer(t, http.StatusOK, linuxArchive(t))
	p, dir := newTestProvisioner(t, srv, PlatformLinux, map[string]string{
		PlatformLinux.Suffix: archivetest.MD5("some other build"),
	})

	_, err := p.Ensure(context.Background())
	var sumErr *cache.ChecksumError
	require.ErrorAs(t, err, &sumErr)
	assert.NoDirExists(t, dir)
}

func TestEnsureZipPlatform(t *testing.T) {
	archive := archivetest.Zip(t,
		archivetest.Entry{Name: "verible-" + testTag + "-win64/"},
		archivetest.Entry{Name: "verible-" + testTag + "-win64/verible-verilog-format.exe", Body: fakeFormat},
	)
	srv := newReleaseServer(t, http.StatusOK, archive)
	p, dir := newTestProvisioner(t, srv, PlatformWindows, map[string]string{
		PlatformWindows.Suffix: archivetest.MD5(fakeFormat),
	})

	execPath, err := p.Ensure(context.Background())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "verible-verilog-format.exe"), execPath)
	assert.Equal(t, "/download/"+testTag+"/verible-"+testTag+"-win64.zip", srv.lastPath.Load())
}

func TestEnsureWithoutChecksumTrustsInstallation(t *testing.T) {
	srv := newReleaseServer(t, http.StatusOK, linuxArchive(t))
	p, _ := newTestProvisioner(t, srv, PlatformLinux, nil)

	execPath, err := p.Ensure(context.Background())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(execPath, []byte("locally patched"), 0o755))

	_, err = p.Ensure(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), srv.requests.Load())
}

func TestClean(t *testing.T) {
	srv := newReleaseServer(t, http.StatusOK, linuxArchive(t))
	p, dir := newTestProvisioner(t, srv, PlatformLinux, nil)

	_, err := p.Ensure(context.Background())
	require.NoError(t, err)
	require.DirExists(t, dir)

	require.NoError(t, p.Clean(context.Background()))
	assert.NoDirExists(t, dir)
}

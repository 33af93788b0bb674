package verible

import (
	"errors"
	"fmt"

	"github.com/rtl-tools/verible-format/release"
)

// ErrFetchFailed is returned when the release archive cannot be downloaded.
type ErrFetchFailed struct {
	URL     string
	Version string
	Err     error
}

func (e *ErrFetchFailed) Error() string {
	return fmt.Sprintf("failed to download verible %s from %s: %v", e.Version, e.URL, e.Err)
}

func (e *ErrFetchFailed) Unwrap() error {
	return e.Err
}

// StatusCode returns the HTTP status the server answered with, or 0 when
// the request failed before a response arrived.
func (e *ErrFetchFailed) StatusCode() int {
	var statusErr *release.StatusError
	if errors.As(e.Err, &statusErr) {
		return statusErr.StatusCode
	}
	return 0
}

// ErrInstallFailed is returned when a downloaded archive cannot be installed
// or the installation cannot be inspected.
type ErrInstallFailed struct {
	Dir     string
	Version string
	Err     error
}

func (e *ErrInstallFailed) Error() string {
	return fmt.Sprintf("failed to install verible %s into %s: %v", e.Version, e.Dir, e.Err)
}

func (e *ErrInstallFailed) Unwrap() error {
	return e.Err
}

// ErrLaunchFailed is returned when the executable cannot be started.
type ErrLaunchFailed struct {
	Path string
	Err  error
}

func (e *ErrLaunchFailed) Error() string {
	return fmt.Sprintf("failed to launch %s: %v", e.Path, e.Err)
}

func (e *ErrLaunchFailed) Unwrap() error {
	return e.Err
}

// ExitError reports a non-zero exit status of the wrapped executable.
type ExitError struct {
	Path string
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s exited with status %d", e.Path, e.Code)
}

// ExitCode returns the status the calling process should exit with.
func (e *ExitError) ExitCode() int {
	return e.Code
}

package verible

import (
	"context"
	"errors"
	"os"
	"os/exec"
)

// Exec runs the executable at path with args and waits for it to exit.
// The child inherits the environment and the standard streams untouched.
// A non-zero exit status is returned as *ExitError; a child killed by a
// signal reports status 1.
func Exec(ctx context.Context, path string, args []string) error {
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	err := cmd.Run()
	if err == nil {
		return nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code := exitErr.ExitCode()
		if code < 0 {
			code = 1
		}
		return &ExitError{Path: path, Code: code}
	}
	return &ErrLaunchFailed{Path: path, Err: err}
}

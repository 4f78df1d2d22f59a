// Package rsync copies queued files to the remote web area with rsync and
// runs follow-up commands on the remote host over ssh.
package rsync

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// CommandFunc runs an external program. Output of the program is written to
// stdout. The returned error exposes the exit status through an
// ExitCode() int method when the program ran but failed.
type CommandFunc func(ctx context.Context, stdout io.Writer, name string, args ...string) error

// ExecCommand runs programs with os/exec.
func ExecCommand(ctx context.Context, stdout io.Writer, name string, args ...string) error {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return err
		}
		return &commandError{err: err, stderr: msg}
	}
	return nil
}

type commandError struct {
	err    error
	stderr string
}

func (e *commandError) Error() string { return fmt.Sprintf("%v: %s", e.err, e.stderr) }
func (e *commandError) Unwrap() error { return e.err }

type exitCoder interface {
	ExitCode() int
}

// exitCode returns the exit status carried by err, or -1.
func exitCode(err error) int {
	var ec exitCoder
	if errors.As(err, &ec) {
		return ec.ExitCode()
	}
	return -1
}

// Package toolexec runs the external media tools (ffprobe, ffmpeg) behind a
// small seam so pipeline stages can be tested without the binaries.
package toolexec

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os/exec"
)

// Runner executes a command and returns its captured output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec // tool paths come from configuration
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// IsNotFound reports whether err means the tool binary could not be started.
func IsNotFound(err error) bool {
	return errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission)
}

// Lookup resolves a tool name or path the way exec would.
func Lookup(name string) (string, error) {
	return exec.LookPath(name)
}

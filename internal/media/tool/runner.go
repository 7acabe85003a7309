package tool

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"tonearm/internal/services"
)

// Result captures the outcome of a process that started.
type Result struct {
	ExitCode int
	Stdout   []byte
	Stderr   string
}

// Success reports whether the process exited with status zero.
func (r Result) Success() bool {
	return r.ExitCode == 0
}

// StderrMentionsError reports whether diagnostic output contains "error" in any case.
func (r Result) StderrMentionsError() bool {
	return strings.Contains(strings.ToLower(r.Stderr), "error")
}

// Runner executes an external binary to completion.
//
// A non-nil error means the process could not be started or waited on
// (missing binary, permission denied); it wraps services.ErrToolInvocation.
// A non-zero exit status is reported through Result, not as an error.
type Runner interface {
	Run(ctx context.Context, binary string, args []string) (Result, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run executes binary with args and waits for it to exit.
func (ExecRunner) Run(ctx context.Context, binary string, args []string) (Result, error) {
	if strings.TrimSpace(binary) == "" {
		return Result{}, services.Wrap(services.ErrToolInvocation, "", "exec", "empty binary name", nil)
	}
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := Result{Stdout: stdout.Bytes(), Stderr: stderr.String()}
	if err == nil {
		return result, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() >= 0 {
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return result, fmt.Errorf("%w: %s: %w", services.ErrToolInvocation, binary, ctxErr)
	}
	return result, services.Wrap(services.ErrToolInvocation, "", "exec "+binary, "", err)
}

// Invoke renders spec and runs it with the matching binary.
func Invoke(ctx context.Context, runner Runner, binaries Binaries, spec Spec) (Result, error) {
	args, err := spec.Args()
	if err != nil {
		return Result{}, services.Wrap(services.ErrToolInvocation, spec.Kind.String(), "build args", "", err)
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	return runner.Run(ctx, binaries.For(spec.Kind), args)
}

// Binaries names the ffprobe and ffmpeg executables.
type Binaries struct {
	FFprobe string
	FFmpeg  string
}

// For returns the binary that handles kind.
func (b Binaries) For(kind Kind) string {
	if kind.UsesProbe() {
		if strings.TrimSpace(b.FFprobe) == "" {
			return "ffprobe"
		}
		return b.FFprobe
	}
	if strings.TrimSpace(b.FFmpeg) == "" {
		return "ffmpeg"
	}
	return b.FFmpeg
}

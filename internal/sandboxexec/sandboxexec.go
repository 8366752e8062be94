// Package sandboxexec runs an allow-listed command inside the agent's
// working directory with a bounded timeout, never returning anything
// richer than stdout/stderr/exit-code text. internal/toolserver/sandboxexec
// wraps this as the "sandbox-exec" tool server (SPEC_FULL.md EXPANSION 4.F+).
//
// Grounded on the teacher's internal/tools/exec/manager.go (synchronous
// exec.CommandContext under a timeout, bounded output capture via a
// limited buffer) and internal/exec/safety.go /
// internal/shellparse/safety.go (this repo's parser-level allow-list) for
// the command-classification gate that runs before a command is ever
// started.
package sandboxexec

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/conductorhq/conductor/internal/shellparse"
)

const (
	defaultTimeout = 30 * time.Second
	maxTimeout     = 5 * time.Minute
	maxOutputBytes = 64 * 1024
)

// Executor runs allow-listed shell commands rooted at WorkingDirectory.
type Executor struct {
	WorkingDirectory string
}

// New returns an Executor rooted at workingDirectory.
func New(workingDirectory string) *Executor {
	return &Executor{WorkingDirectory: workingDirectory}
}

// Result is the outcome of one sandboxed command run.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Run parses command, rejects it outright unless it classifies as safe
// per internal/shellparse's allow-list, then runs it under timeout
// (clamped to maxTimeout, defaulting to defaultTimeout when zero).
func (e *Executor) Run(ctx context.Context, command string, timeout time.Duration) (Result, error) {
	if strings.TrimSpace(command) == "" {
		return Result{}, fmt.Errorf("sandboxexec: command is required")
	}

	if !shellparse.IsSafeBashCommand(command, e.WorkingDirectory) {
		return Result{}, fmt.Errorf("sandboxexec: %q is not on the safe-command allow-list", command)
	}

	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if timeout > maxTimeout {
		timeout = maxTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "/bin/sh", "-c", command)
	cmd.Dir = e.WorkingDirectory

	var stdout, stderr bytes.Buffer
	cmd.Stdout = boundedWriter{&stdout}
	cmd.Stderr = boundedWriter{&stderr}

	runErr := cmd.Run()
	result := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if runCtx.Err() == context.DeadlineExceeded {
		return result, fmt.Errorf("sandboxexec: command timed out after %s", timeout)
	}
	if exitErr, ok := runErr.(*exec.ExitError); ok {
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}
	if runErr != nil {
		return result, fmt.Errorf("sandboxexec: %w", runErr)
	}
	return result, nil
}

type boundedWriter struct {
	buf *bytes.Buffer
}

func (w boundedWriter) Write(p []byte) (int, error) {
	remaining := maxOutputBytes - w.buf.Len()
	if remaining <= 0 {
		return len(p), nil
	}
	if len(p) > remaining {
		w.buf.Write(p[:remaining])
		return len(p), nil
	}
	w.buf.Write(p)
	return len(p), nil
}

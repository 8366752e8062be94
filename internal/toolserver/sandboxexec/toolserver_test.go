package sandboxexec

import (
	"context"
	"testing"

	"github.com/conductorhq/conductor/internal/sandboxexec"
)

func TestRunSandboxedCommandToolReturnsOutput(t *testing.T) {
	srv := New(sandboxexec.New(t.TempDir()))
	result, err := srv.Tools["runSandboxedCommand"].Handler(context.Background(), "a", map[string]any{"command": "echo hi"})
	if err != nil || result.IsError {
		t.Fatalf("runSandboxedCommand: err=%v result=%+v", err, result)
	}
}

func TestRunSandboxedCommandToolRejectsDisallowed(t *testing.T) {
	srv := New(sandboxexec.New(t.TempDir()))
	result, err := srv.Tools["runSandboxedCommand"].Handler(context.Background(), "a", map[string]any{"command": "rm -rf /"})
	if err != nil {
		t.Fatalf("handler should report failures via ToolResult, not error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected an error result for a disallowed command")
	}
}

// Package sandboxexec implements the "sandbox-exec" tool server
// (SPEC_FULL.md EXPANSION 4.F+), wrapping internal/sandboxexec.Executor
// behind a single runSandboxedCommand tool.
package sandboxexec

import (
	"context"
	"strconv"
	"time"

	"github.com/conductorhq/conductor/internal/sandboxexec"
	"github.com/conductorhq/conductor/internal/toolserver"
)

// New builds the "sandbox-exec" tool server bound to exec.
func New(exec *sandboxexec.Executor) *toolserver.Server {
	srv := toolserver.NewServer("sandbox-exec", "1.0.0")

	srv.Register(toolserver.Tool{
		Name: "runSandboxedCommand", Handler: func(ctx context.Context, callerAgentID string, args map[string]any) (toolserver.ToolResult, error) {
			command, _ := args["command"].(string)
			timeout := durationOf(args["timeoutSeconds"])

			result, err := exec.Run(ctx, command, timeout)
			if err != nil {
				return toolserver.ErrorResult(err.Error()), nil
			}
			text := result.Stdout
			if result.Stderr != "" {
				text += "\n[stderr]\n" + result.Stderr
			}
			if result.ExitCode != 0 {
				return toolserver.ErrorResult(text + "\n[exit code " + strconv.Itoa(result.ExitCode) + "]"), nil
			}
			return toolserver.TextResult(text), nil
		},
	})

	return srv
}

func durationOf(v any) time.Duration {
	switch n := v.(type) {
	case float64:
		return time.Duration(n) * time.Second
	case int:
		return time.Duration(n) * time.Second
	default:
		return 0
	}
}

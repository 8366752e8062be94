// Package taskapprun implements the "task-app runtime" tool server
// (spec.md §4.F): start/stop/reload/restart a guest task app, capture
// screenshots, and drive UI actions via a vision backend. The guest app
// is opaque to the core — every tool here returns either an ok text
// block or isError=true with a human-readable message, never a crash.
package taskapprun

import (
	"context"
	"encoding/base64"
	"time"

	"github.com/conductorhq/conductor/internal/taskapp"
	"github.com/conductorhq/conductor/internal/toolserver"
)

// defaultGrace bounds how long stop/restart wait before force-killing
// the guest app.
const defaultGrace = 5 * time.Second

// New builds the "task-app runtime" tool server bound to mgr.
func New(mgr *taskapp.Manager) *toolserver.Server {
	srv := toolserver.NewServer("task-app-runtime", "1.0.0")

	srv.Register(toolserver.Tool{
		Name: "startTaskApp", Handler: func(ctx context.Context, callerAgentID string, args map[string]any) (toolserver.ToolResult, error) {
			command, _ := args["command"].(string)
			if command == "" {
				return toolserver.ErrorResult("command is required"), nil
			}
			if err := mgr.Start(ctx, command, stringSlice(args["args"])); err != nil {
				return toolserver.ErrorResult(err.Error()), nil
			}
			return toolserver.TextResult("started"), nil
		},
	})

	srv.Register(toolserver.Tool{
		Name: "stopTaskApp", Handler: func(ctx context.Context, callerAgentID string, args map[string]any) (toolserver.ToolResult, error) {
			if err := mgr.Stop(ctx, defaultGrace); err != nil {
				return toolserver.ErrorResult(err.Error()), nil
			}
			return toolserver.TextResult("stopped"), nil
		},
	})

	srv.Register(toolserver.Tool{
		Name: "reloadTaskApp", Handler: func(ctx context.Context, callerAgentID string, args map[string]any) (toolserver.ToolResult, error) {
			if err := mgr.Reload(ctx, defaultGrace); err != nil {
				return toolserver.ErrorResult(err.Error()), nil
			}
			return toolserver.TextResult("reloaded"), nil
		},
	})

	srv.Register(toolserver.Tool{
		Name: "restartTaskApp", Handler: func(ctx context.Context, callerAgentID string, args map[string]any) (toolserver.ToolResult, error) {
			if err := mgr.Restart(ctx, defaultGrace); err != nil {
				return toolserver.ErrorResult(err.Error()), nil
			}
			return toolserver.TextResult("restarted"), nil
		},
	})

	srv.Register(toolserver.Tool{
		Name: "taskAppStatus", Handler: func(ctx context.Context, callerAgentID string, args map[string]any) (toolserver.ToolResult, error) {
			snap := mgr.Snapshot()
			text := string(snap.Status)
			if snap.Output != "" {
				text += "\n" + snap.Output
			}
			return toolserver.TextResult(text), nil
		},
	})

	srv.Register(toolserver.Tool{
		Name: "screenshotTaskApp", Handler: func(ctx context.Context, callerAgentID string, args map[string]any) (toolserver.ToolResult, error) {
			data, err := mgr.Screenshot(ctx)
			if err != nil {
				return toolserver.ErrorResult(err.Error()), nil
			}
			return toolserver.ToolResult{Content: []toolserver.ContentBlock{{
				Type:      toolserver.ContentImage,
				ImageRef:  base64.StdEncoding.EncodeToString(data),
				MediaType: "image/png",
			}}}, nil
		},
	})

	srv.Register(toolserver.Tool{
		Name: "taskAppUIAction", Handler: func(ctx context.Context, callerAgentID string, args map[string]any) (toolserver.ToolResult, error) {
			action, _ := args["action"].(string)
			if action == "" {
				return toolserver.ErrorResult("action is required"), nil
			}
			params, _ := args["params"].(map[string]any)
			out, err := mgr.UIAction(ctx, action, params)
			if err != nil {
				return toolserver.ErrorResult(err.Error()), nil
			}
			return toolserver.TextResult(out), nil
		},
	})

	return srv
}

func stringSlice(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

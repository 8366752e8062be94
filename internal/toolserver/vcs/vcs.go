// Package vcs implements the "vcs" tool server (spec.md §4.F): it wraps
// internal/vcs tool-by-tool, one Tool per Client method, converting
// every CLI failure into an isError=true ToolResult rather than a Go
// error so a broken repository never crashes the session.
package vcs

import (
	"context"

	"github.com/conductorhq/conductor/internal/toolserver"
	"github.com/conductorhq/conductor/internal/vcs"
)

// New builds the "vcs" tool server bound to client.
func New(client *vcs.Client) *toolserver.Server {
	srv := toolserver.NewServer("vcs", "1.0.0")

	srv.Register(toolserver.Tool{
		Name: "vcsStatus", Handler: func(ctx context.Context, callerAgentID string, args map[string]any) (toolserver.ToolResult, error) {
			detailed, _ := args["detailed"].(bool)
			out, err := client.Status(ctx, detailed)
			return resultOf(out, err)
		},
	})

	srv.Register(toolserver.Tool{
		Name: "vcsAdd", Handler: func(ctx context.Context, callerAgentID string, args map[string]any) (toolserver.ToolResult, error) {
			if err := client.Add(ctx, stringSlice(args["paths"])); err != nil {
				return toolserver.ErrorResult(err.Error()), nil
			}
			return toolserver.TextResult("staged"), nil
		},
	})

	srv.Register(toolserver.Tool{
		Name: "vcsCommit", Handler: func(ctx context.Context, callerAgentID string, args map[string]any) (toolserver.ToolResult, error) {
			message, _ := args["message"].(string)
			amend, _ := args["amend"].(bool)
			all, _ := args["all"].(bool)
			out, err := client.Commit(ctx, message, vcs.CommitOptions{Amend: amend, All: all})
			return resultOf(out, err)
		},
	})

	srv.Register(toolserver.Tool{
		Name: "vcsDiff", Handler: func(ctx context.Context, callerAgentID string, args map[string]any) (toolserver.ToolResult, error) {
			staged, _ := args["staged"].(bool)
			out, err := client.Diff(ctx, staged, stringSlice(args["files"]))
			return resultOf(out, err)
		},
	})

	srv.Register(toolserver.Tool{
		Name: "vcsLog", Handler: func(ctx context.Context, callerAgentID string, args map[string]any) (toolserver.ToolResult, error) {
			count := intArg(args["count"])
			oneline, _ := args["oneline"].(bool)
			entries, out, err := client.Log(ctx, count, oneline)
			if err != nil {
				return toolserver.ErrorResult(err.Error()), nil
			}
			if oneline {
				return toolserver.TextResult(out), nil
			}
			blocks := make([]toolserver.ContentBlock, 0, len(entries))
			for _, e := range entries {
				blocks = append(blocks, toolserver.ContentBlock{
					Type: toolserver.ContentText,
					Text: e.Hash + " " + e.Author + " " + e.Date + " " + e.Subject,
				})
			}
			return toolserver.ToolResult{Content: blocks}, nil
		},
	})

	srv.Register(toolserver.Tool{
		Name: "vcsBranch", Handler: func(ctx context.Context, callerAgentID string, args map[string]any) (toolserver.ToolResult, error) {
			all, _ := args["all"].(bool)
			create, _ := args["create"].(string)
			del, _ := args["delete"].(string)
			force, _ := args["force"].(bool)
			out, err := client.Branch(ctx, vcs.BranchOptions{All: all, Create: create, Delete: del, Force: force})
			return resultOf(out, err)
		},
	})

	srv.Register(toolserver.Tool{
		Name: "vcsCheckout", Handler: func(ctx context.Context, callerAgentID string, args map[string]any) (toolserver.ToolResult, error) {
			branch, _ := args["branch"].(string)
			create, _ := args["create"].(bool)
			out, err := client.Checkout(ctx, branch, create, stringSlice(args["files"]))
			return resultOf(out, err)
		},
	})

	srv.Register(toolserver.Tool{
		Name: "vcsStash", Handler: func(ctx context.Context, callerAgentID string, args map[string]any) (toolserver.ToolResult, error) {
			action, _ := args["action"].(string)
			message, _ := args["message"].(string)
			out, err := client.Stash(ctx, vcs.StashAction(action), message)
			return resultOf(out, err)
		},
	})

	srv.Register(toolserver.Tool{
		Name: "vcsWorktree", Handler: func(ctx context.Context, callerAgentID string, args map[string]any) (toolserver.ToolResult, error) {
			action, _ := args["action"].(string)
			path, _ := args["path"].(string)
			branch, _ := args["branch"].(string)
			out, err := client.Worktree(ctx, vcs.WorktreeAction(action), path, branch)
			return resultOf(out, err)
		},
	})

	srv.Register(toolserver.Tool{
		Name: "vcsFetch", Handler: func(ctx context.Context, callerAgentID string, args map[string]any) (toolserver.ToolResult, error) {
			remote, _ := args["remote"].(string)
			out, err := client.Fetch(ctx, remote)
			return resultOf(out, err)
		},
	})

	srv.Register(toolserver.Tool{
		Name: "vcsPull", Handler: func(ctx context.Context, callerAgentID string, args map[string]any) (toolserver.ToolResult, error) {
			rebase, _ := args["rebase"].(bool)
			out, err := client.Pull(ctx, rebase)
			return resultOf(out, err)
		},
	})

	srv.Register(toolserver.Tool{
		Name: "vcsMerge", Handler: func(ctx context.Context, callerAgentID string, args map[string]any) (toolserver.ToolResult, error) {
			branch, _ := args["branch"].(string)
			abort, _ := args["abort"].(bool)
			out, err := client.Merge(ctx, branch, abort)
			return resultOf(out, err)
		},
	})

	srv.Register(toolserver.Tool{
		Name: "vcsRebase", Handler: func(ctx context.Context, callerAgentID string, args map[string]any) (toolserver.ToolResult, error) {
			action, _ := args["action"].(string)
			branch, _ := args["branch"].(string)
			out, err := client.Rebase(ctx, vcs.RebaseAction(action), branch)
			return resultOf(out, err)
		},
	})

	return srv
}

func resultOf(out string, err error) (toolserver.ToolResult, error) {
	if err != nil {
		return toolserver.ErrorResult(err.Error()), nil
	}
	return toolserver.TextResult(out), nil
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

func intArg(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	default:
		return 0
	}
}

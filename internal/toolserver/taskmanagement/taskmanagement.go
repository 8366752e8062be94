// Package taskmanagement implements the "task-management" tool server
// (spec.md §4.F): goal and per-agent task-name setters, aliasing the
// same internal/network.Manager operations the "agent" server exposes.
package taskmanagement

import (
	"context"

	"github.com/conductorhq/conductor/internal/network"
	"github.com/conductorhq/conductor/internal/toolserver"
	"github.com/conductorhq/conductor/pkg/models"
)

// New builds the "task-management" tool server bound to mgr, scoped to
// one network.
func New(mgr *network.Manager, networkID models.NetworkID) *toolserver.Server {
	srv := toolserver.NewServer("task-management", "1.0.0")

	srv.Register(toolserver.Tool{
		Name: "setTaskName", Handler: func(ctx context.Context, callerAgentID string, args map[string]any) (toolserver.ToolResult, error) {
			goal, _ := args["goal"].(string)
			if err := mgr.UpdateGoal(networkID, goal); err != nil {
				return toolserver.ErrorResult(err.Error()), nil
			}
			return toolserver.TextResult("goal updated"), nil
		},
	})

	srv.Register(toolserver.Tool{
		Name: "setAgentTaskName", Handler: func(ctx context.Context, callerAgentID string, args map[string]any) (toolserver.ToolResult, error) {
			taskName, _ := args["taskName"].(string)
			if err := mgr.UpdateAgentTaskName(networkID, models.AgentID(callerAgentID), taskName); err != nil {
				return toolserver.ErrorResult(err.Error()), nil
			}
			return toolserver.TextResult("task name updated"), nil
		},
	})

	return srv
}

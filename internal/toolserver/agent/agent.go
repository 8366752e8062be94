// Package agent implements the "agent" tool server (spec.md §4.F):
// spawn/message/terminate, status, task-name, and goal mutation, all
// delegating to internal/network.Manager.
package agent

import (
	"context"

	"github.com/conductorhq/conductor/internal/network"
	"github.com/conductorhq/conductor/internal/toolserver"
	"github.com/conductorhq/conductor/pkg/models"
)

// SpawnFactory resolves the agent-type and configuration a spawnAgent
// call should use for a given type name, since the tool's wire contract
// only carries a type string, not a full models.AgentConfiguration.
type SpawnFactory func(agentType string) (models.AgentConfiguration, models.AgentType, error)

// New builds the "agent" tool server bound to mgr, scoped to one
// network (each agent subprocess only ever acts within its own
// network).
func New(mgr *network.Manager, networkID models.NetworkID, workingDirectory string, resolve SpawnFactory) *toolserver.Server {
	srv := toolserver.NewServer("agent", "1.0.0")

	srv.Register(toolserver.Tool{
		Name: "spawnAgent", Handler: func(ctx context.Context, callerAgentID string, args map[string]any) (toolserver.ToolResult, error) {
			typeName, _ := args["type"].(string)
			name, _ := args["name"].(string)
			initialPrompt, _ := args["initialPrompt"].(string)

			cfg, agentType, err := resolve(typeName)
			if err != nil {
				return toolserver.ErrorResult(err.Error()), nil
			}

			newID, err := mgr.SpawnAgent(ctx, networkID, cfg, agentType, name, initialPrompt, models.AgentID(callerAgentID), workingDirectory)
			if err != nil {
				return toolserver.ErrorResult(err.Error()), nil
			}
			return toolserver.TextResult(string(newID)), nil
		},
	})

	srv.Register(toolserver.Tool{
		Name: "sendMessageToAgent", Handler: func(ctx context.Context, callerAgentID string, args map[string]any) (toolserver.ToolResult, error) {
			targetID, _ := args["targetId"].(string)
			content, _ := args["content"].(string)
			if targetID == "" {
				return toolserver.ErrorResult("targetId is required"), nil
			}
			if err := mgr.SendToAgent(ctx, networkID, models.AgentID(targetID), content); err != nil {
				return toolserver.ErrorResult(err.Error()), nil
			}
			return toolserver.TextResult("message enqueued"), nil
		},
	})

	srv.Register(toolserver.Tool{
		Name: "setAgentStatus", Handler: func(ctx context.Context, callerAgentID string, args map[string]any) (toolserver.ToolResult, error) {
			status, _ := args["status"].(string)
			if err := mgr.SetAgentStatus(networkID, models.AgentID(callerAgentID), models.AgentStatus(status)); err != nil {
				return toolserver.ErrorResult(err.Error()), nil
			}
			return toolserver.TextResult("status updated"), nil
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
		Name: "terminateAgent", Handler: func(ctx context.Context, callerAgentID string, args map[string]any) (toolserver.ToolResult, error) {
			targetID, _ := args["targetId"].(string)
			reason, _ := args["reason"].(string)
			if err := mgr.TerminateAgent(ctx, networkID, models.AgentID(targetID), reason); err != nil {
				return toolserver.ErrorResult(err.Error()), nil
			}
			return toolserver.TextResult("agent terminated"), nil
		},
	})

	return srv
}

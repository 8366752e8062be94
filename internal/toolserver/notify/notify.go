// Package notify implements the "notify" tool server (SPEC_FULL.md
// EXPANSION 4.F+): posts ask-user prompts and completion pings to a
// configured webhook via internal/notify.
package notify

import (
	"context"
	"time"

	"github.com/conductorhq/conductor/internal/notify"
	"github.com/conductorhq/conductor/internal/toolserver"
	"github.com/conductorhq/conductor/pkg/models"
)

// New builds the "notify" tool server bound to notifier, scoped to one
// network.
func New(notifier *notify.Notifier, networkID models.NetworkID) *toolserver.Server {
	srv := toolserver.NewServer("notify", "1.0.0")

	srv.Register(toolserver.Tool{
		Name: "notifyAskUser", Handler: func(ctx context.Context, callerAgentID string, args map[string]any) (toolserver.ToolResult, error) {
			return send(ctx, notifier, networkID, callerAgentID, notify.KindAskUser, args)
		},
	})

	srv.Register(toolserver.Tool{
		Name: "notifyCompletion", Handler: func(ctx context.Context, callerAgentID string, args map[string]any) (toolserver.ToolResult, error) {
			return send(ctx, notifier, networkID, callerAgentID, notify.KindCompletion, args)
		},
	})

	return srv
}

func send(ctx context.Context, notifier *notify.Notifier, networkID models.NetworkID, callerAgentID string, kind notify.Kind, args map[string]any) (toolserver.ToolResult, error) {
	message, _ := args["message"].(string)
	if message == "" {
		return toolserver.ErrorResult("message is required"), nil
	}

	err := notifier.Send(ctx, notify.Notification{
		Kind: kind, NetworkID: string(networkID), AgentID: callerAgentID, Message: message, SentAt: time.Now().UTC(),
	})
	if err != nil {
		return toolserver.ErrorResult(err.Error()), nil
	}
	return toolserver.TextResult("notified"), nil
}

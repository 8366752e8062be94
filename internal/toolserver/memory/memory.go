// Package memory implements the "memory" tool server (spec.md §4.F):
// Save/Retrieve/Delete/List over internal/memstore, scoped to a fixed
// project for the lifetime of the server instance.
package memory

import (
	"context"
	"encoding/json"

	"github.com/conductorhq/conductor/internal/memstore"
	"github.com/conductorhq/conductor/internal/toolserver"
)

var memorySaveSchema = json.RawMessage(`{
	"type": "object",
	"required": ["key", "value"],
	"properties": {
		"key": {"type": "string", "minLength": 1},
		"value": {"type": "string"}
	}
}`)

var memoryKeySchema = json.RawMessage(`{
	"type": "object",
	"required": ["key"],
	"properties": {
		"key": {"type": "string", "minLength": 1}
	}
}`)

// New builds the "memory" tool server bound to store, fixed to project.
func New(store *memstore.Store, project string) *toolserver.Server {
	srv := toolserver.NewServer("memory", "1.0.0")

	srv.Register(toolserver.Tool{
		Name: "memorySave", Schema: memorySaveSchema, Handler: func(ctx context.Context, callerAgentID string, args map[string]any) (toolserver.ToolResult, error) {
			key, _ := args["key"].(string)
			value, _ := args["value"].(string)
			if key == "" {
				return toolserver.ErrorResult("key is required"), nil
			}
			if err := store.Save(project, key, value); err != nil {
				return toolserver.ErrorResult(err.Error()), nil
			}
			return toolserver.TextResult("saved"), nil
		},
	})

	srv.Register(toolserver.Tool{
		Name: "memoryRetrieve", Schema: memoryKeySchema, Handler: func(ctx context.Context, callerAgentID string, args map[string]any) (toolserver.ToolResult, error) {
			key, _ := args["key"].(string)
			entry, ok := store.Retrieve(project, key)
			if !ok {
				return toolserver.ErrorResult("no entry for key " + key), nil
			}
			return toolserver.TextResult(entry.Value), nil
		},
	})

	srv.Register(toolserver.Tool{
		Name: "memoryDelete", Schema: memoryKeySchema, Handler: func(ctx context.Context, callerAgentID string, args map[string]any) (toolserver.ToolResult, error) {
			key, _ := args["key"].(string)
			if !store.Delete(project, key) {
				return toolserver.ErrorResult("no entry for key " + key), nil
			}
			return toolserver.TextResult("deleted"), nil
		},
	})

	srv.Register(toolserver.Tool{
		Name: "memoryList", Handler: func(ctx context.Context, callerAgentID string, args map[string]any) (toolserver.ToolResult, error) {
			keys := store.ListKeys(project)
			blocks := make([]toolserver.ContentBlock, 0, len(keys))
			for _, k := range keys {
				blocks = append(blocks, toolserver.ContentBlock{Type: toolserver.ContentText, Text: k})
			}
			return toolserver.ToolResult{Content: blocks}, nil
		},
	})

	return srv
}

// Package askuser implements the "askUser" tool server (spec.md §4.L):
// a single "askQuestions" tool a subprocess calls when it needs the
// operator to pick among structured options, rather than a plain
// approve/deny permission decision. It blocks the calling agent's turn
// on internal/askuser.Coordinator until an interactive host responds
// over internal/gatewayhttp's ask-request endpoints.
package askuser

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/conductorhq/conductor/internal/askuser"
	"github.com/conductorhq/conductor/internal/toolserver"
)

var errInvalidQuestions = errors.New("questions must be an array of {id, prompt, options?}")

var askQuestionsSchema = json.RawMessage(`{
	"type": "object",
	"required": ["questions"],
	"properties": {
		"questions": {
			"type": "array",
			"minItems": 1,
			"items": {
				"type": "object",
				"required": ["id", "prompt"],
				"properties": {
					"id": {"type": "string", "minLength": 1},
					"prompt": {"type": "string", "minLength": 1},
					"options": {"type": "array", "items": {"type": "string"}}
				}
			}
		}
	}
}`)

// New builds the "askUser" tool server bound to coordinator.
func New(coordinator *askuser.Coordinator) *toolserver.Server {
	srv := toolserver.NewServer("askUser", "1.0.0")

	srv.Register(toolserver.Tool{
		Name: "askQuestions", Schema: askQuestionsSchema,
		Handler: func(ctx context.Context, callerAgentID string, args map[string]any) (toolserver.ToolResult, error) {
			questions, err := parseQuestions(args["questions"])
			if err != nil {
				return toolserver.ErrorResult(err.Error()), nil
			}

			answers := coordinator.AskQuestions(ctx, questions)
			encoded, err := json.Marshal(answers)
			if err != nil {
				return toolserver.ErrorResult(err.Error()), nil
			}
			return toolserver.TextResult(string(encoded)), nil
		},
	})

	return srv
}

func parseQuestions(raw any) ([]askuser.Question, error) {
	items, ok := raw.([]any)
	if !ok {
		return nil, errInvalidQuestions
	}
	questions := make([]askuser.Question, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, errInvalidQuestions
		}
		id, _ := m["id"].(string)
		prompt, _ := m["prompt"].(string)
		var options []string
		if raw, ok := m["options"].([]any); ok {
			for _, o := range raw {
				if s, ok := o.(string); ok {
					options = append(options, s)
				}
			}
		}
		questions = append(questions, askuser.Question{ID: id, Prompt: prompt, Options: options})
	}
	return questions, nil
}

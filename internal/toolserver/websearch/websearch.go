package websearch

import (
	"context"

	"github.com/conductorhq/conductor/internal/toolserver"
)

// New builds the "websearch" tool server bound to fetcher: a single
// fetchPage tool that downloads a URL and returns its readable text.
func New(fetcher *Fetcher) *toolserver.Server {
	srv := toolserver.NewServer("websearch", "1.0.0")

	srv.Register(toolserver.Tool{
		Name: "fetchPage", Handler: func(ctx context.Context, callerAgentID string, args map[string]any) (toolserver.ToolResult, error) {
			url, _ := args["url"].(string)
			if url == "" {
				return toolserver.ErrorResult("url is required"), nil
			}
			content, err := fetcher.Fetch(ctx, url)
			if err != nil {
				return toolserver.ErrorResult(err.Error()), nil
			}
			return toolserver.TextResult(content), nil
		},
	})

	return srv
}

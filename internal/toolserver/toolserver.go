// Package toolserver implements the Tool Server Fabric (spec.md §4.F):
// in-process handlers the assistant subprocess invokes over the control
// protocol, each declaring a name, version, tool list, and a per-tool
// JSON schema plus async callback.
//
// Grounded on the teacher's internal/mcp server-registration pattern
// (internal/mcp/manager.go's ServerConfig/tool registry) and
// internal/tools/policy/approval.go's never-crash error-reporting
// contract, adapted from MCP-protocol framing to the simpler
// (args) -> ToolResult callback shape spec.md describes.
package toolserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/conductorhq/conductor/internal/observability/metrics"
	"github.com/conductorhq/conductor/internal/toolserver/schema"
)

// ContentBlockType discriminates a ToolResult content block.
type ContentBlockType string

const (
	ContentText  ContentBlockType = "text"
	ContentImage ContentBlockType = "image"
)

// ContentBlock is one unit of a ToolResult.
type ContentBlock struct {
	Type      ContentBlockType `json:"type"`
	Text      string           `json:"text,omitempty"`
	ImageRef  string           `json:"imageRef,omitempty"`
	MediaType string           `json:"mediaType,omitempty"`
}

// ToolResult is the return value of every tool invocation (spec.md §4.F).
type ToolResult struct {
	Content []ContentBlock `json:"content"`
	IsError bool           `json:"isError,omitempty"`
}

// TextResult builds a single-block success result.
func TextResult(text string) ToolResult {
	return ToolResult{Content: []ContentBlock{{Type: ContentText, Text: text}}}
}

// ErrorResult builds a single-block error result.
func ErrorResult(message string) ToolResult {
	return ToolResult{Content: []ContentBlock{{Type: ContentText, Text: message}}, IsError: true}
}

// Handler is a tool's async callback.
type Handler func(ctx context.Context, callerAgentID string, args map[string]any) (ToolResult, error)

// Tool is one registered tool within a Server.
type Tool struct {
	Name    string
	Schema  json.RawMessage // JSON Schema for args, validated by internal/toolserver/schema
	Handler Handler
}

// Server declares a name, version, and its tools.
type Server struct {
	Name    string
	Version string
	Tools   map[string]Tool
}

// NewServer returns an empty Server ready to have tools registered.
func NewServer(name, version string) *Server {
	return &Server{Name: name, Version: version, Tools: make(map[string]Tool)}
}

// Register adds tool t to the server.
func (s *Server) Register(t Tool) {
	s.Tools[t.Name] = t
}

// ToolNames returns every registered tool name, in no particular order.
func (s *Server) ToolNames() []string {
	names := make([]string, 0, len(s.Tools))
	for n := range s.Tools {
		names = append(names, n)
	}
	return names
}

// Router dispatches mcp_message control requests to a named server and
// tool, satisfying internal/session.ToolServerRouter. Handlers never
// crash the caller: a panicking or erroring handler is converted into an
// isError=true ToolResult and tagged to metrics, never propagated as a
// control-protocol failure.
type Router struct {
	servers map[string]*Server
	metrics *metrics.Metrics
	schemas *schema.Registry
}

// NewRouter returns a Router with no servers registered.
func NewRouter(m *metrics.Metrics) *Router {
	return &Router{servers: make(map[string]*Server), metrics: m, schemas: schema.NewRegistry()}
}

// Mount registers s under its own name, compiling every tool's JSON
// Schema (if it declares one) so dispatch can validate arguments before
// a handler ever sees them. A schema that fails to compile is dropped
// with a panic-free fallback to permissive validation for that tool,
// since a malformed schema must never block the tool itself from being
// callable.
func (r *Router) Mount(s *Server) {
	r.servers[s.Name] = s
	for _, t := range s.Tools {
		if len(t.Schema) == 0 {
			continue
		}
		_ = r.schemas.Compile(s.Name+"."+t.Name, t.Schema)
	}
}

// request is the wire shape of one mcp_message payload: which tool to
// invoke, with what arguments, on whose behalf.
type request struct {
	Tool          string         `json:"tool"`
	Args          map[string]any `json:"args"`
	CallerAgentID string         `json:"callerAgentId"`
}

// Route implements internal/session.ToolServerRouter.
func (r *Router) Route(ctx context.Context, serverName string, payload json.RawMessage) (json.RawMessage, error) {
	result := r.dispatch(ctx, serverName, payload)
	return json.Marshal(result)
}

func (r *Router) dispatch(ctx context.Context, serverName string, payload json.RawMessage) (result ToolResult) {
	defer func() {
		if rec := recover(); rec != nil {
			r.observe(serverName, "panic", "error")
			result = ErrorResult(fmt.Sprintf("tool server %s panicked: %v", serverName, rec))
		}
	}()

	srv, ok := r.servers[serverName]
	if !ok {
		r.observe(serverName, "unknown", "error")
		return ErrorResult(fmt.Sprintf("unknown tool server %q", serverName))
	}

	var req request
	if err := json.Unmarshal(payload, &req); err != nil {
		r.observe(serverName, "unknown", "error")
		return ErrorResult(fmt.Sprintf("malformed tool request: %v", err))
	}

	tool, ok := srv.Tools[req.Tool]
	if !ok {
		r.observe(serverName, req.Tool, "error")
		return ErrorResult(fmt.Sprintf("server %q has no tool %q", serverName, req.Tool))
	}

	if err := r.schemas.Validate(serverName+"."+req.Tool, req.Args); err != nil {
		r.observe(serverName, req.Tool, "error")
		return ErrorResult(err.Error())
	}

	res, err := tool.Handler(ctx, req.CallerAgentID, req.Args)
	if err != nil {
		r.observe(serverName, req.Tool, "error")
		return ErrorResult(err.Error())
	}
	r.observe(serverName, req.Tool, outcomeOf(res))
	return res
}

func outcomeOf(r ToolResult) string {
	if r.IsError {
		return "error"
	}
	return "ok"
}

func (r *Router) observe(server, tool, result string) {
	if r.metrics == nil {
		return
	}
	r.metrics.ToolInvocations.WithLabelValues(server+"."+tool, result).Inc()
}

// Package permission implements the Permission Engine (spec.md §4.A): a
// pure, side-effect-free decision function that turns a tool invocation
// into Allow, Deny, or AskUser, plus the session-scoped allow cache and
// the project ignore-list lookup that feed it.
package permission

import (
	"context"
	"regexp"
	"strings"
	"sync"

	"github.com/conductorhq/conductor/internal/permission/pattern"
	"github.com/conductorhq/conductor/internal/shellparse"
	"github.com/conductorhq/conductor/pkg/models"
)

// Decision is the outcome of evaluating a tool invocation.
type Decision string

const (
	Allow    Decision = "allow"
	Deny     Decision = "deny"
	AskUser  Decision = "ask"
)

// AskUserBehavior controls what happens when evaluation falls through to
// step 10 and no host is available to prompt interactively.
type AskUserBehavior string

const (
	// BehaviorAsk surfaces the request to an interactive host.
	BehaviorAsk AskUserBehavior = "ask"
	// BehaviorDeny is selected by headless hosts that cannot prompt.
	BehaviorDeny AskUserBehavior = "deny"
	// BehaviorAllow is selected by tests and trusted automation.
	BehaviorAllow AskUserBehavior = "allow"
)

// Verdict is the engine's answer for one invocation.
type Verdict struct {
	Decision        Decision
	Reason          string
	InferredPattern string
}

// blockedTools is the hardcoded deny set: tools known to flood context or
// otherwise cause harm regardless of settings. Its only current member is
// a static-analysis MCP tool that returns unbounded output.
var blockedTools = map[string]bool{
	"mcp__static-analysis__full_scan": true,
}

// internalToolPrefixes are tool-server-shipped or well-known safe names,
// allowed unconditionally (step 4).
var internalToolPrefixes = []string{"mcp__agent__", "mcp__memory__", "mcp__vcs__", "mcp__task-management__"}

var internalToolNames = map[string]bool{
	"todo-write": true, "bash-output": true, "kill-shell": true,
}

var readOnlyTools = map[string]bool{"Read": true, "Grep": true, "Glob": true}

var shellTools = map[string]bool{"Bash": true}

var writeTools = map[string]bool{"Write": true, "Edit": true, "NotebookEdit": true}

// pathTraversalPattern matches "../", "..\", and their URL-encoded and
// double-URL-encoded forms, case-insensitively.
var pathTraversalPattern = regexp.MustCompile(`(?i)\.\.(/|\\|%2f|%5c)|%2e%2e(/|\\|%2f|%5c|%252f|%255c)|%252e%252e`)

// IgnoreChecker reports whether path is excluded by a project's ignore
// list. Loading is best-effort; implementations must never error — a
// failed load is treated as "no ignore rules" by returning false always.
type IgnoreChecker interface {
	IsIgnored(workingDirectory, path string) bool
}

// Engine evaluates tool invocations against settings plus an in-memory
// session cache. It holds no subprocess or file handles of its own;
// construction is cheap and evaluation is a pure function of its inputs
// plus the current settings/cache snapshot.
type Engine struct {
	mu       sync.RWMutex
	settings *models.PermissionSettings
	behavior AskUserBehavior
	ignore   IgnoreChecker

	sessionCache []pattern.Pattern
}

// New constructs an Engine with the given settings snapshot and
// ask-user behavior. ignore may be nil, in which case no path is ever
// treated as ignored.
func New(settings *models.PermissionSettings, behavior AskUserBehavior, ignore IgnoreChecker) *Engine {
	if settings == nil {
		settings = &models.PermissionSettings{}
	}
	return &Engine{settings: settings, behavior: behavior, ignore: ignore}
}

// UpdateSettings swaps in a new settings snapshot, taken on every
// evaluation going forward.
func (e *Engine) UpdateSettings(settings *models.PermissionSettings) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if settings == nil {
		settings = &models.PermissionSettings{}
	}
	e.settings = settings
}

// AddSessionPattern remembers p as allowed for the remainder of the
// session, consulted at step 8 for write/edit tools.
func (e *Engine) AddSessionPattern(raw string) bool {
	p, ok := pattern.Parse(raw)
	if !ok {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sessionCache = append(e.sessionCache, p)
	return true
}

// ClearSessionCache discards every pattern learned via AddSessionPattern.
func (e *Engine) ClearSessionCache() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sessionCache = nil
}

// Evaluate returns exactly one Verdict for (toolName, input,
// workingDirectory), following spec.md §4.A's ten-step evaluation order.
// It never errors: I/O failures while consulting the ignore list are
// absorbed into "empty".
func (e *Engine) Evaluate(ctx context.Context, toolName string, input map[string]any, workingDirectory string) Verdict {
	e.mu.RLock()
	settings := e.settings
	ignore := e.ignore
	behavior := e.behavior
	cache := append([]pattern.Pattern(nil), e.sessionCache...)
	e.mu.RUnlock()

	// Step 1: path-traversal defense over every string-typed path-ish
	// field in the input.
	if containsTraversal(input) {
		return Verdict{Decision: Deny, Reason: "path traversal detected in tool input"}
	}

	// Step 2: ignore-list exclusion for read-style tools.
	if ignore != nil && isReadStyleTool(toolName) {
		if p := firstPathField(input); p != "" && ignore.IsIgnored(workingDirectory, p) {
			return Verdict{Decision: Deny, Reason: "path excluded by project ignore list"}
		}
	}

	// Step 3: hardcoded block list.
	if blockedTools[toolName] {
		return Verdict{Decision: Deny, Reason: "tool is blocked"}
	}

	// Step 4: internal tool prefix/whitelist.
	if internalToolNames[toolName] {
		return Verdict{Decision: Allow, Reason: "internal tool"}
	}
	for _, prefix := range internalToolPrefixes {
		if strings.HasPrefix(toolName, prefix) {
			return Verdict{Decision: Allow, Reason: "internal tool server"}
		}
	}

	// Step 5: unconditional read-only tools.
	if readOnlyTools[toolName] {
		return Verdict{Decision: Allow, Reason: "read-only tool"}
	}

	// Step 6: deny patterns from settings.
	for _, raw := range settings.Deny {
		p, ok := pattern.Parse(raw)
		if !ok {
			continue
		}
		if p.Match(toolName, input, workingDirectory) {
			return Verdict{Decision: Deny, Reason: "matched deny pattern " + raw}
		}
	}

	// Step 7: fully-safe compound shell command.
	if shellTools[toolName] {
		if cmd := stringField(input, "command"); cmd != "" {
			if shellparse.IsSafeBashCommand(cmd, workingDirectory) {
				return Verdict{Decision: Allow, Reason: "command composed entirely of safe parts"}
			}
		}
	}

	// Step 8: session-cache pattern for write/edit tools.
	if writeTools[toolName] {
		for _, p := range cache {
			if p.Match(toolName, input, workingDirectory) {
				return Verdict{Decision: Allow, Reason: "matched session-cached pattern"}
			}
		}
	}

	// Step 9: allow patterns from settings.
	for _, raw := range settings.Allow {
		p, ok := pattern.Parse(raw)
		if !ok {
			continue
		}
		if p.Match(toolName, input, workingDirectory) {
			return Verdict{Decision: Allow, Reason: "matched allow pattern " + raw}
		}
	}

	// Step 10: fall through to AskUser, subject to the configured
	// behavior override for hosts that cannot prompt.
	inferred := pattern.Infer(toolName, input)
	switch behavior {
	case BehaviorDeny:
		return Verdict{Decision: Deny, Reason: "no matching rule; headless host denies by default", InferredPattern: inferred}
	case BehaviorAllow:
		return Verdict{Decision: Allow, Reason: "no matching rule; test/automation host allows by default", InferredPattern: inferred}
	default:
		return Verdict{Decision: AskUser, InferredPattern: inferred}
	}
}

func isReadStyleTool(toolName string) bool {
	switch toolName {
	case "Read", "Grep", "Glob":
		return true
	default:
		return false
	}
}

func stringField(input map[string]any, key string) string {
	if v, ok := input[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func firstPathField(input map[string]any) string {
	for _, k := range []string{"file_path", "path", "pattern"} {
		if v := stringField(input, k); v != "" {
			return v
		}
	}
	return ""
}

// containsTraversal walks every string value in input (recursing into
// nested maps and slices) looking for a path-traversal fragment.
func containsTraversal(input map[string]any) bool {
	for _, v := range input {
		if valueContainsTraversal(v) {
			return true
		}
	}
	return false
}

func valueContainsTraversal(v any) bool {
	switch t := v.(type) {
	case string:
		return pathTraversalPattern.MatchString(t)
	case map[string]any:
		return containsTraversal(t)
	case []any:
		for _, e := range t {
			if valueContainsTraversal(e) {
				return true
			}
		}
	}
	return false
}

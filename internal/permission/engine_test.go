package permission

import (
	"context"
	"testing"

	"github.com/conductorhq/conductor/pkg/models"
)

func TestEvaluateDeniesPathTraversal(t *testing.T) {
	e := New(nil, BehaviorAsk, nil)
	v := e.Evaluate(context.Background(), "Read", map[string]any{"file_path": "../../etc/passwd"}, "/work")
	if v.Decision != Deny {
		t.Fatalf("expected Deny, got %+v", v)
	}
}

func TestEvaluateAllowsReadOnlyTools(t *testing.T) {
	e := New(nil, BehaviorAsk, nil)
	v := e.Evaluate(context.Background(), "Grep", map[string]any{"pattern": "foo"}, "/work")
	if v.Decision != Allow {
		t.Fatalf("expected Allow, got %+v", v)
	}
}

func TestEvaluateBlocksHardcodedTool(t *testing.T) {
	e := New(nil, BehaviorAsk, nil)
	v := e.Evaluate(context.Background(), "mcp__static-analysis__full_scan", map[string]any{}, "/work")
	if v.Decision != Deny {
		t.Fatalf("expected Deny, got %+v", v)
	}
}

func TestEvaluateDenyPatternTakesPrecedenceOverAllow(t *testing.T) {
	settings := &models.PermissionSettings{
		Allow: []string{"Bash(*)"},
		Deny:  []string{"Bash(rm .*)"},
	}
	e := New(settings, BehaviorAsk, nil)
	v := e.Evaluate(context.Background(), "Bash", map[string]any{"command": "rm -rf /tmp/x"}, "/work")
	if v.Decision != Deny {
		t.Fatalf("expected Deny, got %+v", v)
	}
}

func TestEvaluateAllowsSafeCompoundShellCommand(t *testing.T) {
	e := New(nil, BehaviorAsk, nil)
	v := e.Evaluate(context.Background(), "Bash", map[string]any{"command": "git status && git log | head -5"}, "/work")
	if v.Decision != Allow {
		t.Fatalf("expected Allow for safe compound command, got %+v", v)
	}
}

func TestEvaluateSessionCacheAllowsWriteTool(t *testing.T) {
	e := New(nil, BehaviorAsk, nil)
	if !e.AddSessionPattern("Write(src/**)") {
		t.Fatal("expected pattern to parse and register")
	}
	v := e.Evaluate(context.Background(), "Write", map[string]any{"file_path": "src/a.go"}, "/work")
	if v.Decision != Allow {
		t.Fatalf("expected Allow via session cache, got %+v", v)
	}
}

func TestEvaluateClearSessionCacheRemovesLearnedPatterns(t *testing.T) {
	e := New(nil, BehaviorDeny, nil)
	e.AddSessionPattern("Write(src/**)")
	e.ClearSessionCache()
	v := e.Evaluate(context.Background(), "Write", map[string]any{"file_path": "src/a.go"}, "/work")
	if v.Decision != Deny {
		t.Fatalf("expected Deny once the session cache was cleared, got %+v", v)
	}
}

func TestEvaluateAskUserBehaviorDeny(t *testing.T) {
	e := New(nil, BehaviorDeny, nil)
	v := e.Evaluate(context.Background(), "Write", map[string]any{"file_path": "unseen/file.go"}, "/work")
	if v.Decision != Deny {
		t.Fatalf("expected Deny for headless host, got %+v", v)
	}
	if v.InferredPattern == "" {
		t.Fatal("expected an inferred pattern even on Deny fallback")
	}
}

func TestEvaluateAskUserBehaviorAllow(t *testing.T) {
	e := New(nil, BehaviorAllow, nil)
	v := e.Evaluate(context.Background(), "Write", map[string]any{"file_path": "unseen/file.go"}, "/work")
	if v.Decision != Allow {
		t.Fatalf("expected Allow for test/automation host, got %+v", v)
	}
}

func TestEvaluateAskUserBehaviorAsk(t *testing.T) {
	e := New(nil, BehaviorAsk, nil)
	v := e.Evaluate(context.Background(), "Write", map[string]any{"file_path": "unseen/file.go"}, "/work")
	if v.Decision != AskUser {
		t.Fatalf("expected AskUser, got %+v", v)
	}
	if v.InferredPattern != "Write(unseen/**)" {
		t.Fatalf("unexpected inferred pattern: %q", v.InferredPattern)
	}
}

type denyAllIgnore struct{}

func (denyAllIgnore) IsIgnored(workingDirectory, path string) bool { return true }

func TestEvaluateRespectsIgnoreListForReadTools(t *testing.T) {
	e := New(nil, BehaviorAsk, denyAllIgnore{})
	v := e.Evaluate(context.Background(), "Read", map[string]any{"file_path": "node_modules/x.js"}, "/work")
	if v.Decision != Deny {
		t.Fatalf("expected Deny for ignored path, got %+v", v)
	}
}

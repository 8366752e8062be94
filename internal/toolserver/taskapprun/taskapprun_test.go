package taskapprun

import (
	"context"
	"testing"

	"github.com/conductorhq/conductor/internal/taskapp"
)

func TestStartStatusAndStopRoundTrip(t *testing.T) {
	mgr := taskapp.New(t.TempDir(), nil)
	srv := New(mgr)
	ctx := context.Background()

	result, err := srv.Tools["startTaskApp"].Handler(ctx, "a", map[string]any{"command": "sh", "args": []any{"-c", "sleep 5"}})
	if err != nil || result.IsError {
		t.Fatalf("startTaskApp: err=%v result=%+v", err, result)
	}

	result, err = srv.Tools["taskAppStatus"].Handler(ctx, "a", nil)
	if err != nil || result.IsError {
		t.Fatalf("taskAppStatus: err=%v result=%+v", err, result)
	}

	result, err = srv.Tools["stopTaskApp"].Handler(ctx, "a", nil)
	if err != nil || result.IsError {
		t.Fatalf("stopTaskApp: err=%v result=%+v", err, result)
	}
}

func TestStartWithoutCommandReturnsErrorResult(t *testing.T) {
	mgr := taskapp.New(t.TempDir(), nil)
	srv := New(mgr)

	result, err := srv.Tools["startTaskApp"].Handler(context.Background(), "a", map[string]any{})
	if err != nil {
		t.Fatalf("handler should report failures via ToolResult, not error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected an error result when command is missing")
	}
}

func TestScreenshotWithoutVisionBackendReturnsErrorResult(t *testing.T) {
	mgr := taskapp.New(t.TempDir(), nil)
	srv := New(mgr)

	result, err := srv.Tools["screenshotTaskApp"].Handler(context.Background(), "a", nil)
	if err != nil {
		t.Fatalf("handler should report failures via ToolResult, not error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected an error result since no vision backend is configured")
	}
}

func TestUIActionWithoutActionReturnsErrorResult(t *testing.T) {
	mgr := taskapp.New(t.TempDir(), nil)
	srv := New(mgr)

	result, err := srv.Tools["taskAppUIAction"].Handler(context.Background(), "a", map[string]any{})
	if err != nil {
		t.Fatalf("handler should report failures via ToolResult, not error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected an error result when action is missing")
	}
}

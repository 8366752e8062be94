package taskapp

import (
	"context"
	"testing"
	"time"
)

func TestStartThenStopTransitionsStatus(t *testing.T) {
	m := New(t.TempDir(), nil)
	ctx := context.Background()

	if err := m.Start(ctx, "sh", []string{"-c", "sleep 5"}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := m.Snapshot().Status; got != StatusRunning {
		t.Fatalf("expected running, got %v", got)
	}

	if err := m.Stop(ctx, 500*time.Millisecond); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if got := m.Snapshot().Status; got != StatusStopped {
		t.Fatalf("expected stopped, got %v", got)
	}
}

func TestStartTwiceWithoutStopIsRejected(t *testing.T) {
	m := New(t.TempDir(), nil)
	ctx := context.Background()

	if err := m.Start(ctx, "sh", []string{"-c", "sleep 5"}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer m.Stop(ctx, 500*time.Millisecond)

	if err := m.Start(ctx, "sh", []string{"-c", "sleep 5"}); err == nil {
		t.Fatal("expected starting an already-running app to fail")
	}
}

func TestOutputIsCaptured(t *testing.T) {
	m := New(t.TempDir(), nil)
	ctx := context.Background()

	if err := m.Start(ctx, "sh", []string{"-c", "echo hello"}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if m.Snapshot().Status != StatusRunning {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	snap := m.Snapshot()
	if snap.Status != StatusStopped {
		t.Fatalf("expected the echo process to have exited cleanly, got %v (err=%v)", snap.Status, snap.Err)
	}
	if snap.Output == "" {
		t.Fatal("expected captured output to be non-empty")
	}
}

func TestUnconfiguredVisionBackendReturnsError(t *testing.T) {
	m := New(t.TempDir(), nil)

	if _, err := m.Screenshot(context.Background()); err == nil {
		t.Fatal("expected an error from an unconfigured vision backend")
	}
	if _, err := m.UIAction(context.Background(), "click", map[string]any{"x": 1}); err == nil {
		t.Fatal("expected an error from an unconfigured vision backend")
	}
}

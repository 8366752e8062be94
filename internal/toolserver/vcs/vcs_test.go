package vcs

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	internalvcs "github.com/conductorhq/conductor/internal/vcs"
)

func initRepo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	dir := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@example.com",
			"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@example.com",
		)
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v: %s", args, err, out)
		}
	}
	run("init")
	run("config", "user.email", "test@example.com")
	run("config", "user.name", "test")
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("hello\n"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	run("add", "-A")
	run("commit", "-m", "initial")
	return dir
}

func TestVcsStatusAndAddAndCommit(t *testing.T) {
	dir := initRepo(t)
	client := internalvcs.New(dir)
	srv := New(client)
	ctx := context.Background()

	if err := os.WriteFile(filepath.Join(dir, "new.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	result, err := srv.Tools["vcsStatus"].Handler(ctx, "a", map[string]any{})
	if err != nil || result.IsError {
		t.Fatalf("vcsStatus: err=%v result=%+v", err, result)
	}

	if _, err := srv.Tools["vcsAdd"].Handler(ctx, "a", map[string]any{}); err != nil {
		t.Fatalf("vcsAdd: %v", err)
	}

	result, err = srv.Tools["vcsCommit"].Handler(ctx, "a", map[string]any{"message": "add new.txt"})
	if err != nil || result.IsError {
		t.Fatalf("vcsCommit: err=%v result=%+v", err, result)
	}
}

func TestVcsLogReturnsEntries(t *testing.T) {
	dir := initRepo(t)
	srv := New(internalvcs.New(dir))

	result, err := srv.Tools["vcsLog"].Handler(context.Background(), "a", map[string]any{"count": float64(5)})
	if err != nil || result.IsError {
		t.Fatalf("vcsLog: err=%v result=%+v", err, result)
	}
	if len(result.Content) != 1 {
		t.Fatalf("expected one log entry, got %d", len(result.Content))
	}
}

func TestVcsBranchCreateAndCheckout(t *testing.T) {
	dir := initRepo(t)
	srv := New(internalvcs.New(dir))
	ctx := context.Background()

	result, err := srv.Tools["vcsBranch"].Handler(ctx, "a", map[string]any{"create": "feature-x"})
	if err != nil || result.IsError {
		t.Fatalf("vcsBranch create: err=%v result=%+v", err, result)
	}

	result, err = srv.Tools["vcsCheckout"].Handler(ctx, "a", map[string]any{"branch": "feature-x"})
	if err != nil || result.IsError {
		t.Fatalf("vcsCheckout: err=%v result=%+v", err, result)
	}
}

func TestVcsMergeAbortReturnsErrorGracefully(t *testing.T) {
	dir := initRepo(t)
	srv := New(internalvcs.New(dir))

	result, err := srv.Tools["vcsMerge"].Handler(context.Background(), "a", map[string]any{"abort": true})
	if err != nil {
		t.Fatalf("handler should report failures via ToolResult, not error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected an error result since there is no merge in progress to abort")
	}
}

package vcs

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

func newTestRepo(t *testing.T) *Client {
	t.Helper()
	dir := t.TempDir()

	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v: %s", args, err, out)
		}
	}
	run("init", "-q")
	run("config", "user.email", "test@example.com")
	run("config", "user.name", "Test")

	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("hello\n"), 0o644); err != nil {
		t.Fatalf("write seed file: %v", err)
	}

	return New(dir)
}

func TestStatusReportsUntrackedFile(t *testing.T) {
	c := newTestRepo(t)
	out, err := c.Status(context.Background(), false)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if out == "" {
		t.Fatal("expected non-empty status output for an untracked file")
	}
}

func TestAddCommitThenLog(t *testing.T) {
	c := newTestRepo(t)
	ctx := context.Background()

	if err := c.Add(ctx, nil); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := c.Commit(ctx, "initial commit", CommitOptions{}); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	entries, _, err := c.Log(ctx, 1, false)
	if err != nil {
		t.Fatalf("Log: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d: %+v", len(entries), entries)
	}
	if entries[0].Subject != "initial commit" {
		t.Fatalf("unexpected subject: %q", entries[0].Subject)
	}
}

func TestBranchCreateAndList(t *testing.T) {
	c := newTestRepo(t)
	ctx := context.Background()
	c.Add(ctx, nil)
	c.Commit(ctx, "initial", CommitOptions{})

	if _, err := c.Branch(ctx, BranchOptions{Create: "feature/x"}); err != nil {
		t.Fatalf("Branch create: %v", err)
	}
	out, err := c.Branch(ctx, BranchOptions{List: true})
	if err != nil {
		t.Fatalf("Branch list: %v", err)
	}
	if !contains(out, "feature/x") {
		t.Fatalf("expected branch list to contain feature/x, got %q", out)
	}
}

func TestCheckoutCreatesAndSwitchesBranch(t *testing.T) {
	c := newTestRepo(t)
	ctx := context.Background()
	c.Add(ctx, nil)
	c.Commit(ctx, "initial", CommitOptions{})

	if _, err := c.Checkout(ctx, "feature/y", true, nil); err != nil {
		t.Fatalf("Checkout: %v", err)
	}
}

func TestCommitFailsWithNoStagedChangesError(t *testing.T) {
	c := newTestRepo(t)
	ctx := context.Background()
	c.Add(ctx, nil)
	c.Commit(ctx, "initial", CommitOptions{})

	_, err := c.Commit(ctx, "empty", CommitOptions{})
	if err == nil {
		t.Fatal("expected an error committing with nothing staged")
	}
	var vcsErr *Error
	if !asError(err, &vcsErr) {
		t.Fatalf("expected *vcs.Error, got %T: %v", err, err)
	}
}

func contains(haystack, needle string) bool {
	return len(haystack) >= len(needle) && (func() bool {
		for i := 0; i+len(needle) <= len(haystack); i++ {
			if haystack[i:i+len(needle)] == needle {
				return true
			}
		}
		return false
	})()
}

func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return false
}

package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/conductorhq/conductor/internal/notify"
	"github.com/conductorhq/conductor/pkg/models"
)

func TestNotifyAskUserToolPostsToWebhook(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	srv := New(notify.New(server.URL, 100, 10), models.NetworkID("net-1"))
	result, err := srv.Tools["notifyAskUser"].Handler(context.Background(), "agent-1", map[string]any{"message": "need input"})
	if err != nil || result.IsError {
		t.Fatalf("notifyAskUser: err=%v result=%+v", err, result)
	}
}

func TestNotifyCompletionToolRequiresMessage(t *testing.T) {
	srv := New(notify.New("http://example.invalid", 100, 10), models.NetworkID("net-1"))
	result, err := srv.Tools["notifyCompletion"].Handler(context.Background(), "agent-1", map[string]any{})
	if err != nil {
		t.Fatalf("handler should report failures via ToolResult, not error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected an error result when message is missing")
	}
}

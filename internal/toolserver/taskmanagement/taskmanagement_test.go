package taskmanagement

import (
	"context"
	"testing"

	"github.com/conductorhq/conductor/internal/network"
	"github.com/conductorhq/conductor/internal/store"
	"github.com/conductorhq/conductor/pkg/models"
)

type fakeSession struct{}

func (f *fakeSession) IsProcessing() bool                                       { return false }
func (f *fakeSession) EnqueueUserMessage(ctx context.Context, content string) error { return nil }
func (f *fakeSession) Terminate(ctx context.Context, reason string) error        { return nil }

func TestSetTaskNameAndSetAgentTaskName(t *testing.T) {
	dir := t.TempDir()
	spawn := func(ctx context.Context, networkID models.NetworkID, agentID models.AgentID, agentType models.AgentType, agentName string, cfg models.AgentConfiguration, workingDirectory, initialPrompt string) (network.SessionHandle, error) {
		return &fakeSession{}, nil
	}
	mgr := network.New(store.NewRoot(dir), spawn)
	networkID, mainID, err := mgr.CreateNetwork(context.Background(), models.AgentConfiguration{}, "init", dir)
	if err != nil {
		t.Fatalf("CreateNetwork: %v", err)
	}

	srv := New(mgr, networkID)
	ctx := context.Background()

	if _, err := srv.Tools["setTaskName"].Handler(ctx, string(mainID), map[string]any{"goal": "ship it"}); err != nil {
		t.Fatalf("setTaskName: %v", err)
	}
	if _, err := srv.Tools["setAgentTaskName"].Handler(ctx, string(mainID), map[string]any{"taskName": "writing code"}); err != nil {
		t.Fatalf("setAgentTaskName: %v", err)
	}

	net, err := mgr.GetNetwork(networkID)
	if err != nil {
		t.Fatalf("GetNetwork: %v", err)
	}
	if net.Goal != "ship it" {
		t.Fatalf("expected goal to be updated, got %q", net.Goal)
	}
	if net.FindAgent(mainID).TaskName != "writing code" {
		t.Fatalf("expected task name to be updated, got %+v", net.FindAgent(mainID))
	}
}

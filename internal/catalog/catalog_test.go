package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/conductorhq/conductor/pkg/models"
)

func TestRecordAndGetRoundTrip(t *testing.T) {
	cat, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer cat.Close()

	ctx := context.Background()
	summary := NetworkSummary{
		ID: "net-1", Goal: "ship it", WorkingDirectory: "/tmp/work",
		CreatedAt: time.Now().UTC().Truncate(time.Second), LastActiveAt: time.Now().UTC().Truncate(time.Second),
		AgentCount: 2, ActiveAgentCount: 1,
	}
	if err := cat.Record(ctx, summary); err != nil {
		t.Fatalf("Record: %v", err)
	}

	got, err := cat.Get(ctx, "net-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Goal != "ship it" || got.AgentCount != 2 {
		t.Fatalf("unexpected summary: %+v", got)
	}
}

func TestRecordUpsertsExistingRow(t *testing.T) {
	cat, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer cat.Close()

	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)
	if err := cat.Record(ctx, NetworkSummary{ID: "net-1", Goal: "first goal", CreatedAt: now, LastActiveAt: now}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := cat.Record(ctx, NetworkSummary{ID: "net-1", Goal: "revised goal", CreatedAt: now, LastActiveAt: now.Add(time.Minute)}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	got, err := cat.Get(ctx, "net-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Goal != "revised goal" {
		t.Fatalf("expected upsert to replace goal, got %q", got.Goal)
	}
}

func TestListOrdersByLastActiveDescending(t *testing.T) {
	cat, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer cat.Close()

	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Second)
	if err := cat.Record(ctx, NetworkSummary{ID: "older", CreatedAt: base, LastActiveAt: base}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := cat.Record(ctx, NetworkSummary{ID: "newer", CreatedAt: base, LastActiveAt: base.Add(time.Hour)}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	summaries, err := cat.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(summaries) != 2 || summaries[0].ID != "newer" {
		t.Fatalf("expected newer network first, got %+v", summaries)
	}
}

func TestRemoveDeletesRow(t *testing.T) {
	cat, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer cat.Close()

	ctx := context.Background()
	now := time.Now().UTC()
	if err := cat.Record(ctx, NetworkSummary{ID: "net-1", CreatedAt: now, LastActiveAt: now}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := cat.Remove(ctx, "net-1"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := cat.Get(ctx, "net-1"); err == nil {
		t.Fatal("expected an error fetching a removed network")
	}
}

func TestSummaryOfCountsActiveAgents(t *testing.T) {
	net := &models.AgentNetwork{
		ID: "net-1", Goal: "ship it", WorkingDirectory: "/tmp",
		Agents: []*models.AgentMetadata{
			{Status: models.StatusWorking},
			{Status: models.StatusIdle},
			{Status: models.StatusWaitingForUser},
		},
	}
	summary := SummaryOf(net)
	if summary.AgentCount != 3 {
		t.Fatalf("expected agent count 3, got %d", summary.AgentCount)
	}
	if summary.ActiveAgentCount != 2 {
		t.Fatalf("expected active agent count 2, got %d", summary.ActiveAgentCount)
	}
}

// Package catalog maintains a durable, queryable index of every network
// the Manager has ever created, backed by SQLite. It exists alongside
// internal/network's own per-network JSON persistence (spec.md §4.J) as
// a fast path for the CLI's "conductor networks list" and "conductor
// status" subcommands, which would otherwise need to reconstruct every
// network from disk to answer a summary query.
//
// Grounded on the teacher's internal/memory/backend/sqlitevec.Backend:
// same modernc.org/sqlite pure-Go driver, the same
// CREATE TABLE IF NOT EXISTS / INSERT ... ON CONFLICT DO UPDATE shape, adapted from
// indexing memory embeddings to indexing network summaries.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/conductorhq/conductor/pkg/models"
)

// NetworkSummary is the denormalized row recorded for one network.
type NetworkSummary struct {
	ID               string
	Goal             string
	WorkingDirectory string
	CreatedAt        time.Time
	LastActiveAt     time.Time
	AgentCount       int
	ActiveAgentCount int
}

// SummaryOf derives a NetworkSummary from a live network, counting
// agents whose status is neither idle nor terminated as "active".
func SummaryOf(net *models.AgentNetwork) NetworkSummary {
	summary := NetworkSummary{
		ID:               string(net.ID),
		Goal:             net.Goal,
		WorkingDirectory: net.WorkingDirectory,
		CreatedAt:        net.CreatedAt,
		LastActiveAt:     net.LastActiveAt,
		AgentCount:       len(net.Agents),
	}
	for _, agent := range net.Agents {
		if agent.Status == models.StatusWorking || agent.Status == models.StatusWaitingForAgent || agent.Status == models.StatusWaitingForUser {
			summary.ActiveAgentCount++
		}
	}
	return summary
}

// Catalog is a handle to the SQLite-backed network index.
type Catalog struct {
	db *sql.DB
}

// Open opens (creating if absent) the SQLite database at path and
// ensures its schema exists. path may be ":memory:" for tests.
func Open(path string) (*Catalog, error) {
	if path == "" {
		path = ":memory:"
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("catalog: open %s: %w", path, err)
	}

	c := &Catalog{db: db}
	if err := c.init(); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

func (c *Catalog) init() error {
	_, err := c.db.Exec(`
		CREATE TABLE IF NOT EXISTS networks (
			id TEXT PRIMARY KEY,
			goal TEXT NOT NULL,
			working_directory TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			last_active_at DATETIME NOT NULL,
			agent_count INTEGER NOT NULL,
			active_agent_count INTEGER NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("catalog: create networks table: %w", err)
	}
	_, err = c.db.Exec("CREATE INDEX IF NOT EXISTS idx_networks_last_active ON networks(last_active_at)")
	if err != nil {
		return fmt.Errorf("catalog: create index: %w", err)
	}
	return nil
}

// Record upserts summary, replacing any prior row for the same network.
func (c *Catalog) Record(ctx context.Context, summary NetworkSummary) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO networks (id, goal, working_directory, created_at, last_active_at, agent_count, active_agent_count)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			goal = excluded.goal,
			working_directory = excluded.working_directory,
			last_active_at = excluded.last_active_at,
			agent_count = excluded.agent_count,
			active_agent_count = excluded.active_agent_count
	`, summary.ID, summary.Goal, summary.WorkingDirectory, summary.CreatedAt, summary.LastActiveAt, summary.AgentCount, summary.ActiveAgentCount)
	if err != nil {
		return fmt.Errorf("catalog: record %s: %w", summary.ID, err)
	}
	return nil
}

// Remove deletes the row for networkID, if any.
func (c *Catalog) Remove(ctx context.Context, networkID string) error {
	if _, err := c.db.ExecContext(ctx, "DELETE FROM networks WHERE id = ?", networkID); err != nil {
		return fmt.Errorf("catalog: remove %s: %w", networkID, err)
	}
	return nil
}

// Get returns the row for networkID, or an error if it doesn't exist.
func (c *Catalog) Get(ctx context.Context, networkID string) (NetworkSummary, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT id, goal, working_directory, created_at, last_active_at, agent_count, active_agent_count
		FROM networks WHERE id = ?
	`, networkID)

	var summary NetworkSummary
	if err := row.Scan(&summary.ID, &summary.Goal, &summary.WorkingDirectory, &summary.CreatedAt, &summary.LastActiveAt, &summary.AgentCount, &summary.ActiveAgentCount); err != nil {
		return NetworkSummary{}, fmt.Errorf("catalog: get %s: %w", networkID, err)
	}
	return summary, nil
}

// List returns every recorded network, most recently active first.
func (c *Catalog) List(ctx context.Context) ([]NetworkSummary, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, goal, working_directory, created_at, last_active_at, agent_count, active_agent_count
		FROM networks ORDER BY last_active_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("catalog: list: %w", err)
	}
	defer rows.Close()

	var summaries []NetworkSummary
	for rows.Next() {
		var summary NetworkSummary
		if err := rows.Scan(&summary.ID, &summary.Goal, &summary.WorkingDirectory, &summary.CreatedAt, &summary.LastActiveAt, &summary.AgentCount, &summary.ActiveAgentCount); err != nil {
			return nil, fmt.Errorf("catalog: scan row: %w", err)
		}
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: iterate rows: %w", err)
	}
	return summaries, nil
}

// Close releases the underlying database handle.
func (c *Catalog) Close() error {
	return c.db.Close()
}

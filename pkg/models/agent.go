package models

import "time"

// AgentType enumerates the kinds of agents the network manager can spawn.
type AgentType string

const (
	AgentTypeMain               AgentType = "main"
	AgentTypeImplementation     AgentType = "implementation"
	AgentTypeContextCollection  AgentType = "contextCollection"
	AgentTypePlanning           AgentType = "planning"
	AgentTypeTester             AgentType = "tester"
	AgentTypeUserDefined        AgentType = "userDefined"
)

// AgentStatus enumerates the explicit lifecycle status an agent can report.
type AgentStatus string

const (
	StatusWorking         AgentStatus = "working"
	StatusWaitingForAgent AgentStatus = "waitingForAgent"
	StatusWaitingForUser  AgentStatus = "waitingForUser"
	StatusIdle            AgentStatus = "idle"
)

// AgentMetadata is the catalog entry for one agent within a network.
//
// AgentMetadata is mutated only by internal/network's Manager, under its
// lock; every field beyond Status and TerminatedAt/TerminationReason is
// set at spawn time.
type AgentMetadata struct {
	ID                AgentID     `json:"id"`
	Type              AgentType   `json:"type"`
	Name              string      `json:"name"`
	TaskName          string      `json:"taskName,omitempty"`
	Status            AgentStatus `json:"status"`
	CreatedAt         time.Time   `json:"createdAt"`
	TerminatedAt      *time.Time  `json:"terminatedAt,omitempty"`
	TerminationReason string      `json:"terminationReason,omitempty"`
	ConfigurationID   string      `json:"configurationId"`
	ParentID          AgentID     `json:"parentId,omitempty"`

	// HandoffTargets lists agent types this agent may spawn or hand off
	// to. It is carried and cloned only; spawning does not consult it.
	HandoffTargets []AgentType `json:"handoffTargets,omitempty"`
}

// Clone returns a deep copy suitable for safe external exposure.
func (m *AgentMetadata) Clone() *AgentMetadata {
	if m == nil {
		return nil
	}
	c := *m
	if m.TerminatedAt != nil {
		t := *m.TerminatedAt
		c.TerminatedAt = &t
	}
	if m.HandoffTargets != nil {
		c.HandoffTargets = append([]AgentType(nil), m.HandoffTargets...)
	}
	return &c
}

// AgentConfiguration is an immutable bundle describing how a spawned agent's
// subprocess should be configured.
type AgentConfiguration struct {
	ID               string        `json:"id"`
	SystemPrompt     string        `json:"systemPrompt"`
	AllowedServers   []string      `json:"allowedServers,omitempty"`
	AllowedTools     []string      `json:"allowedTools,omitempty"`
	Model            string        `json:"model,omitempty"`
	PermissionMode   string        `json:"permissionMode,omitempty"`
	Temperature      *float64      `json:"temperature,omitempty"`
	MaxTokens        *int          `json:"maxTokens,omitempty"`
	HandoffTargets   []AgentType   `json:"handoffTargets,omitempty"`
}

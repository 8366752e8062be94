package models

import "time"

// AgentNetwork is the root aggregate for a single user task: a working
// directory, a goal, and the set of agents collaborating on it.
type AgentNetwork struct {
	ID               NetworkID                `json:"id"`
	Goal             string                   `json:"goal"`
	CreatedAt        time.Time                `json:"createdAt"`
	LastActiveAt     time.Time                `json:"lastActiveAt"`
	WorkingDirectory string                   `json:"workingDirectory"`

	// Agents is ordered by insertion; index 0 is always the main agent.
	Agents []*AgentMetadata `json:"agents"`

	// ParentChild maps a spawnee's id to its spawner's id. The main agent
	// has no entry (it is a DAG root).
	ParentChild map[AgentID]AgentID `json:"parentChild"`
}

// MainAgent returns the network's root agent, or nil if Agents is empty.
func (n *AgentNetwork) MainAgent() *AgentMetadata {
	if len(n.Agents) == 0 {
		return nil
	}
	return n.Agents[0]
}

// FindAgent returns the metadata for id, or nil if not present.
func (n *AgentNetwork) FindAgent(id AgentID) *AgentMetadata {
	for _, a := range n.Agents {
		if a.ID == id {
			return a
		}
	}
	return nil
}

// Children returns the direct children of parent, in insertion order.
func (n *AgentNetwork) Children(parent AgentID) []*AgentMetadata {
	var out []*AgentMetadata
	for _, a := range n.Agents {
		if p, ok := n.ParentChild[a.ID]; ok && p == parent {
			out = append(out, a)
		}
	}
	return out
}

// Clone returns a deep copy of the network, suitable for safe external
// exposure (snapshot-consistent reads per spec §5's shared-resource
// policy).
func (n *AgentNetwork) Clone() *AgentNetwork {
	if n == nil {
		return nil
	}
	c := *n
	c.Agents = make([]*AgentMetadata, len(n.Agents))
	for i, a := range n.Agents {
		c.Agents[i] = a.Clone()
	}
	c.ParentChild = make(map[AgentID]AgentID, len(n.ParentChild))
	for k, v := range n.ParentChild {
		c.ParentChild[k] = v
	}
	return &c
}

// Validate checks the structural invariants spec.md §3 requires: a
// non-empty agent list and an immutable working directory (the caller is
// responsible for not mutating WorkingDirectory after creation; this only
// checks non-emptiness here).
func (n *AgentNetwork) Validate() error {
	if len(n.Agents) == 0 {
		return errEmptyAgents
	}
	if n.WorkingDirectory == "" {
		return errEmptyWorkingDirectory
	}
	return nil
}

// Package network implements the Agent Network Manager (spec.md §4.J):
// the Manager owns every live AgentNetwork, derives aggregate status for
// the host UI, and persists every state-changing operation atomically.
//
// Grounded on the teacher's orchestrator.Runtime/AgentDefinition registry
// pattern (internal/multiagent/orchestrator.go), adapted from a single
// in-memory orchestration tree into a persisted, multi-network catalog.
package network

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/conductorhq/conductor/internal/store"
	"github.com/conductorhq/conductor/pkg/models"
)

// tracer records spans around agent spawn, the Manager's one genuinely
// slow, externally-visible operation (launching a subprocess). It reads
// off whatever TracerProvider observability.NewTracer installed
// globally; with none installed, otel's no-op provider makes every span
// a cheap stub.
var tracer = otel.Tracer("conductor/network")

// SessionHandle abstracts the session-level facts the Manager needs to
// derive effective status and route inbound messages, without importing
// internal/session (which itself depends on internal/network's types for
// spawn callbacks — kept as an interface to avoid an import cycle).
type SessionHandle interface {
	// IsProcessing reports whether the conversation is mid-turn.
	IsProcessing() bool
	// EnqueueUserMessage appends content to the session's inbox.
	EnqueueUserMessage(ctx context.Context, content string) error
	// Terminate kills the underlying subprocess and releases resources.
	Terminate(ctx context.Context, reason string) error
}

// SpawnFunc starts a new agent session and returns a handle to it. The
// Manager never starts subprocesses itself; it delegates to the host's
// session runtime factory, deferring actual startup per spec.md §4.J
// ("actual subprocess startup may be deferred until the first subscriber
// attaches") to the factory's own discretion. networkID and agentID are
// the identities the Manager has already committed to its in-memory
// network and persisted metadata; agentType and agentName are the same
// values being recorded in that agent's metadata. The factory needs all
// four to tag its published fanout events and tool-server scope with the
// same identity the Manager uses for routing.
type SpawnFunc func(ctx context.Context, networkID models.NetworkID, agentID models.AgentID, agentType models.AgentType, agentName string, cfg models.AgentConfiguration, workingDirectory string, initialPrompt string) (SessionHandle, error)

// spawnTraced wraps a SpawnFunc call in a span covering subprocess
// launch, recording the outcome so a host with tracing enabled can see
// spawn latency and failures per agent.
func spawnTraced(ctx context.Context, spawn SpawnFunc, networkID models.NetworkID, agentID models.AgentID, agentType models.AgentType, agentName string, cfg models.AgentConfiguration, workingDirectory, initialPrompt string) (SessionHandle, error) {
	ctx, span := tracer.Start(ctx, "network.spawn",
		trace.WithAttributes(
			attribute.String("network.id", string(networkID)),
			attribute.String("agent.id", string(agentID)),
			attribute.String("agent.type", string(agentType)),
			attribute.String("agent.name", agentName),
		),
	)
	defer span.End()

	handle, err := spawn(ctx, networkID, agentID, agentType, agentName, cfg, workingDirectory, initialPrompt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return handle, err
}

// Manager owns every live network. All mutation happens through the
// Manager's own mutex; reads return deep copies for snapshot-consistent
// isolation per spec.md §5.
type Manager struct {
	root  *store.Root
	spawn SpawnFunc

	mu       sync.Mutex
	networks map[models.NetworkID]*models.AgentNetwork
	sessions map[models.AgentID]SessionHandle
	pending  map[models.AgentID]bool // permission/ask-user request outstanding
}

// New returns a Manager persisting under root and spawning sessions via
// spawn.
func New(root *store.Root, spawn SpawnFunc) *Manager {
	return &Manager{
		root:     root,
		spawn:    spawn,
		networks: make(map[models.NetworkID]*models.AgentNetwork),
		sessions: make(map[models.AgentID]SessionHandle),
		pending:  make(map[models.AgentID]bool),
	}
}

// CreateNetwork instantiates a main agent with the orchestrator
// configuration and sends initialMessage as its first user message,
// returning the new network and main agent ids immediately.
func (m *Manager) CreateNetwork(ctx context.Context, cfg models.AgentConfiguration, initialMessage, workingDirectory string) (models.NetworkID, models.AgentID, error) {
	networkID := models.NewNetworkID()
	mainAgentID := models.NewAgentID()

	now := time.Now().UTC()
	main := &models.AgentMetadata{
		ID: mainAgentID, Type: models.AgentTypeMain, Name: "main",
		Status: models.StatusWorking, CreatedAt: now, ConfigurationID: cfg.ID,
	}
	net := &models.AgentNetwork{
		ID: networkID, CreatedAt: now, LastActiveAt: now,
		WorkingDirectory: workingDirectory,
		Agents:           []*models.AgentMetadata{main},
		ParentChild:      make(map[models.AgentID]models.AgentID),
	}

	handle, err := spawnTraced(ctx, m.spawn, networkID, mainAgentID, models.AgentTypeMain, "main", cfg, workingDirectory, initialMessage)
	if err != nil {
		return "", "", fmt.Errorf("network: spawn main agent: %w", err)
	}

	m.mu.Lock()
	m.networks[networkID] = net
	m.sessions[mainAgentID] = handle
	m.mu.Unlock()

	if err := m.persist(net); err != nil {
		return "", "", err
	}
	return networkID, mainAgentID, nil
}

// SendMessage appends content to the main agent's inbox.
func (m *Manager) SendMessage(ctx context.Context, networkID models.NetworkID, content string) error {
	m.mu.Lock()
	net, ok := m.networks[networkID]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("network: %s not found", networkID)
	}
	main := net.MainAgent()
	handle := m.sessions[main.ID]
	net.LastActiveAt = time.Now().UTC()
	m.mu.Unlock()

	if handle == nil {
		return fmt.Errorf("network: main agent %s has no active session", main.ID)
	}
	return handle.EnqueueUserMessage(ctx, content)
}

// SendToAgent appends content to any named agent's inbox (spec.md §4.F's
// sendMessageToAgent), not just the network's main agent. The target
// must have a live session; a terminated or not-yet-started agent
// returns an error rather than silently dropping the message.
func (m *Manager) SendToAgent(ctx context.Context, networkID models.NetworkID, targetID models.AgentID, content string) error {
	m.mu.Lock()
	net, ok := m.networks[networkID]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("network: %s not found", networkID)
	}
	target := net.FindAgent(targetID)
	if target == nil {
		m.mu.Unlock()
		return fmt.Errorf("network: agent %s not found", targetID)
	}
	if target.TerminatedAt != nil {
		m.mu.Unlock()
		return fmt.Errorf("network: agent %s is terminated", targetID)
	}
	handle := m.sessions[targetID]
	net.LastActiveAt = time.Now().UTC()
	m.mu.Unlock()

	if handle == nil {
		return fmt.Errorf("network: agent %s has no active session", targetID)
	}
	return handle.EnqueueUserMessage(ctx, content)
}

// SpawnAgent adds a new agent under parentID, requiring the parent to be
// running (not terminated).
func (m *Manager) SpawnAgent(ctx context.Context, networkID models.NetworkID, cfg models.AgentConfiguration, agentType models.AgentType, name, initialPrompt string, parentID models.AgentID, workingDirectory string) (models.AgentID, error) {
	m.mu.Lock()
	net, ok := m.networks[networkID]
	if !ok {
		m.mu.Unlock()
		return "", fmt.Errorf("network: %s not found", networkID)
	}
	parent := net.FindAgent(parentID)
	if parent == nil {
		m.mu.Unlock()
		return "", fmt.Errorf("network: parent agent %s not found", parentID)
	}
	if parent.TerminatedAt != nil {
		m.mu.Unlock()
		return "", fmt.Errorf("network: parent agent %s is terminated", parentID)
	}
	m.mu.Unlock()

	newID := models.NewAgentID()
	handle, err := spawnTraced(ctx, m.spawn, networkID, newID, agentType, name, cfg, workingDirectory, initialPrompt)
	if err != nil {
		return "", fmt.Errorf("network: spawn agent: %w", err)
	}

	newAgent := &models.AgentMetadata{
		ID: newID, Type: agentType, Name: name, Status: models.StatusWorking,
		CreatedAt: time.Now().UTC(), ConfigurationID: cfg.ID, ParentID: parentID,
	}

	m.mu.Lock()
	net.Agents = append(net.Agents, newAgent)
	net.ParentChild[newID] = parentID
	net.LastActiveAt = time.Now().UTC()
	m.sessions[newID] = handle
	m.mu.Unlock()

	if err := m.persist(net); err != nil {
		return "", err
	}
	return newID, nil
}

// TerminateAgent kills the agent's subprocess, releases resources, and
// freezes its status to idle with TerminatedAt recorded.
func (m *Manager) TerminateAgent(ctx context.Context, networkID models.NetworkID, agentID models.AgentID, reason string) error {
	m.mu.Lock()
	net, ok := m.networks[networkID]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("network: %s not found", networkID)
	}
	agent := net.FindAgent(agentID)
	if agent == nil {
		m.mu.Unlock()
		return fmt.Errorf("network: agent %s not found", agentID)
	}
	handle := m.sessions[agentID]
	m.mu.Unlock()

	if handle != nil {
		if err := handle.Terminate(ctx, reason); err != nil {
			return err
		}
	}

	m.mu.Lock()
	now := time.Now().UTC()
	agent.TerminatedAt = &now
	agent.TerminationReason = reason
	agent.Status = models.StatusIdle
	delete(m.sessions, agentID)
	delete(m.pending, agentID)
	m.mu.Unlock()

	return m.persist(net)
}

// SetAgentStatus updates agentID's explicit status.
func (m *Manager) SetAgentStatus(networkID models.NetworkID, agentID models.AgentID, status models.AgentStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	net, ok := m.networks[networkID]
	if !ok {
		return fmt.Errorf("network: %s not found", networkID)
	}
	agent := net.FindAgent(agentID)
	if agent == nil {
		return fmt.Errorf("network: agent %s not found", agentID)
	}
	agent.Status = status
	return m.persistLocked(net)
}

// SetPendingRequest records whether agentID has an outstanding
// permission or ask-user request, consulted by NetworkAttention.
func (m *Manager) SetPendingRequest(agentID models.AgentID, pending bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if pending {
		m.pending[agentID] = true
	} else {
		delete(m.pending, agentID)
	}
}

// UpdateGoal sets the network-wide goal.
func (m *Manager) UpdateGoal(networkID models.NetworkID, goal string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	net, ok := m.networks[networkID]
	if !ok {
		return fmt.Errorf("network: %s not found", networkID)
	}
	net.Goal = goal
	return m.persistLocked(net)
}

// UpdateAgentTaskName sets the per-agent task name.
func (m *Manager) UpdateAgentTaskName(networkID models.NetworkID, agentID models.AgentID, taskName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	net, ok := m.networks[networkID]
	if !ok {
		return fmt.Errorf("network: %s not found", networkID)
	}
	agent := net.FindAgent(agentID)
	if agent == nil {
		return fmt.Errorf("network: agent %s not found", agentID)
	}
	agent.TaskName = taskName
	return m.persistLocked(net)
}

// ListAgents returns a snapshot of networkID's agents.
func (m *Manager) ListAgents(networkID models.NetworkID) ([]*models.AgentMetadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	net, ok := m.networks[networkID]
	if !ok {
		return nil, fmt.Errorf("network: %s not found", networkID)
	}
	clone := net.Clone()
	return clone.Agents, nil
}

// GetNetwork returns a deep-copy snapshot of networkID.
func (m *Manager) GetNetwork(networkID models.NetworkID) (*models.AgentNetwork, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	net, ok := m.networks[networkID]
	if !ok {
		return nil, fmt.Errorf("network: %s not found", networkID)
	}
	return net.Clone(), nil
}

// ListNetworks returns a deep-copy snapshot of every network.
func (m *Manager) ListNetworks() []*models.AgentNetwork {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.AgentNetwork, 0, len(m.networks))
	for _, n := range m.networks {
		out = append(out, n.Clone())
	}
	return out
}

// EffectiveStatus derives an agent's effective status per spec.md §4.J:
// working while processing; idle once the conversation settles even if
// the explicit status still claims working (a safeguard against missed
// updates); otherwise the explicit value.
func EffectiveStatus(explicit models.AgentStatus, isProcessing bool) models.AgentStatus {
	if isProcessing {
		return models.StatusWorking
	}
	if explicit == models.StatusWorking {
		return models.StatusIdle
	}
	return explicit
}

// Attention enumerates the network-wide aggregate state surfaced as a UI
// title per spec.md §4.J.
type Attention string

const (
	AttentionNeedsAttention Attention = "needsAttention"
	AttentionWorking        Attention = "working"
	AttentionIdle           Attention = "idle"
)

// AggregateAttention computes a network's UI-facing aggregate status
// from each agent's effective status and whether it has a pending
// permission/ask-user request.
func AggregateAttention(effectiveStatuses []models.AgentStatus, pending []bool) Attention {
	for i, s := range effectiveStatuses {
		if s == models.StatusWaitingForUser || (i < len(pending) && pending[i]) {
			return AttentionNeedsAttention
		}
	}
	for _, s := range effectiveStatuses {
		if s == models.StatusWorking || s == models.StatusWaitingForAgent {
			return AttentionWorking
		}
	}
	return AttentionIdle
}

// NetworkAttention derives networkID's per-agent effective statuses and
// its network-wide Attention from live session state (spec.md §4.J),
// combining EffectiveStatus and AggregateAttention with the Manager's own
// session handles and pending map instead of leaving both reachable only
// from unit tests.
func (m *Manager) NetworkAttention(networkID models.NetworkID) (Attention, map[models.AgentID]models.AgentStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	net, ok := m.networks[networkID]
	if !ok {
		return "", nil, fmt.Errorf("network: %s not found", networkID)
	}

	effective := make(map[models.AgentID]models.AgentStatus, len(net.Agents))
	statuses := make([]models.AgentStatus, 0, len(net.Agents))
	pending := make([]bool, 0, len(net.Agents))
	for _, agent := range net.Agents {
		isProcessing := false
		if handle, ok := m.sessions[agent.ID]; ok && handle != nil {
			isProcessing = handle.IsProcessing()
		}
		status := EffectiveStatus(agent.Status, isProcessing)
		effective[agent.ID] = status
		statuses = append(statuses, status)
		pending = append(pending, m.pending[agent.ID])
	}

	return AggregateAttention(statuses, pending), effective, nil
}

func (m *Manager) persist(net *models.AgentNetwork) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.persistLocked(net)
}

func (m *Manager) persistLocked(net *models.AgentNetwork) error {
	net.LastActiveAt = time.Now().UTC()
	path := m.root.NetworkPath(net.WorkingDirectory, string(net.ID))
	return store.WriteJSONAtomic(path, net.Clone())
}

// LoadNetworks eagerly indexes every persisted network under
// workingDirectory's networks directory. It starts no sessions, and no
// later access starts one for an indexed agent: sending a message to a
// loaded network's existing agents returns a "no active session" error.
func (m *Manager) LoadNetworks(workingDirectory string) error {
	dir := m.root.NetworksDir(workingDirectory)
	entries, err := readDirJSON(dir)
	if err != nil {
		return nil // best-effort: an empty/missing directory is not an error
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, path := range entries {
		var net models.AgentNetwork
		if err := store.ReadJSON(path, &net); err != nil {
			continue
		}
		m.networks[net.ID] = &net
	}
	return nil
}

// readDirJSON lists the absolute paths of every *.json file directly
// under dir. A missing directory is reported as an error so callers can
// treat it as "nothing indexed yet" without distinguishing further.
func readDirJSON(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	return out, nil
}

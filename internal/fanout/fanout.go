// Package fanout implements Streaming Event Fanout (spec.md §4.K): a
// per-agent broadcast with mid-turn subscribe semantics, sub-agent
// multiplexing for main-agent subscribers, and per-subscriber
// backpressure that never blocks the originating agent's progress.
//
// Grounded on the teacher's wsSession (internal/gateway/ws_control_plane.go):
// one buffered send channel per subscriber, drop-on-overflow instead of
// blocking the writer, monotone per-connection sequence numbers.
package fanout

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/conductorhq/conductor/internal/observability/metrics"
	"github.com/conductorhq/conductor/pkg/models"
)

// EventType enumerates the wire event taxonomy (spec.md §4.K/§6).
type EventType string

const (
	EventConnected    EventType = "connected"
	EventStatus       EventType = "status"
	EventMessage      EventType = "message"
	EventMessageDelta EventType = "message_delta"
	EventToolUse      EventType = "tool_use"
	EventToolResult   EventType = "tool_result"
	EventDone         EventType = "done"
	EventError        EventType = "error"
	EventDropped      EventType = "dropped"
)

// Event is one entry on the wire, per spec.md §4.K's shape.
type Event struct {
	AgentID   models.AgentID    `json:"agentId"`
	AgentType models.AgentType  `json:"agentType"`
	AgentName string            `json:"agentName"`
	TaskName  string            `json:"taskName,omitempty"`
	Type      EventType         `json:"type"`
	Data      any               `json:"data,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Seq       int64             `json:"seq"`
}

// subscriberBuffer bounds how many undelivered events a slow subscriber
// may accumulate before further events are dropped for it alone.
const subscriberBuffer = 256

type subscriber struct {
	id      uint64
	ch      chan Event
	main    bool // also receives events from descendant agents
	network models.NetworkID
}

// Hub multiplexes every agent's events to any number of subscribers.
type Hub struct {
	metrics *metrics.Metrics

	mu          sync.RWMutex
	seq         map[models.AgentID]*int64
	parentOf    map[models.AgentID]models.AgentID
	mainOf      map[models.AgentID]models.AgentID // agentId -> its network's main agent
	subscribers map[models.AgentID][]*subscriber
	nextSubID   uint64
}

// New returns an empty Hub. m may be nil, in which case dropped-event
// counts are not observed.
func New(m *metrics.Metrics) *Hub {
	return &Hub{
		metrics:     m,
		seq:         make(map[models.AgentID]*int64),
		parentOf:    make(map[models.AgentID]models.AgentID),
		mainOf:      make(map[models.AgentID]models.AgentID),
		subscribers: make(map[models.AgentID][]*subscriber),
	}
}

// RegisterAgent records agent's lineage so sub-agent multiplexing can
// route its events up to the network's main-agent subscribers.
func (h *Hub) RegisterAgent(agentID models.AgentID, mainAgentID models.AgentID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.mainOf[agentID] = mainAgentID
	if _, ok := h.seq[agentID]; !ok {
		var z int64
		h.seq[agentID] = &z
	}
}

// Subscription is a live subscriber handle.
type Subscription struct {
	hub    *Hub
	agent  models.AgentID
	subID  uint64
	events <-chan Event
}

// Events returns the channel of events for this subscription.
func (s *Subscription) Events() <-chan Event { return s.events }

// Close unregisters the subscription; safe to call once.
func (s *Subscription) Close() {
	s.hub.unsubscribe(s.agent, s.subID)
}

// Subscribe attaches to agentID's event stream. If main is true and
// agentID is the main agent that other agents were registered under via
// RegisterAgent, this subscriber additionally receives events published
// by every one of those agents (sub-agent multiplexing); a main
// subscription on any other agent gets only that agent's own events.
// Subscribing mid-turn delivers future events only — no replay.
func (h *Hub) Subscribe(agentID models.AgentID, main bool) *Subscription {
	h.mu.Lock()
	h.nextSubID++
	id := h.nextSubID
	sub := &subscriber{id: id, ch: make(chan Event, subscriberBuffer), main: main}
	h.subscribers[agentID] = append(h.subscribers[agentID], sub)
	h.mu.Unlock()

	return &Subscription{hub: h, agent: agentID, subID: id, events: sub.ch}
}

func (h *Hub) unsubscribe(agentID models.AgentID, subID uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs := h.subscribers[agentID]
	for i, s := range subs {
		if s.id == subID {
			close(s.ch)
			h.subscribers[agentID] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

// Publish emits ev for agentID, stamping timestamp and a per-agent
// monotone seq, then delivers it to every direct subscriber of agentID
// plus, via sub-agent multiplexing, every "main" subscriber of agentID's
// network's main agent. A subscriber that cannot keep up gets the event
// dropped (with a trailing EventDropped marker) instead of blocking the
// publisher.
func (h *Hub) Publish(agentID models.AgentID, agentType models.AgentType, agentName, taskName string, typ EventType, data any) {
	h.mu.Lock()
	counter, ok := h.seq[agentID]
	if !ok {
		var z int64
		counter = &z
		h.seq[agentID] = counter
	}
	mainID, hasMain := h.mainOf[agentID]
	h.mu.Unlock()

	seq := atomic.AddInt64(counter, 1)
	ev := Event{
		AgentID: agentID, AgentType: agentType, AgentName: agentName, TaskName: taskName,
		Type: typ, Data: data, Timestamp: time.Now().UTC(), Seq: seq,
	}

	h.deliverTo(agentID, ev)
	if hasMain && mainID != agentID {
		h.deliverToMainSubscribers(mainID, ev)
	}
}

func (h *Hub) deliverTo(agentID models.AgentID, ev Event) {
	h.mu.RLock()
	subs := append([]*subscriber(nil), h.subscribers[agentID]...)
	h.mu.RUnlock()

	for _, s := range subs {
		h.send(s, agentID, ev)
	}
}

func (h *Hub) deliverToMainSubscribers(mainAgentID models.AgentID, ev Event) {
	h.mu.RLock()
	subs := h.subscribers[mainAgentID]
	var toMain []*subscriber
	for _, s := range subs {
		if s.main {
			toMain = append(toMain, s)
		}
	}
	h.mu.RUnlock()

	for _, s := range toMain {
		h.send(s, mainAgentID, ev)
	}
}

// send keeps the last buffer slot free for the EventDropped marker, so a
// subscriber that falls behind always finds one after its last delivered
// event.
func (h *Hub) send(s *subscriber, subscriberKey models.AgentID, ev Event) {
	if len(s.ch) < cap(s.ch)-1 {
		select {
		case s.ch <- ev:
			return
		default:
		}
	}
	if h.metrics != nil {
		h.metrics.FanoutDropped.WithLabelValues(string(subscriberKey)).Inc()
	}
	select {
	case s.ch <- Event{AgentID: ev.AgentID, Type: EventDropped, Timestamp: time.Now().UTC(), Seq: ev.Seq}:
	default:
	}
}

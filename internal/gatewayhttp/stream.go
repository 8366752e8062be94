package gatewayhttp

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/conductorhq/conductor/internal/fanout"
	"github.com/conductorhq/conductor/pkg/models"
)

// wsFrame is the single envelope shape sent over the stream, mirroring
// the event taxonomy of spec.md §4.K/§6 directly rather than wrapping it
// in the teacher's richer req/res/event control-plane protocol — this
// surface only ever pushes events, it never accepts client requests.
type wsFrame struct {
	Type      string           `json:"type"`
	AgentID   models.AgentID   `json:"agentId,omitempty"`
	AgentType models.AgentType `json:"agentType,omitempty"`
	AgentName string           `json:"agentName,omitempty"`
	TaskName  string           `json:"taskName,omitempty"`
	Data      any              `json:"data,omitempty"`
	Seq       int64            `json:"seq,omitempty"`
	Timestamp time.Time        `json:"timestamp,omitempty"`
}

// handleStream upgrades to a WebSocket and streams networkID's agentID
// events (plus, when agentID is the network's main agent, every
// descendant's events too) until the client disconnects or a write
// fails. Events the client cannot keep up with are dropped by
// internal/fanout and replaced by a "dropped" frame; the stream stays open.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request, networkID models.NetworkID, agentID models.AgentID) {
	net, err := s.manager.GetNetwork(networkID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	agent := net.FindAgent(agentID)
	if agent == nil {
		http.Error(w, "agent not found", http.StatusNotFound)
		return
	}
	isMain := net.MainAgent() != nil && net.MainAgent().ID == agentID

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	sub := s.events.Subscribe(agentID, isMain)
	defer sub.Close()

	if err := s.writeFrame(conn, wsFrame{Type: string(fanout.EventConnected), AgentID: agentID, Timestamp: time.Now().UTC()}); err != nil {
		return
	}

	done := make(chan struct{})
	go s.discardClientReads(conn, done)

	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			if err := s.writeFrame(conn, wsFrame{
				Type: string(ev.Type), AgentID: ev.AgentID, AgentType: ev.AgentType,
				AgentName: ev.AgentName, TaskName: ev.TaskName, Data: ev.Data,
				Seq: ev.Seq, Timestamp: ev.Timestamp,
			}); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// discardClientReads keeps the read side of the connection draining (so
// pong control frames are processed and the peer's close is detected)
// since this surface never accepts client-sent application messages.
func (s *Server) discardClientReads(conn *websocket.Conn, done chan struct{}) {
	defer close(done)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) writeFrame(conn *websocket.Conn, frame wsFrame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteMessage(websocket.TextMessage, data)
}

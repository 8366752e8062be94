package gatewayhttp

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/conductorhq/conductor/pkg/models"
)

// routeNetworkSubpath dispatches /api/v1/networks/{id}/... requests,
// since net/http.ServeMux (pre-1.22 patterns, matching the teacher's
// http_server.go) has no path-parameter matching of its own.
func (s *Server) routeNetworkSubpath(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/networks/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		http.NotFound(w, r)
		return
	}
	networkID := models.NetworkID(parts[0])

	switch {
	case len(parts) == 1:
		s.handleGetNetwork(w, r, networkID)
	case len(parts) == 2 && parts[1] == "messages":
		s.handleSendMessage(w, r, networkID)
	case len(parts) == 4 && parts[1] == "agents" && parts[3] == "stream":
		s.handleStream(w, r, networkID, models.AgentID(parts[2]))
	default:
		http.NotFound(w, r)
	}
}

type getNetworkResponse struct {
	Network   *models.AgentNetwork                   `json:"network"`
	Attention string                                  `json:"attention"`
	Effective map[models.AgentID]models.AgentStatus   `json:"effectiveStatus"`
}

// handleGetNetwork returns networkID's snapshot plus its live,
// session-derived attention and per-agent effective status (spec.md
// §4.J) — the explicit AgentMetadata.Status alone doesn't reflect
// whether a conversation is actually mid-turn right now.
func (s *Server) handleGetNetwork(w http.ResponseWriter, r *http.Request, networkID models.NetworkID) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	net, err := s.manager.GetNetwork(networkID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	attention, effective, err := s.manager.NetworkAttention(networkID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, getNetworkResponse{
		Network: net, Attention: string(attention), Effective: effective,
	})
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

type sendMessageResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request, networkID models.NetworkID) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := s.manager.SendMessage(r.Context(), networkID, req.Content); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, sendMessageResponse{Status: "sent"})
}

type askRequestResponse struct {
	RequestID string     `json:"requestId"`
	Questions []question `json:"questions"`
}

type question struct {
	ID      string   `json:"id"`
	Prompt  string   `json:"prompt"`
	Options []string `json:"options,omitempty"`
}

// handleNextAskRequest blocks (bounded by the request's context) until a
// tool server publishes a pending ask-user request, then returns it. A nil
// askUser coordinator means no tool server in this process ever asks the
// user, so the endpoint always reports 204.
func (s *Server) handleNextAskRequest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.askUser == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	select {
	case req := <-s.askUser.Requests():
		questions := make([]question, 0, len(req.Questions))
		for _, q := range req.Questions {
			questions = append(questions, question{ID: q.ID, Prompt: q.Prompt, Options: q.Options})
		}
		writeJSON(w, http.StatusOK, askRequestResponse{RequestID: req.RequestID, Questions: questions})
	case <-r.Context().Done():
		w.WriteHeader(http.StatusNoContent)
	}
}

type askRespondRequest struct {
	Answers map[string]string `json:"answers"`
}

// handleAskRespond resolves a pending ask-user request by id, delivered at
// /api/v1/ask-requests/{requestId}/respond.
func (s *Server) handleAskRespond(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/ask-requests/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "respond" {
		http.NotFound(w, r)
		return
	}
	requestID := parts[0]

	if s.askUser == nil {
		http.Error(w, "no pending ask-user requests in this process", http.StatusNotFound)
		return
	}

	var req askRespondRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if !s.askUser.Respond(requestID, req.Answers) {
		http.Error(w, "unknown or already-resolved request id", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

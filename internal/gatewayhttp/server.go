// Package gatewayhttp implements Conductor's HTTP/WebSocket surface
// (spec.md §6): a loopback, unauthenticated listener exposing network
// creation and messaging over REST, per-agent event streaming over
// WebSocket, and Prometheus metrics.
//
// Grounded on the teacher's internal/gateway/http_server.go for the
// net/http.ServeMux and net.Listen/http.Server lifecycle, and its
// internal/gateway/ws_control_plane.go for the WebSocket session shape
// (one buffered send channel per connection, a dedicated write-pump
// goroutine, drop-on-overflow handled upstream by internal/fanout).
package gatewayhttp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/conductorhq/conductor/internal/askuser"
	"github.com/conductorhq/conductor/internal/fanout"
	"github.com/conductorhq/conductor/internal/network"
	"github.com/conductorhq/conductor/internal/observability/metrics"
	"github.com/conductorhq/conductor/pkg/models"
)

const (
	wsWriteWait        = 10 * time.Second
	wsPongWait         = 45 * time.Second
	wsPingInterval     = 30 * time.Second
	httpReadHeaderWait = 5 * time.Second
)

// Server is Conductor's loopback HTTP/WebSocket gateway.
type Server struct {
	manager *network.Manager
	events  *fanout.Hub
	metrics *metrics.Metrics
	logger  *slog.Logger
	askUser *askuser.Coordinator

	upgrader websocket.Upgrader

	httpServer *http.Server
	listener   net.Listener
}

// New builds a Server bound to manager and events. metrics, logger, and
// askUser may all be nil; a nil logger falls back to slog.Default(), a
// nil metrics skips /metrics registration, and a nil askUser coordinator
// makes the ask-request endpoints always report no pending requests.
func New(manager *network.Manager, events *fanout.Hub, m *metrics.Metrics, logger *slog.Logger, askUser *askuser.Coordinator) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		manager: manager,
		events:  events,
		metrics: m,
		logger:  logger,
		askUser: askUser,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Start binds addr (host:port) and begins serving in a background
// goroutine. It returns once the listener is open.
func (s *Server) Start(addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/v1/networks", s.handleCreateNetwork)
	mux.HandleFunc("/api/v1/networks/", s.routeNetworkSubpath)
	mux.HandleFunc("/api/v1/ask-requests/next", s.handleNextAskRequest)
	mux.HandleFunc("/api/v1/ask-requests/", s.handleAskRespond)
	if s.metrics != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{}))
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("gatewayhttp: listen %s: %w", addr, err)
	}

	s.httpServer = &http.Server{Handler: mux, ReadHeaderTimeout: httpReadHeaderWait}
	s.listener = listener

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("gatewayhttp: server error", "error", err)
		}
	}()
	s.logger.Info("gatewayhttp: listening", "addr", listener.Addr().String())
	return nil
}

// Stop gracefully shuts down the server, waiting up to the context's
// deadline for in-flight requests and WebSocket connections to drain.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Addr returns the bound listener's address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

type createNetworkRequest struct {
	InitialMessage   string `json:"initialMessage"`
	WorkingDirectory string `json:"workingDirectory"`
}

type createNetworkResponse struct {
	NetworkID   string    `json:"networkId"`
	MainAgentID string    `json:"mainAgentId"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (s *Server) handleCreateNetwork(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req createNetworkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	networkID, mainAgentID, err := s.manager.CreateNetwork(r.Context(), models.AgentConfiguration{}, req.InitialMessage, req.WorkingDirectory)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	net, err := s.manager.GetNetwork(networkID)
	createdAt := time.Now().UTC()
	if err == nil {
		createdAt = net.CreatedAt
	}

	writeJSON(w, http.StatusOK, createNetworkResponse{
		NetworkID: string(networkID), MainAgentID: string(mainAgentID), CreatedAt: createdAt,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

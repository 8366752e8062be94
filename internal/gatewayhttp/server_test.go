package gatewayhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conductorhq/conductor/internal/askuser"
	"github.com/conductorhq/conductor/internal/fanout"
	"github.com/conductorhq/conductor/internal/network"
	"github.com/conductorhq/conductor/internal/observability/metrics"
	"github.com/conductorhq/conductor/internal/store"
	"github.com/conductorhq/conductor/pkg/models"
)

type fakeSession struct{}

func (f *fakeSession) IsProcessing() bool                                          { return false }
func (f *fakeSession) EnqueueUserMessage(ctx context.Context, content string) error { return nil }
func (f *fakeSession) Terminate(ctx context.Context, reason string) error           { return nil }

func startTestServer(t *testing.T) (*Server, *network.Manager, *fanout.Hub) {
	t.Helper()
	dir := t.TempDir()
	spawn := func(ctx context.Context, networkID models.NetworkID, agentID models.AgentID, agentType models.AgentType, agentName string, cfg models.AgentConfiguration, workingDirectory, initialPrompt string) (network.SessionHandle, error) {
		return &fakeSession{}, nil
	}
	mgr := network.New(store.NewRoot(dir), spawn)
	hub := fanout.New(nil)
	srv := New(mgr, hub, metrics.New(), nil, askuser.New())

	require.NoError(t, srv.Start("127.0.0.1:0"))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Stop(ctx)
	})
	return srv, mgr, hub
}

func TestHandleHealth(t *testing.T) {
	srv, _, _ := startTestServer(t)

	resp, err := http.Get("http://" + srv.Addr() + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHandleCreateNetworkAndSendMessage(t *testing.T) {
	srv, _, _ := startTestServer(t)

	body, _ := json.Marshal(createNetworkRequest{InitialMessage: "start", WorkingDirectory: t.TempDir()})
	resp, err := http.Post("http://"+srv.Addr()+"/api/v1/networks", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var created createNetworkResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.NotEmpty(t, created.NetworkID)
	assert.NotEmpty(t, created.MainAgentID)

	msgBody, _ := json.Marshal(sendMessageRequest{Content: "hello"})
	msgResp, err := http.Post("http://"+srv.Addr()+"/api/v1/networks/"+created.NetworkID+"/messages", "application/json", bytes.NewReader(msgBody))
	require.NoError(t, err)
	defer msgResp.Body.Close()
	assert.Equal(t, http.StatusOK, msgResp.StatusCode)
}

func TestHandleGetNetworkReturnsAttentionAndEffectiveStatus(t *testing.T) {
	srv, mgr, _ := startTestServer(t)

	networkID, mainAgentID, err := mgr.CreateNetwork(context.Background(), models.AgentConfiguration{}, "start", t.TempDir())
	require.NoError(t, err)

	resp, err := http.Get("http://" + srv.Addr() + "/api/v1/networks/" + string(networkID))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Network struct {
			ID string `json:"id"`
		} `json:"network"`
		Attention string                      `json:"attention"`
		Effective map[string]string `json:"effectiveStatus"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, string(networkID), body.Network.ID)
	assert.NotEmpty(t, body.Attention)
	assert.Contains(t, body.Effective, string(mainAgentID))
}

func TestHandleGetNetworkUnknownReturnsNotFound(t *testing.T) {
	srv, _, _ := startTestServer(t)

	resp, err := http.Get("http://" + srv.Addr() + "/api/v1/networks/does-not-exist")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandleSendMessageToUnknownNetworkReturnsBadRequest(t *testing.T) {
	srv, _, _ := startTestServer(t)

	msgBody, _ := json.Marshal(sendMessageRequest{Content: "hello"})
	resp, err := http.Post("http://"+srv.Addr()+"/api/v1/networks/does-not-exist/messages", "application/json", bytes.NewReader(msgBody))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleStreamDeliversPublishedEvents(t *testing.T) {
	srv, mgr, hub := startTestServer(t)

	networkID, mainAgentID, err := mgr.CreateNetwork(context.Background(), models.AgentConfiguration{}, "start", t.TempDir())
	require.NoError(t, err)

	wsURL := fmt.Sprintf("ws://%s/api/v1/networks/%s/agents/%s/stream", srv.Addr(), networkID, mainAgentID)
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	if resp != nil {
		defer resp.Body.Close()
	}

	var connected wsFrame
	require.NoError(t, conn.ReadJSON(&connected))
	assert.Equal(t, "connected", connected.Type)

	hub.Publish(mainAgentID, models.AgentTypeMain, "main", "", fanout.EventMessage, "hi there")

	var frame wsFrame
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, string(fanout.EventMessage), frame.Type)
}

func TestHandleStreamUnknownAgentReturnsNotFound(t *testing.T) {
	srv, mgr, _ := startTestServer(t)

	networkID, _, err := mgr.CreateNetwork(context.Background(), models.AgentConfiguration{}, "start", t.TempDir())
	require.NoError(t, err)

	wsURL := fmt.Sprintf("ws://%s/api/v1/networks/%s/agents/does-not-exist/stream", srv.Addr(), networkID)
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	if resp != nil {
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	}
}

func TestAskRequestRoundTrip(t *testing.T) {
	srv, _, _ := startTestServer(t)

	done := make(chan map[string]string, 1)
	go func() {
		done <- srv.askUser.AskQuestions(context.Background(), []askuser.Question{
			{ID: "q1", Prompt: "pick one", Options: []string{"a", "b"}},
		})
	}()

	client := http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get("http://" + srv.Addr() + "/api/v1/ask-requests/next")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var pending askRequestResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&pending))
	require.Len(t, pending.Questions, 1)
	assert.Equal(t, "q1", pending.Questions[0].ID)

	answerBody, _ := json.Marshal(askRespondRequest{Answers: map[string]string{"q1": "a"}})
	answerResp, err := http.Post("http://"+srv.Addr()+"/api/v1/ask-requests/"+pending.RequestID+"/respond", "application/json", bytes.NewReader(answerBody))
	require.NoError(t, err)
	defer answerResp.Body.Close()
	assert.Equal(t, http.StatusNoContent, answerResp.StatusCode)

	select {
	case answers := <-done:
		assert.Equal(t, "a", answers["q1"])
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for AskQuestions to return")
	}
}

func TestAskRequestNextReturnsNoContentWhenNonePending(t *testing.T) {
	srv, _, _ := startTestServer(t)

	// The endpoint long-polls until the server-side request context ends,
	// so the handler is driven directly with a context that expires.
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+srv.Addr()+"/api/v1/ask-requests/next", nil)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	srv.handleNextAskRequest(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestMetricsEndpointExposesPrometheusFormat(t *testing.T) {
	srv, _, _ := startTestServer(t)

	resp, err := http.Get("http://" + srv.Addr() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(resp.Header.Get("Content-Type"), "text/plain"))
}

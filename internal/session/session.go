// Package session implements the Agent Session Runtime (spec.md §4.I):
// one subprocess per agent, speaking line-delimited JSON over stdin and
// stdout, with a single reader goroutine applying response events to the
// conversation model and a single writer goroutine draining a FIFO
// outbound queue.
//
// Grounded on the teacher's mcp.StdioTransport (internal/mcp/transport_stdio.go)
// for the subprocess/pipe lifecycle, and its process.CommandQueue
// (internal/process/command_queue.go) for the serialized FIFO drain
// pattern, adapted from RPC request/response pairing to a one-way
// streaming conversation.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"time"

	"github.com/conductorhq/conductor/internal/conversation"
	"github.com/conductorhq/conductor/internal/fanout"
	"github.com/conductorhq/conductor/internal/permission"
	"github.com/conductorhq/conductor/internal/protocol"
	"github.com/conductorhq/conductor/pkg/models"
)

// abortGrace bounds how long Cancel waits for cooperative shutdown
// before forcibly killing the subprocess (spec.md §4.I).
const abortGrace = 2 * time.Second

// ToolServerRouter dispatches an inbound mcp_message control request to
// the named tool server and returns its raw JSON response.
type ToolServerRouter interface {
	Route(ctx context.Context, serverName string, payload json.RawMessage) (json.RawMessage, error)
}

// HookCallback decides the outcome of a hook_callback control request.
// Returning an empty decision means "continue" (spec.md §4.I default).
type HookCallback func(ctx context.Context, payload json.RawMessage) (decision string, reason string)

// Config bundles what Session needs to launch and operate one agent's
// subprocess.
type Config struct {
	Command string
	Args    []string
	Dir     string

	PermissionEngine *permission.Engine
	ToolServers      ToolServerRouter
	HookCallback     HookCallback
	Events           *fanout.Hub
	Logger           *slog.Logger

	AgentID   models.AgentID
	AgentType models.AgentType
	AgentName string
}

// outboundMessage is one entry in the FIFO user-message queue.
type outboundMessage struct {
	content     string
	attachments []models.Attachment
}

// Session owns one agent's subprocess and conversation. Reads of stdout
// happen on one goroutine and writes of user messages on a second. The
// conversation model is touched only by Session's own methods, always
// under mu: the reader applies response events, the writer records each
// outbound user message, and Terminate aborts the current turn.
type Session struct {
	cfg    Config
	logger *slog.Logger

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser

	conv *conversation.Model

	stdinMu sync.Mutex

	mu      sync.Mutex
	queue   []outboundMessage
	dead    bool
	deadErr error

	wake chan struct{}
	done chan struct{}
}

// New constructs a Session without starting its subprocess. Start must
// be called before any message can be sent.
func New(cfg Config) *Session {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		cfg:    cfg,
		logger: logger.With("agent_id", string(cfg.AgentID)),
		conv:   conversation.New(),
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Start launches the subprocess, sends the initial "init" control frame,
// and begins the reader/writer goroutines.
func (s *Session) Start(ctx context.Context) error {
	s.cmd = exec.CommandContext(ctx, s.cfg.Command, s.cfg.Args...)
	s.cmd.Dir = s.cfg.Dir

	stdin, err := s.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("session: stdin pipe: %w", err)
	}
	stdout, err := s.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("session: stdout pipe: %w", err)
	}
	s.stdin = stdin
	s.stdout = stdout

	if err := s.cmd.Start(); err != nil {
		return fmt.Errorf("session: start subprocess: %w", err)
	}
	s.logger.Info("session started", "pid", s.cmd.Process.Pid)

	if err := s.writeFrame(map[string]any{
		"type": "init",
		"tools": []string{"agent", "memory", "task-management", "vcs"},
	}); err != nil {
		return fmt.Errorf("session: init frame: %w", err)
	}

	go s.readLoop(ctx)
	go s.writeLoop(ctx)
	return nil
}

// IsProcessing reports whether the conversation is mid-turn, satisfying
// internal/network.SessionHandle.
func (s *Session) IsProcessing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conv.Snapshot().State != models.ConversationIdle
}

// Snapshot returns the current conversation state for rendering or
// persistence.
func (s *Session) Snapshot() *models.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conv.Snapshot()
}

// EnqueueUserMessage appends content to the FIFO outbound queue. The
// writer goroutine drains one message at a time, waiting for the prior
// turn to complete before sending the next (spec.md §4.I).
func (s *Session) EnqueueUserMessage(ctx context.Context, content string) error {
	return s.enqueue(ctx, content, nil)
}

// EnqueueUserMessageWithAttachments is EnqueueUserMessage plus inline
// attachments (e.g. images), base64-encoded on the wire.
func (s *Session) EnqueueUserMessageWithAttachments(ctx context.Context, content string, attachments []models.Attachment) error {
	return s.enqueue(ctx, content, attachments)
}

func (s *Session) enqueue(ctx context.Context, content string, attachments []models.Attachment) error {
	s.mu.Lock()
	if s.dead {
		err := s.deadErr
		s.mu.Unlock()
		if err == nil {
			err = fmt.Errorf("session: agent is no longer running")
		}
		return err
	}
	s.queue = append(s.queue, outboundMessage{content: content, attachments: attachments})
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return nil
}

// writeLoop drains the FIFO queue, waiting for each turn to finish
// before encoding and sending the next message.
func (s *Session) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-s.wake:
		}

		for {
			msg, ok := s.popQueued()
			if !ok {
				break
			}
			if err := s.sendUserMessage(msg); err != nil {
				s.logger.Error("failed to send user message", "error", err)
				s.markDead(err)
				return
			}
			s.waitForTurnCompletion(ctx)
		}
	}
}

func (s *Session) popQueued() (outboundMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return outboundMessage{}, false
	}
	msg := s.queue[0]
	s.queue = s.queue[1:]
	return msg, true
}

func (s *Session) waitForTurnCompletion(ctx context.Context) {
	poll := time.NewTicker(25 * time.Millisecond)
	defer poll.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-poll.C:
			s.mu.Lock()
			idle := s.conv.Snapshot().State == models.ConversationIdle
			s.mu.Unlock()
			if idle {
				return
			}
		}
	}
}

// sendUserMessage encodes and writes one outbound frame, per spec.md
// §4.I's {type:"user", message:{role:"user", content:[...]}} shape.
func (s *Session) sendUserMessage(msg outboundMessage) error {
	content := []map[string]any{{"type": "text", "text": msg.content}}
	for _, a := range msg.attachments {
		content = append(content, map[string]any{
			"type": "image",
			"source": map[string]any{
				"type":       "base64",
				"media_type": a.MediaType,
				"data":       a.DataBase64,
			},
		})
	}

	s.mu.Lock()
	s.conv.BeginUserMessage(msg.content, msg.attachments)
	s.conv.SetState(models.ConversationSendingMessage)
	s.mu.Unlock()

	return s.writeFrame(map[string]any{
		"type":    "user",
		"message": map[string]any{"role": "user", "content": content},
	})
}

// writeFrame encodes v and writes it to stdin. Both the writer goroutine
// (user messages) and the reader goroutine (control responses, per
// spec.md §6) call this, so writes are serialized here to keep frames
// from interleaving on the wire.
func (s *Session) writeFrame(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	s.stdinMu.Lock()
	defer s.stdinMu.Unlock()
	_, err = s.stdin.Write(data)
	return err
}

// readLoop is the goroutine that applies response events to s.conv. It
// reads stdout line by line. A line carrying the inbound control protocol
// (spec.md §6's {type:"control_request",...}) is routed through
// HandleControlRequest and answered on stdin instead of being decoded as
// a response event; everything else decodes into zero or more
// ResponseEvents, folds into the conversation, and publishes a matching
// fanout event per spec.md §4.K.
func (s *Session) readLoop(ctx context.Context) {
	defer close(s.done)

	scanner := protocol.NewLineScanner(s.stdout)
	for scanner.Scan() {
		line := scanner.Text()
		if s.dispatchControlRequest(ctx, line) {
			continue
		}
		events, ok := protocol.DecodeLine(line)
		if !ok {
			continue
		}
		s.applyEvents(events)
	}

	waitErr := s.cmd.Wait()

	s.mu.Lock()
	completed := s.conv.Snapshot().State == models.ConversationIdle
	s.mu.Unlock()

	if !completed {
		// The subprocess exited mid-turn: finalize with a synthetic error
		// rather than leaving the conversation stuck streaming forever.
		reason := "agent process exited unexpectedly"
		if waitErr != nil {
			reason = fmt.Sprintf("agent process exited: %v", waitErr)
		}
		s.mu.Lock()
		s.conv.Abort(reason)
		s.mu.Unlock()
		if s.cfg.Events != nil {
			s.cfg.Events.Publish(s.cfg.AgentID, s.cfg.AgentType, s.cfg.AgentName, "", fanout.EventError, reason)
		}
	}

	s.markDead(waitErr)
}

func (s *Session) applyEvents(events []models.ResponseEvent) {
	s.mu.Lock()
	for _, ev := range events {
		s.conv.Apply(ev)
	}
	s.mu.Unlock()

	if s.cfg.Events == nil {
		return
	}
	for _, ev := range events {
		s.cfg.Events.Publish(s.cfg.AgentID, s.cfg.AgentType, s.cfg.AgentName, "", eventTypeOf(ev), ev)
	}
}

func eventTypeOf(ev models.ResponseEvent) fanout.EventType {
	switch ev.Kind {
	case models.EventText:
		if ev.TextPartial {
			return fanout.EventMessageDelta
		}
		return fanout.EventMessage
	case models.EventToolUse:
		return fanout.EventToolUse
	case models.EventToolResult:
		return fanout.EventToolResult
	case models.EventCompletion:
		return fanout.EventDone
	case models.EventError:
		return fanout.EventError
	default:
		return fanout.EventStatus
	}
}

func (s *Session) markDead(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dead {
		return
	}
	s.dead = true
	s.deadErr = err
}

// controlRequestEnvelope mirrors the inbound frame from spec.md §6:
// {"type":"control_request","request_id":"…","request":{"subtype":…, …}}.
type controlRequestEnvelope struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id"`
	Request   json.RawMessage `json:"request"`
}

// dispatchControlRequest reports whether line was a control_request frame.
// When it is, it runs the request through HandleControlRequest and writes
// the matching control_response back to stdin; any other line (including
// malformed JSON) is left for protocol.DecodeLine to handle.
func (s *Session) dispatchControlRequest(ctx context.Context, line string) bool {
	var envelope controlRequestEnvelope
	if err := json.Unmarshal([]byte(line), &envelope); err != nil || envelope.Type != "control_request" {
		return false
	}

	var subtype struct {
		Subtype string `json:"subtype"`
	}
	_ = json.Unmarshal(envelope.Request, &subtype)

	resp, err := s.HandleControlRequest(ctx, subtype.Subtype, envelope.Request)
	s.writeControlResponse(envelope.RequestID, resp, err)
	return true
}

// writeControlResponse encodes and sends the {type:"control_response",...}
// envelope spec.md §6 defines, per §9's "unknown control-request subtype"
// and general failure handling: any HandleControlRequest error becomes
// response.subtype=="error", never a dropped frame.
func (s *Session) writeControlResponse(requestID string, result map[string]any, handleErr error) {
	response := map[string]any{"request_id": requestID}
	if handleErr != nil {
		response["subtype"] = "error"
		response["error"] = handleErr.Error()
	} else {
		response["subtype"] = "success"
		response["response"] = result
	}

	if err := s.writeFrame(map[string]any{"type": "control_response", "response": response}); err != nil {
		s.logger.Error("failed to write control response", "error", err, "request_id", requestID)
	}
}

// HandleControlRequest processes one inbound control-plane request from
// the subprocess (can_use_tool, hook_callback, or mcp_message), returning
// the frame to write back in response.
func (s *Session) HandleControlRequest(ctx context.Context, kind string, payload json.RawMessage) (map[string]any, error) {
	switch kind {
	case "can_use_tool":
		return s.handleCanUseTool(ctx, payload)
	case "hook_callback":
		decision, reason := "continue", ""
		if s.cfg.HookCallback != nil {
			decision, reason = s.cfg.HookCallback(ctx, payload)
			if decision == "" {
				decision = "continue"
			}
		}
		return map[string]any{"decision": decision, "reason": reason}, nil
	case "mcp_message":
		var req struct {
			Server  string          `json:"server"`
			Message json.RawMessage `json:"message"`
		}
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, fmt.Errorf("session: malformed mcp_message: %w", err)
		}
		if s.cfg.ToolServers == nil {
			return nil, fmt.Errorf("session: no tool server router configured")
		}
		resp, err := s.cfg.ToolServers.Route(ctx, req.Server, req.Message)
		if err != nil {
			return map[string]any{"isError": true, "message": err.Error()}, nil
		}
		return map[string]any{"result": json.RawMessage(resp)}, nil
	default:
		return nil, fmt.Errorf("session: unknown control request kind %q", kind)
	}
}

func (s *Session) handleCanUseTool(ctx context.Context, payload json.RawMessage) (map[string]any, error) {
	var req struct {
		ToolName string         `json:"toolName"`
		Input    map[string]any `json:"input"`
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("session: malformed can_use_tool: %w", err)
	}
	if s.cfg.PermissionEngine == nil {
		return map[string]any{"decision": string(permission.Deny), "reason": "no permission engine configured"}, nil
	}
	verdict := s.cfg.PermissionEngine.Evaluate(ctx, req.ToolName, req.Input, s.cfg.Dir)
	return map[string]any{"decision": string(verdict.Decision), "reason": verdict.Reason}, nil
}

// Terminate cancels the current turn cooperatively and, if the
// subprocess has not exited within abortGrace, kills it forcibly. It is
// idempotent: terminating an already-dead session is a no-op.
func (s *Session) Terminate(ctx context.Context, reason string) error {
	s.mu.Lock()
	if s.dead {
		s.mu.Unlock()
		return nil
	}
	s.conv.Abort(reason)
	s.mu.Unlock()

	if s.stdin != nil {
		_ = s.writeFrame(map[string]any{"type": "control", "subtype": "interrupt"})
	}

	select {
	case <-s.done:
		return nil
	case <-time.After(abortGrace):
	}

	if s.cmd != nil && s.cmd.Process != nil {
		if err := s.cmd.Process.Kill(); err != nil {
			return fmt.Errorf("session: kill after grace period: %w", err)
		}
	}
	<-s.done
	return nil
}

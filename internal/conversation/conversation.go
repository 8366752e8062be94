// Package conversation implements the Conversation Model (spec.md §4.H):
// the append-only message log, its streaming-reconciliation rules, and
// token accounting, over the shared pkg/models.Conversation types.
package conversation

import (
	"time"

	"github.com/google/uuid"

	"github.com/conductorhq/conductor/pkg/models"
)

// Model wraps a *models.Conversation with the mutation rules spec.md
// §4.H defines. It is mutated only by its owning session actor (spec.md
// §5); it holds no lock of its own because ownership, not locking,
// enforces exclusivity.
type Model struct {
	conv *models.Conversation
}

// New returns a Model over a fresh, idle conversation.
func New() *Model {
	return &Model{conv: models.NewConversation()}
}

// Snapshot returns the underlying conversation. Callers must not mutate
// it directly; it is exposed for persistence/rendering.
func (m *Model) Snapshot() *models.Conversation {
	return m.conv
}

// SetState transitions the conversation's lifecycle state. Used by the
// owning session actor to mark a message as sent before a response
// starts streaming back.
func (m *Model) SetState(state models.ConversationState) {
	m.conv.State = state
}

func newMessageID() string {
	return uuid.NewString()
}

// BeginUserMessage appends a user-role message and returns it.
func (m *Model) BeginUserMessage(content string, attachments []models.Attachment) *models.Message {
	msg := &models.Message{
		ID:          newMessageID(),
		Role:        models.RoleUser,
		Timestamp:   time.Now().UTC(),
		Content:     content,
		Attachments: attachments,
		MessageType: models.MessageTypeUserMessage,
		IsComplete:  true,
	}
	m.conv.Messages = append(m.conv.Messages, msg)
	return msg
}

// BeginAssistantTurn appends a new streaming assistant message and sets
// the conversation state to receivingResponse.
func (m *Model) BeginAssistantTurn() *models.Message {
	msg := &models.Message{
		ID:          newMessageID(),
		Role:        models.RoleAssistant,
		Timestamp:   time.Now().UTC(),
		MessageType: models.MessageTypeAssistantText,
		IsStreaming: true,
	}
	m.conv.Messages = append(m.conv.Messages, msg)
	m.conv.State = models.ConversationReceivingResponse
	return msg
}

// currentAssistant returns the in-flight assistant message, creating one
// if none is streaming (defensive: a well-formed subprocess always opens
// a turn first, but a stray event should not be lost).
func (m *Model) currentAssistant() *models.Message {
	if msg := m.conv.LastStreamingAssistant(); msg != nil {
		return msg
	}
	return m.BeginAssistantTurn()
}

// Apply folds one decoded ResponseEvent into the conversation per
// spec.md §4.H's reconciliation table.
func (m *Model) Apply(ev models.ResponseEvent) {
	switch ev.Kind {
	case models.EventText:
		m.applyText(ev)
	case models.EventToolUse:
		msg := m.currentAssistant()
		msg.Responses = append(msg.Responses, ev)
	case models.EventToolResult:
		m.applyToolResult(ev)
	case models.EventCompletion:
		m.applyCompletion(ev)
	case models.EventError:
		m.applyError(ev)
	case models.EventCompactBoundary:
		m.applyCompactBoundary(ev)
	case models.EventCompactSummary:
		m.applyCompactSummary(ev)
	case models.EventStatus, models.EventMeta, models.EventUnknown:
		// Pass-through: recorded nowhere, message state unchanged.
	}

	if ev.HasUsage() {
		m.applyUsage(*ev.Usage)
	}
}

func (m *Model) applyText(ev models.ResponseEvent) {
	msg := m.currentAssistant()
	msg.Responses = append(msg.Responses, ev)

	switch {
	case ev.TextPartial:
		msg.Content = concatPartials(msg.Responses)
	case ev.TextCumulative:
		if !hasPartials(msg.Responses) {
			msg.Content = ev.Text
		}
	default:
		msg.Content = concatSequentialText(msg.Responses)
	}
}

func hasPartials(responses []models.ResponseEvent) bool {
	for _, r := range responses {
		if r.Kind == models.EventText && r.TextPartial {
			return true
		}
	}
	return false
}

func concatPartials(responses []models.ResponseEvent) string {
	var out string
	for _, r := range responses {
		if r.Kind == models.EventText && r.TextPartial {
			out += r.Text
		}
	}
	return out
}

// concatSequentialText concatenates every non-cumulative text response
// (partial or plain sequential), matching the "sequential" reconciliation
// rule's description of content as the join of non-cumulative text.
func concatSequentialText(responses []models.ResponseEvent) string {
	var out string
	for _, r := range responses {
		if r.Kind == models.EventText && !r.TextCumulative {
			out += r.Text
		}
	}
	return out
}

// applyToolResult appends ev to the assistant message holding the
// matching ToolUse; if none is found, it is appended to the current
// assistant message as an orphan (still rendered, never dropped).
func (m *Model) applyToolResult(ev models.ResponseEvent) {
	for i := len(m.conv.Messages) - 1; i >= 0; i-- {
		msg := m.conv.Messages[i]
		if msg.Role != models.RoleAssistant {
			continue
		}
		for _, r := range msg.Responses {
			if r.Kind == models.EventToolUse && r.ToolUseID == ev.ResultToolUseID && ev.ResultToolUseID != "" {
				msg.Responses = append(msg.Responses, ev)
				return
			}
		}
	}
	m.currentAssistant().Responses = append(m.currentAssistant().Responses, ev)
}

func (m *Model) applyCompletion(ev models.ResponseEvent) {
	msg := m.currentAssistant()
	msg.Responses = append(msg.Responses, ev)
	msg.IsStreaming = false
	msg.IsComplete = true
	m.conv.CurrentError = nil
	m.conv.State = models.ConversationIdle
}

func (m *Model) applyError(ev models.ResponseEvent) {
	msg := m.currentAssistant()
	msg.Responses = append(msg.Responses, ev)
	errMsg := ev.ErrorMessage
	msg.Error = &errMsg
	m.conv.CurrentError = &errMsg
	msg.IsStreaming = false
	msg.IsComplete = true
	m.conv.State = models.ConversationIdle
}

func (m *Model) applyCompactBoundary(ev models.ResponseEvent) {
	msg := &models.Message{
		ID:          newMessageID(),
		Role:        models.RoleSystem,
		Timestamp:   time.Now().UTC(),
		MessageType: models.MessageTypeCompactBoundary,
		Responses:   []models.ResponseEvent{ev},
		IsComplete:  true,
	}
	m.conv.Messages = append(m.conv.Messages, msg)
	m.conv.CompactionCount++
}

func (m *Model) applyCompactSummary(ev models.ResponseEvent) {
	msg := &models.Message{
		ID:                newMessageID(),
		Role:              models.RoleUser,
		Timestamp:         time.Now().UTC(),
		Content:           ev.CompactSummaryContent,
		MessageType:       models.MessageTypeCompactSummary,
		Responses:         []models.ResponseEvent{ev},
		IsComplete:        true,
		IsCompactSummary:  true,
		IsVisibleInTranscriptOnly: ev.CompactSummaryTranscriptOnly,
	}
	m.conv.Messages = append(m.conv.Messages, msg)
}

// applyUsage accumulates running totals and replaces the current-context
// snapshot, per spec.md §3's token-accounting invariant.
func (m *Model) applyUsage(u models.TokenUsage) {
	m.conv.TotalInputTokens += u.InputTokens
	m.conv.TotalOutputTokens += u.OutputTokens
	m.conv.TotalCacheReadTokens += u.CacheReadTokens
	m.conv.TotalCacheCreateTokens += u.CacheCreateTokens
	m.conv.TotalCostUsd += u.CostUsd
	m.conv.CurrentContextInputTokens = u.InputTokens + u.CacheReadTokens + u.CacheCreateTokens
}

// Abort injects a synthetic terminal Error into the current assistant
// message and returns the conversation to idle. Called by the session
// runtime on cancellation (spec.md §4.I); idempotent because a
// non-streaming assistant message is left untouched.
func (m *Model) Abort(reason string) {
	msg := m.conv.LastStreamingAssistant()
	if msg == nil {
		return
	}
	ev := models.ResponseEvent{Kind: models.EventError, ErrorMessage: reason}
	msg.Responses = append(msg.Responses, ev)
	errMsg := reason
	msg.Error = &errMsg
	m.conv.CurrentError = &errMsg
	msg.IsStreaming = false
	msg.IsComplete = true
	m.conv.State = models.ConversationIdle
}

// IsTurnComplete reports whether ev, combined with its raw frame's
// stop_reason (when present), completes the current turn. A Completion
// event always completes a turn; a Text event whose raw frame carries
// stop_reason=end_turn also completes it. Partial frames never complete
// a turn.
func IsTurnComplete(ev models.ResponseEvent, rawStopReason string) bool {
	if ev.Kind == models.EventCompletion {
		return true
	}
	if ev.Kind == models.EventText && !ev.TextPartial && rawStopReason == "end_turn" {
		return true
	}
	return false
}

package models

import "time"

// ConversationState enumerates the lifecycle state of a conversation.
type ConversationState string

const (
	ConversationIdle               ConversationState = "idle"
	ConversationSendingMessage     ConversationState = "sendingMessage"
	ConversationReceivingResponse  ConversationState = "receivingResponse"
	ConversationProcessing         ConversationState = "processing"
	ConversationError              ConversationState = "error"
)

// MessageRole identifies the author of a Message.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
)

// MessageType classifies a Message for rendering/filtering purposes.
type MessageType string

const (
	MessageTypeUserMessage     MessageType = "userMessage"
	MessageTypeAssistantText   MessageType = "assistantText"
	MessageTypeToolUse         MessageType = "toolUse"
	MessageTypeToolResult      MessageType = "toolResult"
	MessageTypeError           MessageType = "error"
	MessageTypeCompletion      MessageType = "completion"
	MessageTypeStatus          MessageType = "status"
	MessageTypeMeta            MessageType = "meta"
	MessageTypeCompactBoundary MessageType = "compactBoundary"
	MessageTypeCompactSummary  MessageType = "compactSummary"
	MessageTypeUnknown         MessageType = "unknown"
)

// TokenUsage carries the per-frame token counts reported by the subprocess.
type TokenUsage struct {
	InputTokens       int     `json:"inputTokens"`
	OutputTokens      int     `json:"outputTokens"`
	CacheReadTokens   int     `json:"cacheReadTokens"`
	CacheCreateTokens int     `json:"cacheCreationTokens"`
	CostUsd           float64 `json:"costUsd,omitempty"`
}

// Add returns the element-wise sum of u and o.
func (u TokenUsage) Add(o TokenUsage) TokenUsage {
	return TokenUsage{
		InputTokens:       u.InputTokens + o.InputTokens,
		OutputTokens:      u.OutputTokens + o.OutputTokens,
		CacheReadTokens:   u.CacheReadTokens + o.CacheReadTokens,
		CacheCreateTokens: u.CacheCreateTokens + o.CacheCreateTokens,
		CostUsd:           u.CostUsd + o.CostUsd,
	}
}

// Attachment is an inline user-supplied attachment (e.g. an image).
type Attachment struct {
	MediaType string `json:"mediaType"`
	DataBase64 string `json:"dataBase64"`
}

// Message is one append-only entry in a Conversation's log.
//
// Only the last assistant message may be mutated in place while
// IsStreaming is true; once IsComplete is set, both Responses and Content
// are frozen (spec.md §8, conversation monotonicity).
type Message struct {
	ID          string          `json:"id"`
	Role        MessageRole     `json:"role"`
	Timestamp   time.Time       `json:"timestamp"`
	Content     string          `json:"content"`
	Responses   []ResponseEvent `json:"responses"`
	IsStreaming bool            `json:"isStreaming"`
	IsComplete  bool            `json:"isComplete"`
	Error       *string         `json:"error,omitempty"`
	TokenUsage  *TokenUsage     `json:"tokenUsage,omitempty"`
	Attachments []Attachment    `json:"attachments,omitempty"`
	MessageType MessageType     `json:"messageType"`

	IsCompactSummary          bool `json:"isCompactSummary,omitempty"`
	IsVisibleInTranscriptOnly bool `json:"isVisibleInTranscriptOnly,omitempty"`
}

// Conversation is the append-only message log for one agent, plus
// aggregate token accounting.
type Conversation struct {
	Messages []*Message `json:"messages"`

	TotalInputTokens       int     `json:"totalInputTokens"`
	TotalOutputTokens      int     `json:"totalOutputTokens"`
	TotalCacheReadTokens   int     `json:"totalCacheReadTokens"`
	TotalCacheCreateTokens int     `json:"totalCacheCreationTokens"`
	TotalCostUsd           float64 `json:"totalCostUsd"`

	// CurrentContext* are snapshots replaced on every usage-bearing frame,
	// never accumulated.
	CurrentContextInputTokens int `json:"currentContextWindowTokens"`

	State ConversationState `json:"state"`

	// CurrentError holds the most recent error surfaced to the conversation,
	// cleared on the next successful turn.
	CurrentError *string `json:"currentError,omitempty"`

	// CompactionCount counts CompactBoundary events seen so far.
	CompactionCount int `json:"compactionCount"`
}

// NewConversation returns an empty, idle conversation.
func NewConversation() *Conversation {
	return &Conversation{State: ConversationIdle}
}

// LastMessage returns the most recently appended message, or nil.
func (c *Conversation) LastMessage() *Message {
	if len(c.Messages) == 0 {
		return nil
	}
	return c.Messages[len(c.Messages)-1]
}

// LastStreamingAssistant returns the last message if it is an assistant
// message still streaming, else nil.
func (c *Conversation) LastStreamingAssistant() *Message {
	m := c.LastMessage()
	if m == nil || m.Role != RoleAssistant || !m.IsStreaming {
		return nil
	}
	return m
}

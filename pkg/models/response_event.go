package models

// ResponseEventKind discriminates the ResponseEvent tagged union.
type ResponseEventKind string

const (
	EventText           ResponseEventKind = "text"
	EventToolUse        ResponseEventKind = "toolUse"
	EventToolResult     ResponseEventKind = "toolResult"
	EventError          ResponseEventKind = "error"
	EventStatus         ResponseEventKind = "status"
	EventMeta           ResponseEventKind = "meta"
	EventCompletion     ResponseEventKind = "completion"
	EventCompactBoundary ResponseEventKind = "compactBoundary"
	EventCompactSummary ResponseEventKind = "compactSummary"
	EventUserMessage    ResponseEventKind = "userMessage"
	EventUnknown        ResponseEventKind = "unknown"
)

// ResponseEvent is the decoded form of one frame from the assistant
// subprocess (spec.md §3/§4.G). Exactly one of the kind-specific field
// groups is populated, selected by Kind.
type ResponseEvent struct {
	Kind ResponseEventKind `json:"kind"`

	// Text fields.
	Text         string `json:"text,omitempty"`
	TextPartial  bool   `json:"isPartial,omitempty"`
	TextCumulative bool `json:"isCumulative,omitempty"`

	// ToolUse fields.
	ToolName   string          `json:"toolName,omitempty"`
	ToolParams map[string]any  `json:"params,omitempty"`
	ToolUseID  string          `json:"toolUseId,omitempty"`

	// ToolResult fields.
	ResultToolUseID string `json:"resultToolUseId,omitempty"`
	ResultContent   string `json:"resultContent,omitempty"`
	ResultIsError   bool   `json:"resultIsError,omitempty"`

	// Error fields.
	ErrorMessage string `json:"errorMessage,omitempty"`
	ErrorDetails string `json:"errorDetails,omitempty"`
	ErrorCode    string `json:"errorCode,omitempty"`

	// Status fields.
	Status        string `json:"status,omitempty"`
	StatusMessage string `json:"statusMessage,omitempty"`

	// Meta fields.
	MetaSessionID string         `json:"metaSessionId,omitempty"`
	MetaData      map[string]any `json:"metaData,omitempty"`

	// Completion fields.
	StopReason string      `json:"stopReason,omitempty"`
	Usage      *TokenUsage `json:"usage,omitempty"`

	// CompactBoundary fields.
	CompactTrigger   string `json:"compactTrigger,omitempty"`
	CompactPreTokens int    `json:"compactPreTokens,omitempty"`

	// CompactSummary fields.
	CompactSummaryContent        string `json:"compactSummaryContent,omitempty"`
	CompactSummaryTranscriptOnly bool   `json:"compactSummaryTranscriptOnly,omitempty"`

	// UserMessage fields.
	UserMessageContent string `json:"userMessageContent,omitempty"`
	UserMessageReplay  bool   `json:"userMessageReplay,omitempty"`

	// Unknown fields.
	Raw map[string]any `json:"raw,omitempty"`
}

// HasUsage reports whether the event carries token-usage data that should
// be accounted for (spec.md §3 token-accounting invariant).
func (e ResponseEvent) HasUsage() bool {
	return e.Usage != nil
}

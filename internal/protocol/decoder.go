// Package protocol implements the Response Decoder (spec.md §4.G): it
// turns a stream of line-delimited JSON frames from the assistant
// subprocess into a sequence of models.ResponseEvent values.
//
// Grounded on the kandev streamjson adapter's dispatch-by-type/subtype
// switch (handleSystemMessage/handleAssistantMessage/handleUserMessage
// in other_examples' streamjson_mess.go), adapted from that adapter's
// AgentEvent wire shape to the tagged-union ResponseEvent spec.md
// describes.
package protocol

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"

	"github.com/conductorhq/conductor/pkg/models"
)

// Decoder incrementally decodes LDJSON frames into ResponseEvents. It is
// not safe for concurrent use; the session runtime owns a single decoder
// per subprocess, fed from its single stdout reader.
type Decoder struct {
	buf strings.Builder
}

// NewDecoder returns an empty Decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed appends chunk to the internal buffer and returns every complete
// line's decoded events, in arrival order. Any trailing partial line is
// retained for the next call.
func (d *Decoder) Feed(chunk string) []models.ResponseEvent {
	d.buf.WriteString(chunk)
	full := d.buf.String()

	lastNL := strings.LastIndexByte(full, '\n')
	if lastNL < 0 {
		return nil
	}

	complete := full[:lastNL]
	rest := full[lastNL+1:]
	d.buf.Reset()
	d.buf.WriteString(rest)

	var events []models.ResponseEvent
	for _, line := range strings.Split(complete, "\n") {
		if ev, ok := DecodeLine(line); ok {
			events = append(events, ev...)
		}
	}
	return events
}

// DecodeLine decodes a single LDJSON line, which may expand into zero,
// one, or several events (an "assistant" frame with multiple content
// blocks expands into one event per block). Blank lines decode to
// nothing; malformed lines that superficially look like a response frame
// (they contain a recognized field name) decode to a synthetic Error
// event; other unparseable lines are dropped.
func DecodeLine(line string) ([]models.ResponseEvent, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, false
	}

	var frame map[string]any
	if err := json.Unmarshal([]byte(line), &frame); err != nil {
		if looksLikeResponseFrame(line) {
			return []models.ResponseEvent{{
				Kind:         models.EventError,
				ErrorMessage: "malformed response frame",
				ErrorDetails: decodeHTMLEntities(line),
			}}, true
		}
		return nil, false
	}

	return dispatch(frame), true
}

var responseFrameMarkers = []string{`"type"`, `"subtype"`, `"message"`, `"session_id"`}

func looksLikeResponseFrame(line string) bool {
	for _, m := range responseFrameMarkers {
		if strings.Contains(line, m) {
			return true
		}
	}
	return false
}

func dispatch(frame map[string]any) []models.ResponseEvent {
	typ, _ := frame["type"].(string)

	switch typ {
	case "text", "message":
		return []models.ResponseEvent{textEvent(stringOf(frame["text"]), false, false)}

	case "assistant":
		return decodeAssistant(frame)

	case "user":
		return decodeUser(frame)

	case "tool_use":
		return []models.ResponseEvent{toolUseEvent(frame)}

	case "result":
		return []models.ResponseEvent{decodeCompletion(frame)}

	case "status":
		return []models.ResponseEvent{{Kind: models.EventStatus, Status: stringOf(frame["status"]), StatusMessage: decodeHTMLEntities(stringOf(frame["message"]))}}

	case "system":
		subtype, _ := frame["subtype"].(string)
		switch subtype {
		case "init":
			return []models.ResponseEvent{decodeMeta(frame)}
		case "compact_boundary":
			return []models.ResponseEvent{decodeCompactBoundary(frame)}
		default:
			return []models.ResponseEvent{{Kind: models.EventStatus, Status: subtype}}
		}

	case "stream_event":
		return decodeStreamEvent(frame)

	default:
		return []models.ResponseEvent{{Kind: models.EventUnknown, Raw: decodeHTMLEntitiesInMap(frame)}}
	}
}

func textEvent(text string, partial, cumulative bool) models.ResponseEvent {
	return models.ResponseEvent{
		Kind:           models.EventText,
		Text:           decodeHTMLEntities(text),
		TextPartial:    partial,
		TextCumulative: cumulative,
	}
}

func toolUseEvent(block map[string]any) models.ResponseEvent {
	name := stringOf(block["name"])
	id := stringOf(block["id"])
	if id == "" {
		id = stringOf(block["tool_use_id"])
	}
	var params map[string]any
	if m, ok := block["input"].(map[string]any); ok {
		params = decodeHTMLEntitiesInMap(m)
	}
	return models.ResponseEvent{
		Kind:       models.EventToolUse,
		ToolName:   name,
		ToolUseID:  id,
		ToolParams: params,
	}
}

// decodeAssistant expands a cumulative "assistant" frame's content blocks,
// preserving interleaving order. A single content block short-circuits to
// one event without the cumulative-text special case.
func decodeAssistant(frame map[string]any) []models.ResponseEvent {
	msg, _ := frame["message"].(map[string]any)
	if msg == nil {
		return nil
	}
	blocks := contentBlocks(msg["content"])

	if len(blocks) == 1 {
		return []models.ResponseEvent{decodeAssistantBlock(blocks[0], false)}
	}

	var events []models.ResponseEvent
	for _, b := range blocks {
		events = append(events, decodeAssistantBlock(b, true))
	}
	return events
}

func decodeAssistantBlock(block map[string]any, cumulative bool) models.ResponseEvent {
	switch stringOf(block["type"]) {
	case "tool_use":
		return toolUseEvent(block)
	default:
		return textEvent(stringOf(block["text"]), false, cumulative)
	}
}

// decodeUser handles the three "user" frame shapes: a tool_result
// content block, a compact summary, and a plain user echo.
func decodeUser(frame map[string]any) []models.ResponseEvent {
	if b, ok := frame["isCompactSummary"].(bool); ok && b {
		msg, _ := frame["message"].(map[string]any)
		content := flattenContentToText(msg["content"])
		return []models.ResponseEvent{{
			Kind:                          models.EventCompactSummary,
			CompactSummaryContent:         decodeHTMLEntities(content),
			CompactSummaryTranscriptOnly: boolOf(frame["transcriptOnly"]),
		}}
	}

	msg, _ := frame["message"].(map[string]any)
	if msg != nil {
		for _, b := range contentBlocks(msg["content"]) {
			if stringOf(b["type"]) == "tool_result" {
				return []models.ResponseEvent{decodeToolResult(b)}
			}
		}
	}

	return []models.ResponseEvent{{
		Kind:               models.EventUserMessage,
		UserMessageContent: decodeHTMLEntities(flattenContentToText(msgContent(msg))),
		UserMessageReplay:  boolOf(frame["isReplay"]),
	}}
}

func msgContent(msg map[string]any) any {
	if msg == nil {
		return nil
	}
	return msg["content"]
}

func decodeToolResult(block map[string]any) models.ResponseEvent {
	id := stringOf(block["tool_use_id"])
	isError := boolOf(block["is_error"])
	content := flattenContentToText(block["content"])
	return models.ResponseEvent{
		Kind:            models.EventToolResult,
		ResultToolUseID: id,
		ResultContent:   decodeHTMLEntities(content),
		ResultIsError:   isError,
	}
}

// flattenContentToText handles content as either a bare string or a list
// of {type:text,text} blocks, concatenating the latter.
func flattenContentToText(content any) string {
	switch v := content.(type) {
	case string:
		return v
	case []any:
		var sb strings.Builder
		for _, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if stringOf(m["type"]) == "text" {
				sb.WriteString(stringOf(m["text"]))
			}
		}
		return sb.String()
	default:
		return ""
	}
}

func contentBlocks(content any) []map[string]any {
	list, ok := content.([]any)
	if !ok {
		return nil
	}
	var blocks []map[string]any
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			blocks = append(blocks, m)
		}
	}
	return blocks
}

func decodeCompletion(frame map[string]any) models.ResponseEvent {
	subtype := stringOf(frame["subtype"])
	stopReason := "completed"
	if subtype != "success" {
		stopReason = "error"
	}

	ev := models.ResponseEvent{Kind: models.EventCompletion, StopReason: stopReason}
	if usage := usageOf(frame); usage != nil {
		ev.Usage = usage
	}
	return ev
}

func usageOf(frame map[string]any) *models.TokenUsage {
	u, ok := frame["usage"].(map[string]any)
	if !ok {
		u = nil
	}
	if u == nil {
		if _, ok := frame["total_cost_usd"]; !ok {
			return nil
		}
		u = map[string]any{}
	}
	usage := &models.TokenUsage{
		InputTokens:       intOf(u["input_tokens"]),
		OutputTokens:      intOf(u["output_tokens"]),
		CacheReadTokens:   intOf(u["cache_read_input_tokens"]),
		CacheCreateTokens: intOf(u["cache_creation_input_tokens"]),
	}
	if c, ok := frame["total_cost_usd"]; ok {
		usage.CostUsd = floatOf(c)
	}
	return usage
}

func decodeMeta(frame map[string]any) models.ResponseEvent {
	return models.ResponseEvent{
		Kind:          models.EventMeta,
		MetaSessionID: stringOf(frame["session_id"]),
		MetaData:      decodeHTMLEntitiesInMap(frame),
	}
}

func decodeCompactBoundary(frame map[string]any) models.ResponseEvent {
	compact, _ := frame["compact_metadata"].(map[string]any)
	return models.ResponseEvent{
		Kind:             models.EventCompactBoundary,
		CompactTrigger:   stringOf(compact["trigger"]),
		CompactPreTokens: intOf(compact["pre_tokens"]),
	}
}

func decodeStreamEvent(frame map[string]any) []models.ResponseEvent {
	event, _ := frame["event"].(map[string]any)
	if event == nil || stringOf(event["type"]) != "content_block_delta" {
		return []models.ResponseEvent{{Kind: models.EventUnknown, Raw: decodeHTMLEntitiesInMap(frame)}}
	}
	delta, _ := event["delta"].(map[string]any)
	text := stringOf(delta["text"])
	if text == "" {
		return nil
	}
	return []models.ResponseEvent{textEvent(text, true, false)}
}

func stringOf(v any) string {
	s, _ := v.(string)
	return s
}

func boolOf(v any) bool {
	b, _ := v.(bool)
	return b
}

func intOf(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	default:
		return 0
	}
}

func floatOf(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return 0
	}
}

// NewLineScanner adapts an io.Reader of LDJSON frames into a
// bufio.Scanner configured the way the session runtime consumes
// subprocess stdout, with a generous max line length for large tool
// outputs.
func NewLineScanner(r io.Reader) *bufio.Scanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	return sc
}

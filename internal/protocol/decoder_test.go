package protocol

import (
	"testing"

	"github.com/conductorhq/conductor/pkg/models"
)

func decodeOne(t *testing.T, line string) models.ResponseEvent {
	t.Helper()
	events, ok := DecodeLine(line)
	if !ok {
		t.Fatalf("expected line to decode: %s", line)
	}
	if len(events) != 1 {
		t.Fatalf("expected exactly one event, got %d: %+v", len(events), events)
	}
	return events[0]
}

func TestDecodeLineBlankIsSkipped(t *testing.T) {
	if _, ok := DecodeLine("   "); ok {
		t.Fatal("expected blank line to decode to nothing")
	}
}

func TestDecodeLineMalformedButResponseShapedEmitsError(t *testing.T) {
	ev := decodeOne(t, `{"type":"text", "text": unterminated`)
	if ev.Kind != models.EventError {
		t.Fatalf("expected synthetic Error event, got %+v", ev)
	}
}

func TestDecodeLineMalformedAndUnrelatedIsDropped(t *testing.T) {
	if _, ok := DecodeLine("not json at all, no known fields here"); ok {
		t.Fatal("expected unrelated malformed line to be dropped")
	}
}

func TestDecodeLineSimpleText(t *testing.T) {
	ev := decodeOne(t, `{"type":"text","text":"hello"}`)
	if ev.Kind != models.EventText || ev.Text != "hello" {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestDecodeLineAssistantSingleBlockShortCircuits(t *testing.T) {
	ev := decodeOne(t, `{"type":"assistant","message":{"content":[{"type":"text","text":"hi"}]}}`)
	if ev.Kind != models.EventText || ev.Text != "hi" {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if ev.TextCumulative {
		t.Fatal("single-block content should not be flagged cumulative")
	}
}

func TestDecodeLineAssistantMultiBlockExpands(t *testing.T) {
	line := `{"type":"assistant","message":{"content":[{"type":"text","text":"a"},{"type":"tool_use","id":"t1","name":"Read","input":{"file_path":"x.go"}}]}}`
	events, ok := DecodeLine(line)
	if !ok || len(events) != 2 {
		t.Fatalf("expected 2 events, got %+v (ok=%v)", events, ok)
	}
	if events[0].Kind != models.EventText || !events[0].TextCumulative {
		t.Fatalf("expected first event to be cumulative text: %+v", events[0])
	}
	if events[1].Kind != models.EventToolUse || events[1].ToolName != "Read" {
		t.Fatalf("expected second event to be tool use: %+v", events[1])
	}
}

func TestDecodeLineUserToolResult(t *testing.T) {
	line := `{"type":"user","message":{"content":[{"type":"tool_result","tool_use_id":"t1","content":"ok"}]}}`
	ev := decodeOne(t, line)
	if ev.Kind != models.EventToolResult || ev.ResultToolUseID != "t1" || ev.ResultContent != "ok" {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestDecodeLineUserToolResultListContent(t *testing.T) {
	line := `{"type":"user","message":{"content":[{"type":"tool_result","tool_use_id":"t1","content":[{"type":"text","text":"a"},{"type":"text","text":"b"}]}]}}`
	ev := decodeOne(t, line)
	if ev.ResultContent != "ab" {
		t.Fatalf("expected concatenated content, got %q", ev.ResultContent)
	}
}

func TestDecodeLineCompactSummary(t *testing.T) {
	line := `{"type":"user","isCompactSummary":true,"message":{"content":"summary text"}}`
	ev := decodeOne(t, line)
	if ev.Kind != models.EventCompactSummary || ev.CompactSummaryContent != "summary text" {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestDecodeLinePlainUserMessage(t *testing.T) {
	line := `{"type":"user","message":{"content":"hi there"}}`
	ev := decodeOne(t, line)
	if ev.Kind != models.EventUserMessage || ev.UserMessageContent != "hi there" {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestDecodeLineResultSuccess(t *testing.T) {
	line := `{"type":"result","subtype":"success","usage":{"input_tokens":10,"output_tokens":5},"total_cost_usd":0.01}`
	ev := decodeOne(t, line)
	if ev.Kind != models.EventCompletion || ev.StopReason != "completed" {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if ev.Usage == nil || ev.Usage.InputTokens != 10 || ev.Usage.CostUsd != 0.01 {
		t.Fatalf("unexpected usage: %+v", ev.Usage)
	}
}

func TestDecodeLineResultError(t *testing.T) {
	ev := decodeOne(t, `{"type":"result","subtype":"error_max_turns"}`)
	if ev.StopReason != "error" {
		t.Fatalf("expected error stop reason, got %+v", ev)
	}
}

func TestDecodeLineSystemInit(t *testing.T) {
	ev := decodeOne(t, `{"type":"system","subtype":"init","session_id":"abc"}`)
	if ev.Kind != models.EventMeta || ev.MetaSessionID != "abc" {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestDecodeLineSystemCompactBoundary(t *testing.T) {
	line := `{"type":"system","subtype":"compact_boundary","compact_metadata":{"trigger":"auto","pre_tokens":1000}}`
	ev := decodeOne(t, line)
	if ev.Kind != models.EventCompactBoundary || ev.CompactTrigger != "auto" || ev.CompactPreTokens != 1000 {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestDecodeLineSystemOtherSubtypeBecomesStatus(t *testing.T) {
	ev := decodeOne(t, `{"type":"system","subtype":"task_started"}`)
	if ev.Kind != models.EventStatus {
		t.Fatalf("expected Status event, got %+v", ev)
	}
}

func TestDecodeLineStreamEventDelta(t *testing.T) {
	line := `{"type":"stream_event","event":{"type":"content_block_delta","delta":{"text":"partial"}}}`
	ev := decodeOne(t, line)
	if ev.Kind != models.EventText || !ev.TextPartial || ev.Text != "partial" {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestDecodeLineStreamEventEmptyDeltaIsDropped(t *testing.T) {
	line := `{"type":"stream_event","event":{"type":"content_block_delta","delta":{"text":""}}}`
	if events, ok := DecodeLine(line); ok && len(events) != 0 {
		t.Fatalf("expected no events for an empty delta, got %+v", events)
	}
}

func TestDecodeLineUnknownType(t *testing.T) {
	ev := decodeOne(t, `{"type":"something_new","foo":"bar"}`)
	if ev.Kind != models.EventUnknown {
		t.Fatalf("expected Unknown event, got %+v", ev)
	}
}

func TestDecodeHTMLEntitiesInText(t *testing.T) {
	ev := decodeOne(t, `{"type":"text","text":"a &amp; b &lt;tag&gt; &#39;q&#39;"}`)
	if ev.Text != `a & b <tag> 'q'` {
		t.Fatalf("unexpected decoded text: %q", ev.Text)
	}
}

func TestFeedSplitsAcrossChunks(t *testing.T) {
	d := NewDecoder()
	if events := d.Feed(`{"type":"text","text":"hel`); len(events) != 0 {
		t.Fatalf("expected no events before a newline, got %+v", events)
	}
	events := d.Feed("lo\"}\n")
	if len(events) != 1 || events[0].Text != "hello" {
		t.Fatalf("unexpected events after completing the line: %+v", events)
	}
}

func TestFeedSkipsBlankLines(t *testing.T) {
	d := NewDecoder()
	events := d.Feed("\n\n{\"type\":\"text\",\"text\":\"x\"}\n")
	if len(events) != 1 {
		t.Fatalf("expected blank lines to be skipped, got %+v", events)
	}
}

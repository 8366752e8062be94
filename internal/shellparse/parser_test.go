package shellparse

import "testing"

func TestParseEmpty(t *testing.T) {
	if got := Parse("   "); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}

func TestParseSequenced(t *testing.T) {
	got := Parse(`cd /project/sub && dart pub get`)
	if len(got) != 2 {
		t.Fatalf("expected 2 parts, got %d: %+v", len(got), got)
	}
	if got[0].Type != PartCd {
		t.Fatalf("expected first part to be cd, got %v", got[0].Type)
	}
	if got[1].Type != PartSimple {
		t.Fatalf("expected second part to be simple, got %v", got[1].Type)
	}
}

func TestParseDoesNotSplitOnDoublePipeInsideSequenced(t *testing.T) {
	got := Parse(`git status || echo fail`)
	if len(got) != 2 {
		t.Fatalf("expected 2 sequenced parts for ||, got %d: %+v", len(got), got)
	}
}

func TestParsePipeline(t *testing.T) {
	got := Parse(`git log --oneline | head -5`)
	if len(got) != 2 {
		t.Fatalf("expected 2 pipeline parts, got %d: %+v", len(got), got)
	}
	for _, p := range got {
		if p.Type != PartPipeline {
			t.Fatalf("expected pipeline parts, got %v", p.Type)
		}
	}
}

func TestParseQuotedOperatorsIgnored(t *testing.T) {
	got := Parse(`echo "a && b"`)
	if len(got) != 1 {
		t.Fatalf("expected operators inside quotes to be ignored, got %+v", got)
	}
}

func TestParseMixedSequenceAndPipeline(t *testing.T) {
	got := Parse(`git status && git log | head -3`)
	if len(got) != 3 {
		t.Fatalf("expected 3 parts, got %d: %+v", len(got), got)
	}
	if got[0].Type != PartSimple {
		t.Fatalf("expected first part simple, got %v", got[0].Type)
	}
	if got[1].Type != PartPipeline || got[2].Type != PartPipeline {
		t.Fatalf("expected trailing pipeline parts, got %+v", got[1:])
	}
}

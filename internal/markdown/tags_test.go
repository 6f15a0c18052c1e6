package markdown

import "testing"

func TestFindTags_PunctuationKept(t *testing.T) {
	spans := findTags("#todo and #done.")
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d: %v", len(spans), spans)
	}
	if spans[0].tag != "todo" {
		t.Fatalf("first tag = %q, want %q", spans[0].tag, "todo")
	}
	if spans[1].tag != "done." {
		t.Fatalf("second tag = %q, want %q", spans[1].tag, "done.")
	}
}

func TestFindTags_TrailingNewlineTrimmed(t *testing.T) {
	spans := findTags("#todo\n")
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].tag != "todo" {
		t.Fatalf("tag = %q, want %q", spans[0].tag, "todo")
	}
}

func TestFindTags_EndOfTextUntrimmed(t *testing.T) {
	spans := findTags("note ends with #todo")
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].tag != "todo" {
		t.Fatalf("tag = %q, want %q", spans[0].tag, "todo")
	}
	if spans[0].start != 15 {
		t.Fatalf("start = %d, want 15", spans[0].start)
	}
}

func TestFindTags_BareHashSkipped(t *testing.T) {
	if spans := findTags("# not a tag"); len(spans) != 0 {
		t.Fatalf("expected no spans, got %v", spans)
	}
	if spans := findTags("no tags here"); spans != nil {
		t.Fatalf("expected nil, got %v", spans)
	}
}

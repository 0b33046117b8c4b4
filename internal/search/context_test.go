package search

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/slabbot/slabbot/internal/kb"
)

func TestBuildContext_Empty(t *testing.T) {
	if got := BuildContext(nil); got != "" {
		t.Errorf("BuildContext(nil) = %q, want empty", got)
	}
	if got := BuildContext([]kb.Article{}); got != "" {
		t.Errorf("BuildContext(empty) = %q, want empty", got)
	}
}

func TestBuildContext_SingleArticle(t *testing.T) {
	a := kb.Article{
		Title:    "Print a Quote",
		Category: "Quoting",
		Content:  "Open the quote and choose print.",
		URL:      "https://help.example.com/print",
	}

	got := BuildContext([]kb.Article{a})

	for _, want := range []string{
		"[Source 1: Print a Quote]",
		"Category: Quoting",
		"Open the quote and choose print.",
		"URL: https://help.example.com/print",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("context missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "...") {
		t.Errorf("short content must not get an ellipsis:\n%s", got)
	}
	if strings.Contains(got, blockSeparator) {
		t.Errorf("single block must not contain the separator:\n%s", got)
	}
}

func TestBuildContext_TruncatesLongContent(t *testing.T) {
	long := strings.Repeat("x", previewLimit+500)
	a := kb.Article{Title: "Long", Category: "Misc", Content: long, URL: "u"}

	got := BuildContext([]kb.Article{a})

	if !strings.Contains(got, strings.Repeat("x", previewLimit)+"...") {
		t.Error("expected 1000-char preview followed by ellipsis")
	}
	if strings.Contains(got, strings.Repeat("x", previewLimit+1)) {
		t.Error("preview exceeds limit")
	}
}

func TestBuildContext_MultibyteContent(t *testing.T) {
	// 999 characters but 1998 bytes: under the limit, so no ellipsis.
	under := strings.Repeat("é", previewLimit-1)
	got := BuildContext([]kb.Article{{Title: "Accents", Content: under}})
	if strings.Contains(got, "...") {
		t.Error("content under the character limit must not be ellipsized")
	}
	if !strings.Contains(got, under) {
		t.Error("content under the limit must be emitted whole")
	}

	// One character over: cut to exactly 1000 characters, still valid UTF-8.
	over := strings.Repeat("é", previewLimit+1)
	got = BuildContext([]kb.Article{{Title: "Accents", Content: over}})
	want := strings.Repeat("é", previewLimit) + "..."
	if !strings.Contains(got, want) {
		t.Error("expected a 1000-character preview followed by ellipsis")
	}
	if !utf8.ValidString(got) {
		t.Error("truncation produced invalid UTF-8")
	}
}

func TestBuildContext_ExactLimitGetsNoEllipsis(t *testing.T) {
	a := kb.Article{Title: "Edge", Content: strings.Repeat("y", previewLimit)}

	if got := BuildContext([]kb.Article{a}); strings.Contains(got, "...") {
		t.Error("content exactly at the limit must not be marked truncated")
	}
}

func TestBuildContext_OrderAndIndexing(t *testing.T) {
	articles := []kb.Article{
		{Title: "First", Content: "one"},
		{Title: "Second", Content: "two"},
		{Title: "Third", Content: "three"},
	}

	got := BuildContext(articles)

	i1 := strings.Index(got, "[Source 1: First]")
	i2 := strings.Index(got, "[Source 2: Second]")
	i3 := strings.Index(got, "[Source 3: Third]")
	if i1 < 0 || i2 < 0 || i3 < 0 {
		t.Fatalf("missing source headers:\n%s", got)
	}
	if !(i1 < i2 && i2 < i3) {
		t.Errorf("blocks out of order: %d %d %d", i1, i2, i3)
	}
	if strings.Count(got, blockSeparator) != 2 {
		t.Errorf("separator count = %d, want 2", strings.Count(got, blockSeparator))
	}
}

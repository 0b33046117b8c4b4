package search

import (
	"fmt"
	"strings"

	"github.com/slabbot/slabbot/internal/kb"
)

// previewLimit truncates article content in the prompt fragment.
const previewLimit = 1000

// blockSeparator joins article blocks in the built context.
const blockSeparator = "\n\n---\n\n"

// BuildContext formats retrieved articles into the grounding fragment sent
// alongside the conversation. Articles are emitted in input order with a
// 1-based source index, title, category, a content preview capped at 1000
// characters (ellipsis only when content was actually cut), and the URL.
// An empty input produces an empty string. Pure; no failure modes.
func BuildContext(articles []kb.Article) string {
	if len(articles) == 0 {
		return ""
	}

	blocks := make([]string, len(articles))
	for i, a := range articles {
		preview := a.Content
		ellipsis := ""
		// The limit counts characters, not bytes, so multibyte content is
		// never cut mid-rune or ellipsized early.
		if runes := []rune(preview); len(runes) > previewLimit {
			preview = string(runes[:previewLimit])
			ellipsis = "..."
		}
		blocks[i] = fmt.Sprintf("[Source %d: %s]\nCategory: %s\n%s%s\nURL: %s",
			i+1, a.Title, a.Category, preview, ellipsis, a.URL)
	}
	return strings.Join(blocks, blockSeparator)
}

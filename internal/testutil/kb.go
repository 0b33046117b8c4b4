package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/slabbot/slabbot/internal/kb"
)

// Articles returns a small fixed KB covering the product-keyword cases.
func Articles() []kb.Article {
	return []kb.Article{
		{
			ID:       "kb-1",
			URL:      "https://help.example.com/countergo/print-quote",
			Title:    "Print a Quote",
			Category: "CounterGo",
			Content:  "Open the quote and choose print from the file menu.",
		},
		{
			ID:       "kb-2",
			URL:      "https://help.example.com/systemize/calendar",
			Title:    "Systemize Calendar Setup",
			Category: "Systemize",
			Content:  "Configure the calendar view from the settings page.",
		},
		{
			ID:       "kb-3",
			URL:      "https://help.example.com/general/edge-profiles",
			Title:    "Edge Profiles",
			Category: "General",
			Content:  "Edge profiles define the finished edge shape of a countertop.",
		},
	}
}

// KBServer serves a snapshot of the given articles the way the KB document
// host does. The server closes with the test.
func KBServer(t *testing.T, articles []kb.Article) *httptest.Server {
	t.Helper()

	snap := kb.Snapshot{
		ScrapedAt:     "2026-01-01T00:00:00Z",
		TotalArticles: len(articles),
		Articles:      articles,
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(snap); err != nil {
			t.Errorf("encoding KB snapshot: %v", err)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

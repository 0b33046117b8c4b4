// Package kb holds the support-article knowledge base: the article data
// model and a store that loads the KB document once per process.
package kb

// Article is one support article. Articles are immutable after load and are
// owned by the Store; every other component reads them by value.
type Article struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	Title     string `json:"title"`
	Category  string `json:"category"`
	Content   string `json:"content"`
	WordCount int    `json:"word_count"`
	ScrapedAt string `json:"scraped_at"`
}

// Snapshot is the full KB as loaded from the source document.
//
// Invariants: TotalArticles == len(Articles); article IDs are unique.
// A Snapshot is never mutated after construction. Refreshing the KB requires
// a process restart; the Store caches the first successful load for the
// process lifetime.
type Snapshot struct {
	ScrapedAt     string    `json:"scraped_at"`
	TotalArticles int       `json:"total_articles"`
	Categories    []string  `json:"categories"`
	Articles      []Article `json:"articles"`
}

// ScoredArticle pairs an article with its lexical score or vector
// similarity for the duration of one query. It is discarded after ranking.
type ScoredArticle struct {
	Article Article
	Score   float64
}

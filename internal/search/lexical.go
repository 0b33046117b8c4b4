package search

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/slabbot/slabbot/internal/kb"
)

// Lexical scoring weights. Scores accumulate additively across query tokens.
const (
	exactTitleBonus    = 50 // whole title equals the token
	titleContainsBonus = 20 // title contains the token
	actionVerbBonus    = 30 // title contains a non-product token ("print", "export", ...)
	contentMatchCap    = 10 // whole-word content occurrences counted up to this many
)

// minTokenLen filters noise words: tokens under three characters are
// discarded. Counted in runes, not bytes.
const minTokenLen = 3

// Tokenize lower-cases the query, splits on whitespace, and drops tokens
// shorter than three characters.
func Tokenize(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	tokens := fields[:0]
	for _, f := range fields {
		if utf8.RuneCountInString(f) >= minTokenLen {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// Scorer ranks articles against a tokenized query using weighted field
// matches. It is a pure computation: no I/O, no shared state.
type Scorer struct {
	detector *Detector
}

// NewScorer creates a scorer. The detector identifies product keywords so
// the action-verb boost is not granted to product names.
func NewScorer(detector *Detector) *Scorer {
	if detector == nil {
		detector = NewDetector(nil)
	}
	return &Scorer{detector: detector}
}

// Score ranks articles by cumulative token score, descending. Ties keep KB
// order (stable sort) so ranking is deterministic. Articles scoring zero or
// below are dropped.
//
// When productFilter is non-empty the candidate set is restricted to
// articles whose URL or category contains the filter, case-insensitively.
// An empty restricted set stays empty: scoring never falls back to the full
// KB, so a scoped query behaves the same on every run.
func (s *Scorer) Score(query string, articles []kb.Article, productFilter string) []kb.ScoredArticle {
	tokens := Tokenize(query)
	if len(tokens) == 0 {
		return nil
	}

	candidates := articles
	if productFilter != "" {
		candidates = filterByProduct(articles, productFilter)
	}

	// One compiled word-boundary pattern per token, shared across articles.
	patterns := make([]*regexp.Regexp, len(tokens))
	for i, tok := range tokens {
		patterns[i] = regexp.MustCompile(`\b` + regexp.QuoteMeta(tok) + `\b`)
	}

	scored := make([]kb.ScoredArticle, 0, len(candidates))
	for _, article := range candidates {
		titleLower := strings.ToLower(article.Title)
		contentLower := strings.ToLower(article.Content)

		var score float64
		for i, tok := range tokens {
			if titleLower == tok {
				score += exactTitleBonus
			}
			if strings.Contains(titleLower, tok) {
				score += titleContainsBonus
				if !s.detector.isKeyword(tok) {
					score += actionVerbBonus
				}
			}
			if n := countMatches(patterns[i], contentLower, contentMatchCap); n > 0 {
				score += float64(n)
			}
		}

		if score > 0 {
			scored = append(scored, kb.ScoredArticle{Article: article, Score: score})
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	return scored
}

// filterByProduct keeps articles whose URL or category mentions the product.
func filterByProduct(articles []kb.Article, product string) []kb.Article {
	filtered := make([]kb.Article, 0, len(articles))
	for _, a := range articles {
		if strings.Contains(strings.ToLower(a.URL), product) ||
			strings.Contains(strings.ToLower(a.Category), product) {
			filtered = append(filtered, a)
		}
	}
	return filtered
}

// countMatches counts whole-word occurrences up to limit. The limit bounds
// both the score contribution and the regexp work on long articles.
func countMatches(re *regexp.Regexp, text string, limit int) int {
	return len(re.FindAllStringIndex(text, limit))
}

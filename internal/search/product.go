package search

import "strings"

// DefaultProductKeywords are the product families recognized in queries, in
// detection priority order.
var DefaultProductKeywords = []string{"systemize", "inventory", "countergo"}

// Detector finds a product-scope filter in query text.
//
// Detection is a pure function of the query: the lower-cased query is
// scanned for each keyword in order and the first match wins. Both retrieval
// modes share one detector so lexical and vector scoping agree.
type Detector struct {
	keywords []string
}

// NewDetector creates a detector for the given keywords. Empty input uses
// DefaultProductKeywords.
func NewDetector(keywords []string) *Detector {
	if len(keywords) == 0 {
		keywords = DefaultProductKeywords
	}
	lowered := make([]string, len(keywords))
	for i, k := range keywords {
		lowered[i] = strings.ToLower(k)
	}
	return &Detector{keywords: lowered}
}

// Detect returns the first product keyword contained in query, or "" when
// the query names no product.
func (d *Detector) Detect(query string) string {
	lower := strings.ToLower(query)
	for _, k := range d.keywords {
		if strings.Contains(lower, k) {
			return k
		}
	}
	return ""
}

// isKeyword reports whether token is one of the recognized product keywords.
func (d *Detector) isKeyword(token string) bool {
	for _, k := range d.keywords {
		if token == k {
			return true
		}
	}
	return false
}

// Package search implements the hybrid knowledge retrieval engine: lexical
// token scoring over the in-memory KB snapshot, or vector similarity search
// through an external index, both behind one Engine with a fixed mode.
package search

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/slabbot/slabbot/internal/kb"
)

var tracer = otel.Tracer("slabbot/search")

// candidateFloor is the minimum candidate count requested from the vector
// index. The index limit is a soft floor: asking for extra headroom keeps
// local truncation meaningful after ranking.
const candidateFloor = 15

// SnapshotLoader provides the KB snapshot. Defined here, implemented by
// *kb.Store.
type SnapshotLoader interface {
	Load(ctx context.Context) (*kb.Snapshot, error)
}

// Embedder turns text into a fixed-length normalized vector. Defined here,
// implemented in the vector package. The query-time embedder must be the
// same model, pooling, and normalization as the index's write path.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Index is the similarity-search capability of the backing store. Results
// arrive ordered by descending similarity with Score holding the cosine
// similarity in [0,1].
type Index interface {
	SimilaritySearch(ctx context.Context, embedding []float32, threshold float64, limit int, productFilter string) ([]kb.ScoredArticle, error)
}

// Searcher is one retrieval strategy. The engine holds exactly one,
// selected from configuration at construction, never per query.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]kb.Article, error)
}

// Engine ranks KB articles for a free-text query. Score and similarity
// metadata stay internal: callers only see ordered articles.
type Engine struct {
	searcher Searcher
	logger   *slog.Logger
}

// NewLexicalEngine builds an engine scoring articles with weighted token
// matches against the loaded snapshot.
func NewLexicalEngine(loader SnapshotLoader, detector *Detector, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		searcher: &lexicalSearcher{
			loader:   loader,
			scorer:   NewScorer(detector),
			detector: detector,
		},
		logger: logger,
	}
}

// NewVectorEngine builds an engine delegating to the external similarity
// index. threshold is the minimum cosine similarity for a candidate.
func NewVectorEngine(embedder Embedder, index Index, detector *Detector, threshold float64, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if detector == nil {
		detector = NewDetector(nil)
	}
	return &Engine{
		searcher: &vectorSearcher{
			embedder:  embedder,
			index:     index,
			detector:  detector,
			threshold: threshold,
		},
		logger: logger,
	}
}

// Search returns up to maxResults articles ranked by relevance to query.
// maxResults < 1 uses the default of 10. Collaborator failures propagate
// unchanged in kind; the engine adds no retry and no silent fallback.
func (e *Engine) Search(ctx context.Context, query string, maxResults int) ([]kb.Article, error) {
	if maxResults < 1 {
		maxResults = 10
	}

	ctx, span := tracer.Start(ctx, "search.query")
	defer span.End()

	articles, err := e.searcher.Search(ctx, query, maxResults)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "retrieval failed")
		return nil, err
	}

	span.SetAttributes(attribute.Int("search.results", len(articles)))
	e.logger.Debug("retrieval complete", "query_len", len(query), "results", len(articles))
	return articles, nil
}

type lexicalSearcher struct {
	loader   SnapshotLoader
	scorer   *Scorer
	detector *Detector
}

func (l *lexicalSearcher) Search(ctx context.Context, query string, maxResults int) ([]kb.Article, error) {
	// A query with no usable tokens returns empty without touching the KB.
	if len(Tokenize(query)) == 0 {
		return nil, nil
	}

	snap, err := l.loader.Load(ctx)
	if err != nil {
		return nil, err
	}

	filter := ""
	if l.detector != nil {
		filter = l.detector.Detect(query)
	}

	scored := l.scorer.Score(query, snap.Articles, filter)
	if len(scored) > maxResults {
		scored = scored[:maxResults]
	}

	articles := make([]kb.Article, len(scored))
	for i, s := range scored {
		articles[i] = s.Article
	}
	return articles, nil
}

type vectorSearcher struct {
	embedder  Embedder
	index     Index
	detector  *Detector
	threshold float64
}

func (v *vectorSearcher) Search(ctx context.Context, query string, maxResults int) ([]kb.Article, error) {
	embedding, err := v.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	limit := maxResults
	if limit < candidateFloor {
		limit = candidateFloor
	}

	results, err := v.index.SimilaritySearch(ctx, embedding, v.threshold, limit, v.detector.Detect(query))
	if err != nil {
		return nil, err
	}

	if len(results) > maxResults {
		results = results[:maxResults]
	}

	// Similarity is dropped at this boundary; order is already descending.
	articles := make([]kb.Article, len(results))
	for i, r := range results {
		articles[i] = r.Article
	}
	return articles, nil
}

package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/pgvector/pgvector-go"

	"github.com/slabbot/slabbot/internal/kb"
)

// maxRPCResponseBytes caps the similarity RPC response body.
const maxRPCResponseBytes = 16 << 20

// Index calls the backing store's similarity-search RPC. The store owns
// the index itself; this client only speaks the call contract: a query
// embedding, a similarity threshold, a result cap, and an optional product
// filter in, ordered rows with a similarity per article out.
type Index struct {
	url    string
	apiKey string
	client *http.Client
	logger *slog.Logger
}

// NewIndex builds an RPC client for the similarity search at url. The API
// key is sent both as the store's apikey header and as a bearer token.
func NewIndex(url, apiKey string, client *http.Client, logger *slog.Logger) *Index {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Index{url: url, apiKey: apiKey, client: client, logger: logger}
}

// rpcRequest is the similarity RPC payload. The embedding travels as a
// bracketed comma-separated string, the store's wire form for vectors.
type rpcRequest struct {
	QueryEmbedding string  `json:"query_embedding"`
	MatchThreshold float64 `json:"match_threshold"`
	MatchCount     int     `json:"match_count"`
	ProductFilter  *string `json:"product_filter"`
}

// rpcRow is one result row: the article plus its cosine similarity.
type rpcRow struct {
	ID         string  `json:"id"`
	URL        string  `json:"url"`
	Title      string  `json:"title"`
	Category   string  `json:"category"`
	Content    string  `json:"content"`
	Similarity float64 `json:"similarity"`
}

// SimilaritySearch returns up to limit articles with cosine similarity of
// at least threshold, ordered by descending similarity. An empty
// productFilter sends null, meaning no category restriction. Failures wrap
// ErrRetrieval.
func (x *Index) SimilaritySearch(ctx context.Context, embedding []float32, threshold float64, limit int, productFilter string) ([]kb.ScoredArticle, error) {
	payload := rpcRequest{
		QueryEmbedding: pgvector.NewVector(embedding).String(),
		MatchThreshold: threshold,
		MatchCount:     limit,
	}
	if productFilter != "" {
		payload.ProductFilter = &productFilter
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: encode rpc request: %w", ErrRetrieval, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, x.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: build rpc request: %w", ErrRetrieval, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if x.apiKey != "" {
		req.Header.Set("apikey", x.apiKey)
		req.Header.Set("Authorization", "Bearer "+x.apiKey)
	}

	resp, err := x.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: rpc request: %w", ErrRetrieval, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: rpc returned %d", ErrRetrieval, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxRPCResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read rpc response: %w", ErrRetrieval, err)
	}

	var rows []rpcRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("%w: decode rpc response: %w", ErrRetrieval, err)
	}

	results := make([]kb.ScoredArticle, len(rows))
	for i, row := range rows {
		results[i] = kb.ScoredArticle{
			Article: kb.Article{
				ID:       row.ID,
				URL:      row.URL,
				Title:    row.Title,
				Category: row.Category,
				Content:  row.Content,
			},
			Score: row.Similarity,
		}
	}

	x.logger.Debug("similarity search complete", "rows", len(results), "threshold", threshold, "limit", limit)
	return results, nil
}

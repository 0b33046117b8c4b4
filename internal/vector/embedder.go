// Package vector implements the similarity-search side of retrieval: a
// remote embedding client, a single-flight lazy cell around embedder
// construction, and an HTTP client for the store's similarity RPC.
package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// embeddingDim is the fixed output dimension of the embedding model. The
// write path that populated the index uses the same model, pooling, and
// normalization; a query-time mismatch degrades every similarity score
// silently, so the dimension is the one thing we can check.
const embeddingDim = 384

// maxEmbedResponseBytes caps the embed endpoint response body.
const maxEmbedResponseBytes = 1 << 20

// Embedder converts text into a fixed-length normalized vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Remote calls an embedding endpoint over HTTP. The wire contract is
// {"input": text} in, {"embedding": [...]} out.
type Remote struct {
	url    string
	apiKey string
	client *http.Client
	logger *slog.Logger
}

// NewRemote builds a Remote embedder. A nil client gets a 30s-timeout
// default; a nil logger falls back to slog.Default.
func NewRemote(url, apiKey string, client *http.Client, logger *slog.Logger) *Remote {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Remote{url: url, apiKey: apiKey, client: client, logger: logger}
}

type embedRequest struct {
	Input string `json:"input"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed returns the embedding for text. Failures wrap ErrRetrieval.
func (r *Remote) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embedRequest{Input: text})
	if err != nil {
		return nil, fmt.Errorf("%w: encode embed request: %w", ErrRetrieval, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: build embed request: %w", ErrRetrieval, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: embed request: %w", ErrRetrieval, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: embed endpoint returned %d", ErrRetrieval, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxEmbedResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read embed response: %w", ErrRetrieval, err)
	}

	var out embedResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%w: decode embed response: %w", ErrRetrieval, err)
	}
	if len(out.Embedding) != embeddingDim {
		return nil, fmt.Errorf("%w: embedding has %d dimensions, want %d", ErrRetrieval, len(out.Embedding), embeddingDim)
	}

	r.logger.Debug("embedded query", "text_len", len(text))
	return out.Embedding, nil
}

// Lazy defers embedder construction to first use and memoizes the result
// for the process lifetime. Concurrent first callers share one in-flight
// construction; a failed construction is not cached, so a later call may
// try again.
type Lazy struct {
	factory func(ctx context.Context) (Embedder, error)
	group   singleflight.Group
	cached  atomic.Pointer[Embedder]
}

// NewLazy wraps factory in a single-flight lazy cell.
func NewLazy(factory func(ctx context.Context) (Embedder, error)) *Lazy {
	return &Lazy{factory: factory}
}

// Embed initializes the underlying embedder on first use, then delegates.
func (l *Lazy) Embed(ctx context.Context, text string) ([]float32, error) {
	e, err := l.get(ctx)
	if err != nil {
		return nil, err
	}
	return e.Embed(ctx, text)
}

func (l *Lazy) get(ctx context.Context) (Embedder, error) {
	if e := l.cached.Load(); e != nil {
		return *e, nil
	}

	v, err, _ := l.group.Do("embedder", func() (any, error) {
		if e := l.cached.Load(); e != nil {
			return *e, nil
		}
		e, err := l.factory(ctx)
		if err != nil {
			return nil, err
		}
		l.cached.Store(&e)
		return e, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Embedder), nil
}

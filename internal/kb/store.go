package kb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// ErrLoad indicates the KB document could not be fetched or parsed. It is
// fatal to the retrieval that triggered the load and propagates unchanged;
// the store never retries on its own.
var ErrLoad = errors.New("kb load failed")

// maxDocumentBytes bounds the KB document read. The production KB is a few
// megabytes; anything past this is a misconfigured URL, not a bigger KB.
const maxDocumentBytes = 64 << 20

// Store fetches and caches the knowledge-base document.
//
// The snapshot is loaded lazily on first use. Concurrent first callers share
// a single in-flight load (single-flight); once a load succeeds the snapshot
// is cached for the remainder of the process and never refetched. A failed
// load is reported to every waiter and is not cached, so a later call may
// attempt the load again — whether to do so is the caller's policy.
//
// Store is safe for concurrent use.
type Store struct {
	url    string
	client *http.Client
	logger *slog.Logger

	group    singleflight.Group
	snapshot atomic.Pointer[Snapshot]
}

// NewStore creates a store reading the KB document from url.
// A nil client uses http.DefaultClient; a nil logger uses slog.Default().
func NewStore(url string, client *http.Client, logger *slog.Logger) *Store {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{url: url, client: client, logger: logger}
}

// Load returns the cached snapshot, fetching it on first use.
func (s *Store) Load(ctx context.Context) (*Snapshot, error) {
	if snap := s.snapshot.Load(); snap != nil {
		return snap, nil
	}

	v, err, _ := s.group.Do("kb", func() (any, error) {
		// Double-check: another flight may have completed between the
		// fast-path read and joining this group.
		if snap := s.snapshot.Load(); snap != nil {
			return snap, nil
		}
		snap, err := s.fetch(ctx)
		if err != nil {
			return nil, err
		}
		s.snapshot.Store(snap)
		return snap, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Snapshot), nil
}

// rawSnapshot separates the articles field so a missing or null field can be
// told apart from an empty array.
type rawSnapshot struct {
	ScrapedAt     string          `json:"scraped_at"`
	TotalArticles int             `json:"total_articles"`
	Categories    []string        `json:"categories"`
	Articles      json.RawMessage `json:"articles"`
}

func (s *Store) fetch(ctx context.Context) (*Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %v", ErrLoad, err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching %s: %v", ErrLoad, s.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d from %s", ErrLoad, resp.StatusCode, s.url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", ErrLoad, err)
	}

	var raw rawSnapshot
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: parsing document: %v", ErrLoad, err)
	}
	if len(raw.Articles) == 0 || string(raw.Articles) == "null" {
		return nil, fmt.Errorf("%w: document has no articles field", ErrLoad)
	}

	var articles []Article
	if err := json.Unmarshal(raw.Articles, &articles); err != nil {
		return nil, fmt.Errorf("%w: articles is not an array: %v", ErrLoad, err)
	}

	seen := make(map[string]struct{}, len(articles))
	for _, a := range articles {
		if _, dup := seen[a.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate article id %q", ErrLoad, a.ID)
		}
		seen[a.ID] = struct{}{}
	}

	if raw.TotalArticles != len(articles) {
		s.logger.Warn("kb document count mismatch, using actual article count",
			"declared", raw.TotalArticles, "actual", len(articles))
	}

	snap := &Snapshot{
		ScrapedAt:     raw.ScrapedAt,
		TotalArticles: len(articles),
		Categories:    raw.Categories,
		Articles:      articles,
	}

	s.logger.Info("kb loaded",
		"articles", snap.TotalArticles,
		"categories", len(snap.Categories),
		"scraped_at", snap.ScrapedAt)

	return snap, nil
}

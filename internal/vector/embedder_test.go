package vector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
)

func embedHandler(t *testing.T, dim int) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		var req struct {
			Input string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Input == "" {
			t.Error("request input is empty")
		}
		vec := make([]float32, dim)
		for i := range vec {
			vec[i] = float32(i) * 0.001
		}
		if err := json.NewEncoder(w).Encode(map[string]any{"embedding": vec}); err != nil {
			t.Errorf("encode response: %v", err)
		}
	}
}

func TestRemote_Embed(t *testing.T) {
	srv := httptest.NewServer(embedHandler(t, embeddingDim))
	defer srv.Close()

	r := NewRemote(srv.URL, "", srv.Client(), nil)
	got, err := r.Embed(context.Background(), "how do I print a quote")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(got) != embeddingDim {
		t.Errorf("embedding len = %d, want %d", len(got), embeddingDim)
	}
}

func TestRemote_SendsBearerToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		embedHandler(t, embeddingDim)(w, r)
	}))
	defer srv.Close()

	r := NewRemote(srv.URL, "secret-key", srv.Client(), nil)
	if _, err := r.Embed(context.Background(), "hello there"); err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if gotAuth != "Bearer secret-key" {
		t.Errorf("Authorization = %q, want bearer token", gotAuth)
	}
}

func TestRemote_WrongDimension(t *testing.T) {
	srv := httptest.NewServer(embedHandler(t, 128))
	defer srv.Close()

	r := NewRemote(srv.URL, "", srv.Client(), nil)
	_, err := r.Embed(context.Background(), "hello")
	if !errors.Is(err, ErrRetrieval) {
		t.Errorf("err = %v, want ErrRetrieval", err)
	}
}

func TestRemote_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "backend down", http.StatusBadGateway)
	}))
	defer srv.Close()

	r := NewRemote(srv.URL, "", srv.Client(), nil)
	_, err := r.Embed(context.Background(), "hello")
	if !errors.Is(err, ErrRetrieval) {
		t.Errorf("err = %v, want ErrRetrieval", err)
	}
}

func TestRemote_MalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "not json at all")
	}))
	defer srv.Close()

	r := NewRemote(srv.URL, "", srv.Client(), nil)
	_, err := r.Embed(context.Background(), "hello")
	if !errors.Is(err, ErrRetrieval) {
		t.Errorf("err = %v, want ErrRetrieval", err)
	}
}

type fixedEmbedder struct {
	vec []float32
}

func (f *fixedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return f.vec, nil
}

func TestLazy_SingleInitialization(t *testing.T) {
	var inits atomic.Int32
	release := make(chan struct{})
	lazy := NewLazy(func(ctx context.Context) (Embedder, error) {
		inits.Add(1)
		<-release
		return &fixedEmbedder{vec: []float32{1, 2, 3}}, nil
	})

	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = lazy.Embed(context.Background(), "q")
		}()
	}
	close(release)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("caller %d: %v", i, err)
		}
	}
	if got := inits.Load(); got != 1 {
		t.Errorf("factory ran %d times, want 1", got)
	}

	// Subsequent calls read the cached embedder without the factory.
	if _, err := lazy.Embed(context.Background(), "again"); err != nil {
		t.Fatalf("cached Embed: %v", err)
	}
	if got := inits.Load(); got != 1 {
		t.Errorf("factory ran %d times after cache, want 1", got)
	}
}

func TestLazy_FailedInitNotCached(t *testing.T) {
	var inits atomic.Int32
	lazy := NewLazy(func(ctx context.Context) (Embedder, error) {
		if inits.Add(1) == 1 {
			return nil, errors.New("transient")
		}
		return &fixedEmbedder{vec: []float32{1}}, nil
	})

	if _, err := lazy.Embed(context.Background(), "q"); err == nil {
		t.Fatal("expected first call to fail")
	}
	if _, err := lazy.Embed(context.Background(), "q"); err != nil {
		t.Fatalf("second call: %v", err)
	}
	if got := inits.Load(); got != 2 {
		t.Errorf("factory ran %d times, want 2", got)
	}
}

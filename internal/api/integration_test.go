package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/slabbot/slabbot/internal/chat"
	"github.com/slabbot/slabbot/internal/kb"
	"github.com/slabbot/slabbot/internal/relay"
	"github.com/slabbot/slabbot/internal/search"
	"github.com/slabbot/slabbot/internal/testutil"
)

// TestChatPipeline wires the real pipeline: KB store, lexical engine, chat
// service, and relay, against scripted collaborators, and checks the SSE
// stream a client would see.
func TestChatPipeline(t *testing.T) {
	kbSrv := testutil.KBServer(t, testutil.Articles())
	upstream := testutil.NewStreamServer(t, []string{
		testutil.DeltaFrame("Open the quote "),
		testutil.DeltaFrame("and choose print."),
		testutil.DoneFrame,
	})

	logger := testutil.DiscardLogger()
	store := kb.NewStore(kbSrv.URL, kbSrv.Client(), logger)
	engine := search.NewLexicalEngine(store, search.NewDetector(nil), logger)
	svc := chat.NewService(engine, relay.New(upstream.URL, upstream.Client(), logger), chat.Options{
		SystemPrompt: "answer from the articles",
		MaxResults:   10,
	}, logger)

	srv, err := NewServer(ServerConfig{
		Logger:   logger,
		Answerer: svc,
		Ready:    func(ctx context.Context) error { _, err := store.Load(ctx); return err },
	})
	require.NoError(t, err)

	body := `{"messages":[{"role":"user","content":"how do I print a quote?"}]}`
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	srv.Handler().ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)

	events := testutil.ParseSSEEvents(t, w.Body.String())
	chunks := testutil.FindAllEvents(events, EventChunk)
	require.Len(t, chunks, 2)
	assert.Equal(t, "Open the quote ", gjson.Get(chunks[0].Data, "text").String())
	assert.Equal(t, "and choose print.", gjson.Get(chunks[1].Data, "text").String())
	require.NotNil(t, testutil.FindEvent(events, EventDone))

	// The upstream saw the retrieved article folded into the last user
	// message, not a bare question.
	require.Len(t, upstream.Bodies, 1)
	sent := gjson.GetBytes(upstream.Bodies[0], "messages.0.content").String()
	assert.Contains(t, sent, "Print a Quote")
	assert.Contains(t, sent, "USER QUESTION: how do I print a quote?")
	assert.Equal(t, "answer from the articles", gjson.GetBytes(upstream.Bodies[0], "system").String())
}

// TestChatPipeline_KBDownStillAnswers verifies retrieval failure degrades
// to an uncontextualized answer instead of failing the turn.
func TestChatPipeline_KBDownStillAnswers(t *testing.T) {
	kbSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	t.Cleanup(kbSrv.Close)
	upstream := testutil.NewStreamServer(t, []string{
		testutil.DeltaFrame("Sorry, I can't check the docs right now."),
		testutil.DoneFrame,
	})

	logger := testutil.DiscardLogger()
	store := kb.NewStore(kbSrv.URL, kbSrv.Client(), logger)
	engine := search.NewLexicalEngine(store, search.NewDetector(nil), logger)
	svc := chat.NewService(engine, relay.New(upstream.URL, upstream.Client(), logger), chat.Options{MaxResults: 10}, logger)

	srv, err := NewServer(ServerConfig{Logger: logger, Answerer: svc})
	require.NoError(t, err)

	body := `{"messages":[{"role":"user","content":"how do I print a quote?"}]}`
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, w.Code)

	events := testutil.ParseSSEEvents(t, w.Body.String())
	require.Len(t, testutil.FindAllEvents(events, EventChunk), 1)

	// The question went upstream untouched.
	require.Len(t, upstream.Bodies, 1)
	assert.Equal(t, "how do I print a quote?",
		gjson.GetBytes(upstream.Bodies[0], "messages.0.content").String())
}

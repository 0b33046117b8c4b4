package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// DeltaFrame builds one wire frame carrying a content delta.
func DeltaFrame(text string) string {
	b, _ := json.Marshal(map[string]any{
		"type":  "content_block_delta",
		"delta": map[string]string{"text": text},
	})
	return "data: " + string(b) + "\n"
}

// DoneFrame is the end-of-stream sentinel frame.
const DoneFrame = "data: [DONE]\n"

// StreamServer plays back the given chunks as a chunked answer stream,
// flushing after each one so chunk boundaries survive to the client. It
// records every request body it receives. The server closes with the test.
type StreamServer struct {
	*httptest.Server

	// Bodies holds the raw request bodies in arrival order. Read only
	// after all requests have completed.
	Bodies []json.RawMessage
}

// NewStreamServer starts a StreamServer for the given chunks.
func NewStreamServer(t *testing.T, chunks []string) *StreamServer {
	t.Helper()

	s := &StreamServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body json.RawMessage
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
			s.Bodies = append(s.Bodies, body)
		}

		w.Header().Set("Content-Type", "text/event-stream")
		f, ok := w.(http.Flusher)
		if !ok {
			t.Error("response writer is not a flusher")
			return
		}
		for _, c := range chunks {
			if _, err := w.Write([]byte(c)); err != nil {
				return
			}
			f.Flush()
		}
	}))
	t.Cleanup(s.Server.Close)
	return s
}

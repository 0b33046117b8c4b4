package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/slabbot/slabbot/internal/relay"
)

// SSE event types sent to the client.
const (
	EventChunk = "chunk"
	EventDone  = "done"
	EventError = "error"
)

// maxChatRequestBytes caps the inbound conversation payload.
const maxChatRequestBytes = 1 << 20

// Answerer produces one streamed answer turn. Implemented by
// *chat.Service.
type Answerer interface {
	Answer(ctx context.Context, messages []relay.Message, onDelta func(text string)) error
}

// ChatRequest is the POST /api/chat payload.
type ChatRequest struct {
	Messages []relay.Message `json:"messages"`
}

// ChunkPayload carries one answer delta.
type ChunkPayload struct {
	Text string `json:"text"`
}

// chatHandler streams answer turns over SSE.
type chatHandler struct {
	answerer Answerer
	logger   *slog.Logger
}

// stream handles POST /api/chat. The response is an SSE stream of chunk
// events followed by done, or an error event if the turn fails. Errors
// after the first chunk can only arrive in-band since headers are out.
func (h *chatHandler) stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	var req ChatRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxChatRequestBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "invalid request body", h.logger)
		return
	}
	if len(req.Messages) == 0 {
		WriteError(w, http.StatusBadRequest, "invalid_request", "messages are required", h.logger)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	chunks := 0
	err := h.answerer.Answer(r.Context(), req.Messages, func(text string) {
		chunks++
		_ = writeEvent(w, flusher, EventChunk, ChunkPayload{Text: text})
	})
	if err != nil {
		h.logger.Warn("answer turn failed",
			"error", err,
			"chunks", chunks,
			"request_id", requestIDFromContext(r.Context()),
		)

		// Before the first chunk nothing has been written, so the failure
		// can still travel as a plain HTTP status. Mid-stream it can only
		// go in-band.
		if chunks == 0 {
			body := errorPayload(err)
			WriteError(w, errorStatus(err), body.Code, body.Message, h.logger)
			return
		}
		_ = writeEvent(w, flusher, EventError, errorPayload(err))
		return
	}

	_ = writeEvent(w, flusher, EventDone, map[string]int{"chunks": chunks})
	h.logger.Debug("answer stream completed",
		"chunks", chunks,
		"request_id", requestIDFromContext(r.Context()),
	)
}

// errorStatus maps turn failures to HTTP statuses for pre-stream errors.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, relay.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, relay.ErrTransport):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// errorPayload maps turn failures to stable client-facing codes.
func errorPayload(err error) ErrorBody {
	code := "stream_error"
	message := "answer generation failed"

	switch {
	case errors.Is(err, relay.ErrRateLimited):
		code = "rate_limited"
		message = "rate limit reached, please try again in a moment"
	case errors.Is(err, relay.ErrTransport):
		code = "transport_error"
		message = "upstream request failed"
	case errors.Is(err, context.Canceled):
		code = "canceled"
		message = "request canceled"
	}

	return ErrorBody{Code: code, Message: message}
}

// writeEvent writes one SSE event: "event: <type>\ndata: <json>\n\n".
func writeEvent[T any](w io.Writer, flusher http.Flusher, event string, data T) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData); err != nil {
		return fmt.Errorf("write event: %w", err)
	}

	flusher.Flush()
	return nil
}

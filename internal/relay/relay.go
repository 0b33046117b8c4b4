// Package relay forwards a conversation to the answer-generation endpoint
// and decodes its chunked event stream into ordered text deltas.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("slabbot/relay")

// ErrTransport marks a fatal transport failure: request construction, the
// HTTP round trip, a non-2xx status, or a missing response body.
var ErrTransport = errors.New("relay transport failed")

// ErrRateLimited marks an upstream 429. Callers render a specific
// try-again message for it, so it is distinct from ErrTransport.
var ErrRateLimited = errors.New("relay rate limited")

// dataPrefix starts every payload-carrying frame on the wire.
const dataPrefix = "data: "

// doneSentinel is the end-of-stream payload. It is recognized and ignored,
// never treated as a parse failure.
const doneSentinel = "[DONE]"

// readChunkSize is the transport read granularity. Frames routinely span
// chunk boundaries; the decoder carries the partial tail across reads.
const readChunkSize = 4096

// Message is one turn of the conversation. The relay holds no conversation
// state across calls; the caller owns the history.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is the payload posted to the answer endpoint.
type Request struct {
	Messages    []Message `json:"messages"`
	System      string    `json:"system"`
	Temperature float64   `json:"temperature"`
}

// Relay streams answers from a fixed endpoint. Safe for concurrent use;
// each Stream call is independent.
type Relay struct {
	endpoint string
	client   *http.Client
	logger   *slog.Logger
}

// New builds a Relay for endpoint. A nil client gets a default with no
// overall timeout, since answer streams legitimately run for minutes;
// cancellation comes from the caller's context.
func New(endpoint string, client *http.Client, logger *slog.Logger) *Relay {
	if client == nil {
		client = &http.Client{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{endpoint: endpoint, client: client, logger: logger}
}

// Stream posts req and invokes onDelta for every content delta, in the
// exact order frames arrive. It returns nil once the stream ends, whether
// by the done sentinel or by connection close. Cancelling ctx stops the
// read promptly and releases the connection.
func (r *Relay) Stream(ctx context.Context, req Request, onDelta func(text string)) (err error) {
	ctx, span := tracer.Start(ctx, "relay.stream")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "stream failed")
		}
		span.End()
	}()

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("%w: encode request: %w", ErrTransport, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: build request: %w", ErrTransport, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	start := time.Now()
	resp, err := r.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: status 429", ErrRateLimited)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: status %d", ErrTransport, resp.StatusCode)
	}
	if resp.Body == nil || resp.Body == http.NoBody {
		return fmt.Errorf("%w: no response body", ErrTransport)
	}

	dec := &decoder{onDelta: onDelta, logger: r.logger}
	chunk := make([]byte, readChunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %w", ErrTransport, err)
		}

		n, err := resp.Body.Read(chunk)
		if n > 0 {
			dec.feed(chunk[:n])
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return fmt.Errorf("%w: %w", ErrTransport, ctxErr)
			}
			return fmt.Errorf("%w: read stream: %w", ErrTransport, err)
		}
	}
	dec.finish()

	span.SetAttributes(
		attribute.Int("relay.deltas", dec.deltas),
		attribute.Int("relay.skipped", dec.skipped),
	)
	r.logger.Debug("relay stream complete",
		"deltas", dec.deltas,
		"skipped", dec.skipped,
		"elapsed", time.Since(start))
	return nil
}

// decoder reassembles newline-delimited frames from arbitrary byte chunks.
// carry holds the trailing partial line between feeds; it is parsed one
// last time at stream end as a best-effort final frame.
type decoder struct {
	carry   []byte
	onDelta func(text string)
	logger  *slog.Logger

	deltas  int
	skipped int
}

func (d *decoder) feed(p []byte) {
	d.carry = append(d.carry, p...)

	for {
		i := bytes.IndexByte(d.carry, '\n')
		if i < 0 {
			return
		}
		line := string(d.carry[:i])
		d.carry = d.carry[i+1:]
		d.dispatch(line)
	}
}

// finish drains the trailing partial line. Called exactly once, after the
// last feed.
func (d *decoder) finish() {
	if len(d.carry) == 0 {
		return
	}
	line := string(d.carry)
	d.carry = nil
	d.dispatch(line)
}

// dispatch handles one complete frame line. Deltas go out in frame order;
// malformed payloads are logged and skipped so the stream keeps flowing.
func (d *decoder) dispatch(line string) {
	line = strings.TrimSpace(line)
	if line == "" || !strings.HasPrefix(line, dataPrefix) {
		return
	}

	payload := strings.TrimSpace(line[len(dataPrefix):])
	if payload == "" || payload == doneSentinel {
		return
	}

	if !gjson.Valid(payload) {
		d.skipped++
		d.logger.Warn("skipping malformed stream frame", "payload_len", len(payload))
		return
	}

	frame := gjson.Parse(payload)
	if frame.Get("type").String() != "content_block_delta" {
		return
	}
	if text := frame.Get("delta.text").String(); text != "" {
		d.deltas++
		d.onDelta(text)
	}
}

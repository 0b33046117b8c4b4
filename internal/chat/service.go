// Package chat orchestrates one answer turn: find the last user message,
// retrieve supporting articles, fold them into the conversation, and relay
// the upstream answer stream to the caller.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/slabbot/slabbot/internal/kb"
	"github.com/slabbot/slabbot/internal/relay"
	"github.com/slabbot/slabbot/internal/search"
)

// RoleUser and RoleAssistant are the two conversation roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// contextTemplate folds retrieved articles into the last user message. The
// upstream may drop the system field, so grounding travels inside the
// message where the model always sees it.
const contextTemplate = `Use ONLY these support articles to answer. NO generic tutorials, NO numbered lists, NO headers.

%s

USER QUESTION: %s

ANSWER RULES: 2-4 sentences max. Article content only.`

// Retriever ranks KB articles for a query. Implemented by *search.Engine.
type Retriever interface {
	Search(ctx context.Context, query string, maxResults int) ([]kb.Article, error)
}

// Streamer relays a conversation upstream and hands back text deltas.
// Implemented by *relay.Relay.
type Streamer interface {
	Stream(ctx context.Context, req relay.Request, onDelta func(text string)) error
}

// Options tunes a Service beyond its collaborators.
type Options struct {
	SystemPrompt string
	Temperature  float64
	MaxResults   int

	// Fallback, when set, answers retrieval if the primary retriever
	// fails. Typically a lexical engine behind a vector primary.
	Fallback Retriever
}

// Service answers one conversation turn at a time. It holds no
// conversation state; the caller owns the history.
type Service struct {
	retriever Retriever
	fallback  Retriever
	streamer  Streamer
	opts      Options
	logger    *slog.Logger
}

// NewService wires a Service. retriever and streamer are required.
func NewService(retriever Retriever, streamer Streamer, opts Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		retriever: retriever,
		fallback:  opts.Fallback,
		streamer:  streamer,
		opts:      opts,
		logger:    logger,
	}
}

// Answer retrieves context for the last user message, injects it into the
// outbound conversation, and streams the upstream answer through onDelta.
// Retrieval failure degrades to an uncontextualized answer; relay failure
// is fatal and propagates unchanged in kind.
func (s *Service) Answer(ctx context.Context, messages []relay.Message, onDelta func(text string)) error {
	outbound := filterEmpty(messages)
	if len(outbound) == 0 {
		return fmt.Errorf("conversation has no non-empty messages")
	}

	kbContext := s.retrieveContext(ctx, lastUserContent(outbound))

	last := len(outbound) - 1
	if kbContext != "" && outbound[last].Role == RoleUser {
		outbound[last].Content = fmt.Sprintf(contextTemplate, kbContext, outbound[last].Content)
	}

	return s.streamer.Stream(ctx, relay.Request{
		Messages:    outbound,
		System:      s.opts.SystemPrompt,
		Temperature: s.opts.Temperature,
	}, onDelta)
}

// retrieveContext builds the grounding block for query, or returns "" when
// there is nothing to ground on. A failed retrieval is logged, optionally
// retried on the fallback retriever, and never aborts the turn.
func (s *Service) retrieveContext(ctx context.Context, query string) string {
	if query == "" {
		return ""
	}

	articles, err := s.retriever.Search(ctx, query, s.opts.MaxResults)
	if err != nil && s.fallback != nil {
		s.logger.Warn("retrieval failed, retrying on fallback", "error", err)
		articles, err = s.fallback.Search(ctx, query, s.opts.MaxResults)
	}
	if err != nil {
		s.logger.Warn("retrieval failed, answering without context", "error", err)
		return ""
	}

	if len(articles) == 0 {
		return ""
	}
	s.logger.Debug("retrieved context articles", "count", len(articles))
	return search.BuildContext(articles)
}

// filterEmpty drops messages whose content is blank. The upstream rejects
// empty content blocks, and they carry no signal anyway.
func filterEmpty(messages []relay.Message) []relay.Message {
	out := make([]relay.Message, 0, len(messages))
	for _, m := range messages {
		if strings.TrimSpace(m.Content) != "" {
			out = append(out, m)
		}
	}
	return out
}

// lastUserContent returns the content of the most recent user message, or
// "" if the conversation has none.
func lastUserContent(messages []relay.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			return messages[i].Content
		}
	}
	return ""
}

package cmd

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/slabbot/slabbot/internal/chat"
	"github.com/slabbot/slabbot/internal/config"
	"github.com/slabbot/slabbot/internal/kb"
	"github.com/slabbot/slabbot/internal/log"
	"github.com/slabbot/slabbot/internal/relay"
	"github.com/slabbot/slabbot/internal/search"
	"github.com/slabbot/slabbot/internal/vector"
)

// httpClientTimeout bounds the KB, embed, and RPC round trips. The relay
// gets its own client without an overall timeout since answer streams run
// long.
const httpClientTimeout = 30 * time.Second

// app holds the wired components shared by the commands.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *kb.Store
	engine  *search.Engine
	service *chat.Service
}

// buildApp loads configuration and wires the retrieval and relay stack.
func buildApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := log.New(log.Config{Level: parseLevel(cfg.LogLevel), JSON: cfg.LogJSON})
	slog.SetDefault(logger)

	client := &http.Client{Timeout: httpClientTimeout}
	store := kb.NewStore(cfg.KBURL, client, logger)
	detector := search.NewDetector(cfg.Search.ProductKeywords)

	lexical := search.NewLexicalEngine(store, detector, logger)

	engine := lexical
	var fallback chat.Retriever
	if cfg.Search.Mode == config.ModeVector {
		embedder := vector.NewLazy(func(ctx context.Context) (vector.Embedder, error) {
			return vector.NewRemote(cfg.Vector.EmbedURL, cfg.Vector.APIKey, client, logger), nil
		})
		index := vector.NewIndex(cfg.Vector.RPCURL, cfg.Vector.APIKey, client, logger)
		engine = search.NewVectorEngine(embedder, index, detector, cfg.Search.MatchThreshold, logger)

		if cfg.Search.LexicalFallback {
			fallback = lexical
		}
	}

	service := chat.NewService(engine, relay.New(cfg.Chat.Endpoint, nil, logger), chat.Options{
		SystemPrompt: cfg.Chat.SystemPrompt,
		Temperature:  cfg.Chat.Temperature,
		MaxResults:   cfg.Search.MaxResults,
		Fallback:     fallback,
	}, logger)

	return &app{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		engine:  engine,
		service: service,
	}, nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

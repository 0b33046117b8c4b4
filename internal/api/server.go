// Package api is the HTTP surface: the SSE chat endpoint, health probes,
// and the middleware stack around them.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
)

// ServerConfig wires the API server.
type ServerConfig struct {
	Logger *slog.Logger

	// Answerer handles chat turns. Required.
	Answerer Answerer

	// Ready reports whether the service can ground answers, typically the
	// KB store's load. Optional: nil makes /ready mirror /health.
	Ready func(ctx context.Context) error

	// RateLimit is tokens refilled per second per IP; RateBurst the
	// initial allowance. Zero values get conservative defaults.
	RateLimit  float64
	RateBurst  int
	TrustProxy bool
}

// Server is the HTTP server for the chat API.
type Server struct {
	mux *http.ServeMux
}

// NewServer builds the server with all routes and middleware configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Answerer == nil {
		return nil, errors.New("answerer is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ch := &chatHandler{answerer: cfg.Answerer, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat", ch.stream)

	limit := cfg.RateLimit
	if limit <= 0 {
		limit = 2.0
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 5
	}
	rl := newRateLimiter(limit, burst)

	// Middleware stack, outermost first:
	//   Recovery → RequestID → Logging → RateLimit → Routes
	// RequestID sits above Logging so request_id lands in log attributes.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setSecurityHeaders(w)
		handler.ServeHTTP(w, r)
	})

	// Health probes stay outside the middleware stack so rate limiting
	// never starves them.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health)
	topMux.Handle("GET /ready", readiness(cfg.Ready))
	topMux.Handle("/", final)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

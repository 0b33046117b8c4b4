package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/slabbot/slabbot/internal/api"
	"github.com/slabbot/slabbot/internal/kb"
	"github.com/slabbot/slabbot/internal/observability"
)

// Server timeout configuration.
const (
	readHeaderTimeout = 10 * time.Second
	readTimeout       = 30 * time.Second
	writeTimeout      = 5 * time.Minute // SSE streaming needs a long timeout
	idleTimeout       = 2 * time.Minute
	shutdownTimeout   = 30 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe() error {
	a, err := buildApp()
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a.logger.Info("starting HTTP API server", "version", AppVersion)

	if a.cfg.Tracing.Enabled {
		shutdown, err := observability.Setup(ctx, observability.Config{
			AgentHost:   a.cfg.Tracing.AgentHost,
			Environment: a.cfg.Tracing.Environment,
			ServiceName: a.cfg.Tracing.ServiceName,
		}, a.logger)
		if err != nil {
			return fmt.Errorf("setting up tracing: %w", err)
		}
		defer func() {
			flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer flushCancel()
			if err := shutdown(flushCtx); err != nil {
				a.logger.Warn("flushing traces", "error", err)
			}
		}()
	}

	apiServer, err := api.NewServer(api.ServerConfig{
		Logger:   a.logger,
		Answerer: a.service,
		Ready: func(ctx context.Context) error {
			_, err := a.store.Load(ctx)
			return err
		},
		RateLimit:  a.cfg.Server.RateLimit,
		RateBurst:  a.cfg.Server.RateBurst,
		TrustProxy: a.cfg.Server.TrustProxy,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	srv := &http.Server{
		Addr:              a.cfg.Server.Addr,
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	// Warm the KB cache so the first chat turn doesn't pay the load.
	// Failure is non-fatal: the store retries on the next caller.
	if _, err := a.store.Load(ctx); err != nil {
		if errors.Is(err, kb.ErrLoad) {
			a.logger.Warn("KB warmup failed, will retry on first request", "error", err)
		}
	}

	a.logger.Info("HTTP server ready",
		"addr", a.cfg.Server.Addr,
		"api", "/api/chat",
		"health", "/health, /ready",
		"search_mode", a.cfg.Search.Mode,
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutting down HTTP server")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down server: %w", err)
		}
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("HTTP server: %w", err)
	}
}

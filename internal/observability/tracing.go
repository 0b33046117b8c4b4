// Package observability provides OpenTelemetry tracing setup.
//
// Traces are exported over OTLP HTTP to a local collector agent (default
// localhost:4318), which handles authentication and forwarding to the
// backend. The agent buffers and retries locally, so the app never needs
// backend credentials.
package observability

import (
	"context"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// DefaultAgentHost is the default collector OTLP HTTP endpoint.
const DefaultAgentHost = "localhost:4318"

// Config for tracing setup.
type Config struct {
	// AgentHost is the collector OTLP endpoint (default: localhost:4318).
	AgentHost string
	// Environment is the deployment environment (dev, staging, prod).
	Environment string
	// ServiceName is the service name shown in the APM backend.
	ServiceName string
}

// Setup installs a global tracer provider exporting to the local collector
// agent. Returns a shutdown function that flushes pending spans. Exporter
// construction failure disables tracing instead of failing startup.
func Setup(ctx context.Context, cfg Config, logger *slog.Logger) (shutdown func(context.Context) error, err error) {
	if logger == nil {
		logger = slog.Default()
	}

	agentHost := cfg.AgentHost
	if agentHost == "" {
		agentHost = DefaultAgentHost
	}
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "slabbot"
	}

	// The default SDK resource reads these, so the service name and
	// environment tag land on every span without a hand-built resource.
	_ = os.Setenv("OTEL_SERVICE_NAME", serviceName)
	if cfg.Environment != "" {
		_ = os.Setenv("OTEL_RESOURCE_ATTRIBUTES", "deployment.environment="+cfg.Environment)
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(agentHost),
		otlptracehttp.WithInsecure(), // localhost doesn't need TLS
	)
	if err != nil {
		logger.Warn("creating trace exporter failed, tracing disabled", "error", err)
		return func(context.Context) error { return nil }, nil
	}

	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(tp)

	// A startup span verifies the export pipeline end to end.
	_, span := tp.Tracer("slabbot-init").Start(ctx, "slabbot.init")
	span.End()

	logger.Debug("tracing enabled",
		"agent", agentHost,
		"service", serviceName,
		"environment", cfg.Environment,
	)

	return tp.Shutdown, nil
}

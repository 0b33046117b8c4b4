package observability

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_DefaultAgentHost(t *testing.T) {
	cfg := Config{
		Environment: "test",
		ServiceName: "test-service",
	}

	ctx := context.Background()
	shutdown, err := Setup(ctx, cfg, slog.New(slog.DiscardHandler))

	require.NoError(t, err)
	require.NotNil(t, shutdown)

	// The startup span is pending; with no agent listening the flush fails,
	// which must not panic or hang.
	_ = shutdown(ctx)
}

func TestSetup_AgentUnavailable_GracefulDegradation(t *testing.T) {
	// Exporter creation succeeds even with no agent listening; spans fail
	// to export silently rather than breaking the app.
	cfg := Config{
		AgentHost:   "localhost:1",
		Environment: "test",
		ServiceName: "graceful-test",
	}

	ctx := context.Background()
	shutdown, err := Setup(ctx, cfg, slog.New(slog.DiscardHandler))

	require.NoError(t, err)
	require.NotNil(t, shutdown)

	_ = shutdown(ctx)
}

func TestSetup_EmptyConfig(t *testing.T) {
	ctx := context.Background()
	shutdown, err := Setup(ctx, Config{}, nil)

	require.NoError(t, err)
	require.NotNil(t, shutdown)

	_ = shutdown(ctx)
}

func TestDefaultAgentHost_Value(t *testing.T) {
	assert.Equal(t, "localhost:4318", DefaultAgentHost)
}

package observability

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetupLoggingLevels(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	SetupLogging(LogConfig{Level: "debug", Format: "text"})
	require.True(t, slog.Default().Enabled(context.Background(), slog.LevelDebug))

	SetupLogging(LogConfig{Level: "error", Format: "json"})
	require.False(t, slog.Default().Enabled(context.Background(), slog.LevelInfo))
	require.True(t, slog.Default().Enabled(context.Background(), slog.LevelError))

	// Unknown level falls back to info.
	SetupLogging(LogConfig{Level: "chatty"})
	require.True(t, slog.Default().Enabled(context.Background(), slog.LevelInfo))
	require.False(t, slog.Default().Enabled(context.Background(), slog.LevelDebug))
}

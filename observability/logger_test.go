package observability_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trailcam/config"
	"trailcam/observability"
)

func TestNewLogger_JSONCarriesRunID(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := observability.NewLogger(&buf, config.LoggingConfig{Level: "debug", Format: "json"})

	ctx := observability.WithRunID(context.Background(), "run-123")
	logger.With("component", "runner").DebugContext(ctx, "frame done", "frame", 4)

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))

	assert.Equal(t, "run-123", record["run_id"])
	assert.Equal(t, "trailcam", record["service"])
	assert.Equal(t, "runner", record["component"])
	assert.InDelta(t, 4, record["frame"], 0)
}

func TestNewLogger_NoRunID(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := observability.NewLogger(&buf, config.LoggingConfig{Level: "info", Format: "json"})
	logger.Info("hello")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.NotContains(t, record, "run_id")
}

func TestNewLogger_LevelFilters(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := observability.NewLogger(&buf, config.LoggingConfig{Level: "warn", Format: "text"})
	logger.Info("hidden")
	assert.Empty(t, buf.String())

	logger.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, slog.LevelDebug, observability.ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, observability.ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, observability.ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, observability.ParseLevel("bogus"))
}

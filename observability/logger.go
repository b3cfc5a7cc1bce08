// Package observability builds the structured logger shared by every component.
package observability

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"trailcam/config"
)

const (
	attrService = "service"
	attrRunID   = "run_id"
)

type runIDKey struct{}

// WithRunID returns a context whose log records carry the run id
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

// RunID returns the run id stored in ctx, if any
func RunID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(runIDKey{}).(string)
	return id, ok && id != ""
}

// RunHandler is an [slog.Handler] that adds the run id found in the record's
// context and the service name to every record.
type RunHandler struct {
	inner slog.Handler
}

// NewRunHandler wraps inner. The service attribute is pre-attached so it stays
// at the top level even when groups are used.
func NewRunHandler(inner slog.Handler, service string) *RunHandler {
	return &RunHandler{
		inner: inner.WithAttrs([]slog.Attr{slog.String(attrService, service)}),
	}
}

// Enabled delegates to the inner handler.
func (rh *RunHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return rh.inner.Enabled(ctx, level)
}

// Handle adds the run id, then delegates.
func (rh *RunHandler) Handle(ctx context.Context, record slog.Record) error {
	if id, ok := RunID(ctx); ok {
		record.AddAttrs(slog.String(attrRunID, id))
	}

	err := rh.inner.Handle(ctx, record)
	if err != nil {
		return fmt.Errorf("run handler: %w", err)
	}

	return nil
}

// WithAttrs returns a new RunHandler with additional attributes on the inner handler.
func (rh *RunHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &RunHandler{inner: rh.inner.WithAttrs(attrs)}
}

// WithGroup returns a new RunHandler with a group prefix on the inner handler.
func (rh *RunHandler) WithGroup(name string) slog.Handler {
	return &RunHandler{inner: rh.inner.WithGroup(name)}
}

// ParseLevel maps a config level name to a slog level. Unknown names yield info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds the logger for cfg writing to w.
func NewLogger(w io.Writer, cfg config.LoggingConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}

	var inner slog.Handler
	if cfg.Format == "json" {
		inner = slog.NewJSONHandler(w, opts)
	} else {
		inner = slog.NewTextHandler(w, opts)
	}

	return slog.New(NewRunHandler(inner, "trailcam"))
}

// Package observability provides logging, metrics, and tracing for seeding runs.
package observability

import (
	"context"
	"log/slog"
	"os"
)

// Logger is the structured logger shared by the seeder packages.
var Logger *slog.Logger

type contextKey string

const (
	runIDKey     contextKey = "run_id"
	userIndexKey contextKey = "user_index"
)

// ctxHandler adds run-scoped values from the context to every record.
type ctxHandler struct {
	slog.Handler
}

func (h *ctxHandler) Handle(ctx context.Context, r slog.Record) error {
	if id, ok := ctx.Value(runIDKey).(string); ok {
		r.AddAttrs(slog.String("run_id", id))
	}
	if idx, ok := ctx.Value(userIndexKey).(int); ok {
		r.AddAttrs(slog.Int("user_index", idx))
	}
	return h.Handler.Handle(ctx, r)
}

func (h *ctxHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ctxHandler{h.Handler.WithAttrs(attrs)}
}

func (h *ctxHandler) WithGroup(name string) slog.Handler {
	return &ctxHandler{h.Handler.WithGroup(name)}
}

func init() {
	var handler slog.Handler
	level := slog.LevelInfo

	if os.Getenv("LOG_FORMAT") == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	} else {
		// Pretty text output for interactive runs
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}

	Logger = NewLogger(handler)
}

// NewLogger wraps handler so that run and user context values are attached.
func NewLogger(handler slog.Handler) *slog.Logger {
	return slog.New(&ctxHandler{handler})
}

// WithRunID returns a context carrying the seeding run identifier.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey, id)
}

// RunID returns the run identifier stored in ctx, if any.
func RunID(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey).(string)
	return id
}

// WithUserIndex returns a context tagged with the index of the user being seeded.
func WithUserIndex(ctx context.Context, index int) context.Context {
	return context.WithValue(ctx, userIndexKey, index)
}

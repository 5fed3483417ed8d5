package logger

import (
	"context"
	"io"
	"log/slog"
	"os"

	"prontoapp/backend/internal/config"
)

// Setup installs the process-wide slog logger.
func Setup(cfg config.Config) {
	slog.SetDefault(slog.New(NewHandler(os.Stdout, cfg)))
}

// NewHandler returns the handler Setup installs, writing to w.
func NewHandler(w io.Writer, cfg config.Config) slog.Handler {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if cfg.IsDevelopment() {
		opts.Level = slog.LevelDebug
	}

	if cfg.IsProduction() {
		return NewContextHandler(slog.NewJSONHandler(w, opts))
	}
	return NewContextHandler(slog.NewTextHandler(w, opts))
}

// ContextHandler adds the LogFields stored in the record's context.
type ContextHandler struct {
	slog.Handler
}

func NewContextHandler(h slog.Handler) *ContextHandler {
	return &ContextHandler{Handler: h}
}

func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	fields := GetLogFields(ctx)
	if fields.RequestID != "" {
		r.AddAttrs(slog.String("request_id", fields.RequestID))
	}
	if fields.QuoteID != "" {
		r.AddAttrs(slog.String("quote_id", fields.QuoteID))
	}
	if fields.ProviderID != "" {
		r.AddAttrs(slog.String("provider_id", fields.ProviderID))
	}
	if fields.Identity != "" {
		r.AddAttrs(slog.String("identity", fields.Identity))
	}
	if fields.Component != "" {
		r.AddAttrs(slog.String("component", fields.Component))
	}

	return h.Handler.Handle(ctx, r)
}

func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{Handler: h.Handler.WithGroup(name)}
}

// Package observability builds the process logger, tracer provider and
// meter provider.
package observability

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/grafana/loki-client-go/loki"
	slogloki "github.com/samber/slog-loki/v3"
	slogmulti "github.com/samber/slog-multi"
	"go.opentelemetry.io/otel/trace"
)

// LoggerOptions configures NewLogger.
type LoggerOptions struct {
	Service      string
	Level        string
	Format       string // text | json
	LokiURL      string
	LokiTenantID string
	Writer       io.Writer
}

// ParseLevel maps a level name to a slog.Level, defaulting to info.
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

// NewLogger builds the process logger. Records go to Writer (stdout by
// default) and, when LokiURL is set, to Loki as well. The returned function
// flushes and stops the Loki client.
func NewLogger(opts LoggerOptions) (*slog.Logger, func(), error) {
	level := ParseLevel(opts.Level)
	w := opts.Writer
	if w == nil {
		w = os.Stdout
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	var local slog.Handler
	if strings.EqualFold(opts.Format, "json") {
		local = slog.NewJSONHandler(w, handlerOpts)
	} else {
		local = slog.NewTextHandler(w, handlerOpts)
	}

	handlers := []slog.Handler{local}
	stop := func() {}
	if opts.LokiURL != "" {
		lokiCfg, err := loki.NewDefaultConfig(opts.LokiURL)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid loki url: %w", err)
		}
		lokiCfg.TenantID = opts.LokiTenantID
		client, err := loki.New(lokiCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create loki client: %w", err)
		}
		handlers = append(handlers, slogloki.Option{Level: level, Client: client}.NewLokiHandler())
		stop = client.Stop
	}

	logger := slog.New(&traceHandler{Handler: combine(handlers...)})
	if opts.Service != "" {
		logger = logger.With(slog.String("service", opts.Service))
	}
	return logger, stop, nil
}

// traceHandler wraps an slog.Handler to inject OpenTelemetry trace_id and
// span_id into every record logged with a span in its context.
type traceHandler struct {
	slog.Handler
}

func (h *traceHandler) Handle(ctx context.Context, r slog.Record) error {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		r.AddAttrs(
			slog.String("trace_id", span.SpanContext().TraceID().String()),
			slog.String("span_id", span.SpanContext().SpanID().String()),
		)
	}
	return h.Handler.Handle(ctx, r)
}

func (h *traceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &traceHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *traceHandler) WithGroup(name string) slog.Handler {
	return &traceHandler{Handler: h.Handler.WithGroup(name)}
}

// combine tees records to every handler. Each handler still applies its own
// level, so Loki can run quieter than stdout.
func combine(handlers ...slog.Handler) slog.Handler {
	if len(handlers) == 1 {
		return handlers[0]
	}
	return slogmulti.Fanout(handlers...)
}

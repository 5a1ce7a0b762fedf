// Package logging provides structured logging configuration using log/slog.
//
// Loggers returned by FromContext carry chi's request id and, when a span is
// active, the trace id, so every entry for a request can be correlated.
// Records can additionally be shipped to a Seq server.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	slogseq "github.com/sokkalf/slog-seq"
	"go.opentelemetry.io/otel/trace"
)

// Options configure Setup.
type Options struct {
	Level  string // "debug", "info", "warn", "error" (default: "info")
	Format string // "text" or "json" (default: "text")
	SeqURL string // optional Seq ingestion endpoint

	// Output defaults to os.Stdout.
	Output io.Writer
}

// Setup installs the default slog logger and returns a function that flushes
// and closes any remote sink. The returned function is never nil.
//
// Use "json" format in production for machine parsing.
// Use "text" format in development for human readability.
func Setup(opts Options) func() {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	handlerOpts := &slog.HandlerOptions{Level: parseLevel(opts.Level)}

	var console slog.Handler
	if strings.ToLower(opts.Format) == "json" {
		console = slog.NewJSONHandler(out, handlerOpts)
	} else {
		console = slog.NewTextHandler(out, handlerOpts)
	}

	if opts.SeqURL == "" {
		slog.SetDefault(slog.New(console))
		return func() {}
	}

	_, seq := slogseq.NewLogger(
		opts.SeqURL,
		slogseq.WithBatchSize(50),
		slogseq.WithFlushInterval(2*time.Second),
		slogseq.WithHandlerOptions(handlerOpts),
	)
	if seq == nil {
		slog.SetDefault(slog.New(console))
		slog.Warn("seq sink unavailable, logging to console only", "seq_url", opts.SeqURL)
		return func() {}
	}

	slog.SetDefault(slog.New(&multiHandler{handlers: []slog.Handler{console, seq}}))
	return func() { seq.Close() }
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(level string) slog.Level {
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

// FromContext returns the default logger enriched with the request id and
// trace id found in ctx.
//
// Usage:
//
//	func handleRequest(w http.ResponseWriter, r *http.Request) {
//	    logger := logging.FromContext(r.Context())
//	    logger.Info("cleaning batch", "files", n)
//	}
func FromContext(ctx context.Context) *slog.Logger {
	logger := slog.Default()

	if reqID := middleware.GetReqID(ctx); reqID != "" {
		logger = logger.With("request_id", reqID)
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		logger = logger.With("trace_id", sc.TraceID().String())
	}

	return logger
}

// WithFields returns a request logger with additional structured fields.
//
//	fileLogger := logging.WithFields(ctx, "file", name, "batch_id", batchID)
//	fileLogger.Info("file cleaned", "rows", n)
func WithFields(ctx context.Context, args ...any) *slog.Logger {
	return FromContext(ctx).With(args...)
}

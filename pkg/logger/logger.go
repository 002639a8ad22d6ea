package logger

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// HandlerOptions configures the log handler.
type HandlerOptions struct {
	Level   slog.Leveler
	Service string
}

// hostname is resolved once at startup and attached to every record.
var hostname, _ = os.Hostname()

// NewHandler creates a JSON slog handler writing to stdout.
// Every record carries the service name and hostname.
func NewHandler(opts *HandlerOptions) slog.Handler {
	if opts == nil {
		opts = &HandlerOptions{}
	}
	level := opts.Level
	if level == nil {
		level = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})

	attrs := []slog.Attr{slog.String("hostname", hostname)}
	if opts.Service != "" {
		attrs = append(attrs, slog.String("service", opts.Service))
	}

	return handler.WithAttrs(attrs)
}

// NewLoggerMiddleware returns a chi middleware that logs each request
// with its method, path, status, duration and request id.
func NewLoggerMiddleware(log *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			log.Info("request completed",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

// Package observability provides logging helpers for epgnow.
package observability

import (
	"context"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/jmylchreest/epgnow/internal/config"
	"github.com/m-mizutani/masq"
)

// contextKey is a type for context keys to avoid collisions.
type contextKey string

// RequestIDKey is the context key for request IDs.
const RequestIDKey contextKey = "request_id"

// LevelTrace is more verbose than debug. Used for per-record ingestion detail.
const LevelTrace = slog.Level(-8)

// RedactedMarker replaces sensitive values in log output.
const RedactedMarker = "[REDACTED]"

var sensitiveKeys = map[string]bool{
	"password":   true,
	"passwd":     true,
	"secret":     true,
	"token":      true,
	"apikey":     true,
	"api_key":    true,
	"credential": true,
	"dsn":        true,
}

var (
	sensitiveParam = regexp.MustCompile(`(?i)((?:^|[?&\s])(?:password|passwd|pass|token|apikey|api_key|secret|credential)=)[^&#\s"]*`)
	urlUserinfo    = regexp.MustCompile(`(://[^:/@\s]+:)[^@/\s]+@`)
)

// RedactString masks sensitive query parameters, key=value DSN passwords
// and userinfo passwords in s.
func RedactString(s string) string {
	if !strings.Contains(s, "=") && !strings.Contains(s, "@") {
		return s
	}
	s = sensitiveParam.ReplaceAllString(s, "${1}"+RedactedMarker)
	return urlUserinfo.ReplaceAllString(s, "${1}"+RedactedMarker+"@")
}

// NewLoggerWithWriter creates a JSON or text logger writing to w.
func NewLoggerWithWriter(cfg config.LoggingConfig, w io.Writer) *slog.Logger {
	// Struct fields tagged `masq:"secret"` are filtered when logged as values.
	filter := masq.New(masq.WithTag("secret"))

	opts := &slog.HandlerOptions{
		Level:     parseLevel(cfg.Level),
		AddSource: cfg.AddSource,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			switch {
			case a.Key == slog.TimeKey && len(groups) == 0:
				if cfg.TimeFormat != "" {
					if t, ok := a.Value.Any().(time.Time); ok {
						return slog.String(slog.TimeKey, t.Format(cfg.TimeFormat))
					}
				}
				return a
			case a.Key == slog.LevelKey && len(groups) == 0:
				if level, ok := a.Value.Any().(slog.Level); ok && level == LevelTrace {
					return slog.String(slog.LevelKey, "TRACE")
				}
				return a
			case sensitiveKeys[strings.ToLower(a.Key)]:
				return slog.String(a.Key, RedactedMarker)
			case a.Value.Kind() == slog.KindString:
				return slog.String(a.Key, RedactString(a.Value.String()))
			case a.Value.Kind() == slog.KindAny:
				return filter(groups, a)
			}
			return a
		},
	}

	var handler slog.Handler
	switch cfg.Format {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(handler)
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return LevelTrace
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithRequestID adds a request ID to the logger.
func WithRequestID(logger *slog.Logger, requestID string) *slog.Logger {
	return logger.With(slog.String("request_id", requestID))
}

// WithRunID adds a rebuild run ID to the logger.
func WithRunID(logger *slog.Logger, runID string) *slog.Logger {
	return logger.With(slog.String("run_id", runID))
}

// WithComponent adds a component name to the logger for identifying the source.
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	return logger.With(slog.String("component", component))
}

// loggerKey is the context key for the logger.
const loggerKey contextKey = "logger"

// LoggerFromContext extracts a logger from the context.
// If no logger is found, returns the default logger.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// ContextWithLogger adds a logger to the context.
func ContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// RequestIDFromContext extracts a request ID from the context.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// ContextWithRequestID adds a request ID to the context.
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// SetDefault sets the provided logger as the default slog logger.
func SetDefault(logger *slog.Logger) {
	slog.SetDefault(logger)
}

// TimedOperation logs the start of operation and returns a function that
// logs its completion, or its failure when *errPtr is non-nil, with the
// elapsed time. errPtr is read when the returned function runs.
//
//	var err error
//	defer observability.TimedOperation(ctx, logger, "migrate", &err)()
func TimedOperation(ctx context.Context, logger *slog.Logger, operation string, errPtr *error) func() {
	start := time.Now()
	logger.DebugContext(ctx, "operation started", slog.String("operation", operation))

	return func() {
		duration := time.Since(start)
		if errPtr != nil && *errPtr != nil {
			logger.ErrorContext(ctx, "operation failed",
				slog.String("operation", operation),
				slog.Duration("duration", duration),
				slog.String("error", (*errPtr).Error()),
			)
			return
		}
		logger.InfoContext(ctx, "operation completed",
			slog.String("operation", operation),
			slog.Duration("duration", duration),
		)
	}
}

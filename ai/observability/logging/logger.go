// Package logging provides the process log handler and the request-scoped
// loggers carried through a turn in context.
package logging

import (
	"context"
	"io"
	"log/slog"
	"strings"
)

// Field keys shared by every component that logs inside a turn.
const (
	KeySessionID = "session_id"
	KeyRequestID = "request_id"
	KeyComponent = "component"
)

// Format selects the handler encoding.
type Format int

const (
	// FormatText is human readable and used in dev mode.
	FormatText Format = iota
	// FormatJSON is used in prod mode.
	FormatJSON
)

// ParseLevel maps a level name to a slog level. Unknown names map to info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
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

// New builds a logger writing to w.
func New(w io.Writer, format Format, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if format == FormatJSON {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h)
}

// Setup builds the process logger and installs it as the slog default.
func Setup(w io.Writer, format Format, level string) *slog.Logger {
	l := New(w, format, ParseLevel(level))
	slog.SetDefault(l)
	return l
}

type loggerKey struct{}

// FromContext extracts the logger from context, falling back to the slog
// default.
func FromContext(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
			return l
		}
	}
	return slog.Default()
}

// ToContext adds the logger to context.
func ToContext(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

// WithTurn returns a context whose logger carries the session and request
// identifiers of the current turn.
func WithTurn(ctx context.Context, sessionID, requestID string) context.Context {
	l := FromContext(ctx).With(KeySessionID, sessionID)
	if requestID != "" {
		l = l.With(KeyRequestID, requestID)
	}
	return ToContext(ctx, l)
}

// ForComponent returns the context logger tagged with a component name.
func ForComponent(ctx context.Context, component string) *slog.Logger {
	return FromContext(ctx).With(KeyComponent, component)
}

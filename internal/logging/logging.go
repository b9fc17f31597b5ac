// Package logging builds the slog loggers used by eventgate.
//
// Every handler it returns redacts attributes that could carry credentials:
// keys that look sensitive (token, secret, cookie, ...) and string values
// shaped like a signed gate token are replaced before they reach the output.
package logging

import (
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"
)

// Redacted replaces sensitive attribute values.
const Redacted = "***REDACTED***"

// Config selects the handler and minimum level.
type Config struct {
	// Level is one of debug, info, warn, error. Unknown values mean info.
	Level string
	// Format is json (default) or text.
	Format string
	// Output defaults to os.Stderr.
	Output io.Writer
}

var sensitiveKeyPatterns = []string{
	"token",
	"secret",
	"cookie",
	"authorization",
	"password",
}

// tokenShape matches "<b64url>.<b64url>" values long enough to be a signed
// token rather than a hostname or file name.
var tokenShape = regexp.MustCompile(`^[A-Za-z0-9_-]{16,}={0,2}\.[A-Za-z0-9_-]{16,}={0,2}$`)

// New returns a logger configured by cfg.
func New(cfg Config) *slog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{
		Level: ParseLevel(cfg.Level),
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			return Redact(a)
		},
	}

	var h slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "text", "console":
		h = slog.NewTextHandler(out, opts)
	default:
		h = slog.NewJSONHandler(out, opts)
	}
	return slog.New(h)
}

// Discard returns a logger that drops everything. Useful in tests.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// ParseLevel converts a level name to slog.Level.
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

// Redact returns a with sensitive values replaced. Groups are walked
// recursively.
func Redact(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		out := make([]slog.Attr, len(attrs))
		for i, attr := range attrs {
			out[i] = Redact(attr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(out...)}
	}

	if a.Value.Kind() != slog.KindString {
		if IsSensitiveKey(a.Key) && a.Value.Kind() == slog.KindAny {
			return slog.String(a.Key, Redacted)
		}
		return a
	}

	v := a.Value.String()
	if v == "" {
		return a
	}
	if IsSensitiveKey(a.Key) || tokenShape.MatchString(v) {
		return slog.String(a.Key, Redacted)
	}
	return a
}

// IsSensitiveKey reports whether an attribute key suggests credential
// content.
func IsSensitiveKey(key string) bool {
	k := strings.ToLower(key)
	for _, p := range sensitiveKeyPatterns {
		if strings.Contains(k, p) {
			return true
		}
	}
	return false
}

// Package logging builds the process slog handler.
//
// Every handler redacts credentials: attributes named like a secret
// lose their value, and URLs or key=value DSNs keep everything but the
// password. Store DSNs and broker URLs can then be logged as they are.
package logging

import (
	"io"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

type Format string

const (
	FormatPretty Format = "pretty" // tint, colorized
	FormatJSON   Format = "json"
	FormatText   Format = "text" // key=value
)

const redacted = "xxxxx"

var secretKeys = map[string]bool{
	"password": true,
	"pass":     true,
	"token":    true,
}

var dsnPassword = regexp.MustCompile(`(?i)\b(password=)('[^']*'|\S+)`)

// Redact strips the password from a URL or key=value DSN.
func Redact(s string) string {
	if strings.Contains(s, "://") {
		if u, err := url.Parse(s); err == nil && u.User != nil {
			if _, ok := u.User.Password(); ok {
				u.User = url.UserPassword(u.User.Username(), redacted)
				return u.String()
			}
		}
		return s
	}
	return dsnPassword.ReplaceAllString(s, "${1}"+redacted)
}

func replaceAttr(groups []string, a slog.Attr) slog.Attr {
	if secretKeys[strings.ToLower(a.Key)] {
		return slog.String(a.Key, redacted)
	}
	if a.Value.Kind() == slog.KindString {
		if v := a.Value.String(); strings.Contains(v, "://") || strings.Contains(v, "=") {
			return slog.String(a.Key, Redact(v))
		}
	}
	return a
}

// New returns a logger writing to w in the given format.
func New(w io.Writer, format Format, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level, ReplaceAttr: replaceAttr}
	var handler slog.Handler
	switch format {
	case FormatJSON:
		handler = slog.NewJSONHandler(w, opts)
	case FormatText:
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = tint.NewHandler(w, &tint.Options{
			Level:       level,
			TimeFormat:  time.DateTime,
			ReplaceAttr: replaceAttr,
		})
	}
	return slog.New(handler)
}

// Init sets the default logger to one writing to stderr and returns it.
func Init(format Format, level slog.Level) *slog.Logger {
	l := New(os.Stderr, format, level)
	slog.SetDefault(l)
	return l
}

// Component tags l, or the default logger when l is nil, with the
// subsystem name.
func Component(l *slog.Logger, name string) *slog.Logger {
	if l == nil {
		l = slog.Default()
	}
	return l.With("component", name)
}

func ParseFormat(s string) Format {
	switch f := Format(strings.ToLower(s)); f {
	case FormatJSON, FormatText:
		return f
	}
	return FormatPretty
}

// ParseLevel defaults to Info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

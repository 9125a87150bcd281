// Package logging provides structured logging for gitlab-mcp.
//
// Configuration via environment variables:
//   - GITLAB_MCP_LOG_LEVEL: DEBUG, INFO, WARN, ERROR (default: INFO)
//   - GITLAB_MCP_LOG_FORMAT: text, json (default: text)
//
// The MCP transport owns stdout, so every handler writes to stderr.
// Attributes named in SecretKeys are masked with Redact by the handler, so a
// token passed under one of those keys never reaches the output in full.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Environment variable names for logging configuration.
const (
	LogLevelEnvVar  = "GITLAB_MCP_LOG_LEVEL"
	LogFormatEnvVar = "GITLAB_MCP_LOG_FORMAT"
)

// Default logging configuration.
const (
	DefaultLevel  = slog.LevelInfo
	DefaultFormat = "text"
)

// ComponentKey tags every line with the subsystem that wrote it.
const ComponentKey = "component"

// SecretKeys are attribute keys whose string values are always redacted.
var SecretKeys = []string{"token", "auth_token", "authCode", "authorization"}

// Logger is the structured logger used across the auth server, the token
// service and the MCP tool handlers.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)

	// With returns a new Logger with the given key-value pairs added to every log.
	With(args ...any) Logger
}

// Options selects the level and output format of a Logger.
type Options struct {
	Level  slog.Level
	Format string
}

// OptionsFromEnv reads Options from GITLAB_MCP_LOG_LEVEL and
// GITLAB_MCP_LOG_FORMAT.
func OptionsFromEnv() Options {
	format := strings.ToLower(strings.TrimSpace(os.Getenv(LogFormatEnvVar)))
	if format == "" {
		format = DefaultFormat
	}
	return Options{
		Level:  ParseLevel(os.Getenv(LogLevelEnvVar)),
		Format: format,
	}
}

type slogLogger struct {
	slog *slog.Logger
}

func (l *slogLogger) Debug(msg string, args ...any) { l.slog.Debug(msg, args...) }
func (l *slogLogger) Info(msg string, args ...any)  { l.slog.Info(msg, args...) }
func (l *slogLogger) Warn(msg string, args ...any)  { l.slog.Warn(msg, args...) }
func (l *slogLogger) Error(msg string, args ...any) { l.slog.Error(msg, args...) }

func (l *slogLogger) With(args ...any) Logger {
	return &slogLogger{slog: l.slog.With(args...)}
}

// New creates a Logger writing to w. Format "json" selects the JSON handler,
// anything else the text handler.
func New(w io.Writer, opts Options) Logger {
	hopts := &slog.HandlerOptions{
		Level:       opts.Level,
		ReplaceAttr: redactSecrets,
	}

	var handler slog.Handler
	if strings.EqualFold(opts.Format, "json") {
		handler = slog.NewJSONHandler(w, hopts)
	} else {
		handler = slog.NewTextHandler(w, hopts)
	}
	return &slogLogger{slog: slog.New(handler)}
}

// NewFromEnv creates a stderr Logger configured from the environment.
func NewFromEnv() Logger {
	return New(os.Stderr, OptionsFromEnv())
}

func redactSecrets(groups []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() != slog.KindString {
		return a
	}
	for _, k := range SecretKeys {
		if a.Key == k {
			return slog.String(a.Key, Redact(a.Value.String()))
		}
	}
	return a
}

// Component returns l scoped to a subsystem. A nil l yields a Nop logger.
func Component(l Logger, name string) Logger {
	if l == nil {
		return Nop()
	}
	return l.With(ComponentKey, name)
}

// ParseLevel parses DEBUG, INFO, WARN (or WARNING) and ERROR, ignoring case
// and surrounding space. Anything else yields DefaultLevel.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return DefaultLevel
	}
}

// Redact masks a bearer token for log output, keeping a short prefix so two
// tokens can still be told apart. Already redacted values pass through.
func Redact(token string) string {
	const keep = 4
	switch {
	case token == "":
		return ""
	case strings.HasSuffix(token, "[REDACTED]"):
		return token
	case len(token) <= keep*2:
		return "[REDACTED]"
	}
	return token[:keep] + "...[REDACTED]"
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
func (n nopLogger) With(...any) Logger { return n }

// Nop returns a logger that discards all output.
func Nop() Logger {
	return nopLogger{}
}

var (
	defaultMu     sync.Mutex
	defaultLogger Logger
)

// Default returns the process logger, built from the environment on first use.
func Default() Logger {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultLogger == nil {
		defaultLogger = NewFromEnv()
	}
	return defaultLogger
}

// SetDefault replaces the process logger. A nil l makes the next Default
// call rebuild it from the environment.
func SetDefault(l Logger) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLogger = l
}

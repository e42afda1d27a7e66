// Package logging sets up the zerolog logger shared by the storefront packages.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel is a level name as accepted in configuration.
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// Config holds logger configuration.
type Config struct {
	Level LogLevel

	// Pretty switches from JSON lines to zerolog's console writer.
	Pretty bool

	// Output defaults to os.Stderr.
	Output io.Writer

	// Service, when set, is attached to every entry as "service".
	Service string
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Output: os.Stderr,
	}
}

// FromSettings builds a Config from the level name and pretty flag of the
// storefront configuration. Unknown level names fall back to info.
func FromSettings(level string, pretty bool, service string) Config {
	cfg := DefaultConfig()
	if parsed, err := ParseLevel(level); err == nil {
		cfg.Level = parsed
	}
	cfg.Pretty = pretty
	cfg.Service = service
	return cfg
}

// Setup configures the global zerolog logger and returns it.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: "15:04:05"}
	}

	ctx := zerolog.New(output).With().Timestamp()
	if cfg.Service != "" {
		ctx = ctx.Str("service", cfg.Service)
	}
	logger := ctx.Logger()

	log.Logger = logger
	return logger
}

// parseLevel maps a LogLevel to zerolog, defaulting to info.
func parseLevel(level LogLevel) zerolog.Level {
	parsed, err := ParseLevel(string(level))
	if err != nil {
		return zerolog.InfoLevel
	}
	switch parsed {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// ParseLevel validates a level name from configuration.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return "", fmt.Errorf("unknown log level %q", s)
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Cache hit/miss per tier and key
//   - Lazy evictions (expired, corrupt)
//   - Cart mutations
//   - Worker pool progress
//
// Info: Normal operation events
//   - Server startup/shutdown
//   - Periodic cache statistics
//   - Requests that succeeded after retry
//
// Warn: Recovered failures
//   - Cache write/read failures (quota, corrupt JSON)
//   - Per-item upstream failures omitted from a result
//   - Rate limit throttling and blocks
//   - Retry attempts exhausted
//
// Error: Error conditions requiring attention
//   - Configuration errors
//   - Storage backend unreachable at startup
//   - Cache health check failures
//
// Context Fields:
//   - component: emitting package
//   - key, tier: cache key and cache kind
//   - product_id, category: resolved entity
//   - endpoint, status, error_class, request_id: Product API request
//   - cart_id: shopping cart
//   - remaining: upstream rate limit budget

// Package log wraps log/slog with the one JSON-handler configuration
// used across the runtime, so every component logs through the same
// leveled, structured handler instead of ad hoc fmt.Println calls.
package log

import (
	"log/slog"
	"os"
	"sync"
)

// Logger is a thin alias kept so callers depend on this package
// instead of importing log/slog directly, keeping handler
// configuration in one place.
type Logger = slog.Logger

var (
	once    sync.Once
	handler slog.Handler
)

// Default returns the process-wide structured logger, writing JSON
// lines to stderr at Info level (overridable via CONDUIT_LOG_LEVEL).
func Default() *Logger {
	once.Do(func() {
		level := slog.LevelInfo
		switch os.Getenv("CONDUIT_LOG_LEVEL") {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	})
	return slog.New(handler)
}

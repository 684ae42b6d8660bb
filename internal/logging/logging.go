// Package logging provides structured logging setup using log/slog and the
// per-session client log files.
package logging

import (
	"io"
	"log/slog"
	"os"
)

// DebugEnv enables debug logging when set to "1".
const DebugEnv = "TRUSTTUNNEL_GUI_DEBUG"

// Level represents the logging verbosity level.
type Level int

const (
	// LevelInfo is the default logging level for normal operation.
	LevelInfo Level = iota
	// LevelDebug enables verbose debug output, including every external command.
	LevelDebug
)

// Setup initializes the global slog logger with the specified level.
// Call this once at application startup.
func Setup(level Level) {
	SetupWriter(os.Stderr, level)
}

// SetupWriter is Setup with an explicit destination.
func SetupWriter(w io.Writer, level Level) {
	slogLevel := slog.LevelInfo
	if level == LevelDebug {
		slogLevel = slog.LevelDebug
	}

	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: slogLevel})
	slog.SetDefault(slog.New(handler))
}

// LevelFromEnv returns LevelDebug when TRUSTTUNNEL_GUI_DEBUG=1.
func LevelFromEnv() Level {
	if os.Getenv(DebugEnv) == "1" {
		return LevelDebug
	}
	return LevelInfo
}

// SetupFromEnv initializes the logger based on environment variables.
// Set TRUSTTUNNEL_GUI_DEBUG=1 to enable debug logging.
func SetupFromEnv() {
	Setup(LevelFromEnv())
}

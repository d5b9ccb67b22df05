package internal

import (
	"fmt"
	"log/slog"
	"strings"
)

const (
	// LevelTrace sits below slog's debug level for wire-level detail such as request dumps.
	LevelTrace = slog.LevelDebug - 4
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError

	// Disable is above every level in use, so nothing is logged.
	Disable = slog.LevelError + 1000
)

var levelNames = map[string]slog.Level{
	"trace":   LevelTrace,
	"debug":   LevelDebug,
	"":        LevelInfo,
	"info":    LevelInfo,
	"warn":    LevelWarn,
	"warning": LevelWarn,
	"error":   LevelError,
	"off":     Disable,
	"none":    Disable,
	"disable": Disable,
}

// ParseLogLevel maps a configured level name to a slog.Level. Unknown names yield LevelInfo
// and an error.
func ParseLogLevel(level string) (slog.Level, error) {
	if l, ok := levelNames[strings.ToLower(strings.TrimSpace(level))]; ok {
		return l, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level: %q", level)
}

// FormatLogLevel names level for log output. slog alone would print LevelTrace as "DEBUG-4".
func FormatLogLevel(level slog.Level) string {
	switch {
	case level < LevelDebug:
		return "TRACE"
	case level >= Disable:
		return "OFF"
	default:
		return level.String()
	}
}

package memoryful

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/memoryful/memoryful/app"
	"github.com/memoryful/memoryful/config"
	"github.com/memoryful/memoryful/internal"
)

// initLogger points the default slog.Logger at a rotating file in cfg.Dir, mirrored to stderr
// when cfg.Stdout is set. The returned func restores the previous default and closes the file.
func initLogger(cfg config.LogConfig) (func(context.Context) error, error) {
	level, err := internal.ParseLogLevel(cfg.Level)
	if err != nil {
		slog.Warn("Failed to parse log level, using info", "error", err)
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}
	file := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.Dir, app.LogFileName),
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   true,
	}
	var w io.Writer = file
	if cfg.Stdout {
		w = io.MultiWriter(os.Stderr, file)
	}
	prev := slog.Default()
	slog.SetDefault(internal.NewLogger(w, level))
	return func(context.Context) error {
		slog.SetDefault(prev)
		return file.Close()
	}, nil
}

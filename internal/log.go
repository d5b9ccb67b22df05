package internal

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"
)

// NewLogger returns a text logger writing to w. Timestamps are UTC and the source attribute is
// reduced to the package-relative function and file so log lines stay short.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{
		AddSource: true,
		Level:     level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			switch a.Key {
			case slog.TimeKey:
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.UTC().Format("2006-01-02 15:04:05.000 UTC"))
				}
			case slog.SourceKey:
				source, ok := a.Value.Any().(*slog.Source)
				if !ok {
					return a
				}
				pkg, fn := splitFunction(source.Function)
				file := fmt.Sprintf("%s:%d", filepath.Base(source.File), source.Line)
				if pkg == "" {
					a.Value = slog.StringValue(file)
					return a
				}
				a.Value = slog.GroupValue(
					slog.String("pkg", pkg),
					slog.String("func", fn),
					slog.String("file", file),
				)
			case slog.LevelKey:
				// slog would print the custom levels as "DEBUG-4" and similar
				if level, ok := a.Value.Any().(slog.Level); ok {
					a.Value = slog.StringValue(FormatLogLevel(level))
				}
			}
			return a
		},
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// splitFunction turns "github.com/memoryful/memoryful/api.(*WebClient).send" into
// ("api", "(*WebClient).send").
func splitFunction(function string) (pkg, fn string) {
	if function == "" {
		return "", ""
	}
	last := function
	if i := strings.LastIndex(function, "/"); i >= 0 {
		last = function[i+1:]
	}
	pkg, fn, found := strings.Cut(last, ".")
	if !found {
		return "", last
	}
	return pkg, fn
}

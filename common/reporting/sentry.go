// Package reporting forwards fatal errors and panics to Sentry when a DSN is configured.
package reporting

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"
)

const flushTimeout = 6 * time.Second

var enabled atomic.Bool

// Init configures Sentry. An empty dsn leaves reporting disabled.
func Init(dsn, release string) {
	if dsn == "" {
		slog.Debug("No sentry DSN configured, error reporting disabled")
		return
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		AttachStacktrace: true,
		Release:          release,
	})
	if err != nil {
		slog.Error("sentry.Init:", "error", err)
		return
	}
	enabled.Store(true)
}

// Enabled reports whether Init succeeded with a DSN.
func Enabled() bool {
	return enabled.Load()
}

// CaptureError reports err and waits for it to be delivered.
func CaptureError(err error) {
	if err == nil || !enabled.Load() {
		return
	}
	sentry.CaptureException(err)
	flush()
}

// PanicListener reports a fatal message, typically the value recovered from a panic.
func PanicListener(msg string) {
	if !enabled.Load() {
		return
	}
	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetLevel(sentry.LevelFatal)
	})
	sentry.CaptureMessage(msg)
	flush()
}

func flush() {
	if ok := sentry.Flush(flushTimeout); !ok {
		slog.Error("sentry.Flush: timeout")
	}
}

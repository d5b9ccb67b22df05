// Package env reads MEMORYFUL_* overrides from the process environment and from an optional
// .env file in the working directory. Process variables win over the file.
package env

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

type Key = string

const (
	APIBaseURL     Key = "MEMORYFUL_API_BASE_URL"
	LogLevel       Key = "MEMORYFUL_LOG_LEVEL"
	LogPath        Key = "MEMORYFUL_LOG_PATH"
	DataPath       Key = "MEMORYFUL_DATA_PATH"
	SessionBackend Key = "MEMORYFUL_SESSION_BACKEND"
	RedisAddr      Key = "MEMORYFUL_REDIS_ADDR"
	RequestTimeout Key = "MEMORYFUL_REQUEST_TIMEOUT"
	SentryDSN      Key = "MEMORYFUL_SENTRY_DSN"
	OTELEndpoint   Key = "MEMORYFUL_OTEL_ENDPOINT"
)

var allKeys = []Key{APIBaseURL, LogLevel, LogPath, DataPath, SessionBackend, RedisAddr, RequestTimeout, SentryDSN, OTELEndpoint}

var (
	loadOnce sync.Once
	envVars  map[string]string
)

func load() {
	envVars = make(map[string]string)
	buf, err := os.ReadFile(".env")
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Error(".env file found, but failed to read", slog.Any("error", err))
	} else if err == nil {
		for _, line := range strings.Split(string(buf), "\n") {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			key, value, ok := strings.Cut(line, "=")
			if !ok {
				continue
			}
			envVars[strings.TrimSpace(key)] = strings.Trim(strings.TrimSpace(value), `"'`)
		}
	}
	for _, key := range allKeys {
		if value, exists := os.LookupEnv(key); exists {
			envVars[key] = value
		}
	}
}

// Reload discards cached values and reads the environment again. Tests use it after t.Setenv.
func Reload() {
	loadOnce = sync.Once{}
}

// Get returns the raw value for key.
func Get(key Key) (string, bool) {
	loadOnce.Do(load)
	v, ok := envVars[key]
	return v, ok && v != ""
}

// GetDuration returns the value for key parsed as a time.Duration.
func GetDuration(key Key) (time.Duration, bool) {
	v, ok := Get(key)
	if !ok {
		return 0, false
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("ignoring malformed duration", "key", key, "value", v, "error", err)
		return 0, false
	}
	return d, true
}

// GetBool returns the value for key parsed as a bool.
func GetBool(key Key) (bool, bool) {
	v, ok := Get(key)
	if !ok {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}

/*
Package config loads the client configuration: a YAML file, defaults for everything the file
leaves out, and MEMORYFUL_* environment overrides on top.
*/
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/memoryful/memoryful/app"
	"github.com/memoryful/memoryful/common/env"
	"github.com/memoryful/memoryful/internal"
)

// Session backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
)

var ErrInvalidConfig = errors.New("invalid config")

// Config is the complete client configuration.
type Config struct {
	// DataDir holds the settings file and other local state.
	DataDir   string          `yaml:"data_dir"`
	API       APIConfig       `yaml:"api"`
	Session   SessionConfig   `yaml:"session"`
	Log       LogConfig       `yaml:"log"`
	Storage   StorageConfig   `yaml:"storage"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Sentry    SentryConfig    `yaml:"sentry"`
}

type APIConfig struct {
	BaseURL string `yaml:"base_url"`
	// Timeout bounds a single HTTP attempt.
	Timeout time.Duration `yaml:"timeout"`
	// RefreshTimeout bounds the shared token refresh, independently of any caller's context.
	RefreshTimeout time.Duration `yaml:"refresh_timeout"`
	RetryMax       int           `yaml:"retry_max"`
	RetryWaitMin   time.Duration `yaml:"retry_wait_min"`
	RetryWaitMax   time.Duration `yaml:"retry_wait_max"`
}

type SessionConfig struct {
	// Backend is one of memory, file or redis.
	Backend string `yaml:"backend"`
	File    string `yaml:"file"`
	// Follow opens File read-only and picks up the credential whenever another process, such
	// as the CLI, rewrites it.
	Follow bool        `yaml:"follow"`
	Redis  RedisConfig `yaml:"redis"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Prefix   string        `yaml:"prefix"`
	TTL      time.Duration `yaml:"ttl"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	Dir        string `yaml:"dir"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	// Stdout mirrors the log file to standard error.
	Stdout bool `yaml:"stdout"`
}

type StorageConfig struct {
	// AssetsPrefix is prepended to media references that are neither URLs nor object keys.
	AssetsPrefix   string `yaml:"assets_prefix"`
	ResolveWorkers int    `yaml:"resolve_workers"`
}

type TelemetryConfig struct {
	Endpoint    string  `yaml:"endpoint"`
	Insecure    bool    `yaml:"insecure"`
	SampleRatio float64 `yaml:"sample_ratio"`
	// Metrics also exports API metrics to Endpoint.
	Metrics        bool          `yaml:"metrics"`
	MetricInterval time.Duration `yaml:"metric_interval"`
}

type SentryConfig struct {
	DSN string `yaml:"dsn"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	dataDir := defaultDataDir()
	return &Config{
		DataDir: dataDir,
		API: APIConfig{
			BaseURL:        "http://localhost:8000",
			Timeout:        30 * time.Second,
			RefreshTimeout: 15 * time.Second,
			RetryMax:       2,
			RetryWaitMin:   100 * time.Millisecond,
			RetryWaitMax:   2 * time.Second,
		},
		Session: SessionConfig{
			Backend: BackendMemory,
			Redis: RedisConfig{
				Addr:   "localhost:6379",
				Prefix: app.Name,
				TTL:    30 * 24 * time.Hour,
			},
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Storage: StorageConfig{
			AssetsPrefix:   "/src/assets/img/",
			ResolveWorkers: 8,
		},
		Telemetry: TelemetryConfig{
			SampleRatio:    1,
			MetricInterval: time.Minute,
		},
	}
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, app.Name)
	}
	return filepath.Join(os.TempDir(), app.Name)
}

// Load reads the YAML file at path over the defaults, applies environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	return LoadFrom(Default(), path)
}

// LoadFrom is Load with cfg in place of the defaults. cfg is modified and returned.
func LoadFrom(cfg *Config, path string) (*Config, error) {
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	cfg.fillPaths()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v, ok := env.Get(env.APIBaseURL); ok {
		c.API.BaseURL = v
	}
	if d, ok := env.GetDuration(env.RequestTimeout); ok {
		c.API.Timeout = d
	}
	if v, ok := env.Get(env.LogLevel); ok {
		c.Log.Level = v
	}
	if v, ok := env.Get(env.LogPath); ok {
		c.Log.Dir = v
	}
	if v, ok := env.Get(env.DataPath); ok {
		c.DataDir = v
	}
	if v, ok := env.Get(env.SessionBackend); ok {
		c.Session.Backend = v
	}
	if v, ok := env.Get(env.RedisAddr); ok {
		c.Session.Redis.Addr = v
	}
	if v, ok := env.Get(env.SentryDSN); ok {
		c.Sentry.DSN = v
	}
	if v, ok := env.Get(env.OTELEndpoint); ok {
		c.Telemetry.Endpoint = v
	}
}

func (c *Config) fillPaths() {
	c.DataDir = os.ExpandEnv(c.DataDir)
	if c.Log.Dir == "" {
		c.Log.Dir = filepath.Join(c.DataDir, "logs")
	}
	c.Log.Dir = os.ExpandEnv(c.Log.Dir)
	if c.Session.File == "" {
		c.Session.File = filepath.Join(c.DataDir, app.SettingsFileName)
	}
	c.Session.File = os.ExpandEnv(c.Session.File)
}

// Validate reports the first problem found in c.
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: api.base_url %q is not an absolute URL", ErrInvalidConfig, c.API.BaseURL)
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("%w: api.timeout must be positive", ErrInvalidConfig)
	}
	if c.API.RefreshTimeout <= 0 {
		return fmt.Errorf("%w: api.refresh_timeout must be positive", ErrInvalidConfig)
	}
	if c.API.RetryMax < 0 {
		return fmt.Errorf("%w: api.retry_max must not be negative", ErrInvalidConfig)
	}
	if c.Session.Follow && !strings.EqualFold(c.Session.Backend, BackendFile) {
		return fmt.Errorf("%w: session.follow requires the file backend", ErrInvalidConfig)
	}
	switch strings.ToLower(c.Session.Backend) {
	case BackendMemory, BackendFile:
	case BackendRedis:
		if c.Session.Redis.Addr == "" {
			return fmt.Errorf("%w: session.redis.addr is required for the redis backend", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown session backend %q", ErrInvalidConfig, c.Session.Backend)
	}
	if _, err := internal.ParseLogLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.Storage.ResolveWorkers < 1 {
		return fmt.Errorf("%w: storage.resolve_workers must be at least 1", ErrInvalidConfig)
	}
	return nil
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memoryful/memoryful/common/env"
)

func writeConfig(t *testing.T, body string) string {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	env.Reload()
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000", cfg.API.BaseURL)
	assert.Equal(t, BackendMemory, cfg.Session.Backend)
	assert.Equal(t, 8, cfg.Storage.ResolveWorkers)
	assert.Equal(t, filepath.Join(cfg.DataDir, "logs"), cfg.Log.Dir)
	assert.Equal(t, filepath.Join(cfg.DataDir, "session.json"), cfg.Session.File)
}

func TestLoadFile(t *testing.T) {
	env.Reload()
	path := writeConfig(t, `
data_dir: /tmp/memoryful-test
api:
  base_url: https://api.memoryful.test
  timeout: 5s
  retry_max: 4
session:
  backend: redis
  redis:
    addr: 127.0.0.1:6380
    prefix: mf
log:
  level: debug
storage:
  assets_prefix: /static/
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://api.memoryful.test", cfg.API.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.API.Timeout)
	assert.Equal(t, 15*time.Second, cfg.API.RefreshTimeout, "unset fields keep their defaults")
	assert.Equal(t, 4, cfg.API.RetryMax)
	assert.Equal(t, BackendRedis, cfg.Session.Backend)
	assert.Equal(t, "127.0.0.1:6380", cfg.Session.Redis.Addr)
	assert.Equal(t, "mf", cfg.Session.Redis.Prefix)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "/static/", cfg.Storage.AssetsPrefix)
	assert.Equal(t, "/tmp/memoryful-test/logs", cfg.Log.Dir)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv(env.APIBaseURL, "https://env.memoryful.test")
	t.Setenv(env.RequestTimeout, "12s")
	t.Setenv(env.SessionBackend, "file")
	env.Reload()
	t.Cleanup(env.Reload)

	path := writeConfig(t, "api:\n  base_url: https://file.memoryful.test\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://env.memoryful.test", cfg.API.BaseURL)
	assert.Equal(t, 12*time.Second, cfg.API.Timeout)
	assert.Equal(t, BackendFile, cfg.Session.Backend)
}

func TestLoadErrors(t *testing.T) {
	env.Reload()
	tests := []struct {
		name string
		body string
	}{
		{name: "relative base url", body: "api:\n  base_url: /api\n"},
		{name: "unknown backend", body: "session:\n  backend: etcd\n"},
		{name: "bad log level", body: "log:\n  level: loud\n"},
		{name: "no workers", body: "storage:\n  resolve_workers: 0\n"},
		{name: "negative retries", body: "api:\n  retry_max: -1\n"},
		{name: "follow without file", body: "session:\n  backend: memory\n  follow: true\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = Load(writeConfig(t, "api: [unterminated"))
	assert.Error(t, err)
}

func TestLoadFromBase(t *testing.T) {
	env.Reload()
	base := Default()
	base.Session.Backend = BackendFile

	cfg, err := LoadFrom(base, "")
	require.NoError(t, err)
	assert.Equal(t, BackendFile, cfg.Session.Backend)

	base = Default()
	base.Session.Backend = BackendFile
	cfg, err = LoadFrom(base, writeConfig(t, "session:\n  backend: memory\n"))
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, cfg.Session.Backend, "the file overrides the base")

	base = Default()
	base.Session.Backend = BackendFile
	cfg, err = LoadFrom(base, writeConfig(t, "session:\n  follow: true\n"))
	require.NoError(t, err)
	assert.True(t, cfg.Session.Follow)
}

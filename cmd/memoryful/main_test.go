package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/alexflint/go-arg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memoryful/memoryful/api"
	"github.com/memoryful/memoryful/common/env"
	"github.com/memoryful/memoryful/config"
)

func parse(t *testing.T, argv ...string) args {
	t.Helper()
	var a args
	p, err := arg.NewParser(arg.Config{}, &a)
	require.NoError(t, err)
	require.NoError(t, p.Parse(argv))
	return a
}

func TestParseSubcommands(t *testing.T) {
	a := parse(t, "--config", "/tmp/c.yaml", "login", "--email", "a@b.c")
	assert.Equal(t, "/tmp/c.yaml", a.Config)
	require.NotNil(t, a.Login)
	assert.Equal(t, "a@b.c", a.Login.Email)

	a = parse(t, "days", "--limit", "5", "--view", "detail")
	require.NotNil(t, a.Days)
	assert.Equal(t, 5, a.Days.Limit)
	assert.Equal(t, 0, a.Days.Offset)
	assert.Equal(t, "detail", a.Days.View)

	a = parse(t, "resolve", "a.png", "users/u1/b.jpg")
	require.NotNil(t, a.Resolve)
	assert.Equal(t, []string{"a.png", "users/u1/b.jpg"}, a.Resolve.Sources)

	a = parse(t, "revoke-session", "s1")
	require.NotNil(t, a.RevokeSession)
	assert.Equal(t, "s1", a.RevokeSession.ID)
}

func TestUploadParams(t *testing.T) {
	a := parse(t, "upload", "--intent", "day_image", "--day", "1700000000", "dir/photo.PNG")
	require.NotNil(t, a.Upload)

	p := mediaParams(a.Upload, nil)
	assert.Equal(t, "photo.PNG", p.Filename)
	assert.Equal(t, "image/png", p.ContentType)
	assert.Equal(t, api.IntentDayImage, p.Intent)
	require.NotNil(t, p.DayTimestamp)
	assert.EqualValues(t, 1700000000, *p.DayTimestamp)
	assert.Nil(t, p.Year)
}

func TestPromptCodeFromPipe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stdin")
	require.NoError(t, os.WriteFile(path, []byte(" 123456 \n"), 0o600))
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var out nopWriter
	code, err := promptCode(f, &out)
	require.NoError(t, err)
	assert.Equal(t, "123456", code)
}

func TestLoadConfigDefaultsToFileBackend(t *testing.T) {
	env.Reload()
	cfg, err := loadConfig(parse(t, "--log-level", "debug", "me"))
	require.NoError(t, err)
	assert.Equal(t, config.BackendFile, cfg.Session.Backend)
	assert.Equal(t, "debug", cfg.Log.Level)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("session:\n  backend: memory\n"), 0o600))
	cfg, err = loadConfig(parse(t, "--config", path, "me"))
	require.NoError(t, err)
	assert.Equal(t, config.BackendMemory, cfg.Session.Backend)
}

type nopWriter struct{}

func (*nopWriter) Write(p []byte) (int, error) { return len(p), nil }

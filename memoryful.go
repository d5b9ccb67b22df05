// Package memoryful is the client for the Memoryful journaling service. New wires configuration,
// logging, the credential store, the authenticated API client and the local state stores into
// one Client.
package memoryful

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/memoryful/memoryful/api"
	"github.com/memoryful/memoryful/app"
	"github.com/memoryful/memoryful/backend"
	"github.com/memoryful/memoryful/common/reporting"
	"github.com/memoryful/memoryful/common/settings"
	"github.com/memoryful/memoryful/config"
	"github.com/memoryful/memoryful/media"
	"github.com/memoryful/memoryful/session"
	"github.com/memoryful/memoryful/store"
	"github.com/memoryful/memoryful/telemetry"
)

type Options struct {
	// Config is used as is when set; otherwise it is loaded from ConfigPath.
	Config     *config.Config
	ConfigPath string

	// HTTPClient replaces the retrying, traced client built from the config.
	HTTPClient *http.Client
	// Store replaces the session backend selected by the config.
	Store session.Store
}

// Client is a signed-in (or signing-in) Memoryful user on this device.
type Client struct {
	cfg      *config.Config
	deviceID string

	store   session.Store
	follow  *settings.Store
	session *session.Session
	api     *api.APIClient

	user      *store.User
	workspace *store.Workspace
	years     *store.Years

	uploader *media.Uploader
	resolver *media.Resolver

	shutdownFuncs []func(context.Context) error
	closeOnce     sync.Once
}

func New(ctx context.Context, opts Options) (*Client, error) {
	cfg := opts.Config
	if cfg == nil {
		var err error
		if cfg, err = config.Load(opts.ConfigPath); err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
	}

	c := &Client{cfg: cfg}
	closeLog, err := initLogger(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("initialize log: %w", err)
	}
	c.addShutdownFunc(closeLog)
	reporting.Init(cfg.Sentry.DSN, app.Version)

	c.store = opts.Store
	if c.store == nil {
		if c.store, err = c.openStore(ctx, cfg.Session); err != nil {
			c.Close()
			return nil, err
		}
	}
	c.deviceID = backend.DeviceID(ctx, c.store)

	if err := telemetry.Init(ctx, cfg.Telemetry, telemetry.DefaultAttributes(c.deviceID)); err != nil {
		// Tracing is optional; run without it.
		slog.Warn("Telemetry disabled", "error", err)
	}
	c.addShutdownFunc(telemetry.Close)

	httpClient := opts.HTTPClient
	if httpClient == nil {
		if httpClient, err = api.NewHTTPClient(ctx, cfg.API, c.store); err != nil {
			c.Close()
			return nil, err
		}
	}
	c.session = session.New(ctx, c.store)
	wc := api.NewWebClient(api.WebClientOptions{
		BaseURL:        cfg.API.BaseURL,
		HTTPClient:     httpClient,
		Session:        c.session,
		Headers:        backend.DefaultHeaders(c.deviceID),
		RefreshTimeout: cfg.API.RefreshTimeout,
	})
	c.api = api.NewAPIClient(wc)
	if c.follow != nil {
		c.follow.OnReload(func() {
			changed, err := c.session.Reload(context.Background())
			if err != nil {
				slog.Warn("Failed to reload session", "error", err)
				return
			}
			if changed {
				wc.SetAuthToken(c.session.Token())
			}
		})
	}

	c.user = store.NewUser(c.api.Auth, c.session)
	c.workspace = store.NewWorkspace(c.api.Workspaces)
	c.years = store.NewYears(c.api.Months, c.store)
	c.uploader = media.NewUploader(c.api.Storage, nil)
	c.resolver = media.NewResolver(c.api.Storage, cfg.Storage.AssetsPrefix, cfg.Storage.ResolveWorkers)
	c.addShutdownFunc(func(context.Context) error {
		c.user.Close()
		c.resolver.Close()
		return nil
	})

	attrs := []any{
		"version", app.Version,
		"api", cfg.API.BaseURL,
		"session_backend", cfg.Session.Backend,
		"follow", c.follow != nil,
		"authenticated", c.session.Authenticated(),
	}
	if exp, ok := c.SessionExpiry(); ok {
		attrs = append(attrs, "expires_at", exp)
	}
	slog.Info("Memoryful client ready", attrs...)
	return c, nil
}

func (c *Client) openStore(ctx context.Context, cfg config.SessionConfig) (session.Store, error) {
	switch strings.ToLower(cfg.Backend) {
	case config.BackendFile:
		if cfg.Follow {
			return c.openFollower(cfg.File)
		}
		s, err := settings.Open(cfg.File)
		if err != nil {
			return nil, fmt.Errorf("opening session file: %w", err)
		}
		c.addShutdownFunc(func(context.Context) error { return s.Close() })
		return s, nil
	case config.BackendRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return nil, fmt.Errorf("%w: %w", session.ErrRedisUnavailable, err)
		}
		c.addShutdownFunc(func(context.Context) error { return rdb.Close() })
		return session.NewRedisStore(rdb, cfg.Redis.Prefix, cfg.Redis.TTL), nil
	default:
		return session.NewMemoryStore(), nil
	}
}

// openFollower opens the session file read-only and watches it, so a credential written by
// another process (a CLI login, say) is picked up without a restart.
func (c *Client) openFollower(path string) (session.Store, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		// seed an empty document so there is something to watch
		w, err := settings.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening session file: %w", err)
		}
		w.Close()
	}
	s, err := settings.OpenReadOnly(path, true)
	if err != nil {
		return nil, fmt.Errorf("following session file: %w", err)
	}
	c.follow = s
	c.addShutdownFunc(func(context.Context) error { return s.Close() })
	return s, nil
}

// SessionExpiry returns when the current access token expires, read from its exp claim.
func (c *Client) SessionExpiry() (time.Time, bool) {
	return c.session.ExpiresAt()
}

// addShutdownFunc registers cleanup to run on Close, in registration order.
func (c *Client) addShutdownFunc(fns ...func(context.Context) error) {
	for _, fn := range fns {
		if fn != nil {
			c.shutdownFuncs = append(c.shutdownFuncs, fn)
		}
	}
}

// Close releases every resource held by the client. It is safe to call more than once.
func (c *Client) Close() error {
	var errs error
	c.closeOnce.Do(func() {
		slog.Debug("Closing memoryful client")
		for i := len(c.shutdownFuncs) - 1; i >= 0; i-- {
			if err := c.shutdownFuncs[i](context.Background()); err != nil {
				slog.Error("Failed to shutdown", "error", err)
				errs = errors.Join(errs, err)
			}
		}
	})
	return errs
}

func (c *Client) Config() *config.Config      { return c.cfg }
func (c *Client) DeviceID() string            { return c.deviceID }
func (c *Client) API() *api.APIClient         { return c.api }
func (c *Client) Session() *session.Session   { return c.session }
func (c *Client) User() *store.User           { return c.user }
func (c *Client) Workspace() *store.Workspace { return c.workspace }
func (c *Client) Years() *store.Years         { return c.years }
func (c *Client) Uploader() *media.Uploader   { return c.uploader }
func (c *Client) Resolver() *media.Resolver   { return c.resolver }

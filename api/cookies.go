package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/memoryful/memoryful/session"
)

// CookiesKey is where a persistent jar keeps the backend's cookies, the refresh cookie among them.
const CookiesKey = "memoryful:auth:cookies"

type storedCookie struct {
	URL    string       `json:"url"`
	Cookie *http.Cookie `json:"cookie"`
}

// storedJar is a cookie jar whose cookies outlive the process. Every cookie the backend sets is
// written to the store, and the jar starts with whatever was stored.
type storedJar struct {
	jar   *cookiejar.Jar
	store session.Store

	mu      sync.Mutex
	cookies map[string]storedCookie
}

func newStoredJar(ctx context.Context, store session.Store) (*storedJar, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}
	j := &storedJar{jar: jar, store: store, cookies: make(map[string]storedCookie)}
	j.load(ctx)
	return j, nil
}

func cookieKey(u *url.URL, c *http.Cookie) string {
	return strings.Join([]string{u.Host, c.Domain, c.Path, c.Name}, "|")
}

func (j *storedJar) Cookies(u *url.URL) []*http.Cookie {
	return j.jar.Cookies(u)
}

func (j *storedJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.jar.SetCookies(u, cookies)

	now := time.Now()
	origin := (&url.URL{Scheme: u.Scheme, Host: u.Host, Path: u.Path}).String()
	j.mu.Lock()
	for _, c := range cookies {
		key := cookieKey(u, c)
		if c.MaxAge < 0 || (!c.Expires.IsZero() && !c.Expires.After(now)) {
			delete(j.cookies, key)
			continue
		}
		cp := *c
		if cp.MaxAge > 0 {
			// Max-Age is relative to when the cookie was received.
			cp.Expires = now.Add(time.Duration(cp.MaxAge) * time.Second)
			cp.MaxAge = 0
		}
		cp.Raw, cp.RawExpires, cp.Unparsed = "", "", nil
		j.cookies[key] = storedCookie{URL: origin, Cookie: &cp}
	}
	snapshot := make([]storedCookie, 0, len(j.cookies))
	for _, sc := range j.cookies {
		snapshot = append(snapshot, sc)
	}
	j.mu.Unlock()

	slices.SortFunc(snapshot, func(a, b storedCookie) int { return strings.Compare(a.Cookie.Name, b.Cookie.Name) })
	j.save(snapshot)
}

func (j *storedJar) save(cookies []storedCookie) {
	raw, err := json.Marshal(cookies)
	if err != nil {
		slog.Error("Failed to encode cookies", "error", err)
		return
	}
	if err := j.store.Set(context.Background(), CookiesKey, string(raw)); err != nil {
		slog.Warn("Failed to persist cookies", "error", err)
	}
}

func (j *storedJar) load(ctx context.Context) {
	raw, err := j.store.Get(ctx, CookiesKey)
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			slog.Warn("Failed to read stored cookies", "error", err)
		}
		return
	}
	var stored []storedCookie
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		slog.Warn("Discarding corrupt cookie store", "error", err)
		return
	}
	now := time.Now()
	for _, sc := range stored {
		u, err := url.Parse(sc.URL)
		if err != nil || sc.Cookie == nil {
			continue
		}
		if !sc.Cookie.Expires.IsZero() && !sc.Cookie.Expires.After(now) {
			continue
		}
		j.jar.SetCookies(u, []*http.Cookie{sc.Cookie})
		j.cookies[cookieKey(u, sc.Cookie)] = sc
	}
	slog.Debug("Restored cookies", "count", len(j.cookies))
}

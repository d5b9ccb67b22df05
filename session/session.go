// Package session owns the client's credential: the bearer access token used to authenticate
// requests. The token lives in memory for fast reads and is written through to a Store so it
// survives a restart when the store is persistent.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/memoryful/memoryful/events"
)

// TokenKey is the store key the access token is persisted under.
const TokenKey = "memoryful:auth:access-token"

// Reason says why the credential changed.
type Reason string

const (
	ReasonLogin   Reason = "login"
	ReasonRefresh Reason = "refresh"
	ReasonLogout  Reason = "logout"
	ReasonExpired Reason = "expired"
	// ReasonReload is a credential written to the store by another process.
	ReasonReload Reason = "reload"
)

// ChangeEvent is emitted through the events package whenever the credential is set or cleared.
type ChangeEvent struct {
	Session       *Session
	Authenticated bool
	Reason        Reason
}

// Session is the process-wide credential slot. Reads are cheap and concurrent; writes go
// through Set and Clear only.
type Session struct {
	mu    sync.RWMutex
	token string
	store Store
	key   string
}

// New creates a session backed by store and restores any persisted token. A nil store keeps the
// token in memory only.
func New(ctx context.Context, store Store) *Session {
	if store == nil {
		store = NewMemoryStore()
	}
	s := &Session{store: store, key: TokenKey}
	token, err := store.Get(ctx, s.key)
	switch {
	case errors.Is(err, ErrNotFound):
	case err != nil:
		slog.Warn("Failed to restore session token", "error", err)
	default:
		s.token = token
		slog.Debug("Restored session token")
	}
	return s
}

// Token returns the cached credential, or "" when there is none.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Authenticated reports whether a credential is cached.
func (s *Session) Authenticated() bool {
	return s.Token() != ""
}

// Set caches token and persists it. The in-memory value is updated even if persisting fails,
// in which case the store error is returned.
func (s *Session) Set(ctx context.Context, token string, reason Reason) error {
	if token == "" {
		return errors.New("session: empty token")
	}
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()

	events.Emit(ChangeEvent{Session: s, Authenticated: true, Reason: reason})
	if err := s.store.Set(ctx, s.key, token); err != nil {
		return fmt.Errorf("persisting session token: %w", err)
	}
	return nil
}

// Clear drops the cached credential and removes it from the store. Subscribers have seen the
// change by the time Clear returns.
func (s *Session) Clear(ctx context.Context, reason Reason) error {
	s.mu.Lock()
	had := s.token != ""
	s.token = ""
	s.mu.Unlock()

	if had {
		events.EmitSync(ChangeEvent{Session: s, Authenticated: false, Reason: reason})
	}
	if err := s.store.Remove(ctx, s.key); err != nil {
		return fmt.Errorf("removing session token: %w", err)
	}
	return nil
}

// Reload re-reads the credential from the store and reports whether it changed. It never
// writes, so it is safe on a read-only store.
func (s *Session) Reload(ctx context.Context) (bool, error) {
	token, err := s.store.Get(ctx, s.key)
	switch {
	case errors.Is(err, ErrNotFound):
		token = ""
	case err != nil:
		return false, fmt.Errorf("reloading session token: %w", err)
	}

	s.mu.Lock()
	changed := token != s.token
	s.token = token
	s.mu.Unlock()
	if !changed {
		return false, nil
	}

	slog.Debug("Session token reloaded", "authenticated", token != "")
	if token == "" {
		events.EmitSync(ChangeEvent{Session: s, Authenticated: false, Reason: ReasonReload})
	} else {
		events.Emit(ChangeEvent{Session: s, Authenticated: true, Reason: ReasonReload})
	}
	return true, nil
}

// ExpiresAt returns the cached token's expiry. ok is false when there is no token or it
// carries no exp claim.
func (s *Session) ExpiresAt() (exp time.Time, ok bool) {
	claims, err := s.Claims()
	if err != nil || claims.ExpiresAt.IsZero() {
		return time.Time{}, false
	}
	return claims.ExpiresAt, true
}

// Claims decodes the cached token's payload.
func (s *Session) Claims() (*Claims, error) {
	token := s.Token()
	if token == "" {
		return nil, errors.New("session: not authenticated")
	}
	return DecodeClaims(token)
}

package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/memoryful/memoryful/api"
	"github.com/memoryful/memoryful/events"
	"github.com/memoryful/memoryful/session"
)

type UserAPI interface {
	Me(ctx context.Context) (*api.User, error)
}

// User holds the signed-in user's profile. It empties itself when sess loses its credential.
type User struct {
	mu   sync.RWMutex
	user *api.User

	api  UserAPI
	sess *session.Session
	sub  *events.Subscription[session.ChangeEvent]
}

func NewUser(userAPI UserAPI, sess *session.Session) *User {
	u := &User{api: userAPI, sess: sess}
	u.sub = events.Subscribe(func(evt session.ChangeEvent) {
		if evt.Session != sess || evt.Authenticated {
			return
		}
		// A concurrent sign-in may already have happened.
		if !sess.Authenticated() {
			u.Clear()
		}
	})
	return u
}

// Load fetches the profile and caches it.
func (u *User) Load(ctx context.Context) (*api.User, error) {
	user, err := u.api.Me(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading user: %w", err)
	}
	u.Set(user)
	return user, nil
}

func (u *User) Set(user *api.User) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if user == nil {
		u.user = nil
		return
	}
	cp := *user
	u.user = &cp
}

// Get returns a copy of the cached profile.
func (u *User) Get() (api.User, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	if u.user == nil {
		return api.User{}, false
	}
	return *u.user, true
}

func (u *User) Loaded() bool {
	_, ok := u.Get()
	return ok
}

func (u *User) Clear() {
	u.Set(nil)
}

// Close stops following session changes.
func (u *User) Close() {
	events.Unsubscribe(u.sub)
}

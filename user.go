package memoryful

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/memoryful/memoryful/api"
)

var ErrEmptyEmail = errors.New("email is required")

// RequestCode mails a sign-in code to email.
func (c *Client) RequestCode(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return ErrEmptyEmail
	}
	return c.api.Auth.RequestVerificationCode(ctx, email)
}

// SignIn exchanges a mailed code for a session and loads the user's profile.
func (c *Client) SignIn(ctx context.Context, email, code string) (*api.User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, ErrEmptyEmail
	}
	resp, err := c.api.Auth.VerifyCode(ctx, email, strings.TrimSpace(code))
	if err != nil {
		return nil, fmt.Errorf("sign in: %w", err)
	}
	slog.Info("Signed in", "user_id", resp.UserID, "new_user", resp.IsNewUser)
	user, err := c.user.Load(ctx)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// SignOut ends the session. The local credential and cached profile are dropped even when the
// backend cannot be reached.
func (c *Client) SignOut(ctx context.Context) error {
	err := c.api.Auth.Logout(ctx)
	c.user.Clear()
	if err != nil {
		slog.Warn("Logout request failed", "error", err)
	}
	return err
}

// Me returns the cached profile, fetching it on first use.
func (c *Client) Me(ctx context.Context) (*api.User, error) {
	if user, ok := c.user.Get(); ok {
		return &user, nil
	}
	return c.user.Load(ctx)
}

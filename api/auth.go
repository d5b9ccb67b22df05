package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/memoryful/memoryful/session"
)

// AuthService covers passwordless sign-in: a code is mailed to the user and exchanged for an
// access token. The refresh cookie is set by the same exchange.
type AuthService struct {
	wc *WebClient
}

// RequestVerificationCode asks the backend to mail a sign-in code to email.
func (s *AuthService) RequestVerificationCode(ctx context.Context, email string) error {
	req := s.wc.NewRequest(nil, nil, map[string]string{"email": email})
	return s.wc.call(ctx, "auth.request_code", http.MethodPost, "/api/auth/request-code", req, nil)
}

// VerifyCode exchanges a mailed code for a session and installs the returned token.
func (s *AuthService) VerifyCode(ctx context.Context, email, code string) (*AuthResponse, error) {
	var resp AuthResponse
	req := s.wc.NewRequest(nil, nil, map[string]string{"email": email, "code": code})
	if err := s.wc.call(ctx, "auth.verify_code", http.MethodPost, "/api/auth/verify-code", req, &resp); err != nil {
		return nil, err
	}
	if resp.Tokens.AccessToken == "" {
		return nil, &Error{Code: http.StatusUnauthorized, Message: "no access token in response", Kind: KindHTTP}
	}
	if err := s.wc.session.Set(ctx, resp.Tokens.AccessToken, session.ReasonLogin); err != nil {
		slog.Error("Failed to persist session token", "error", err)
	}
	s.wc.SetAuthToken(resp.Tokens.AccessToken)
	return &resp, nil
}

func (s *AuthService) Me(ctx context.Context) (*User, error) {
	var user User
	if err := s.wc.call(ctx, "auth.me", http.MethodGet, "/api/auth/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *AuthService) UpdateProfile(ctx context.Context, user User) error {
	return s.wc.call(ctx, "auth.update_profile", http.MethodPut, "/api/auth/me", s.wc.NewRequest(nil, nil, user), nil)
}

// Logout ends the session on the backend and always drops the local credential, even when the
// backend call fails.
func (s *AuthService) Logout(ctx context.Context) error {
	err := s.wc.call(ctx, "auth.logout", http.MethodGet, "/api/auth/logout", nil, nil)
	s.wc.SetAuthToken("")
	if cerr := s.wc.session.Clear(ctx, session.ReasonLogout); cerr != nil {
		slog.Error("Failed to clear session", "error", cerr)
	}
	return err
}

// Refresh forces a token refresh. It joins one already in flight.
func (s *AuthService) Refresh(ctx context.Context) (string, error) {
	return s.wc.Refresh(ctx)
}

// SessionsService lists and revokes the user's signed-in devices.
type SessionsService struct {
	wc *WebClient
}

func (s *SessionsService) List(ctx context.Context) ([]LoginSession, error) {
	var sessions []LoginSession
	if err := s.wc.call(ctx, "sessions.list", http.MethodGet, "/api/auth/sessions", nil, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

func (s *SessionsService) Revoke(ctx context.Context, id string) error {
	return s.wc.call(ctx, "sessions.revoke", http.MethodDelete, "/api/auth/sessions/"+pathEscape(id), nil, nil)
}

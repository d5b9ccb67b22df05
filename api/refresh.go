package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel"

	"github.com/memoryful/memoryful/metrics"
	"github.com/memoryful/memoryful/session"
	"github.com/memoryful/memoryful/traces"
)

// Refresh exchanges the refresh cookie for a new access token and installs it. Concurrent
// callers, including requests recovering from a 401, share one refresh call.
func (wc *WebClient) Refresh(ctx context.Context) (string, error) {
	return wc.awaitRefresh(ctx)
}

// awaitRefresh joins the refresh in flight or starts one. The refresh runs detached from ctx so
// that one caller giving up does not fail the others; ctx only bounds how long this caller waits.
func (wc *WebClient) awaitRefresh(ctx context.Context) (string, error) {
	ch := wc.refreshGroup.DoChan(wc.refreshPath, func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), wc.refreshTimeout)
		defer cancel()
		return wc.refresh(rctx)
	})
	select {
	case <-ctx.Done():
		return "", newTransportError(ctx, ctx.Err())
	case r := <-ch:
		if r.Err != nil {
			return "", r.Err
		}
		return r.Val.(string), nil
	}
}

// refresh performs the refresh call. Success stores the new token in the session and the default
// headers; any failure, including a success without a token, clears both.
func (wc *WebClient) refresh(ctx context.Context) (string, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "refresh_token")
	defer span.End()

	var tok Token
	err := wc.Do(ctx, &Request{Method: http.MethodGet, Path: wc.refreshPath, noRefresh: true}, &tok)
	if err == nil && tok.AccessToken == "" {
		err = &Error{Code: http.StatusUnauthorized, Message: MsgSessionExpired, Kind: KindAuthFailure}
	}
	if err != nil {
		failure := authFailure(err)
		slog.Warn("Token refresh failed, clearing session", "code", failure.Code, "error", err)
		metrics.Default().Refresh(ctx, metrics.RefreshFailure)
		wc.SetAuthToken("")
		if cerr := wc.session.Clear(ctx, session.ReasonExpired); cerr != nil {
			slog.Error("Failed to clear session", "error", cerr)
		}
		return "", traces.RecordError(ctx, failure)
	}

	if err := wc.session.Set(ctx, tok.AccessToken, session.ReasonRefresh); err != nil {
		// The token is cached in memory; only persistence failed.
		slog.Error("Failed to persist refreshed token", "error", err)
		traces.RecordError(ctx, fmt.Errorf("persisting refreshed token: %w", err))
	}
	wc.SetAuthToken(tok.AccessToken)
	metrics.Default().Refresh(ctx, metrics.RefreshSuccess)
	slog.Debug("Token refreshed")
	return tok.AccessToken, nil
}

package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/memoryful/memoryful/common"
	"github.com/memoryful/memoryful/config"
	"github.com/memoryful/memoryful/session"
	"github.com/memoryful/memoryful/traces"
)

// NewHTTPClient returns the client WebClient sends through: retries for transient failures,
// OpenTelemetry spans around each logical request, and a cookie jar so the refresh cookie set at
// login is sent back on refresh. With a non-nil store the jar's cookies are kept there, so a
// later process can still refresh.
func NewHTTPClient(ctx context.Context, cfg config.APIConfig, store session.Store) (*http.Client, error) {
	rc := retryablehttp.NewClient()
	rc.RetryMax = cfg.RetryMax
	rc.RetryWaitMin = cfg.RetryWaitMin
	rc.RetryWaitMax = cfg.RetryWaitMax
	rc.Backoff = common.Backoff
	rc.CheckRetry = checkRetry
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.Logger = slog.Default().With("component", "retryablehttp")
	rc.HTTPClient.Timeout = cfg.Timeout

	var jar http.CookieJar
	if store != nil {
		sj, err := newStoredJar(ctx, store)
		if err != nil {
			return nil, err
		}
		jar = sj
	} else {
		mj, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("creating cookie jar: %w", err)
		}
		jar = mj
	}
	return &http.Client{
		Transport: traces.NewRoundTripper(&retryablehttp.RoundTripper{Client: rc}),
		Jar:       jar,
	}, nil
}

// checkRetry retries connection failures and the statuses that mean "try again later". A 401
// belongs to the refresh coordinator and a 500 is not expected to change on retry.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}
	switch resp.StatusCode {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true, nil
	}
	return false, nil
}

package api

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"slices"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/sync/singleflight"

	"github.com/memoryful/memoryful/backend"
	"github.com/memoryful/memoryful/session"
)

const (
	AuthorizationHeader = "Authorization"

	DefaultRefreshPath    = "/api/auth/refresh"
	defaultRefreshTimeout = 15 * time.Second
)

// Request describes one outbound call. It is rebuilt into a fresh transport request for every
// attempt, so a retry after a refresh picks up the new credential.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	// Body is encoded as JSON. An io.Reader or []byte is sent as is; a reader is read once and
	// its bytes reused if the request is sent again.
	Body any

	// retried is set once the request has been re-issued after a refresh.
	retried bool
	// noRefresh marks the refresh call itself, which is never intercepted.
	noRefresh bool
}

func (r *Request) clone() *Request {
	c := *r
	c.Query = maps.Clone(r.Query)
	c.Header = r.Header.Clone()
	return &c
}

type WebClientOptions struct {
	BaseURL string
	// HTTPClient defaults to a plain client with a cookie jar. Use NewHTTPClient for the
	// retrying, traced transport.
	HTTPClient *http.Client
	// Session holds the credential. A nil session keeps it in memory.
	Session *session.Session
	// Headers are sent with every request that does not set them itself.
	Headers        http.Header
	RefreshPath    string
	RefreshTimeout time.Duration
}

// WebClient is the authenticated HTTP client. It attaches the cached credential to outgoing
// requests, unwraps response envelopes, normalizes every failure into *Error, and recovers from
// an expired credential with a single shared refresh.
type WebClient struct {
	client  *resty.Client
	session *session.Session

	headersMu sync.RWMutex
	headers   http.Header

	refreshGroup   singleflight.Group
	refreshPath    string
	refreshTimeout time.Duration
}

func NewWebClient(opts WebClientOptions) *WebClient {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		jar, _ := cookiejar.New(nil)
		httpClient = &http.Client{Jar: jar}
	}
	sess := opts.Session
	if sess == nil {
		sess = session.New(context.Background(), nil)
	}
	headers := opts.Headers.Clone()
	if headers == nil {
		headers = http.Header{}
	}
	if headers.Get("Accept") == "" {
		headers.Set("Accept", "application/json")
	}

	wc := &WebClient{
		client:         resty.NewWithClient(httpClient),
		session:        sess,
		headers:        headers,
		refreshPath:    opts.RefreshPath,
		refreshTimeout: opts.RefreshTimeout,
	}
	if wc.refreshPath == "" {
		wc.refreshPath = DefaultRefreshPath
	}
	if wc.refreshTimeout <= 0 {
		wc.refreshTimeout = defaultRefreshTimeout
	}
	if opts.BaseURL != "" {
		wc.client.SetBaseURL(opts.BaseURL)
	}
	wc.client.OnBeforeRequest(wc.decorate)
	wc.SetAuthToken(sess.Token())
	return wc
}

// Session returns the credential slot the client reads from.
func (wc *WebClient) Session() *session.Session {
	return wc.session
}

// SetAuthToken sets the default Authorization header sent with every request that does not
// carry its own. An empty token removes it.
func (wc *WebClient) SetAuthToken(token string) {
	wc.headersMu.Lock()
	defer wc.headersMu.Unlock()
	if token == "" {
		wc.headers.Del(AuthorizationHeader)
		return
	}
	wc.headers.Set(AuthorizationHeader, "Bearer "+token)
}

// outgoingAuth is the Authorization value decorate would attach to a request without its own.
func (wc *WebClient) outgoingAuth() string {
	if v := wc.DefaultHeader(AuthorizationHeader); v != "" {
		return v
	}
	if token := wc.session.Token(); token != "" {
		return "Bearer " + token
	}
	return ""
}

// DefaultHeader returns the current default value of header key.
func (wc *WebClient) DefaultHeader(key string) string {
	wc.headersMu.RLock()
	defer wc.headersMu.RUnlock()
	return wc.headers.Get(key)
}

// decorate fills in everything the caller left out: default headers, then the cached credential.
// Headers the caller set, Authorization included, are never replaced.
func (wc *WebClient) decorate(_ *resty.Client, req *resty.Request) error {
	wc.headersMu.RLock()
	for k, vs := range wc.headers {
		if _, ok := req.Header[k]; !ok {
			req.Header[k] = slices.Clone(vs)
		}
	}
	wc.headersMu.RUnlock()

	if req.Header.Get(AuthorizationHeader) == "" {
		if token := wc.session.Token(); token != "" {
			req.Header.Set(AuthorizationHeader, "Bearer "+token)
		}
	}
	if req.Header.Get(backend.RequestIDHeader) == "" {
		req.Header.Set(backend.RequestIDHeader, backend.NewRequestID())
	}
	return nil
}

// NewRequest builds a Request from the simple maps most calls need.
func (wc *WebClient) NewRequest(queryParams, headers map[string]string, body any) *Request {
	req := &Request{Body: body}
	if len(queryParams) > 0 {
		req.Query = url.Values{}
		for k, v := range queryParams {
			req.Query.Set(k, v)
		}
	}
	if len(headers) > 0 {
		req.Header = http.Header{}
		for k, v := range headers {
			req.Header.Set(k, v)
		}
	}
	return req
}

func (wc *WebClient) Get(ctx context.Context, path string, req *Request, res any) error {
	return wc.send(ctx, http.MethodGet, path, req, res)
}

func (wc *WebClient) Post(ctx context.Context, path string, req *Request, res any) error {
	return wc.send(ctx, http.MethodPost, path, req, res)
}

func (wc *WebClient) Put(ctx context.Context, path string, req *Request, res any) error {
	return wc.send(ctx, http.MethodPut, path, req, res)
}

func (wc *WebClient) Patch(ctx context.Context, path string, req *Request, res any) error {
	return wc.send(ctx, http.MethodPatch, path, req, res)
}

func (wc *WebClient) Delete(ctx context.Context, path string, req *Request, res any) error {
	return wc.send(ctx, http.MethodDelete, path, req, res)
}

func (wc *WebClient) send(ctx context.Context, method, path string, req *Request, res any) error {
	if req == nil {
		req = &Request{}
	}
	req = req.clone()
	req.Method = method
	req.Path = path
	return wc.Do(ctx, req, res)
}

// Do sends req and decodes the unwrapped envelope data into res, which may be nil. Every
// failure is returned as *Error.
//
// A 401 on a request that has not been retried yet triggers a refresh shared with every other
// request failing at the same time; the request is then sent once more. A second 401 is final.
func (wc *WebClient) Do(ctx context.Context, req *Request, res any) error {
	pending := req.clone()
	// A reader is consumed by the first attempt; keep its bytes for the retry.
	if r, ok := pending.Body.(io.Reader); ok {
		raw, err := io.ReadAll(r)
		if err != nil {
			return newTransportError(ctx, fmt.Errorf("reading request body: %w", err))
		}
		pending.Body = raw
	}
	explicitAuth := pending.Header.Get(AuthorizationHeader) != ""
	sentWith := wc.outgoingAuth()
	resp, err := wc.execute(ctx, pending)
	if err != nil {
		return newTransportError(ctx, err)
	}

	if resp.StatusCode() == http.StatusUnauthorized && !pending.retried && !pending.noRefresh {
		pending.retried = true
		if current := wc.outgoingAuth(); !explicitAuth && current != "" && current != sentWith {
			// A refresh settled while this attempt was in flight.
			slog.Debug("Credential changed since the request was sent, retrying", "method", pending.Method, "path", pending.Path)
		} else {
			slog.Debug("Credential rejected, refreshing", "method", pending.Method, "path", pending.Path)
			if _, err := wc.awaitRefresh(ctx); err != nil {
				return err
			}
		}
		resp, err = wc.execute(ctx, pending)
		if err != nil {
			return newTransportError(ctx, err)
		}
	}
	return decodeResponse(resp.StatusCode(), resp.Body(), res)
}

func (wc *WebClient) execute(ctx context.Context, req *Request) (*resty.Response, error) {
	r := wc.client.NewRequest().SetContext(ctx)
	for k, vs := range req.Header {
		r.Header[http.CanonicalHeaderKey(k)] = slices.Clone(vs)
	}
	if len(req.Query) > 0 {
		r.SetQueryParamsFromValues(req.Query)
	}
	if req.Body != nil {
		r.SetBody(req.Body)
	}
	return r.Execute(req.Method, req.Path)
}

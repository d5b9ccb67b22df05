package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memoryful/memoryful/backend"
	"github.com/memoryful/memoryful/session"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeEnvelope(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, map[string]any{"code": status, "msg": http.StatusText(status), "data": data})
}

func writeUnauthorized(w http.ResponseWriter) {
	writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "Not authenticated"})
}

type testBackend struct {
	store   *session.MemoryStore
	session *session.Session
	wc      *WebClient
	server  *httptest.Server
}

func newTestBackend(t *testing.T, token string, handler http.Handler) *testBackend {
	t.Helper()
	ctx := context.Background()
	store := session.NewMemoryStore()
	if token != "" {
		require.NoError(t, store.Set(ctx, session.TokenKey, token))
	}
	sess := session.New(ctx, store)
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	wc := NewWebClient(WebClientOptions{
		BaseURL:        srv.URL,
		Session:        sess,
		RefreshTimeout: 5 * time.Second,
	})
	return &testBackend{store: store, session: sess, wc: wc, server: srv}
}

// authServer answers /api/days/ with 401 unless the request carries "Bearer <valid>", and lets
// the test script the refresh endpoint.
type authServer struct {
	valid        string
	unauthorized atomic.Int32
	dataHits     atomic.Int32
	refreshes    atomic.Int32
	refresh      func(w http.ResponseWriter, r *http.Request)
}

func (s *authServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case DefaultRefreshPath:
		s.refreshes.Add(1)
		s.refresh(w, r)
	case "/api/days/":
		s.dataHits.Add(1)
		if r.Header.Get(AuthorizationHeader) != "Bearer "+s.valid {
			s.unauthorized.Add(1)
			writeUnauthorized(w)
			return
		}
		writeEnvelope(w, http.StatusOK, []DayListItem{{Timestamp: 1700000000, Steps: 42}})
	default:
		http.NotFound(w, r)
	}
}

func refreshWith(token string) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusOK, Token{AccessToken: token, TokenType: "bearer"})
	}
}

// waitFor blocks until n 401s have been served, so every request fails before the refresh
// answers.
func waitFor(counter *atomic.Int32, n int32) {
	deadline := time.Now().Add(3 * time.Second)
	for counter.Load() < n && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
}

func TestDecoratorAttachesCachedCredential(t *testing.T) {
	var got http.Header
	b := newTestBackend(t, "T1", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		writeEnvelope(w, http.StatusOK, nil)
	}))

	require.NoError(t, b.wc.Get(context.Background(), "/api/auth/me", nil, nil))
	assert.Equal(t, "Bearer T1", got.Get(AuthorizationHeader))
	assert.Equal(t, "application/json", got.Get("Accept"))
	assert.NotEmpty(t, got.Get(backend.RequestIDHeader))
}

func TestDecoratorKeepsExplicitAuthorization(t *testing.T) {
	var got string
	b := newTestBackend(t, "T1", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get(AuthorizationHeader)
		writeEnvelope(w, http.StatusOK, nil)
	}))

	req := b.wc.NewRequest(nil, map[string]string{"Authorization": "Bearer explicit"}, nil)
	require.NoError(t, b.wc.Get(context.Background(), "/api/auth/me", req, nil))
	assert.Equal(t, "Bearer explicit", got)

	b.wc.SetAuthToken("T9")
	require.NoError(t, b.wc.Get(context.Background(), "/api/auth/me", req, nil))
	assert.Equal(t, "Bearer explicit", got, "default header must not replace the caller's")
}

func TestDecoratorWithoutCredential(t *testing.T) {
	var got []string
	b := newTestBackend(t, "", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Values(AuthorizationHeader)
		writeEnvelope(w, http.StatusOK, nil)
	}))

	require.NoError(t, b.wc.Get(context.Background(), "/api/countries/all/", nil, nil))
	assert.Empty(t, got)
}

func TestDefaultHeadersAndSetAuthToken(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		writeEnvelope(w, http.StatusOK, nil)
	}))
	defer srv.Close()

	wc := NewWebClient(WebClientOptions{BaseURL: srv.URL, Headers: backend.DefaultHeaders("dev-1")})
	wc.SetAuthToken("T5")
	require.NoError(t, wc.Get(context.Background(), "/", nil, nil))
	assert.Equal(t, "dev-1", got.Get(backend.DeviceIDHeader))
	assert.Equal(t, "Bearer T5", got.Get(AuthorizationHeader))

	wc.SetAuthToken("")
	assert.Empty(t, wc.DefaultHeader(AuthorizationHeader))
	require.NoError(t, wc.Get(context.Background(), "/", nil, nil))
	assert.Empty(t, got.Get(AuthorizationHeader))
}

func TestRefreshAndRetry(t *testing.T) {
	s := &authServer{valid: "T2", refresh: refreshWith("T2")}
	b := newTestBackend(t, "T1", s)

	var days []DayListItem
	require.NoError(t, b.wc.Get(context.Background(), "/api/days/", nil, &days))
	require.Len(t, days, 1)
	assert.Equal(t, 42, days[0].Steps)

	assert.EqualValues(t, 1, s.refreshes.Load())
	assert.EqualValues(t, 2, s.dataHits.Load())
	assert.Equal(t, "T2", b.session.Token())
	stored, err := b.store.Get(context.Background(), session.TokenKey)
	require.NoError(t, err)
	assert.Equal(t, "T2", stored)
	assert.Equal(t, "Bearer T2", b.wc.DefaultHeader(AuthorizationHeader))
}

func TestConcurrentUnauthorizedShareOneRefresh(t *testing.T) {
	for _, n := range []int{2, 8} {
		s := &authServer{valid: "T2"}
		s.refresh = func(w http.ResponseWriter, r *http.Request) {
			waitFor(&s.unauthorized, int32(n))
			time.Sleep(100 * time.Millisecond)
			refreshWith("T2")(w, r)
		}
		b := newTestBackend(t, "T1", s)

		var wg sync.WaitGroup
		errs := make([]error, n)
		results := make([][]DayListItem, n)
		for i := range n {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs[i] = b.wc.Get(context.Background(), "/api/days/", nil, &results[i])
			}()
		}
		wg.Wait()

		for i := range n {
			require.NoError(t, errs[i])
			assert.Len(t, results[i], 1)
		}
		assert.EqualValues(t, 1, s.refreshes.Load(), "n=%d", n)
		assert.EqualValues(t, 2*n, s.dataHits.Load(), "each request retries exactly once")
		assert.Equal(t, "T2", b.session.Token())
	}
}

func TestRetriedRequestIsNotRefreshedAgain(t *testing.T) {
	// The refresh succeeds but the backend keeps rejecting the new token.
	s := &authServer{valid: "never", refresh: refreshWith("T2")}
	b := newTestBackend(t, "T1", s)

	err := b.wc.Get(context.Background(), "/api/days/", nil, nil)
	apiErr, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Code)
	assert.Equal(t, KindHTTP, apiErr.Kind)
	assert.Equal(t, "Not authenticated", apiErr.Message)
	assert.EqualValues(t, 2, s.dataHits.Load())
	assert.EqualValues(t, 1, s.refreshes.Load())
	assert.Equal(t, "T2", b.session.Token(), "a final 401 does not clear the session")
}

func TestRefreshFailureClearsSession(t *testing.T) {
	tests := []struct {
		name     string
		refresh  func(w http.ResponseWriter, r *http.Request)
		wantCode int
	}{
		{
			name:     "server error",
			refresh:  func(w http.ResponseWriter, r *http.Request) { writeJSON(w, 500, map[string]any{"detail": "boom"}) },
			wantCode: 500,
		},
		{
			name:     "ok without token",
			refresh:  func(w http.ResponseWriter, r *http.Request) { writeEnvelope(w, 200, map[string]any{}) },
			wantCode: 401,
		},
		{
			name:     "refresh rejected",
			refresh:  func(w http.ResponseWriter, r *http.Request) { writeUnauthorized(w) },
			wantCode: 401,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			const n = 3
			s := &authServer{valid: "T2"}
			s.refresh = func(w http.ResponseWriter, r *http.Request) {
				waitFor(&s.unauthorized, n)
				time.Sleep(50 * time.Millisecond)
				tt.refresh(w, r)
			}
			b := newTestBackend(t, "T1", s)

			var wg sync.WaitGroup
			errs := make([]error, n)
			for i := range n {
				wg.Add(1)
				go func() {
					defer wg.Done()
					errs[i] = b.wc.Get(context.Background(), "/api/days/", nil, nil)
				}()
			}
			wg.Wait()

			for _, err := range errs {
				require.True(t, IsAuthFailure(err), "got %v", err)
				assert.Equal(t, tt.wantCode, StatusCode(err))
			}
			assert.EqualValues(t, 1, s.refreshes.Load())
			assert.EqualValues(t, n, s.dataHits.Load(), "no request is retried")
			assert.Empty(t, b.session.Token())
			assert.Empty(t, b.wc.DefaultHeader(AuthorizationHeader))
			_, err := b.store.Get(context.Background(), session.TokenKey)
			assert.ErrorIs(t, err, session.ErrNotFound)
		})
	}
}

func TestRefreshServerErrorClearsSession(t *testing.T) {
	s := &authServer{valid: "T2", refresh: func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}}
	b := newTestBackend(t, "T1", s)

	err := b.wc.Get(context.Background(), "/api/days/", nil, nil)
	apiErr, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, 500, apiErr.Code)
	assert.Equal(t, KindAuthFailure, apiErr.Kind)
	assert.Equal(t, MsgUnknownError, apiErr.Message)
	assert.False(t, b.session.Authenticated())
	assert.Empty(t, b.wc.DefaultHeader(AuthorizationHeader))
}

func TestCanceledWaiterDoesNotCancelSharedRefresh(t *testing.T) {
	release := make(chan struct{})
	s := &authServer{valid: "T2"}
	s.refresh = func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-time.After(5 * time.Second):
		}
		refreshWith("T2")(w, r)
	}
	b := newTestBackend(t, "T1", s)

	ctxA, cancelA := context.WithCancel(context.Background())
	defer cancelA()
	errA := make(chan error, 1)
	errB := make(chan error, 1)
	go func() { errA <- b.wc.Get(ctxA, "/api/days/", nil, nil) }()
	go func() { errB <- b.wc.Get(context.Background(), "/api/days/", nil, nil) }()

	require.Eventually(t, func() bool {
		return s.unauthorized.Load() == 2 && s.refreshes.Load() == 1
	}, 3*time.Second, 5*time.Millisecond)
	cancelA()

	select {
	case err := <-errA:
		apiErr, ok := AsError(err)
		require.True(t, ok)
		assert.Equal(t, KindCanceled, apiErr.Kind)
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(2 * time.Second):
		t.Fatal("canceled waiter did not return")
	}

	close(release)
	select {
	case err := <-errB:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("remaining waiter did not finish")
	}
	assert.EqualValues(t, 1, s.refreshes.Load())
	assert.Equal(t, "T2", b.session.Token())
}

func TestNetworkErrorMessage(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	wc := NewWebClient(WebClientOptions{BaseURL: url})
	for _, method := range []string{http.MethodGet, http.MethodPost, http.MethodDelete} {
		err := wc.Do(context.Background(), &Request{Method: method, Path: "/api/tags/", Body: map[string]string{"message": "ignored"}}, nil)
		apiErr, ok := AsError(err)
		require.True(t, ok)
		assert.Equal(t, MsgNetworkError, apiErr.Message)
		assert.Equal(t, CodeNoResponse, apiErr.Code)
		assert.Equal(t, KindNetwork, apiErr.Kind)
		assert.True(t, IsNetworkError(err))
	}
}

func TestEnvelopeErrorOnSuccessStatus(t *testing.T) {
	b := newTestBackend(t, "", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"code": 404, "msg": "Day not found"})
	}))

	var day DayDetail
	err := b.wc.Get(context.Background(), "/api/days/1", nil, &day)
	apiErr, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, 404, apiErr.Code)
	assert.Equal(t, "Day not found", apiErr.Message)
	assert.Equal(t, KindHTTP, apiErr.Kind)
}

func TestRequestIsNotMutatedByDo(t *testing.T) {
	s := &authServer{valid: "T2", refresh: refreshWith("T2")}
	b := newTestBackend(t, "T1", s)

	req := &Request{Method: http.MethodGet, Path: "/api/days/"}
	require.NoError(t, b.wc.Do(context.Background(), req, nil))
	assert.False(t, req.retried)

	// The session now holds a valid token, so the same request succeeds first time.
	require.NoError(t, b.wc.Do(context.Background(), req, nil))
	assert.EqualValues(t, 1, s.refreshes.Load())
	assert.EqualValues(t, 3, s.dataHits.Load())
}

func TestUnauthorizedAfterRefreshSettledRetriesWithoutRefresh(t *testing.T) {
	s := &authServer{valid: "T2", refresh: refreshWith("T3")}
	var b *testBackend
	var once sync.Once
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/days/" {
			// Another request's refresh lands while this one is still in flight.
			once.Do(func() {
				assert.NoError(t, b.session.Set(context.Background(), "T2", session.ReasonRefresh))
				b.wc.SetAuthToken("T2")
			})
		}
		s.ServeHTTP(w, r)
	})
	b = newTestBackend(t, "T1", handler)

	var days []DayListItem
	require.NoError(t, b.wc.Get(context.Background(), "/api/days/", nil, &days))
	assert.Len(t, days, 1)
	assert.Zero(t, s.refreshes.Load(), "the newer credential is used without another refresh")
	assert.EqualValues(t, 2, s.dataHits.Load())
}

func TestRetryResendsReaderBody(t *testing.T) {
	var bodies []string
	var mu sync.Mutex
	b := newTestBackend(t, "T1", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == DefaultRefreshPath {
			refreshWith("T2")(w, r)
			return
		}
		raw, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, string(raw))
		mu.Unlock()
		if r.Header.Get(AuthorizationHeader) != "Bearer T2" {
			writeUnauthorized(w)
			return
		}
		writeEnvelope(w, http.StatusOK, nil)
	}))

	req := &Request{Body: strings.NewReader(`{"title":"day"}`)}
	require.NoError(t, b.wc.Post(context.Background(), "/api/days/1700000000/", req, nil))
	assert.Equal(t, []string{`{"title":"day"}`, `{"title":"day"}`}, bodies)
}

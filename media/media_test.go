package media

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memoryful/memoryful/api"
)

type fakePresigner struct {
	put      *api.PresignPutResponse
	putErr   error
	lastPut  api.PresignPutRequest
	getCalls atomic.Int32
	getErr   error
}

func (f *fakePresigner) PresignPut(_ context.Context, body api.PresignPutRequest) (*api.PresignPutResponse, error) {
	f.lastPut = body
	return f.put, f.putErr
}

func (f *fakePresigner) PresignGet(_ context.Context, body api.PresignGetRequest) (*api.PresignGetResponse, error) {
	f.getCalls.Add(1)
	if f.getErr != nil {
		return nil, f.getErr
	}
	return &api.PresignGetResponse{DownloadURL: "https://cdn.test/" + body.ObjectKey + "?sig=1"}, nil
}

func TestUpload(t *testing.T) {
	var gotType, gotAuth, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		gotType = r.Header.Get("Content-Type")
		gotAuth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		gotBody = string(raw)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	presign := &fakePresigner{put: &api.PresignPutResponse{UploadURL: srv.URL + "/bucket/obj", ObjectKey: "users/u1/day/a.jpg"}}
	u := NewUploader(presign, nil)
	ts := int64(1700000000)

	key, err := u.Upload(context.Background(), UploadParams{
		Filename:     "a.jpg",
		Body:         strings.NewReader("jpeg-bytes"),
		Intent:       api.IntentDayImage,
		DayTimestamp: &ts,
	})
	require.NoError(t, err)
	assert.Equal(t, "users/u1/day/a.jpg", key)
	assert.Equal(t, "application/octet-stream", gotType)
	assert.Equal(t, "application/octet-stream", presign.lastPut.ContentType)
	assert.Equal(t, &ts, presign.lastPut.DayTimestamp)
	assert.Empty(t, gotAuth)
	assert.Equal(t, "jpeg-bytes", gotBody)
}

func TestUploadFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("SignatureDoesNotMatch"))
	}))
	defer srv.Close()
	ctx := context.Background()
	params := UploadParams{Filename: "a.png", ContentType: "image/png", Body: strings.NewReader("x")}

	_, err := NewUploader(&fakePresigner{putErr: errors.New("offline")}, nil).Upload(ctx, params)
	assert.ErrorIs(t, err, ErrPresignFailed)

	_, err = NewUploader(&fakePresigner{put: &api.PresignPutResponse{ObjectKey: "k"}}, nil).Upload(ctx, params)
	assert.ErrorIs(t, err, ErrInvalidPresign)

	_, err = NewUploader(&fakePresigner{put: &api.PresignPutResponse{UploadURL: srv.URL, ObjectKey: "k"}}, nil).Upload(ctx, params)
	var uerr *UploadError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, http.StatusForbidden, uerr.Status)
	assert.Equal(t, "SignatureDoesNotMatch", uerr.Body)
	assert.Equal(t, "upload failed (403) SignatureDoesNotMatch", uerr.Error())
}

func TestResolve(t *testing.T) {
	presign := &fakePresigner{}
	r := NewResolver(presign, "/src/assets/img/", 4)
	defer r.Close()
	ctx := context.Background()

	tests := []struct {
		src  string
		want string
	}{
		{"", ""},
		{"https://example.com/a.png", "https://example.com/a.png"},
		{"http://example.com/a.png", "http://example.com/a.png"},
		{"users/u1/a.png", "https://cdn.test/users/u1/a.png?sig=1"},
		{"default/bg.jpg", "/src/assets/img/default/bg.jpg"},
	}
	for _, tt := range tests {
		got, err := r.Resolve(ctx, tt.src)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, tt.src)
	}

	_, err := r.Resolve(ctx, "users/u1/a.png")
	require.NoError(t, err)
	assert.EqualValues(t, 1, presign.getCalls.Load(), "presigned URLs are cached per key")

	r.Forget("users/u1/a.png")
	_, err = r.Resolve(ctx, "users/u1/a.png")
	require.NoError(t, err)
	assert.EqualValues(t, 2, presign.getCalls.Load())
}

func TestResolveAll(t *testing.T) {
	presign := &fakePresigner{}
	r := NewResolver(presign, "/assets/", 3)
	defer r.Close()

	srcs := []string{"users/a.png", "users/b.mp4", "bg.jpg", "users/a.png", ""}
	urls, err := r.ResolveAll(context.Background(), srcs)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://cdn.test/users/a.png?sig=1",
		"https://cdn.test/users/b.mp4?sig=1",
		"/assets/bg.jpg",
		"https://cdn.test/users/a.png?sig=1",
		"",
	}, urls)
	assert.LessOrEqual(t, presign.getCalls.Load(), int32(3))

	failing := NewResolver(&fakePresigner{getErr: errors.New("denied")}, "/assets/", 2)
	defer failing.Close()
	urls, err = failing.ResolveAll(context.Background(), []string{"users/x.png", "ok.png"})
	assert.Error(t, err)
	assert.Equal(t, []string{"", "/assets/ok.png"}, urls)
}

func TestIsVideo(t *testing.T) {
	assert.True(t, IsVideo("users/u1/clip.MP4"))
	assert.True(t, IsVideo("users/u1/clip.webm?sig=abc"))
	assert.True(t, IsVideo("a.mov"))
	assert.False(t, IsVideo("users/u1/photo.jpg"))
	assert.False(t, IsVideo("noext"))
}

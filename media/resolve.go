package media

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/alitto/pond"
	"golang.org/x/sync/singleflight"

	"github.com/memoryful/memoryful/api"
)

const userObjectPrefix = "users/"

var videoExtensions = map[string]bool{
	".mp4":  true,
	".webm": true,
	".mov":  true,
	".m4v":  true,
	".avi":  true,
}

// IsVideo reports whether key names a video file.
func IsVideo(key string) bool {
	if i := strings.IndexAny(key, "?#"); i >= 0 {
		key = key[:i]
	}
	return videoExtensions[strings.ToLower(path.Ext(key))]
}

type GetPresigner interface {
	PresignGet(ctx context.Context, body api.PresignGetRequest) (*api.PresignGetResponse, error)
}

// Resolver turns stored media references into URLs a client can load. Presigned URLs are cached
// per object key for the life of the Resolver.
type Resolver struct {
	presign      GetPresigner
	assetsPrefix string

	mu    sync.RWMutex
	cache map[string]string
	group singleflight.Group
	pool  *pond.WorkerPool
}

// NewResolver returns a Resolver that resolves up to workers references at a time in ResolveAll.
func NewResolver(presign GetPresigner, assetsPrefix string, workers int) *Resolver {
	if workers < 1 {
		workers = 1
	}
	return &Resolver{
		presign:      presign,
		assetsPrefix: assetsPrefix,
		cache:        make(map[string]string),
		pool:         pond.New(workers, 1000),
	}
}

// Resolve maps src to a URL. Empty stays empty, absolute URLs pass through, object keys under
// users/ are presigned, and anything else is a bundled asset under the assets prefix.
func (r *Resolver) Resolve(ctx context.Context, src string) (string, error) {
	switch {
	case src == "":
		return "", nil
	case strings.HasPrefix(src, "http://"), strings.HasPrefix(src, "https://"):
		return src, nil
	case strings.HasPrefix(src, userObjectPrefix):
		return r.presigned(ctx, src)
	default:
		return r.assetsPrefix + src, nil
	}
}

func (r *Resolver) presigned(ctx context.Context, key string) (string, error) {
	r.mu.RLock()
	url, ok := r.cache[key]
	r.mu.RUnlock()
	if ok {
		return url, nil
	}
	v, err, _ := r.group.Do(key, func() (any, error) {
		resp, err := r.presign.PresignGet(ctx, api.PresignGetRequest{ObjectKey: key})
		if err != nil {
			return "", err
		}
		if resp == nil || resp.DownloadURL == "" {
			return "", nil
		}
		r.mu.Lock()
		r.cache[key] = resp.DownloadURL
		r.mu.Unlock()
		return resp.DownloadURL, nil
	})
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", key, err)
	}
	return v.(string), nil
}

// ResolveAll resolves srcs concurrently. The result is index-aligned with srcs; a reference that
// failed resolves to "" and its error is included in the returned error.
func (r *Resolver) ResolveAll(ctx context.Context, srcs []string) ([]string, error) {
	out := make([]string, len(srcs))
	var (
		errMu sync.Mutex
		errs  error
	)
	group := r.pool.Group()
	for i, src := range srcs {
		group.Submit(func() {
			url, err := r.Resolve(ctx, src)
			if err != nil {
				errMu.Lock()
				errs = errors.Join(errs, err)
				errMu.Unlock()
				return
			}
			out[i] = url
		})
	}
	group.Wait()
	return out, errs
}

// Forget drops any cached URL for key, for example after it expired.
func (r *Resolver) Forget(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cache, key)
}

// Close stops the worker pool.
func (r *Resolver) Close() {
	r.pool.StopAndWait()
}

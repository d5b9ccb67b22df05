// Package media moves user images and videos in and out of the object store through presigned
// URLs issued by the API.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"

	"github.com/memoryful/memoryful/api"
	"github.com/memoryful/memoryful/metrics"
	"github.com/memoryful/memoryful/traces"
)

const tracerName = "github.com/memoryful/memoryful/media"

const defaultContentType = "application/octet-stream"

var (
	ErrPresignFailed  = errors.New("presign request failed")
	ErrInvalidPresign = errors.New("failed to get upload URL")
)

// UploadError is returned when the object store rejects the upload.
type UploadError struct {
	Status int
	Body   string
}

func (e *UploadError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("upload failed (%d) %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("upload failed (%d) %s", e.Status, e.Body)
}

type PutPresigner interface {
	PresignPut(ctx context.Context, body api.PresignPutRequest) (*api.PresignPutResponse, error)
}

type UploadParams struct {
	Filename    string
	ContentType string
	Body        io.Reader
	Intent      api.UploadIntent

	DayTimestamp     *int64
	Year             *int
	Month            *int
	WorkspacePageKey string
}

// Uploader sends files straight to the object store. The presigned URL carries its own
// authorization, so the upload does not go through the API client.
type Uploader struct {
	presign PutPresigner
	client  *resty.Client
}

// NewUploader returns an Uploader. A nil httpClient uses a traced default client.
func NewUploader(presign PutPresigner, httpClient *http.Client) *Uploader {
	if httpClient == nil {
		httpClient = &http.Client{Transport: traces.NewRoundTripper(nil)}
	}
	return &Uploader{presign: presign, client: resty.NewWithClient(httpClient)}
}

// Upload presigns a PUT for p, uploads the body and returns the object key to store on the
// owning record.
func (u *Uploader) Upload(ctx context.Context, p UploadParams) (string, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "upload")
	defer span.End()

	contentType := p.ContentType
	if contentType == "" {
		contentType = defaultContentType
	}
	presign, err := u.presign.PresignPut(ctx, api.PresignPutRequest{
		Intent:           p.Intent,
		Filename:         p.Filename,
		ContentType:      contentType,
		DayTimestamp:     p.DayTimestamp,
		Year:             p.Year,
		Month:            p.Month,
		WorkspacePageKey: p.WorkspacePageKey,
	})
	if err != nil {
		slog.Error("presignPut failed", "error", err)
		return "", traces.RecordError(ctx, fmt.Errorf("%w: %w", ErrPresignFailed, err))
	}
	if presign == nil || presign.UploadURL == "" || presign.ObjectKey == "" {
		slog.Error("Invalid presign response", "response", presign)
		return "", traces.RecordError(ctx, ErrInvalidPresign)
	}

	resp, err := u.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", contentType).
		SetBody(p.Body).
		Put(presign.UploadURL)
	if err != nil {
		metrics.Default().Upload(ctx, string(p.Intent), false)
		return "", traces.RecordError(ctx, fmt.Errorf("uploading %s: %w", p.Filename, err))
	}
	if !resp.IsSuccess() {
		uerr := &UploadError{Status: resp.StatusCode(), Body: resp.String()}
		slog.Error("Upload failed", "status", uerr.Status, "body", uerr.Body)
		metrics.Default().Upload(ctx, string(p.Intent), false)
		return "", traces.RecordError(ctx, uerr)
	}
	metrics.Default().Upload(ctx, string(p.Intent), true)
	return presign.ObjectKey, nil
}

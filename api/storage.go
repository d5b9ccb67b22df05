package api

import (
	"context"
	"net/http"
)

// StorageService issues presigned URLs for the object store.
type StorageService struct {
	wc *WebClient
}

func (s *StorageService) PresignPut(ctx context.Context, body PresignPutRequest) (*PresignPutResponse, error) {
	var resp PresignPutResponse
	if err := s.wc.call(ctx, "storage.presign_put", http.MethodPost, "/api/storage/presign-put", s.wc.NewRequest(nil, nil, body), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (s *StorageService) PresignGet(ctx context.Context, body PresignGetRequest) (*PresignGetResponse, error) {
	var resp PresignGetResponse
	if err := s.wc.call(ctx, "storage.presign_get", http.MethodPost, "/api/storage/presign-get", s.wc.NewRequest(nil, nil, body), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

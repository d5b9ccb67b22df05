package api

import (
	"context"
	"net/http"
)

type WorkspacesService struct {
	wc *WebClient
}

func (s *WorkspacesService) Mine(ctx context.Context) (*WorkspaceSettings, error) {
	var ws WorkspaceSettings
	if err := s.wc.call(ctx, "workspaces.mine", http.MethodGet, "/api/workspaces/me", nil, &ws); err != nil {
		return nil, err
	}
	return &ws, nil
}

// UpdateMine applies patch and returns the settings as stored by the backend.
func (s *WorkspacesService) UpdateMine(ctx context.Context, patch WorkspacePatch) (*WorkspaceSettings, error) {
	var ws WorkspaceSettings
	req := s.wc.NewRequest(nil, nil, patch)
	if err := s.wc.call(ctx, "workspaces.update_mine", http.MethodPut, "/api/workspaces/me", req, &ws); err != nil {
		return nil, err
	}
	return &ws, nil
}

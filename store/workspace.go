package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/memoryful/memoryful/api"
)

type WorkspaceAPI interface {
	Mine(ctx context.Context) (*api.WorkspaceSettings, error)
	UpdateMine(ctx context.Context, patch api.WorkspacePatch) (*api.WorkspaceSettings, error)
}

// Workspace holds the per-page background settings. A nil background means none is set.
type Workspace struct {
	mu       sync.RWMutex
	settings api.WorkspaceSettings
	api      WorkspaceAPI
}

func NewWorkspace(workspaceAPI WorkspaceAPI) *Workspace {
	return &Workspace{api: workspaceAPI}
}

func (w *Workspace) Settings() api.WorkspaceSettings {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.settings
}

// Set applies patch to the local settings without calling the backend.
func (w *Workspace) Set(patch api.WorkspacePatch) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.settings = patch.Apply(w.settings)
}

// Fetch replaces the local settings with the backend's.
func (w *Workspace) Fetch(ctx context.Context) (api.WorkspaceSettings, error) {
	ws, err := w.api.Mine(ctx)
	if err != nil {
		return api.WorkspaceSettings{}, fmt.Errorf("fetching workspace: %w", err)
	}
	return w.replace(ws), nil
}

// Update sends patch and replaces the local settings with what the backend stored.
func (w *Workspace) Update(ctx context.Context, patch api.WorkspacePatch) (api.WorkspaceSettings, error) {
	ws, err := w.api.UpdateMine(ctx, patch)
	if err != nil {
		return api.WorkspaceSettings{}, fmt.Errorf("updating workspace: %w", err)
	}
	return w.replace(ws), nil
}

func (w *Workspace) replace(ws *api.WorkspaceSettings) api.WorkspaceSettings {
	w.mu.Lock()
	defer w.mu.Unlock()
	if ws == nil {
		w.settings = api.WorkspaceSettings{}
	} else {
		w.settings = *ws
	}
	return w.settings
}

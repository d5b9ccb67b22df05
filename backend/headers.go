// Package backend holds the identification headers every memoryful request carries.
package backend

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/memoryful/memoryful/app"
	"github.com/memoryful/memoryful/session"
)

const (
	AppNameHeader   = "X-Memoryful-App"
	VersionHeader   = "X-Memoryful-Version"
	PlatformHeader  = "X-Memoryful-Platform"
	DeviceIDHeader  = "X-Memoryful-Device-Id"
	RequestIDHeader = "X-Request-Id"

	// DeviceIDKey is the store key the device id is kept under.
	DeviceIDKey = "memoryful:device-id"
)

// DefaultHeaders returns the headers sent with every request from this device.
func DefaultHeaders(deviceID string) http.Header {
	h := http.Header{}
	h.Set(AppNameHeader, app.Name)
	h.Set(VersionHeader, app.Version)
	h.Set(PlatformHeader, app.Platform)
	if deviceID != "" {
		h.Set(DeviceIDHeader, deviceID)
	}
	return h
}

// NewRequestID returns a fresh id for the X-Request-Id header.
func NewRequestID() string {
	return uuid.NewString()
}

// DeviceID returns the id stored in store, generating and saving one on first use. A store
// failure still yields a usable id; it just won't survive a restart.
func DeviceID(ctx context.Context, store session.Store) string {
	id, err := store.Get(ctx, DeviceIDKey)
	if err == nil && id != "" {
		return id
	}
	if err != nil && !errors.Is(err, session.ErrNotFound) {
		slog.Warn("Failed to read device id", "error", err)
	}
	id = uuid.NewString()
	if err := store.Set(ctx, DeviceIDKey, id); err != nil {
		slog.Warn("Failed to persist device id", "error", err)
	}
	return id
}

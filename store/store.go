// Package store keeps client-side state fetched from the API: the signed-in user, workspace
// settings and the months of each year, with a persistent cache for the latter.
package store

import "errors"

// ErrNotFound is returned when the requested item exists neither locally nor on the backend.
var ErrNotFound = errors.New("store: not found")

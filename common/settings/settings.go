// Package settings is a small persistent key-value store backed by a JSON file. Values are
// loaded with koanf, every write is flushed to disk atomically, and a read-only instance can
// follow changes made to the file by another process.
package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/memoryful/memoryful/internal"
	"github.com/memoryful/memoryful/session"
)

// keys are stored flat, so the koanf path delimiter must never appear in them
const delim = "\x00"

var ErrReadOnly = errors.New("read-only")

// Store implements session.Store on top of a JSON file.
type Store struct {
	mu       sync.RWMutex
	k        *koanf.Koanf
	parser   koanf.Parser
	path     string
	readOnly bool
	watcher  *internal.FileWatcher
	onReload []func()
}

var _ session.Store = (*Store)(nil)

// Open loads the settings file at path, creating it (and its directory) if it does not exist.
func Open(path string) (*Store, error) {
	s := &Store{
		k:      koanf.New(delim),
		parser: json.Parser(),
		path:   path,
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating settings directory: %w", err)
	}
	// 1. Try to read the existing file
	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// 2. It doesn't exist yet, so write an empty document
		if err := s.save(); err != nil {
			return nil, fmt.Errorf("creating settings file: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("reading settings file: %w", err)
	default:
		// 3. It exists, so it has to parse
		if err := s.k.Load(rawbytes.Provider(raw), s.parser); err != nil {
			return nil, fmt.Errorf("parsing settings file %s: %w", path, err)
		}
	}
	return s, nil
}

// OpenReadOnly loads an existing settings file without ever writing to it. When watch is true,
// changes made to the file by another process are picked up automatically.
func OpenReadOnly(path string, watch bool) (*Store, error) {
	s := &Store{
		parser:   json.Parser(),
		path:     path,
		readOnly: true,
	}
	if err := s.reload(); err != nil {
		return nil, fmt.Errorf("opening read-only settings: %w", err)
	}
	if watch {
		s.watcher = internal.NewFileWatcher(path, func() {
			if err := s.reload(); err != nil {
				slog.Error("reloading settings file", "path", path, "error", err)
				return
			}
			s.mu.RLock()
			fns := append([]func(){}, s.onReload...)
			s.mu.RUnlock()
			for _, fn := range fns {
				fn()
			}
		})
		if err := s.watcher.Start(); err != nil {
			return nil, fmt.Errorf("starting settings file watcher: %w", err)
		}
	}
	return s, nil
}

func (s *Store) reload() error {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}
	k := koanf.New(delim)
	if err := k.Load(rawbytes.Provider(raw), s.parser); err != nil {
		return fmt.Errorf("parsing settings: %w", err)
	}
	s.mu.Lock()
	s.k = k
	s.mu.Unlock()
	return nil
}

// OnReload registers fn to run after the watched file has been reloaded.
func (s *Store) OnReload(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onReload = append(s.onReload, fn)
}

// ReadOnly reports whether the store was opened with OpenReadOnly.
func (s *Store) ReadOnly() bool {
	return s.readOnly
}

// Path returns the backing file.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.k.Exists(key) {
		return "", session.ErrNotFound
	}
	return s.k.String(key), nil
}

func (s *Store) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readOnly {
		return ErrReadOnly
	}
	if err := s.k.Set(key, value); err != nil {
		return fmt.Errorf("could not set key %s: %w", key, err)
	}
	return s.save()
}

func (s *Store) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readOnly {
		return ErrReadOnly
	}
	if !s.k.Exists(key) {
		return nil
	}
	s.k.Delete(key)
	return s.save()
}

// Close stops watching the file, if a watcher was started.
func (s *Store) Close() error {
	if s.watcher != nil {
		return s.watcher.Close()
	}
	return nil
}

// save must be called with s.mu held for writing.
func (s *Store) save() error {
	if s.readOnly {
		return ErrReadOnly
	}
	out, err := s.k.Marshal(s.parser)
	if err != nil {
		return fmt.Errorf("could not marshal settings: %w", err)
	}
	if err := writeFileAtomic(s.path, out, 0o600); err != nil {
		return fmt.Errorf("could not write settings: %w", err)
	}
	return nil
}

// writeFileAtomic writes to a temp file in the same directory and renames it over the target,
// which is atomic on POSIX systems.
func writeFileAtomic(filename string, data []byte, perm os.FileMode) (err error) {
	f, err := os.CreateTemp(filepath.Dir(filename), filepath.Base(filename)+".tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			f.Close()
			_ = os.Remove(f.Name())
		}
	}()
	if _, err = f.Write(data); err != nil {
		return err
	}
	if runtime.GOOS != "windows" {
		if err = f.Chmod(perm); err != nil {
			return err
		}
	}
	if err = f.Sync(); err != nil {
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	// os.Rename fails on Windows if the target exists
	if runtime.GOOS == "windows" {
		_ = os.Remove(filename)
	}
	return os.Rename(f.Name(), filename)
}

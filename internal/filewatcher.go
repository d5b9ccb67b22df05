package internal

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// defaultSettle is how long the watcher waits for a burst of writes to end before firing.
const defaultSettle = 100 * time.Millisecond

// FileWatcher calls a callback whenever a single file is created or written. The parent directory
// is watched rather than the file itself so that atomic rename-over writes are observed.
type FileWatcher struct {
	watcher  *fsnotify.Watcher
	dir      string
	target   string
	callback func()
	settle   time.Duration
	closeC   chan struct{}
	started  atomic.Bool
}

// NewFileWatcher creates a watcher for path. It does nothing until Start is called.
func NewFileWatcher(path string, callback func()) *FileWatcher {
	clean := filepath.Clean(path)
	return &FileWatcher{
		dir:      filepath.Dir(clean),
		target:   clean,
		callback: callback,
		settle:   defaultSettle,
	}
}

func (fw *FileWatcher) Start() error {
	if !fw.started.CompareAndSwap(false, true) {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		fw.started.Store(false)
		return fmt.Errorf("start watcher: %w", err)
	}
	if err := watcher.Add(fw.dir); err != nil {
		watcher.Close()
		fw.started.Store(false)
		return fmt.Errorf("watch %s: %w", fw.dir, err)
	}
	fw.watcher = watcher
	fw.closeC = make(chan struct{})
	slog.Debug("Watching file", "path", fw.target)
	go fw.watchLoop()
	return nil
}

func (fw *FileWatcher) Close() error {
	if !fw.started.CompareAndSwap(true, false) {
		return nil
	}
	close(fw.closeC)
	return fw.watcher.Close()
}

func (fw *FileWatcher) watchLoop() {
	var (
		timer   *time.Timer
		timerMu sync.Mutex
	)
	for {
		select {
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != fw.target {
				continue
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
				continue
			}
			// writes arrive in chunks; fire once the file has been quiet for fw.settle
			timerMu.Lock()
			if timer == nil {
				timer = time.AfterFunc(fw.settle, func() {
					fw.callback()
					timerMu.Lock()
					timer = nil
					timerMu.Unlock()
				})
			} else {
				timer.Reset(fw.settle)
			}
			timerMu.Unlock()
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("Error watching file", "path", fw.target, "error", err)
		case <-fw.closeC:
			timerMu.Lock()
			if timer != nil {
				timer.Stop()
			}
			timerMu.Unlock()
			return
		}
	}
}

// Package autocomplete runs debounced searches against a fetch function, keeping only the result
// of the latest query.
package autocomplete

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	DefaultMinQueryLength = 2
	DefaultDebounce       = 300 * time.Millisecond
)

type FetchFunc[T any] func(ctx context.Context, query string) ([]T, error)

type Options struct {
	MinQueryLength int
	Debounce       time.Duration
	// OnUpdate, if set, is called after every state change.
	OnUpdate func()
}

// State is a snapshot of the searcher.
type State[T any] struct {
	Query   string
	Items   []T
	Loading bool
	Open    bool
	Err     error
}

// Searcher debounces queries: each Search cancels the pending or running search and starts a new
// timer. Queries shorter than the minimum length clear the results immediately.
type Searcher[T any] struct {
	fetch FetchFunc[T]
	opts  Options

	mu      sync.Mutex
	state   State[T]
	timer   *time.Timer
	cancel  context.CancelFunc
	seq     uint64
	closed  bool
	baseCtx context.Context
}

func New[T any](ctx context.Context, fetch FetchFunc[T], opts Options) *Searcher[T] {
	if opts.MinQueryLength <= 0 {
		opts.MinQueryLength = DefaultMinQueryLength
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	return &Searcher[T]{fetch: fetch, opts: opts, baseCtx: ctx}
}

// Search sets the query and schedules a fetch after the debounce window.
func (s *Searcher[T]) Search(query string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.stopLocked()
	s.seq++
	s.state.Query = query

	if len([]rune(query)) < s.opts.MinQueryLength {
		s.state.Items = nil
		s.state.Open = false
		s.state.Loading = false
		s.mu.Unlock()
		s.notify()
		return
	}

	seq := s.seq
	ctx, cancel := context.WithCancel(s.baseCtx)
	s.cancel = cancel
	s.timer = time.AfterFunc(s.opts.Debounce, func() { s.run(ctx, seq, query) })
	s.mu.Unlock()
}

func (s *Searcher[T]) run(ctx context.Context, seq uint64, query string) {
	s.mu.Lock()
	if seq != s.seq {
		s.mu.Unlock()
		return
	}
	s.state.Loading = true
	s.state.Err = nil
	s.mu.Unlock()
	s.notify()

	items, err := s.fetch(ctx, query)

	s.mu.Lock()
	if seq != s.seq {
		// Superseded while fetching.
		s.mu.Unlock()
		return
	}
	s.state.Loading = false
	if err != nil {
		slog.Debug("Autocomplete fetch failed", "query", query, "error", err)
		s.state.Err = err
		s.state.Items = nil
	} else {
		s.state.Items = items
		s.state.Open = len(items) > 0
	}
	s.mu.Unlock()
	s.notify()
}

// stopLocked cancels the pending timer and any running fetch.
func (s *Searcher[T]) stopLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *Searcher[T]) notify() {
	if s.opts.OnUpdate != nil {
		s.opts.OnUpdate()
	}
}

// Results returns the current snapshot.
func (s *Searcher[T]) Results() State[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state
	st.Items = append([]T(nil), s.state.Items...)
	return st
}

// Reset clears the query, results and error and cancels any pending search.
func (s *Searcher[T]) Reset() {
	s.mu.Lock()
	s.stopLocked()
	s.seq++
	s.state = State[T]{}
	s.mu.Unlock()
	s.notify()
}

// Close hides the results without clearing them.
func (s *Searcher[T]) Close() {
	s.mu.Lock()
	s.state.Open = false
	s.mu.Unlock()
	s.notify()
}

// Open shows the results again if there are any.
func (s *Searcher[T]) Open() {
	s.mu.Lock()
	if len(s.state.Items) > 0 {
		s.state.Open = true
	}
	s.mu.Unlock()
	s.notify()
}

// Stop cancels pending work for good. Later searches are ignored.
func (s *Searcher[T]) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	s.seq++
	s.closed = true
}

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/memoryful/memoryful/api"
	"github.com/memoryful/memoryful/session"
)

type MonthsAPI interface {
	Year(ctx context.Context, year int) ([]api.Month, error)
	Month(ctx context.Context, year, month int) (*api.Month, error)
	Create(ctx context.Context, m api.Month) error
	Update(ctx context.Context, m api.Month) error
}

func yearKey(year int) string {
	return "memoryful:data:months:" + strconv.Itoa(year)
}

// Years caches the months of each year. Lookups go to memory, then the persistent cache, then
// the backend; every change is written back to the cache.
type Years struct {
	mu    sync.Mutex
	years map[int][]api.Month

	api   MonthsAPI
	cache session.Store
	fetch singleflight.Group
}

// NewYears returns a Years store. A nil cache keeps everything in memory.
func NewYears(monthsAPI MonthsAPI, cache session.Store) *Years {
	if cache == nil {
		cache = session.NewMemoryStore()
	}
	return &Years{years: make(map[int][]api.Month), api: monthsAPI, cache: cache}
}

func (y *Years) cached(year int) ([]api.Month, bool) {
	y.mu.Lock()
	defer y.mu.Unlock()
	months, ok := y.years[year]
	return slices.Clone(months), ok
}

// Year returns the months of year. A year is fetched from the backend at most once.
func (y *Years) Year(ctx context.Context, year int) ([]api.Month, error) {
	if months, ok := y.cached(year); ok {
		return months, nil
	}
	// The fetch is shared, so one caller giving up must not fail the others.
	fctx := context.WithoutCancel(ctx)
	v, err, _ := y.fetch.Do(strconv.Itoa(year), func() (any, error) {
		if months, ok := y.cached(year); ok {
			return months, nil
		}
		if months, ok := y.loadCache(fctx, year); ok {
			y.set(year, months)
			return months, nil
		}
		months, err := y.api.Year(fctx, year)
		if err != nil {
			return nil, err
		}
		if months == nil {
			months = []api.Month{}
		}
		y.set(year, months)
		y.persist(fctx, year, months)
		return months, nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading year %d: %w", year, err)
	}
	return slices.Clone(v.([]api.Month)), nil
}

// Month returns one month: from the cached year, then the fetched year, then a single-month
// request. It returns ErrNotFound when the backend has no such month.
func (y *Years) Month(ctx context.Context, year, month int) (*api.Month, error) {
	if months, ok := y.cached(year); ok {
		if m := find(months, month); m != nil {
			return m, nil
		}
	}
	months, err := y.Year(ctx, year)
	if err != nil {
		return nil, err
	}
	if m := find(months, month); m != nil {
		return m, nil
	}

	m, err := y.api.Month(ctx, year, month)
	if e, ok := api.AsError(err); ok && e.Kind == api.KindHTTP && e.Code == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading month %d-%02d: %w", year, month, err)
	}
	if m == nil {
		return nil, ErrNotFound
	}
	y.upsert(ctx, *m)
	return m, nil
}

// CreateMonth creates m unless the month already exists. It reports whether it created it.
func (y *Years) CreateMonth(ctx context.Context, m api.Month) (bool, error) {
	_, err := y.Month(ctx, m.Year, m.Month)
	switch {
	case err == nil:
		return false, nil
	case !errors.Is(err, ErrNotFound):
		return false, err
	}
	if err := y.api.Create(ctx, m); err != nil {
		return false, fmt.Errorf("creating month %d-%02d: %w", m.Year, m.Month, err)
	}
	y.upsert(ctx, m)
	return true, nil
}

// UpdateMonth updates m if the month exists. It reports whether it updated it.
func (y *Years) UpdateMonth(ctx context.Context, m api.Month) (bool, error) {
	_, err := y.Month(ctx, m.Year, m.Month)
	switch {
	case errors.Is(err, ErrNotFound):
		return false, nil
	case err != nil:
		return false, err
	}
	if err := y.api.Update(ctx, m); err != nil {
		return false, fmt.Errorf("updating month %d-%02d: %w", m.Year, m.Month, err)
	}
	y.upsert(ctx, m)
	return true, nil
}

func find(months []api.Month, month int) *api.Month {
	for i := range months {
		if months[i].Month == month {
			m := months[i]
			return &m
		}
	}
	return nil
}

func (y *Years) upsert(ctx context.Context, m api.Month) {
	y.mu.Lock()
	months := slices.Clone(y.years[m.Year])
	if i := slices.IndexFunc(months, func(x api.Month) bool { return x.Month == m.Month }); i >= 0 {
		months[i] = m
	} else {
		months = append(months, m)
	}
	y.years[m.Year] = months
	y.mu.Unlock()
	y.persist(ctx, m.Year, months)
}

func (y *Years) set(year int, months []api.Month) {
	y.mu.Lock()
	defer y.mu.Unlock()
	y.years[year] = months
}

func (y *Years) persist(ctx context.Context, year int, months []api.Month) {
	raw, err := json.Marshal(months)
	if err != nil {
		slog.Error("Failed to encode months", "year", year, "error", err)
		return
	}
	if err := y.cache.Set(ctx, yearKey(year), string(raw)); err != nil {
		slog.Warn("Failed to cache months", "year", year, "error", err)
	}
}

func (y *Years) loadCache(ctx context.Context, year int) ([]api.Month, bool) {
	raw, err := y.cache.Get(ctx, yearKey(year))
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			slog.Warn("Failed to read cached months", "year", year, "error", err)
		}
		return nil, false
	}
	var months []api.Month
	if err := json.Unmarshal([]byte(raw), &months); err != nil {
		slog.Warn("Discarding corrupt month cache", "year", year, "error", err)
		return nil, false
	}
	return months, true
}

package store

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memoryful/memoryful/api"
	"github.com/memoryful/memoryful/session"
)

type fakeMonths struct {
	mu       sync.Mutex
	data     map[int][]api.Month
	yearErr  error
	monthErr error

	yearCalls, monthCalls, creates, updates atomic.Int32
}

func (f *fakeMonths) Year(ctx context.Context, year int) ([]api.Month, error) {
	f.yearCalls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.yearErr != nil {
		return nil, f.yearErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]api.Month(nil), f.data[year]...), nil
}

func (f *fakeMonths) Month(_ context.Context, year, month int) (*api.Month, error) {
	f.monthCalls.Add(1)
	return nil, f.monthErr
}

func (f *fakeMonths) Create(_ context.Context, m api.Month) error {
	f.creates.Add(1)
	return nil
}

func (f *fakeMonths) Update(_ context.Context, m api.Month) error {
	f.updates.Add(1)
	return nil
}

func TestYearFetchedOnce(t *testing.T) {
	ctx := context.Background()
	backend := &fakeMonths{data: map[int][]api.Month{2024: {{Year: 2024, Month: 1, Title: "Jan"}}}}
	years := NewYears(backend, nil)

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			months, err := years.Year(ctx, 2024)
			assert.NoError(t, err)
			assert.Len(t, months, 1)
		}()
	}
	wg.Wait()

	_, err := years.Year(ctx, 2024)
	require.NoError(t, err)
	assert.EqualValues(t, 1, backend.yearCalls.Load())
}

func TestYearServedFromPersistentCache(t *testing.T) {
	ctx := context.Background()
	cache := session.NewMemoryStore()
	raw, _ := json.Marshal([]api.Month{{Year: 2023, Month: 7, Title: "July"}})
	require.NoError(t, cache.Set(ctx, yearKey(2023), string(raw)))

	backend := &fakeMonths{}
	years := NewYears(backend, cache)
	m, err := years.Month(ctx, 2023, 7)
	require.NoError(t, err)
	assert.Equal(t, "July", m.Title)
	assert.Zero(t, backend.yearCalls.Load())
}

func TestYearFetchErrorNotCached(t *testing.T) {
	backend := &fakeMonths{yearErr: &api.Error{Code: 500, Message: "boom"}}
	years := NewYears(backend, nil)

	_, err := years.Year(context.Background(), 2024)
	assert.Equal(t, 500, api.StatusCode(err))
	_, err = years.Year(context.Background(), 2024)
	assert.Error(t, err)
	assert.EqualValues(t, 2, backend.yearCalls.Load())
}

func TestMonthNotFound(t *testing.T) {
	backend := &fakeMonths{data: map[int][]api.Month{}}
	years := NewYears(backend, nil)

	_, err := years.Month(context.Background(), 2024, 2)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.EqualValues(t, 1, backend.monthCalls.Load())
}

func TestCreateMonthOnlyWhenAbsent(t *testing.T) {
	ctx := context.Background()
	cache := session.NewMemoryStore()
	backend := &fakeMonths{data: map[int][]api.Month{2024: {{Year: 2024, Month: 1}}}}
	years := NewYears(backend, cache)

	created, err := years.CreateMonth(ctx, api.Month{Year: 2024, Month: 1, Title: "dup"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Zero(t, backend.creates.Load())

	created, err = years.CreateMonth(ctx, api.Month{Year: 2024, Month: 2, Title: "Feb"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.EqualValues(t, 1, backend.creates.Load())

	months, err := years.Year(ctx, 2024)
	require.NoError(t, err)
	assert.Len(t, months, 2)

	raw, err := cache.Get(ctx, yearKey(2024))
	require.NoError(t, err)
	var persisted []api.Month
	require.NoError(t, json.Unmarshal([]byte(raw), &persisted))
	assert.Len(t, persisted, 2)
}

func TestUpdateMonthOnlyWhenPresent(t *testing.T) {
	ctx := context.Background()
	backend := &fakeMonths{data: map[int][]api.Month{2024: {{Year: 2024, Month: 3, Title: "old"}}}}
	years := NewYears(backend, nil)

	updated, err := years.UpdateMonth(ctx, api.Month{Year: 2024, Month: 4, Title: "missing"})
	require.NoError(t, err)
	assert.False(t, updated)
	assert.Zero(t, backend.updates.Load())

	updated, err = years.UpdateMonth(ctx, api.Month{Year: 2024, Month: 3, Title: "new"})
	require.NoError(t, err)
	assert.True(t, updated)

	m, err := years.Month(ctx, 2024, 3)
	require.NoError(t, err)
	assert.Equal(t, "new", m.Title)
}

func TestCreateMonthPropagatesLookupErrors(t *testing.T) {
	backend := &fakeMonths{yearErr: errors.New("offline")}
	years := NewYears(backend, nil)
	created, err := years.CreateMonth(context.Background(), api.Month{Year: 2024, Month: 1})
	assert.Error(t, err)
	assert.False(t, created)
	assert.Zero(t, backend.creates.Load())
}

func TestCreateMonthWhenLookupIs404(t *testing.T) {
	backend := &fakeMonths{
		data:     map[int][]api.Month{},
		monthErr: &api.Error{Code: http.StatusNotFound, Message: "Month not found", Kind: api.KindHTTP},
	}
	years := NewYears(backend, nil)

	_, err := years.Month(context.Background(), 2024, 5)
	assert.ErrorIs(t, err, ErrNotFound)

	created, err := years.CreateMonth(context.Background(), api.Month{Year: 2024, Month: 5, Title: "May"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.EqualValues(t, 1, backend.creates.Load())
}

func TestYearFetchIgnoresCallerCancellation(t *testing.T) {
	backend := &fakeMonths{data: map[int][]api.Month{2024: {{Year: 2024, Month: 1}}}}
	years := NewYears(backend, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	months, err := years.Year(ctx, 2024)
	require.NoError(t, err)
	assert.Len(t, months, 1)
}

package api

import (
	"context"
	"fmt"
	"net/http"
)

type MonthsService struct {
	wc *WebClient
}

// Year returns every month recorded in year.
func (s *MonthsService) Year(ctx context.Context, year int) ([]Month, error) {
	var months []Month
	if err := s.wc.call(ctx, "months.year", http.MethodGet, fmt.Sprintf("/api/months/%d/", year), nil, &months); err != nil {
		return nil, err
	}
	return months, nil
}

// Month returns a single month, or nil when the backend has none.
func (s *MonthsService) Month(ctx context.Context, year, month int) (*Month, error) {
	var m *Month
	if err := s.wc.call(ctx, "months.month", http.MethodGet, fmt.Sprintf("/api/months/%d/%d", year, month), nil, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *MonthsService) Create(ctx context.Context, m Month) error {
	return s.wc.call(ctx, "months.create", http.MethodPost, "/api/months/", s.wc.NewRequest(nil, nil, m), nil)
}

func (s *MonthsService) Update(ctx context.Context, m Month) error {
	return s.wc.call(ctx, "months.update", http.MethodPut, "/api/months/", s.wc.NewRequest(nil, nil, m), nil)
}

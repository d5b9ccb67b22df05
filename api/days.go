package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
)

type DayView string

const (
	ViewList   DayView = "list"
	ViewDetail DayView = "detail"
)

const defaultDayLimit = 10

// DayQuery pages through days. Zero values mean limit 10, offset 0 and the list view.
type DayQuery struct {
	Limit   int
	Offset  int
	SortBy  string
	View    DayView
	Filters map[string]string
}

func (q DayQuery) params() (map[string]string, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultDayLimit
	}
	view := q.View
	if view == "" {
		view = ViewList
	}
	params := map[string]string{
		"limit":  strconv.Itoa(limit),
		"offset": strconv.Itoa(max(q.Offset, 0)),
		"view":   string(view),
	}
	if q.SortBy != "" {
		params["sortBy"] = q.SortBy
	}
	if len(q.Filters) > 0 {
		filters, err := json.Marshal(q.Filters)
		if err != nil {
			return nil, fmt.Errorf("encoding day filters: %w", err)
		}
		params["filters"] = string(filters)
	}
	return params, nil
}

// DaysService reads and writes journal days, addressed by their unix timestamp.
type DaysService struct {
	wc *WebClient
}

func dayPath(ts int64) string {
	return "/api/days/" + strconv.FormatInt(ts, 10)
}

func (s *DaysService) List(ctx context.Context, q DayQuery) ([]DayListItem, error) {
	params, err := q.params()
	if err != nil {
		return nil, err
	}
	var days []DayListItem
	if err := s.wc.call(ctx, "days.list", http.MethodGet, "/api/days/", s.wc.NewRequest(params, nil, nil), &days); err != nil {
		return nil, err
	}
	return days, nil
}

func (s *DaysService) Get(ctx context.Context, ts int64) (*DayDetail, error) {
	var day DayDetail
	if err := s.wc.call(ctx, "days.get", http.MethodGet, dayPath(ts), nil, &day); err != nil {
		return nil, err
	}
	return &day, nil
}

func (s *DaysService) Create(ctx context.Context, ts int64, day DayCreate) error {
	return s.wc.call(ctx, "days.create", http.MethodPost, dayPath(ts), s.wc.NewRequest(nil, nil, day), nil)
}

func (s *DaysService) Update(ctx context.Context, ts int64, day DayUpdate) error {
	return s.wc.call(ctx, "days.update", http.MethodPut, dayPath(ts), s.wc.NewRequest(nil, nil, day), nil)
}

func (s *DaysService) ToggleStarred(ctx context.Context, ts int64) error {
	return s.wc.call(ctx, "days.toggle_starred", http.MethodPatch, dayPath(ts)+"/toggle-starred", nil, nil)
}

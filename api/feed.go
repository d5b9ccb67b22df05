package api

import (
	"context"
	"net/http"
	"strconv"
)

// FeedService reads the generated insights and suggestions.
type FeedService struct {
	wc *WebClient
}

func pageParams(limit, offset int) map[string]string {
	params := map[string]string{}
	if limit > 0 {
		params["limit"] = strconv.Itoa(limit)
	}
	if offset > 0 {
		params["offset"] = strconv.Itoa(offset)
	}
	return params
}

func (s *FeedService) Insights(ctx context.Context, limit, offset int) ([]Insight, error) {
	var insights []Insight
	req := s.wc.NewRequest(pageParams(limit, offset), nil, nil)
	if err := s.wc.call(ctx, "feed.insights", http.MethodGet, "/api/insights/", req, &insights); err != nil {
		return nil, err
	}
	return insights, nil
}

func (s *FeedService) Suggestions(ctx context.Context, limit, offset int) ([]Suggestion, error) {
	var suggestions []Suggestion
	req := s.wc.NewRequest(pageParams(limit, offset), nil, nil)
	if err := s.wc.call(ctx, "feed.suggestions", http.MethodGet, "/api/suggestions/", req, &suggestions); err != nil {
		return nil, err
	}
	return suggestions, nil
}

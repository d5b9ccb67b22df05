package api

import (
	"context"
	"net/http"
)

// PlacesService looks up countries and cities.
type PlacesService struct {
	wc *WebClient
}

func (s *PlacesService) Countries(ctx context.Context, query string) ([]Country, error) {
	var countries []Country
	req := s.wc.NewRequest(map[string]string{"query": query}, nil, nil)
	if err := s.wc.call(ctx, "places.countries", http.MethodGet, "/api/countries/all/", req, &countries); err != nil {
		return nil, err
	}
	return countries, nil
}

func (s *PlacesService) Country(ctx context.Context, id string) (*Country, error) {
	var country Country
	if err := s.wc.call(ctx, "places.country", http.MethodGet, "/api/countries/"+pathEscape(id), nil, &country); err != nil {
		return nil, err
	}
	return &country, nil
}

func (s *PlacesService) Cities(ctx context.Context, countryID, query string) ([]City, error) {
	var cities []City
	req := s.wc.NewRequest(map[string]string{"query": query}, nil, nil)
	if err := s.wc.call(ctx, "places.cities", http.MethodGet, "/api/cities/by-country/"+pathEscape(countryID), req, &cities); err != nil {
		return nil, err
	}
	return cities, nil
}

func (s *PlacesService) City(ctx context.Context, id string) (*CityDetail, error) {
	var city CityDetail
	if err := s.wc.call(ctx, "places.city", http.MethodGet, "/api/cities/"+pathEscape(id), nil, &city); err != nil {
		return nil, err
	}
	return &city, nil
}

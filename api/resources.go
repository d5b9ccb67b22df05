package api

import (
	"context"
	"net/http"
	"net/url"
)

func pathEscape(id string) string {
	return url.PathEscape(id)
}

// collection is a REST collection under base: list, get, create returning the new id, update
// and delete.
type collection[T, C, U any] struct {
	wc   *WebClient
	base string
	name string
}

func (c collection[T, C, U]) list(ctx context.Context, query map[string]string) ([]T, error) {
	var items []T
	if err := c.wc.call(ctx, c.name+".list", http.MethodGet, c.base, c.wc.NewRequest(query, nil, nil), &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (c collection[T, C, U]) get(ctx context.Context, id string) (*T, error) {
	var item T
	if err := c.wc.call(ctx, c.name+".get", http.MethodGet, c.base+pathEscape(id), nil, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (c collection[T, C, U]) create(ctx context.Context, body C) (string, error) {
	var id string
	if err := c.wc.call(ctx, c.name+".create", http.MethodPost, c.base, c.wc.NewRequest(nil, nil, body), &id); err != nil {
		return "", err
	}
	return id, nil
}

func (c collection[T, C, U]) update(ctx context.Context, id string, body U) error {
	return c.wc.call(ctx, c.name+".update", http.MethodPut, c.base+pathEscape(id), c.wc.NewRequest(nil, nil, body), nil)
}

func (c collection[T, C, U]) delete(ctx context.Context, id string) error {
	return c.wc.call(ctx, c.name+".delete", http.MethodDelete, c.base+pathEscape(id), nil, nil)
}

type TagsService struct {
	c collection[Tag, Tag, Tag]
}

func (s *TagsService) List(ctx context.Context) ([]Tag, error) {
	return s.c.list(ctx, nil)
}

func (s *TagsService) Get(ctx context.Context, id string) (*Tag, error) {
	return s.c.get(ctx, id)
}

// Create adds a tag and returns its id. tag.ID is ignored.
func (s *TagsService) Create(ctx context.Context, tag Tag) (string, error) {
	tag.ID = ""
	return s.c.create(ctx, tag)
}

func (s *TagsService) Update(ctx context.Context, id string, tag Tag) error {
	tag.ID = ""
	return s.c.update(ctx, id, tag)
}

func (s *TagsService) Delete(ctx context.Context, id string) error {
	return s.c.delete(ctx, id)
}

type TrackableTypesService struct {
	c collection[TrackableType, TrackableType, TrackableType]
}

func (s *TrackableTypesService) List(ctx context.Context) ([]TrackableType, error) {
	return s.c.list(ctx, nil)
}

func (s *TrackableTypesService) Get(ctx context.Context, id string) (*TrackableType, error) {
	return s.c.get(ctx, id)
}

func (s *TrackableTypesService) Create(ctx context.Context, tt TrackableType) (string, error) {
	tt.ID = ""
	return s.c.create(ctx, tt)
}

func (s *TrackableTypesService) Update(ctx context.Context, id string, tt TrackableType) error {
	tt.ID = ""
	return s.c.update(ctx, id, tt)
}

func (s *TrackableTypesService) Delete(ctx context.Context, id string) error {
	return s.c.delete(ctx, id)
}

type TrackablesService struct {
	c collection[Trackable, TrackableCreate, TrackableUpdate]
}

// List returns trackables, optionally narrowed to one type and a title search.
func (s *TrackablesService) List(ctx context.Context, typeID, search string) ([]Trackable, error) {
	query := map[string]string{}
	if typeID != "" {
		query["typeId"] = typeID
	}
	if search != "" {
		query["search"] = search
	}
	return s.c.list(ctx, query)
}

func (s *TrackablesService) Get(ctx context.Context, id string) (*TrackableDetail, error) {
	var item TrackableDetail
	if err := s.c.wc.call(ctx, "trackables.get", http.MethodGet, s.c.base+pathEscape(id), nil, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *TrackablesService) Create(ctx context.Context, t TrackableCreate) (string, error) {
	return s.c.create(ctx, t)
}

func (s *TrackablesService) Update(ctx context.Context, id string, t TrackableUpdate) error {
	return s.c.update(ctx, id, t)
}

func (s *TrackablesService) Delete(ctx context.Context, id string) error {
	return s.c.delete(ctx, id)
}

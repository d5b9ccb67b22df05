package api

import (
	"context"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/memoryful/memoryful/metrics"
	"github.com/memoryful/memoryful/traces"
)

const tracerName = "github.com/memoryful/memoryful/api"

// APIClient groups the typed wrappers for every backend resource around one WebClient.
type APIClient struct {
	wc *WebClient

	Auth           *AuthService
	Sessions       *SessionsService
	Days           *DaysService
	Tags           *TagsService
	TrackableTypes *TrackableTypesService
	Trackables     *TrackablesService
	Months         *MonthsService
	Places         *PlacesService
	Feed           *FeedService
	Workspaces     *WorkspacesService
	Storage        *StorageService
}

func NewAPIClient(wc *WebClient) *APIClient {
	return &APIClient{
		wc:             wc,
		Auth:           &AuthService{wc: wc},
		Sessions:       &SessionsService{wc: wc},
		Days:           &DaysService{wc: wc},
		Tags:           &TagsService{c: collection[Tag, Tag, Tag]{wc: wc, base: "/api/tags/", name: "tags"}},
		TrackableTypes: &TrackableTypesService{c: collection[TrackableType, TrackableType, TrackableType]{wc: wc, base: "/api/trackable-types/", name: "trackable_types"}},
		Trackables:     &TrackablesService{c: collection[Trackable, TrackableCreate, TrackableUpdate]{wc: wc, base: "/api/trackables/", name: "trackables"}},
		Months:         &MonthsService{wc: wc},
		Places:         &PlacesService{wc: wc},
		Feed:           &FeedService{wc: wc},
		Workspaces:     &WorkspacesService{wc: wc},
		Storage:        &StorageService{wc: wc},
	}
}

func (a *APIClient) WebClient() *WebClient {
	return a.wc
}

// call sends one request inside a span named op and records any failure on it.
func (wc *WebClient) call(ctx context.Context, op, method, path string, req *Request, res any) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, op)
	defer span.End()
	start := time.Now()
	err := wc.send(ctx, method, path, req, res)
	metrics.Default().Request(ctx, op, method, metricStatus(err), time.Since(start))
	if err != nil {
		return traces.RecordError(ctx, err)
	}
	return nil
}

// metricStatus is the status code reported for err, with 0 standing for "no response".
func metricStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if e, ok := AsError(err); ok && (e.Kind == KindNetwork || e.Kind == KindCanceled) {
		return 0
	}
	return StatusCode(err)
}

// Package metrics records API client measurements through the global OpenTelemetry meter
// provider. Nothing is exported until telemetry installs a real provider.
package metrics

import (
	"context"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/memoryful/memoryful/metrics"

// Refresh outcomes.
const (
	RefreshSuccess = "success"
	RefreshFailure = "failure"
)

type Recorder struct {
	requests  metric.Int64Counter
	duration  metric.Float64Histogram
	refreshes metric.Int64Counter
	uploads   metric.Int64Counter
}

// NewRecorder creates the instruments on mp. An instrument that cannot be created is replaced
// by a no-op one.
func NewRecorder(mp metric.MeterProvider) *Recorder {
	meter := mp.Meter(meterName)
	requests, err := meter.Int64Counter("memoryful.api.requests",
		metric.WithDescription("API calls by operation and status code"))
	if err != nil {
		requests = &noop.Int64Counter{}
	}
	duration, err := meter.Float64Histogram("memoryful.api.request_duration",
		metric.WithDescription("API call duration, including retries and token refresh"),
		metric.WithUnit("ms"))
	if err != nil {
		duration = &noop.Float64Histogram{}
	}
	refreshes, err := meter.Int64Counter("memoryful.auth.refreshes",
		metric.WithDescription("Token refresh calls by outcome"))
	if err != nil {
		refreshes = &noop.Int64Counter{}
	}
	uploads, err := meter.Int64Counter("memoryful.media.uploads",
		metric.WithDescription("Media uploads by intent and outcome"))
	if err != nil {
		uploads = &noop.Int64Counter{}
	}
	return &Recorder{
		requests:  requests,
		duration:  duration,
		refreshes: refreshes,
		uploads:   uploads,
	}
}

// Request records one API call. status is the HTTP status, or 0 when no response arrived.
func (r *Recorder) Request(ctx context.Context, op, method string, status int, d time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("method", method),
		attribute.String("status_code", strconv.Itoa(status)),
	)
	r.requests.Add(ctx, 1, attrs)
	r.duration.Record(ctx, float64(d)/float64(time.Millisecond), attrs)
}

func (r *Recorder) Refresh(ctx context.Context, outcome string) {
	r.refreshes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (r *Recorder) Upload(ctx context.Context, intent string, ok bool) {
	r.uploads.Add(ctx, 1, metric.WithAttributes(
		attribute.String("intent", intent),
		attribute.Bool("ok", ok),
	))
}

var (
	defaultOnce     sync.Once
	defaultRecorder *Recorder
)

// Default returns the recorder bound to the global meter provider. Instruments created before
// the provider is installed forward to it once it is.
func Default() *Recorder {
	defaultOnce.Do(func() {
		defaultRecorder = NewRecorder(otel.GetMeterProvider())
	})
	return defaultRecorder
}

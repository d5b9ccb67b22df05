// Package traces holds the OpenTelemetry helpers shared by the API client and media transfers.
package traces

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// RecordError attaches err to the span in ctx and returns it unchanged, so a return statement
// can wrap it. Cancellation is recorded as an event only; the span is not marked failed.
func RecordError(ctx context.Context, err error, options ...trace.EventOption) error {
	if err == nil {
		return nil
	}
	span := trace.SpanFromContext(ctx)
	span.RecordError(err, options...)
	if errors.Is(err, context.Canceled) {
		return err
	}
	span.SetStatus(codes.Error, err.Error())
	if span.SpanContext().IsValid() {
		slog.Debug("Span failed", "trace_id", span.SpanContext().TraceID(), "error", err)
	}
	return err
}

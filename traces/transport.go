package traces

import (
	"context"
	"crypto/tls"
	"net/http"
	"net/http/httptrace"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// NewRoundTripper instruments rt, or http.DefaultTransport when rt is nil. Each attempt gets a
// span named "METHOD /path" carrying connection events.
func NewRoundTripper(rt http.RoundTripper) http.RoundTripper {
	if rt == nil {
		rt = http.DefaultTransport
	}
	return otelhttp.NewTransport(rt,
		otelhttp.WithClientTrace(connectionEvents),
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}

func connectionEvents(ctx context.Context) *httptrace.ClientTrace {
	span := trace.SpanFromContext(ctx)
	return &httptrace.ClientTrace{
		GotConn: func(info httptrace.GotConnInfo) {
			span.AddEvent("conn.acquired", trace.WithAttributes(
				attribute.Bool("reused", info.Reused),
				attribute.Bool("was_idle", info.WasIdle),
			))
		},
		DNSDone: func(info httptrace.DNSDoneInfo) {
			if info.Err != nil {
				span.RecordError(info.Err)
				return
			}
			span.AddEvent("dns.done", trace.WithAttributes(attribute.Int("addrs", len(info.Addrs))))
		},
		ConnectDone: func(network, addr string, err error) {
			if err != nil {
				span.RecordError(err, trace.WithAttributes(attribute.String("addr", addr)))
				return
			}
			span.AddEvent("connect.done", trace.WithAttributes(attribute.String("addr", addr)))
		},
		TLSHandshakeDone: func(cs tls.ConnectionState, err error) {
			if err != nil {
				span.RecordError(err)
				return
			}
			span.AddEvent("tls.done", trace.WithAttributes(attribute.String("tls.version", tls.VersionName(cs.Version))))
		},
		GotFirstResponseByte: func() {
			span.AddEvent("first_byte")
		},
	}
}

// Package telemetry sets up OpenTelemetry tracing and metrics for memoryful.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/grpc/credentials"

	"github.com/memoryful/memoryful/app"
	"github.com/memoryful/memoryful/config"
)

var (
	initMutex    sync.Mutex
	shutdownOTEL func(context.Context) error
)

type Attributes struct {
	App        string
	AppVersion string
	DeviceID   string
	GoVersion  string
	Platform   string
	OSArch     string
}

// DefaultAttributes describes the running client.
func DefaultAttributes(deviceID string) Attributes {
	return Attributes{
		App:        app.Name,
		AppVersion: app.Version,
		DeviceID:   deviceID,
		GoVersion:  runtime.Version(),
		Platform:   app.Platform,
		OSArch:     runtime.GOARCH,
	}
}

// Init starts exporting traces to cfg.Endpoint. It replaces any pipeline started earlier and
// does nothing when no endpoint is configured.
func Init(ctx context.Context, cfg config.TelemetryConfig, attrs Attributes) error {
	initMutex.Lock()
	defer initMutex.Unlock()

	if cfg.Endpoint == "" {
		slog.Debug("No otel endpoint configured, skipping OpenTelemetry initialization")
		return nil
	}
	if shutdownOTEL != nil {
		slog.Info("Shutting down existing OpenTelemetry SDK")
		if err := shutdownOTEL(ctx); err != nil {
			return fmt.Errorf("failed to shutdown OpenTelemetry SDK: %w", err)
		}
		shutdownOTEL = nil
	}

	res, err := resource.New(ctx, resource.WithAttributes(buildResources(attrs)...))
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	shutdown, err := initTracer(ctx, res, cfg)
	if err != nil {
		slog.Error("Failed to start OpenTelemetry SDK", "error", err)
		return fmt.Errorf("failed to initialize tracer: %w", err)
	}
	if cfg.Metrics {
		shutdownMeter, err := initMeterProvider(ctx, res, cfg)
		if err != nil {
			_ = shutdown(ctx)
			slog.Error("Failed to start OpenTelemetry metrics", "error", err)
			return fmt.Errorf("failed to initialize meter provider: %w", err)
		}
		shutdownTracer := shutdown
		shutdown = func(ctx context.Context) error {
			return errors.Join(shutdownMeter(ctx), shutdownTracer(ctx))
		}
	}
	shutdownOTEL = shutdown
	slog.Info("OpenTelemetry initialized", "endpoint", cfg.Endpoint, "metrics", cfg.Metrics)
	return nil
}

// Close flushes and stops the tracing pipeline, if one is running.
func Close(ctx context.Context) error {
	initMutex.Lock()
	defer initMutex.Unlock()

	var errs error
	if shutdownOTEL != nil {
		if err := shutdownOTEL(ctx); err != nil {
			errs = errors.Join(errs, fmt.Errorf("failed to shutdown OpenTelemetry SDK: %w", err))
		}
		shutdownOTEL = nil
	}
	return errs
}

func buildResources(a Attributes) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("service.name", a.App),
		attribute.String("service.version", a.AppVersion),
		attribute.String("device.id", a.DeviceID),
		attribute.String("library.language", "go"),
		attribute.String("library.language.version", a.GoVersion),
		attribute.String("platform", a.Platform),
		attribute.String("os.arch", a.OSArch),
	}
}

func initTracer(ctx context.Context, res *resource.Resource, cfg config.TelemetryConfig) (func(context.Context) error, error) {
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	} else {
		opts = append(opts, otlptracegrpc.WithTLSCredentials(credentials.NewClientTLSFromCert(nil, "")))
	}
	exporter, err := otlptrace.New(ctx, otlptracegrpc.NewClient(opts...))
	if err != nil {
		return nil, fmt.Errorf("failed to create exporter: %w", err)
	}
	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tracerProvider)
	return func(ctx context.Context) error {
		if err := tracerProvider.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown tracer provider: %w", err)
		}
		if err := exporter.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown exporter: %w", err)
		}
		return nil
	}, nil
}

func initMeterProvider(ctx context.Context, res *resource.Resource, cfg config.TelemetryConfig) (func(context.Context) error, error) {
	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	} else {
		opts = append(opts, otlpmetricgrpc.WithTLSCredentials(credentials.NewClientTLSFromCert(nil, "")))
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics exporter: %w", err)
	}
	var readerOpts []sdkmetric.PeriodicReaderOption
	if cfg.MetricInterval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(cfg.MetricInterval))
	}
	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(meterProvider)
	return meterProvider.Shutdown, nil
}

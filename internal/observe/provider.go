package observe

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/MrWong99/npcforge/internal/config"
)

// ProviderOption adjusts [InitProvider] beyond what the telemetry config
// section carries.
type ProviderOption func(*providerOptions)

type providerOptions struct {
	version  string
	exporter sdktrace.SpanExporter
}

// WithServiceVersion reports v as the service version. The version is a
// build property, so it is not part of the config file.
func WithServiceVersion(v string) ProviderOption {
	return func(o *providerOptions) { o.version = v }
}

// WithSpanExporter exports finished spans to exp in batches. Without it spans
// are sampled and recorded but never leave the process.
func WithSpanExporter(exp sdktrace.SpanExporter) ProviderOption {
	return func(o *providerOptions) { o.exporter = exp }
}

// InitProvider installs global meter and tracer providers built from the
// telemetry section of the config. Metrics are exposed through
// [MetricsHandler]; traces are sampled by [config.TelemetryConfig.SampleRatio]
// unless their parent was sampled.
//
// The returned function flushes and stops both providers.
func InitProvider(ctx context.Context, tc config.TelemetryConfig, opts ...ProviderOption) (func(context.Context) error, error) {
	var o providerOptions
	for _, opt := range opts {
		opt(&o)
	}

	res, err := newResource(ctx, tc, o.version)
	if err != nil {
		return nil, fmt.Errorf("observe: resource: %w", err)
	}
	mp, err := newMeterProvider(res)
	if err != nil {
		return nil, fmt.Errorf("observe: prometheus exporter: %w", err)
	}
	tp := newTracerProvider(res, tc, o.exporter)

	otel.SetMeterProvider(mp)
	otel.SetTracerProvider(tp)

	return func(ctx context.Context) error {
		// Tracer first so pending spans are exported.
		return errors.Join(tp.Shutdown(ctx), mp.Shutdown(ctx))
	}, nil
}

func serviceName(tc config.TelemetryConfig) string {
	if tc.ServiceName == "" {
		return "npcforge"
	}
	return tc.ServiceName
}

func newResource(ctx context.Context, tc config.TelemetryConfig, version string) (*resource.Resource, error) {
	attrs := []resource.Option{
		resource.WithTelemetrySDK(),
		resource.WithFromEnv(),
		resource.WithAttributes(semconv.ServiceName(serviceName(tc))),
	}
	if version != "" {
		attrs = append(attrs, resource.WithAttributes(semconv.ServiceVersion(version)))
	}
	return resource.New(ctx, attrs...)
}

func newMeterProvider(res *resource.Resource) (*sdkmetric.MeterProvider, error) {
	reader, err := promexporter.New()
	if err != nil {
		return nil, err
	}
	return sdkmetric.NewMeterProvider(sdkmetric.WithResource(res), sdkmetric.WithReader(reader)), nil
}

// sampler samples root spans at the configured ratio. Ratios outside (0, 1]
// sample everything.
func sampler(tc config.TelemetryConfig) sdktrace.Sampler {
	ratio := tc.SampleRatio
	if ratio <= 0 || ratio > 1 {
		ratio = 1
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
}

func newTracerProvider(res *resource.Resource, tc config.TelemetryConfig, exp sdktrace.SpanExporter) *sdktrace.TracerProvider {
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(tc)),
	}
	if exp != nil {
		opts = append(opts, sdktrace.WithBatcher(exp))
	}
	return sdktrace.NewTracerProvider(opts...)
}

// MetricsHandler serves the Prometheus exposition of every metric registered
// with the default registry, which is where the exporter from [InitProvider]
// registers itself.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

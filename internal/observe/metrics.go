// Package observe provides application-wide observability primitives for
// npcforge: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all npcforge metrics.
const meterName = "github.com/MrWong99/npcforge"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Validation ---

	// ValidationRuns counts validator invocations. Use with attributes:
	//   attribute.String("variant", ...), attribute.Bool("valid", ...)
	ValidationRuns metric.Int64Counter

	// ValidationFindings counts findings. Use with attribute:
	//   attribute.String("severity", ...)
	ValidationFindings metric.Int64Counter

	// --- Persistence ---

	// StoreOperations counts persistence calls. Use with attributes:
	//   attribute.String("backend", ...), attribute.String("op", ...), attribute.String("status", ...)
	StoreOperations metric.Int64Counter

	// StoreDuration tracks persistence call latency. Same attributes as
	// StoreOperations minus status.
	StoreDuration metric.Float64Histogram

	// --- Editing ---

	// ActiveWizardSessions tracks the number of open wizard sessions.
	ActiveWizardSessions metric.Int64UpDownCounter

	// WizardOutcomes counts how wizard sessions end. Use with attribute:
	//   attribute.String("outcome", "saved"|"cancelled")
	WizardOutcomes metric.Int64Counter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...), attribute.String("status", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) for store
// round trips.
var latencyBuckets = []float64{
	0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.ValidationRuns, err = m.Int64Counter("npcforge.validation.runs",
		metric.WithDescription("Total validator runs by variant and validity."),
	); err != nil {
		return nil, err
	}
	if met.ValidationFindings, err = m.Int64Counter("npcforge.validation.findings",
		metric.WithDescription("Total validation findings by severity."),
	); err != nil {
		return nil, err
	}

	if met.StoreOperations, err = m.Int64Counter("npcforge.store.operations",
		metric.WithDescription("Total persistence operations by backend, op, and status."),
	); err != nil {
		return nil, err
	}
	if met.StoreDuration, err = m.Float64Histogram("npcforge.store.duration",
		metric.WithDescription("Latency of persistence operations."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.ActiveWizardSessions, err = m.Int64UpDownCounter("npcforge.wizard.active_sessions",
		metric.WithDescription("Number of open wizard sessions."),
	); err != nil {
		return nil, err
	}
	if met.WizardOutcomes, err = m.Int64Counter("npcforge.wizard.outcomes",
		metric.WithDescription("Total finished wizard sessions by outcome."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("npcforge.http.request.duration",
		metric.WithDescription("HTTP request latency by method, path, and status."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordValidation records one validator run and its finding counts.
func (m *Metrics) RecordValidation(ctx context.Context, variant string, valid bool, errs, warnings, suggestions int) {
	m.ValidationRuns.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("variant", variant),
			attribute.Bool("valid", valid),
		),
	)
	for sev, n := range map[string]int{"error": errs, "warning": warnings, "suggestion": suggestions} {
		if n > 0 {
			m.ValidationFindings.Add(ctx, int64(n), metric.WithAttributes(attribute.String("severity", sev)))
		}
	}
}

// RecordStoreOp records a persistence call. err decides the status attribute.
func (m *Metrics) RecordStoreOp(ctx context.Context, backend, op string, d time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.StoreOperations.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("backend", backend),
			attribute.String("op", op),
			attribute.String("status", status),
		),
	)
	m.StoreDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(
			attribute.String("backend", backend),
			attribute.String("op", op),
		),
	)
}

// WizardStarted increments the open wizard session gauge.
func (m *Metrics) WizardStarted(ctx context.Context) {
	m.ActiveWizardSessions.Add(ctx, 1)
}

// WizardFinished decrements the open session gauge and counts the outcome.
func (m *Metrics) WizardFinished(ctx context.Context, outcome string) {
	m.ActiveWizardSessions.Add(ctx, -1)
	m.WizardOutcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// statusClass returns "2xx", "4xx" ... for an HTTP status code.
func statusClass(code int) string {
	return strconv.Itoa(code/100) + "xx"
}

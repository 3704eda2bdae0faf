// Package observe provides application-wide observability primitives for
// Sentina: OpenTelemetry metrics, distributed tracing, structured logging,
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
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Sentina metrics.
const meterName = "github.com/MrWong99/sentina"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// CaptureDuration tracks microphone capture session length.
	CaptureDuration metric.Float64Histogram

	// STTDuration tracks speech-to-text transcription latency.
	STTDuration metric.Float64Histogram

	// TTSDuration tracks speech playback duration.
	TTSDuration metric.Float64Histogram

	// NLUDuration tracks intent-routing latency.
	NLUDuration metric.Float64Histogram

	// --- Counters ---

	// ProviderRequests counts provider API calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// WakeTriggers counts accepted wake-word triggers.
	WakeTriggers metric.Int64Counter

	// VADRejects counts recordings the voice-activity gate discarded.
	VADRejects metric.Int64Counter

	// FallWindows counts analyzed ambient windows.
	FallWindows metric.Int64Counter

	// FallEvents counts accepted fall events. Use with attributes:
	//   attribute.String("path", ...), attribute.String("verdict", ...)
	FallEvents metric.Int64Counter

	// ConversationTurns counts completed conversation turns. Use with
	// attribute: attribute.String("outcome", ...)
	ConversationTurns metric.Int64Counter

	// --- Error counters ---

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// EmergencyQueueDepth tracks undelivered emergency notifications.
	EmergencyQueueDepth metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for voice-pipeline latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.CaptureDuration, err = m.Float64Histogram("sentina.capture.duration",
		metric.WithDescription("Length of microphone capture sessions."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.STTDuration, err = m.Float64Histogram("sentina.stt.duration",
		metric.WithDescription("Latency of speech-to-text transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TTSDuration, err = m.Float64Histogram("sentina.tts.duration",
		metric.WithDescription("Duration of speech playback."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.NLUDuration, err = m.Float64Histogram("sentina.nlu.duration",
		metric.WithDescription("Latency of intent routing."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.ProviderRequests, err = m.Int64Counter("sentina.provider.requests",
		metric.WithDescription("Total provider API requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.WakeTriggers, err = m.Int64Counter("sentina.wake.triggers",
		metric.WithDescription("Total accepted wake-word triggers."),
	); err != nil {
		return nil, err
	}
	if met.VADRejects, err = m.Int64Counter("sentina.vad.rejects",
		metric.WithDescription("Total recordings discarded by the voice-activity gate."),
	); err != nil {
		return nil, err
	}
	if met.FallWindows, err = m.Int64Counter("sentina.fall.windows",
		metric.WithDescription("Total analyzed ambient audio windows."),
	); err != nil {
		return nil, err
	}
	if met.FallEvents, err = m.Int64Counter("sentina.fall.events",
		metric.WithDescription("Total accepted fall events by acceptance path and verdict."),
	); err != nil {
		return nil, err
	}
	if met.ConversationTurns, err = m.Int64Counter("sentina.conversation.turns",
		metric.WithDescription("Total completed conversation turns by outcome."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.ProviderErrors, err = m.Int64Counter("sentina.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.EmergencyQueueDepth, err = m.Int64UpDownCounter("sentina.emergency.queue_depth",
		metric.WithDescription("Number of undelivered emergency notifications."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("sentina.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
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

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordProviderRequest is a convenience method that records a provider
// request counter increment with the standard attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError is a convenience method that records a provider error
// counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

// RecordFallEvent is a convenience method that records one accepted fall
// event with its acceptance path and confirmation verdict.
func (m *Metrics) RecordFallEvent(ctx context.Context, path, verdict string) {
	m.FallEvents.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("path", path),
			attribute.String("verdict", verdict),
		),
	)
}

// RecordTurn is a convenience method that records one completed
// conversation turn.
func (m *Metrics) RecordTurn(ctx context.Context, outcome string) {
	m.ConversationTurns.Add(ctx, 1,
		metric.WithAttributes(attribute.String("outcome", outcome)),
	)
}

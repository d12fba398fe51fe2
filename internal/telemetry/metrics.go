package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// meterName is the instrumentation scope name for every metric this
// package registers.
const meterName = "github.com/tiro-is/tiro-speech-go"

// latencyBuckets mirror typical end-to-end recognition call latencies.
var latencyBuckets = []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

// Metrics holds the OpenTelemetry instruments this service exports. Only
// metrics are wired (no tracing): go.mod carries otel/sdk/metric and the
// Prometheus exporter but not otel/sdk/trace or a semconv package, so
// there's nothing to export spans to.
type Metrics struct {
	CallDuration    metric.Float64Histogram
	CallsTotal      metric.Int64Counter
	CallErrors      metric.Int64Counter
	ActiveStreams   metric.Int64UpDownCounter
	SpeakersPerCall metric.Int64Histogram
}

// InitProvider builds a Prometheus-backed MeterProvider and registers it
// as the global OTel meter provider, the same
// promexporter.New()+sdkmetric.NewMeterProvider()+otel.SetMeterProvider
// sequence MrWong99-glyphoxa/internal/observe.InitProvider uses for its
// metrics half (its tracing half has no equivalent here).
//
// Returns a shutdown function to call during graceful shutdown.
func InitProvider() (shutdown func(context.Context) error, err error) {
	promExp, err := promexporter.New()
	if err != nil {
		return nil, fmt.Errorf("telemetry: build prometheus exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(promExp))
	otel.SetMeterProvider(mp)

	return mp.Shutdown, nil
}

// NewMetrics creates a fully initialised Metrics using mp, following
// observe.NewMetrics's "one Meter, many typed instruments" shape.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	met := &Metrics{}
	var err error

	if met.CallDuration, err = m.Float64Histogram("tiro_speech.call.duration",
		metric.WithDescription("End-to-end Recognize/StreamingRecognize call duration."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.CallsTotal, err = m.Int64Counter("tiro_speech.calls.total",
		metric.WithDescription("Total recognition calls, by language_code and status."),
	); err != nil {
		return nil, err
	}
	if met.CallErrors, err = m.Int64Counter("tiro_speech.call.errors",
		metric.WithDescription("Total recognition call errors, by language_code and status."),
	); err != nil {
		return nil, err
	}
	if met.ActiveStreams, err = m.Int64UpDownCounter("tiro_speech.active_streams",
		metric.WithDescription("Number of currently open StreamingRecognize calls."),
	); err != nil {
		return nil, err
	}
	if met.SpeakersPerCall, err = m.Int64Histogram("tiro_speech.call.speaker_count",
		metric.WithDescription("Distinct diarized speakers per call, when diarization was requested."),
		metric.WithExplicitBucketBoundaries(1, 2, 3, 4, 5, 8),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// RecordCall records one completed call's duration, status and speaker
// count against m, and persists the non-content summary to store when
// store is non-nil.
func (m *Metrics) RecordCall(ctx context.Context, store *Store, rec CallRecord) {
	attrs := metric.WithAttributes(
		attribute.String("language_code", rec.LanguageCode),
		attribute.String("status", string(rec.Status)),
		attribute.Bool("streaming", rec.Streaming),
	)
	m.CallDuration.Record(ctx, rec.Duration.Seconds(), attrs)
	m.CallsTotal.Add(ctx, 1, attrs)
	if rec.Status != StatusOK {
		m.CallErrors.Add(ctx, 1, attrs)
	}
	if rec.SpeakerCount > 0 {
		m.SpeakersPerCall.Record(ctx, int64(rec.SpeakerCount), attrs)
	}

	if store != nil {
		_ = store.RecordCall(ctx, rec)
	}
}

package telemetry

import (
	"context"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func TestNewMetricsCreatesWithoutError(t *testing.T) {
	m, _ := newTestMetrics(t)
	if m == nil {
		t.Fatal("NewMetrics returned nil")
	}
}

func TestRecordCallIncrementsCounters(t *testing.T) {
	m, reader := newTestMetrics(t)

	m.RecordCall(context.Background(), nil, CallRecord{
		LanguageCode: "is-IS",
		Streaming:    true,
		StartedAt:    time.Now(),
		Duration:     2 * time.Second,
		SpeakerCount: 2,
		Status:       StatusOK,
	})

	rm := collect(t, reader)
	if findMetric(rm, "tiro_speech.calls.total") == nil {
		t.Fatal("expected tiro_speech.calls.total to be recorded")
	}
	if findMetric(rm, "tiro_speech.call.duration") == nil {
		t.Fatal("expected tiro_speech.call.duration to be recorded")
	}
	if findMetric(rm, "tiro_speech.call.speaker_count") == nil {
		t.Fatal("expected tiro_speech.call.speaker_count to be recorded")
	}
}

func TestRecordCallIncrementsErrorsOnFailure(t *testing.T) {
	m, reader := newTestMetrics(t)

	m.RecordCall(context.Background(), nil, CallRecord{
		LanguageCode: "is-IS",
		StartedAt:    time.Now(),
		Status:       StatusFailed,
	})

	rm := collect(t, reader)
	errs := findMetric(rm, "tiro_speech.call.errors")
	if errs == nil {
		t.Fatal("expected tiro_speech.call.errors to be recorded")
	}
}

func TestRecordCallPersistsToStore(t *testing.T) {
	m, _ := newTestMetrics(t)
	store, err := OpenStore(t.TempDir() + "/calls.db")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	m.RecordCall(context.Background(), store, CallRecord{
		LanguageCode: "en-US",
		StartedAt:    time.Now(),
		Status:       StatusOK,
	})

	counts, err := store.CountByLanguage(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if counts["en-US"] != 1 {
		t.Fatalf("counts = %+v, want en-US: 1", counts)
	}
}

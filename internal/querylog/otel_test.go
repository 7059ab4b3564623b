package querylog

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestRegisterOTelMetrics(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_ = store.RecordSearch(ctx, "lassy", []string{"WRPE"}, "//node", 4)
	_ = store.RecordSearch(ctx, "lassy", []string{"WRPE"}, "//node", 6)
	_ = store.RecordSearch(ctx, "sonar", []string{"WSU"}, "//node", 1)

	reader := metric.NewManualReader()
	provider := metric.NewMeterProvider(metric.WithReader(reader))
	previous := otel.GetMeterProvider()
	otel.SetMeterProvider(provider)
	defer func() {
		otel.SetMeterProvider(previous)
		_ = provider.Shutdown(context.Background())
	}()

	registration, err := store.RegisterOTelMetrics(nil)
	if err != nil {
		t.Fatalf("RegisterOTelMetrics failed: %v", err)
	}
	defer func() { _ = registration.Unregister() }()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("Failed to collect metrics: %v", err)
	}

	expected := map[string]map[string]int64{
		"treesearch.searches.logged": {"lassy": 2, "sonar": 1},
		"treesearch.hits.logged":     {"lassy": 10, "sonar": 1},
	}

	found := 0
	for _, scopeMetrics := range rm.ScopeMetrics {
		for _, m := range scopeMetrics.Metrics {
			want, ok := expected[m.Name]
			if !ok {
				continue
			}
			found++

			gauge, ok := m.Data.(metricdata.Gauge[int64])
			if !ok {
				t.Fatalf("Expected Gauge[int64], got %T", m.Data)
			}
			if len(gauge.DataPoints) != len(want) {
				t.Errorf("%s: expected %d data points, got %d", m.Name, len(want), len(gauge.DataPoints))
			}
			for _, dp := range gauge.DataPoints {
				corpus, _ := dp.Attributes.Value(attribute.Key("corpus"))
				if dp.Value != want[corpus.AsString()] {
					t.Errorf("%s{corpus=%s}: expected %d, got %d", m.Name, corpus.AsString(), want[corpus.AsString()], dp.Value)
				}
			}
		}
	}

	if found != len(expected) {
		t.Errorf("Expected %d metrics, found %d", len(expected), found)
	}
}

package search

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

var (
	searchMetricsOnce      sync.Once
	searchPageCounter      metric.Int64Counter
	searchHitCounter       metric.Int64Counter
	searchErrorCounter     metric.Int64Counter
	searchLatencyHistogram metric.Float64Histogram
)

func initSearchOTelMetrics() {
	searchMetricsOnce.Do(func() {
		meter := otel.Meter("treesearch/search")

		var err error
		searchPageCounter, err = meter.Int64Counter(
			"treesearch.search.pages.total",
			metric.WithDescription("Total search pages executed"),
		)
		if err != nil {
			zap.L().Warn("observability: failed to create search page counter", zap.Error(err))
		}

		searchHitCounter, err = meter.Int64Counter(
			"treesearch.search.hits.total",
			metric.WithDescription("Total hits returned by searches"),
		)
		if err != nil {
			zap.L().Warn("observability: failed to create search hit counter", zap.Error(err))
		}

		searchErrorCounter, err = meter.Int64Counter(
			"treesearch.search.errors.total",
			metric.WithDescription("Total failed search pages"),
		)
		if err != nil {
			zap.L().Warn("observability: failed to create search error counter", zap.Error(err))
		}

		searchLatencyHistogram, err = meter.Float64Histogram(
			"treesearch.search.page_time",
			metric.WithDescription("Search page time (ms)"),
			metric.WithUnit("ms"),
		)
		if err != nil {
			zap.L().Warn("observability: failed to create search latency histogram", zap.Error(err))
		}
	})
}

func recordSearchMetrics(ctx context.Context, corpus string, grinded bool, hits int, duration time.Duration, err error) {
	initSearchOTelMetrics()
	attrs := metric.WithAttributes(
		attribute.String("corpus", corpus),
		attribute.Bool("grinded", grinded),
	)
	if searchPageCounter != nil {
		searchPageCounter.Add(ctx, 1, attrs)
	}
	if searchHitCounter != nil && hits > 0 {
		searchHitCounter.Add(ctx, int64(hits), attrs)
	}
	if searchLatencyHistogram != nil {
		searchLatencyHistogram.Record(ctx, float64(duration.Milliseconds()), attrs)
	}
	if err != nil && searchErrorCounter != nil {
		searchErrorCounter.Add(ctx, 1, attrs)
	}
}

package querylog

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// RegisterOTelMetrics reports the logged totals per corpus as observable
// gauges. It should be called after observability.Init.
func (s *Store) RegisterOTelMetrics(logger *zap.Logger) (metric.Registration, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	meter := otel.Meter("treesearch/querylog")

	searches, err := meter.Int64ObservableGauge(
		"treesearch.searches.logged",
		metric.WithDescription("Cumulative logged search pages by corpus"),
		metric.WithUnit("{searches}"),
	)
	if err != nil {
		return nil, err
	}
	hits, err := meter.Int64ObservableGauge(
		"treesearch.hits.logged",
		metric.WithDescription("Cumulative logged hits by corpus"),
		metric.WithUnit("{hits}"),
	)
	if err != nil {
		return nil, err
	}

	return meter.RegisterCallback(func(ctx context.Context, observer metric.Observer) error {
		totals, err := s.Totals(ctx)
		if err != nil {
			// keep the export going, the log is best effort
			logger.Warn("querylog: failed to read totals", zap.Error(err))
			return nil
		}
		for corpus, t := range totals {
			attrs := metric.WithAttributes(attribute.String("corpus", corpus))
			observer.ObserveInt64(searches, t.Searches, attrs)
			observer.ObserveInt64(hits, t.Hits, attrs)
		}
		return nil
	}, searches, hits)
}

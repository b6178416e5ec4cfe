package querycache

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/goliatone/go-query-cache/querycache"

// Metric names recorded on the configured meter.
const (
	MetricFetches       = "querycache.fetches"
	MetricFetchDuration = "querycache.fetch.duration"
	MetricDecisions     = "querycache.revalidations"
	MetricMutations     = "querycache.mutations"
	MetricInvalidations = "querycache.invalidations"
)

type metrics struct {
	fetches       metric.Int64Counter
	fetchDuration metric.Float64Histogram
	decisions     metric.Int64Counter
	mutations     metric.Int64Counter
	invalidations metric.Int64Counter
}

func newMetrics(meter metric.Meter) (*metrics, error) {
	m := &metrics{}
	var err error

	if m.fetches, err = meter.Int64Counter(MetricFetches,
		metric.WithDescription("Completed query fetches"),
	); err != nil {
		return nil, err
	}
	if m.fetchDuration, err = meter.Float64Histogram(MetricFetchDuration,
		metric.WithDescription("Duration of query fetches"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if m.decisions, err = meter.Int64Counter(MetricDecisions,
		metric.WithDescription("Revalidation decisions by action"),
	); err != nil {
		return nil, err
	}
	if m.mutations, err = meter.Int64Counter(MetricMutations,
		metric.WithDescription("Completed mutations"),
	); err != nil {
		return nil, err
	}
	if m.invalidations, err = meter.Int64Counter(MetricInvalidations,
		metric.WithDescription("Keys flagged for a forced refresh"),
	); err != nil {
		return nil, err
	}
	return m, nil
}

func outcome(err error) attribute.KeyValue {
	if err != nil {
		return attribute.String("outcome", "error")
	}
	return attribute.String("outcome", "success")
}

func (m *metrics) recordFetch(ctx context.Context, endpoint string, background bool, took time.Duration, err error) {
	attrs := metric.WithAttributes(
		attribute.String("endpoint", endpoint),
		attribute.Bool("background", background),
		outcome(err),
	)
	m.fetches.Add(ctx, 1, attrs)
	m.fetchDuration.Record(ctx, took.Seconds(), attrs)
}

func (m *metrics) recordDecision(ctx context.Context, endpoint string, action Action) {
	m.decisions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("endpoint", endpoint),
		attribute.String("action", action.String()),
	))
}

func (m *metrics) recordMutation(ctx context.Context, endpoint string, err error) {
	m.mutations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("endpoint", endpoint),
		outcome(err),
	))
}

func (m *metrics) recordInvalidation(ctx context.Context, endpoint string) {
	m.invalidations.Add(ctx, 1, metric.WithAttributes(attribute.String("endpoint", endpoint)))
}

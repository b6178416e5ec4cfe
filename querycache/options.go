package querycache

import (
	"time"

	"github.com/goliatone/go-query-cache/cache"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithClock sets the clock used to stamp and age entries.
func WithClock(clock cache.Clock) Option {
	return func(c *Client) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithKeySerializer sets how key tuples are reduced to cache keys.
func WithKeySerializer(serializer cache.KeySerializer) Option {
	return func(c *Client) {
		if serializer != nil {
			c.serializer = serializer
		}
	}
}

// WithMeter records fetch, mutation and invalidation metrics on meter.
func WithMeter(meter metric.Meter) Option {
	return func(c *Client) {
		if meter != nil {
			c.meter = meter
		}
	}
}

// WithTracer wraps fetches and mutations in spans from tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *Client) {
		if tracer != nil {
			c.tracer = tracer
		}
	}
}

// WithInFlightDedupe collapses concurrent fetches of the same key into one call
// of the fetch function. Every caller still receives the shared result.
func WithInFlightDedupe(enabled bool) Option {
	return func(c *Client) {
		c.dedupe = enabled
	}
}

// WithDefaultCacheTime sets the freshness window used by queries that do not
// configure one. Non-positive values are ignored.
func WithDefaultCacheTime(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.defaultCacheTime = d
		}
	}
}

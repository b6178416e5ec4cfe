package querycache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-query-cache/cache"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/singleflight"
)

// Client owns the engine state shared by every query and mutation built on it:
// the attached store, the invalidation flags and the ambient logger, clock and
// telemetry.
type Client struct {
	mu    sync.RWMutex
	store cache.Store

	serializer       cache.KeySerializer
	clock            cache.Clock
	logger           zerolog.Logger
	meter            metric.Meter
	tracer           trace.Tracer
	defaultCacheTime time.Duration

	metrics     *metrics
	invalidated *invalidationRegistry
	active      *activeKeys
	dedupe      bool
	flight      singleflight.Group
}

// NewClient creates a Client. It cannot be used until Initialize attaches a store.
func NewClient(opts ...Option) *Client {
	c := &Client{
		serializer:       cache.NewDefaultKeySerializer(),
		clock:            cache.SystemClock,
		logger:           zerolog.Nop(),
		meter:            metricnoop.NewMeterProvider().Meter(instrumentationName),
		tracer:           tracenoop.NewTracerProvider().Tracer(instrumentationName),
		defaultCacheTime: cache.DefaultCacheTime,
		invalidated:      newInvalidationRegistry(),
		active:           newActiveKeys(),
	}
	for _, opt := range opts {
		opt(c)
	}

	m, err := newMetrics(c.meter)
	if err != nil {
		c.logger.Warn().Err(err).Msg("querycache: metrics disabled")
		m, _ = newMetrics(metricnoop.NewMeterProvider().Meter(instrumentationName))
	}
	c.metrics = m

	return c
}

// Initialize attaches the store. Calling it again swaps the store for
// observers created afterwards.
func (c *Client) Initialize(store cache.Store) error {
	if store == nil {
		return ErrNilStore
	}
	c.mu.Lock()
	c.store = store
	c.mu.Unlock()

	c.logger.Debug().Msg("querycache: store attached")
	return nil
}

// Store returns the attached store or ErrNotInitialized.
func (c *Client) Store() (cache.Store, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.store == nil {
		return nil, ErrNotInitialized
	}
	return c.store, nil
}

// Initialized reports whether a store is attached.
func (c *Client) Initialized() bool {
	_, err := c.Store()
	return err == nil
}

// Key reduces a key tuple to its cache key using the client serializer.
func (c *Client) Key(tuple ...any) (string, error) {
	return cache.HashKey(c.serializer, tuple...)
}

// Clock returns the clock used to stamp entries.
func (c *Client) Clock() cache.Clock {
	return c.clock
}

// Invalidate flags the key for a forced refresh and evicts its entry. The
// eviction notifies the store subscribers, and the first observer of the key
// to see the flag consumes it and refetches in the background. Repeating the
// call before the flag is consumed has no further effect.
func (c *Client) Invalidate(tuple ...any) error {
	store, err := c.Store()
	if err != nil {
		return err
	}
	key, err := c.Key(tuple...)
	if err != nil {
		return err
	}

	if c.invalidated.Flag(key) {
		c.metrics.recordInvalidation(context.Background(), endpointOf(key))
	}
	c.logger.Debug().Str("key", key).Msg("querycache: key invalidated")

	cache.Evict(store, key)
	return nil
}

// InvalidatePrefix invalidates every key derived from a tuple starting with
// prefix: stored entries and keys of open observers alike. It returns the
// invalidated keys in sorted order.
func (c *Client) InvalidatePrefix(prefix ...any) ([]string, error) {
	store, err := c.Store()
	if err != nil {
		return nil, err
	}
	root, err := c.Key(prefix...)
	if err != nil {
		return nil, err
	}

	matched := map[string]struct{}{}
	for key := range store.GetState() {
		if cache.MatchesPrefix(key, root) {
			matched[key] = struct{}{}
		}
	}
	c.active.Range(func(key string) {
		if cache.MatchesPrefix(key, root) {
			matched[key] = struct{}{}
		}
	})

	keys := sortedKeys(matched)
	if len(keys) == 0 {
		return keys, nil
	}
	for _, key := range keys {
		if c.invalidated.Flag(key) {
			c.metrics.recordInvalidation(context.Background(), endpointOf(key))
		}
	}
	c.logger.Debug().Str("prefix", root).Int("keys", len(keys)).Msg("querycache: prefix invalidated")

	store.SetState(func(state cache.State) cache.State {
		for _, key := range keys {
			delete(state, key)
		}
		return state
	})

	return keys, nil
}

// PendingInvalidations returns the flagged keys no observer has consumed yet.
func (c *Client) PendingInvalidations() []string {
	return c.invalidated.Keys()
}

// runFetch calls fetch, collapsing concurrent calls for key when dedupe is on.
func (c *Client) runFetch(key string, fetch func() (any, error)) (any, error) {
	if !c.dedupe {
		return fetch()
	}
	v, err, _ := c.flight.Do(key, fetch)
	return v, err
}

func endpointOf(key string) string {
	if i := strings.Index(key, cache.KeySeparator); i >= 0 {
		return key[:i]
	}
	return key
}

func sortedKeys(set map[string]struct{}) []string {
	state := make(cache.State, len(set))
	for key := range set {
		state[key] = nil
	}
	return state.Keys()
}

var defaultClient = NewClient()

// Default returns the process-wide client used by the package level functions.
func Default() *Client {
	return defaultClient
}

// Initialize attaches store to the default client.
func Initialize(store cache.Store) error {
	return defaultClient.Initialize(store)
}

// Invalidate invalidates a key on the default client.
func Invalidate(tuple ...any) error {
	return defaultClient.Invalidate(tuple...)
}

// InvalidatePrefix invalidates a key prefix on the default client.
func InvalidatePrefix(prefix ...any) ([]string, error) {
	return defaultClient.InvalidatePrefix(prefix...)
}

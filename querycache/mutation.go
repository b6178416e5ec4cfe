package querycache

import (
	"context"
	"sync"
	"time"

	"github.com/goliatone/go-query-cache/cache"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// MutationFn performs a write.
type MutationFn[In, Out any] func(ctx context.Context, input In) (Out, error)

// Mutation is a one-shot write bound to a key. Successful results are stored
// under the key so they can be read like query results.
type Mutation[In, Out any] struct {
	client   *Client
	key      string
	endpoint string
	fn       MutationFn[In, Out]
	config   MutationConfig[Out]
}

// NewMutation binds fn to key on client. A nil client means the default client.
func NewMutation[In, Out any](client *Client, key []any, fn MutationFn[In, Out], cfg MutationConfig[Out]) (*Mutation[In, Out], error) {
	if client == nil {
		client = defaultClient
	}
	if fn == nil {
		return nil, ErrNilFunc
	}
	hashed, err := client.Key(key...)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Mutation[In, Out]{
		client:   client,
		key:      hashed,
		endpoint: key[0].(string),
		fn:       fn,
		config:   cfg,
	}, nil
}

// Key returns the cache key results are written to.
func (m *Mutation[In, Out]) Key() string {
	return m.key
}

// Endpoint returns the first element of the key tuple.
func (m *Mutation[In, Out]) Endpoint() string {
	return m.endpoint
}

// Observe returns a consumer of the mutation with its own status.
func (m *Mutation[In, Out]) Observe() (*MutationObserver[In, Out], error) {
	store, err := m.client.Store()
	if err != nil {
		return nil, err
	}
	return &MutationObserver[In, Out]{mutation: m, store: store}, nil
}

// MutationStatus is the status of the latest Mutate call of an observer.
type MutationStatus struct {
	IsLoading bool
	IsError   bool
	IsSuccess bool
	Error     error
}

// MutationObserver runs a mutation and tracks the status of its latest call.
type MutationObserver[In, Out any] struct {
	mutation *Mutation[In, Out]
	store    cache.Store

	mu     sync.Mutex
	status MutationStatus
}

// Status returns the status of the latest call.
func (o *MutationObserver[In, Out]) Status() MutationStatus {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

// Mutate runs the mutation once. On success the result is written under the
// mutation key, the configured prefixes are invalidated and the result is
// returned. On failure the store is left untouched and the error is returned
// as is.
func (o *MutationObserver[In, Out]) Mutate(ctx context.Context, input In) (Out, error) {
	m := o.mutation
	client := m.client

	o.setStatus(MutationStatus{IsLoading: true})

	ctx, span := client.tracer.Start(ctx, "querycache.mutate", trace.WithAttributes(
		attribute.String("querycache.key", m.key),
	))
	defer span.End()

	start := time.Now()
	out, err := m.fn(ctx, input)
	took := time.Since(start)
	client.metrics.recordMutation(ctx, m.endpoint, err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		client.logger.Warn().Err(err).
			Str("key", m.key).
			Dur("duration", took).
			Msg("querycache: mutation failed")

		o.setStatus(MutationStatus{IsError: true, Error: err})
		if m.config.OnError != nil {
			m.config.OnError(err)
		}
		var zero Out
		return zero, err
	}

	cache.Put(o.store, m.key, cache.NewEntry(out, client.clock.Now()))
	client.logger.Debug().
		Str("key", m.key).
		Dur("duration", took).
		Msg("querycache: mutation succeeded")

	for _, prefix := range m.config.Invalidates {
		if _, err := client.InvalidatePrefix(prefix...); err != nil {
			client.logger.Warn().Err(err).Str("key", m.key).Msg("querycache: invalidation after mutation failed")
		}
	}

	o.setStatus(MutationStatus{IsSuccess: true})
	if m.config.OnSuccess != nil {
		m.config.OnSuccess(out)
	}
	return out, nil
}

func (o *MutationObserver[In, Out]) setStatus(status MutationStatus) {
	o.mu.Lock()
	o.status = status
	o.mu.Unlock()
}

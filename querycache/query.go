package querycache

import (
	"context"

	"github.com/google/uuid"
)

// Params are the parameters of a query call. Non-empty params become the last
// element of the key tuple and are passed to the fetch function.
type Params = map[string]any

// QueryFn fetches the value of a query.
type QueryFn[T any] func(ctx context.Context, params Params) (T, error)

// Query is a cached read bound to a key tuple. Observe it to read through the
// cache.
type Query[T any] struct {
	client   *Client
	key      []any
	endpoint string
	fn       QueryFn[T]
	config   QueryConfig[T]
}

// NewQuery binds fn to key on client. A nil client means the default client.
func NewQuery[T any](client *Client, key []any, fn QueryFn[T], cfg QueryConfig[T]) (*Query[T], error) {
	if client == nil {
		client = defaultClient
	}
	if fn == nil {
		return nil, ErrNilFunc
	}
	if _, err := client.Key(key...); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Query[T]{
		client:   client,
		key:      append([]any(nil), key...),
		endpoint: key[0].(string),
		fn:       fn,
		config:   cfg,
	}, nil
}

// Endpoint returns the first element of the key tuple.
func (q *Query[T]) Endpoint() string {
	return q.endpoint
}

// Config returns the query level configuration.
func (q *Query[T]) Config() QueryConfig[T] {
	return q.config
}

// Key returns the cache key for params.
func (q *Query[T]) Key(params Params) (string, error) {
	tuple := q.key
	if len(params) > 0 {
		tuple = append(append(make([]any, 0, len(q.key)+1), q.key...), params)
	}
	return q.client.Key(tuple...)
}

// ObserveOptions are the per-consumer inputs of Observe.
type ObserveOptions[T any] struct {
	Params Params
	// Config overrides the query configuration field by field.
	Config QueryConfig[T]
}

// Observe mounts a consumer on the query and runs the revalidation policy once.
//
// Setup failures return a nil observer. When the mount needed a blocking fetch
// and that fetch failed, the observer is returned together with the fetch
// error, which is also recorded in its Result.
func (q *Query[T]) Observe(ctx context.Context, opts ObserveOptions[T]) (*Observer[T], error) {
	store, err := q.client.Store()
	if err != nil {
		return nil, err
	}

	cfg := q.config.Merge(opts.Config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	key, err := q.Key(opts.Params)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	o := &Observer[T]{
		id:      id,
		query:   q,
		client:  q.client,
		store:   store,
		config:  cfg,
		ttl:     cfg.cacheTime(q.client.defaultCacheTime),
		base:    context.WithoutCancel(ctx),
		logger:  q.client.logger.With().Str("observer", id).Logger(),
		params:  cloneParams(opts.Params),
		key:     key,
		changes: make(chan struct{}, 1),
	}
	o.unsubscribe = store.Subscribe(o.onStoreChange)
	q.client.active.Track(key)

	if err := o.revalidate(ctx); err != nil {
		return o, err
	}
	return o, nil
}

func cloneParams(params Params) Params {
	if params == nil {
		return nil
	}
	out := make(Params, len(params))
	for k, v := range params {
		out[k] = v
	}
	return out
}

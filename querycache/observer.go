package querycache

import (
	"context"
	"sync"
	"time"

	"github.com/goliatone/go-query-cache/cache"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Result is what a consumer sees of its query.
//
// HasData false with IsLoading true means nothing is cached yet. A non-nil
// Error means the last fetch failed. HasData with IsFetching means the data is
// being refreshed in the background.
type Result[T any] struct {
	Data       T
	HasData    bool
	IsLoading  bool
	IsFetching bool
	Error      error
}

// Observer is one consumer of a query. It holds the fetch status of that
// consumer and listens to the store for invalidations of its key.
//
// Entries found stale on read are evicted right away, so a consumer sees no
// data rather than stale data while the refetch runs.
type Observer[T any] struct {
	id     string
	query  *Query[T]
	client *Client
	store  cache.Store
	config QueryConfig[T]
	ttl    time.Duration
	base   context.Context
	logger zerolog.Logger

	mu       sync.Mutex
	params   Params
	key      string
	cycled   bool
	loading  int
	fetching int
	err      error
	closed   bool

	unsubscribe func()
	changes     chan struct{}
	wg          sync.WaitGroup
}

// ID identifies the observer in logs.
func (o *Observer[T]) ID() string {
	return o.id
}

// Key returns the current cache key.
func (o *Observer[T]) Key() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.key
}

// Params returns a copy of the current parameters.
func (o *Observer[T]) Params() Params {
	o.mu.Lock()
	defer o.mu.Unlock()
	return cloneParams(o.params)
}

// Changes delivers a coalesced signal whenever the store or the fetch status
// changed. It is closed by Close.
func (o *Observer[T]) Changes() <-chan struct{} {
	return o.changes
}

// Read runs the revalidation policy and returns the resulting snapshot. The
// error is the one of a blocking fetch, if the policy needed one.
func (o *Observer[T]) Read(ctx context.Context) (Result[T], error) {
	if o.isClosed() {
		return Result[T]{}, ErrClosed
	}
	err := o.revalidate(ctx)
	return o.Result(), err
}

// Result returns the current snapshot without fetching. A stale entry is
// evicted and restarts the fetch cycle.
func (o *Observer[T]) Result() Result[T] {
	key := o.Key()
	entry, ok := o.lookup(key)
	if ok && !entry.IsFresh(o.client.clock.Now(), o.ttl) {
		if cache.EvictIfUnchanged(o.store, key, entry.WrittenAt) {
			ok = false
			o.mu.Lock()
			o.cycled = false
			o.mu.Unlock()
		} else {
			entry, ok = o.lookup(key)
			ok = ok && entry.IsFresh(o.client.clock.Now(), o.ttl)
		}
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	res := Result[T]{
		IsLoading:  o.loading > 0,
		IsFetching: o.fetching > 0,
		Error:      o.err,
	}
	if ok {
		res.HasData = true
		if entry.Data != nil {
			res.Data = entry.Data.(T)
		}
	}
	return res
}

// Refetch fetches the key again and waits for it, reporting through
// IsFetching. Passing params first switches the observer to them.
func (o *Observer[T]) Refetch(ctx context.Context, params ...Params) error {
	if o.isClosed() {
		return ErrClosed
	}
	if len(params) > 0 {
		if _, err := o.retarget(params[0]); err != nil {
			return err
		}
	}
	return o.fetch(ctx, true)
}

// SetParams switches the observer to params. A different key restarts the
// fetch cycle and runs the revalidation policy for it.
func (o *Observer[T]) SetParams(ctx context.Context, params Params) error {
	if o.isClosed() {
		return ErrClosed
	}
	changed, err := o.retarget(params)
	if err != nil || !changed {
		return err
	}
	return o.revalidate(ctx)
}

// Close detaches the observer from the store. Fetches already dispatched run
// to completion and still write the store, but no longer touch this observer.
func (o *Observer[T]) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	key := o.key
	close(o.changes)
	o.mu.Unlock()

	o.unsubscribe()
	o.client.active.Untrack(key)
}

// Wait blocks until every background fetch dispatched so far has finished.
// Call it at a quiescent point, where no store change can dispatch a new fetch
// concurrently, such as after Close.
func (o *Observer[T]) Wait() {
	o.wg.Wait()
}

func (o *Observer[T]) revalidate(ctx context.Context) error {
	key := o.Key()
	entry, ok := o.lookup(key)

	o.mu.Lock()
	action := Decide(entry, ok, o.client.clock.Now(), o.ttl, o.cycled)
	if action == ActionBackgroundRefresh {
		o.cycled = true
	}
	o.mu.Unlock()

	o.client.metrics.recordDecision(ctx, o.query.endpoint, action)
	o.logger.Debug().Str("key", key).Stringer("action", action).Msg("querycache: revalidate")

	switch action {
	case ActionBackgroundRefresh:
		o.dispatch(ctx)
	case ActionBlockingFetch:
		// consumed before the eviction notifies other observers
		o.client.invalidated.Consume(key)
		if ok && !cache.EvictIfUnchanged(o.store, key, entry.WrittenAt) {
			// another fetch replaced the stale entry in the meantime
			if current, found := o.lookup(key); found && current.IsFresh(o.client.clock.Now(), o.ttl) {
				o.mu.Lock()
				o.cycled = true
				o.mu.Unlock()
				return nil
			}
		}
		err := o.fetch(ctx, false)
		o.mu.Lock()
		o.cycled = true
		o.mu.Unlock()
		return err
	}
	return nil
}

// fetch runs one fetch of the current key and waits for it.
func (o *Observer[T]) fetch(ctx context.Context, background bool) error {
	key, params := o.target()
	o.begin(key, background)
	return o.run(ctx, key, params, background)
}

// dispatch starts a background fetch nobody waits for. It outlives ctx. The
// status flips before dispatch returns.
func (o *Observer[T]) dispatch(ctx context.Context) {
	// no Add once closed, so Wait after Close cannot race a new dispatch
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.wg.Add(1)
	o.mu.Unlock()

	key, params := o.target()
	o.begin(key, true)

	ctx = context.WithoutCancel(ctx)
	go func() {
		defer o.wg.Done()
		_ = o.run(ctx, key, params, true)
	}()
}

// run drives one call of the query function and writes its result.
func (o *Observer[T]) run(ctx context.Context, key string, params Params, background bool) error {
	ctx, span := o.client.tracer.Start(ctx, "querycache.fetch", trace.WithAttributes(
		attribute.String("querycache.key", key),
		attribute.Bool("querycache.background", background),
	))
	defer span.End()

	start := time.Now()
	v, err := o.client.runFetch(key, func() (any, error) {
		data, err := o.query.fn(ctx, params)
		if err != nil {
			return nil, err
		}
		cache.Put(o.store, key, cache.NewEntry(data, o.client.clock.Now()))
		return data, nil
	})
	took := time.Since(start)
	o.client.metrics.recordFetch(ctx, o.query.endpoint, background, took, err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		o.logger.Warn().Err(err).
			Str("key", key).
			Bool("background", background).
			Dur("duration", took).
			Msg("querycache: fetch failed")
		if o.end(background, err) && o.config.OnError != nil {
			o.config.OnError(err)
		}
		return err
	}

	o.logger.Debug().
		Str("key", key).
		Bool("background", background).
		Dur("duration", took).
		Msg("querycache: fetch succeeded")

	data, _ := v.(T)
	if o.end(background, nil) && o.config.OnSuccess != nil {
		o.config.OnSuccess(data)
	}
	return nil
}

func (o *Observer[T]) onStoreChange() {
	o.mu.Lock()
	key, closed := o.key, o.closed
	o.mu.Unlock()
	if closed {
		return
	}

	if o.client.invalidated.Consume(key) {
		o.logger.Debug().Str("key", key).Msg("querycache: invalidation consumed")
		o.dispatch(o.base)
	}
	o.signal()
}

// begin marks a fetch of key as started. The fetch covers any pending
// invalidation of key.
func (o *Observer[T]) begin(key string, background bool) {
	o.client.invalidated.Consume(key)

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.err = nil
	if background {
		o.fetching++
	} else {
		o.loading++
	}
	o.mu.Unlock()
	o.signal()
}

// end records the outcome and reports whether the observer is still open.
func (o *Observer[T]) end(background bool, err error) bool {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return false
	}
	if background {
		o.fetching--
	} else {
		o.loading--
	}
	if err != nil {
		o.err = err
	}
	o.mu.Unlock()
	o.signal()
	return true
}

func (o *Observer[T]) signal() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	select {
	case o.changes <- struct{}{}:
	default:
	}
}

// retarget switches to params and reports whether the key changed.
func (o *Observer[T]) retarget(params Params) (bool, error) {
	key, err := o.query.Key(params)
	if err != nil {
		return false, err
	}

	o.mu.Lock()
	old := o.key
	o.params = cloneParams(params)
	changed := key != old
	if changed {
		o.key = key
		o.cycled = false
	}
	o.mu.Unlock()

	if changed {
		o.client.active.Track(key)
		o.client.active.Untrack(old)
		o.logger.Debug().Str("key", key).Str("previous", old).Msg("querycache: key changed")
	}
	return changed, nil
}

// lookup returns the entry under key when it holds a T.
func (o *Observer[T]) lookup(key string) (cache.Entry, bool) {
	entry, ok := cache.Lookup(o.store.GetState(), key)
	if !ok {
		return cache.Entry{}, false
	}
	if entry.Data == nil {
		return entry, true
	}
	if _, ok := entry.Data.(T); !ok {
		return cache.Entry{}, false
	}
	return entry, true
}

func (o *Observer[T]) target() (string, Params) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.key, o.params
}

func (o *Observer[T]) isClosed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}

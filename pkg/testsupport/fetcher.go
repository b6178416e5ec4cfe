package testsupport

import (
	"context"
	"sync"
	"sync/atomic"
)

const fetcherBuffer = 1024

// Respond produces the result of the n-th call (starting at 1) of a Fetcher.
type Respond[T any] func(call int, params map[string]any) (T, error)

// Values returns a Respond that yields values in order and repeats the last one.
func Values[T any](values ...T) Respond[T] {
	return func(call int, _ map[string]any) (T, error) {
		if len(values) == 0 {
			var zero T
			return zero, nil
		}
		if call > len(values) {
			call = len(values)
		}
		return values[call-1], nil
	}
}

// Fail returns a Respond that always fails with err.
func Fail[T any](err error) Respond[T] {
	return func(int, map[string]any) (T, error) {
		var zero T
		return zero, err
	}
}

// Fetcher is a scripted fetch function that records how often and with which
// parameters it was called. A gated Fetcher blocks every call until Release.
type Fetcher[T any] struct {
	respond Respond[T]
	calls   atomic.Int64

	mu     sync.Mutex
	params []map[string]any

	gate    chan struct{}
	started chan int
}

// NewFetcher creates an ungated Fetcher.
func NewFetcher[T any](respond Respond[T]) *Fetcher[T] {
	return &Fetcher[T]{
		respond: respond,
		started: make(chan int, fetcherBuffer),
	}
}

// NewGatedFetcher creates a Fetcher whose calls wait for Release.
func NewGatedFetcher[T any](respond Respond[T]) *Fetcher[T] {
	f := NewFetcher(respond)
	f.gate = make(chan struct{}, fetcherBuffer)
	return f
}

// Fetch runs one scripted call. Gated calls return ctx.Err() if ctx is done
// before they are released.
func (f *Fetcher[T]) Fetch(ctx context.Context, params map[string]any) (T, error) {
	call := int(f.calls.Add(1))

	f.mu.Lock()
	f.params = append(f.params, params)
	f.mu.Unlock()

	select {
	case f.started <- call:
	default:
	}

	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		}
	}

	return f.respond(call, params)
}

// Release lets n gated calls proceed.
func (f *Fetcher[T]) Release(n int) {
	for i := 0; i < n; i++ {
		f.gate <- struct{}{}
	}
}

// Started delivers the call number of every call as it begins.
func (f *Fetcher[T]) Started() <-chan int {
	return f.started
}

// Calls returns how many times Fetch has been invoked.
func (f *Fetcher[T]) Calls() int {
	return int(f.calls.Load())
}

// LastParams returns the parameters of the most recent call.
func (f *Fetcher[T]) LastParams() map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.params) == 0 {
		return nil
	}
	return f.params[len(f.params)-1]
}

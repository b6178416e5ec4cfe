package querycache

import (
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-query-cache/cache"
	"github.com/goliatone/go-query-cache/pkg/testsupport"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

type harness struct {
	client *Client
	store  *cache.MemoryStore
	clock  *testsupport.ManualClock
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()

	clock := testsupport.NewManualClock(epoch)
	store := cache.NewMemoryStore()
	client := NewClient(append([]Option{WithClock(clock)}, opts...)...)
	require.NoError(t, client.Initialize(store))

	return &harness{client: client, store: store, clock: clock}
}

func (h *harness) entry(t *testing.T, key string) (cache.Entry, bool) {
	t.Helper()
	return cache.Lookup(h.store.GetState(), key)
}

func waitStarted[T any](t *testing.T, f *testsupport.Fetcher[T]) int {
	t.Helper()
	select {
	case call := <-f.Started():
		return call
	case <-time.After(2 * time.Second):
		t.Fatal("fetch did not start")
		return 0
	}
}

// interleavingStore runs a pending write on the inner store right before the
// next SetState, as if another fetch landed between a read and a write.
type interleavingStore struct {
	*cache.MemoryStore
	mu     sync.Mutex
	before func(inner *cache.MemoryStore)
}

func (s *interleavingStore) interleave(fn func(inner *cache.MemoryStore)) {
	s.mu.Lock()
	s.before = fn
	s.mu.Unlock()
}

func (s *interleavingStore) SetState(transform cache.Transform) {
	s.mu.Lock()
	fn := s.before
	s.before = nil
	s.mu.Unlock()
	if fn != nil {
		fn(s.MemoryStore)
	}
	s.MemoryStore.SetState(transform)
}

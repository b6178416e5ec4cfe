package cache

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/goliatone/go-query-cache/internal/cacheinfra"
)

// State is a snapshot of the whole key-space held by a Store.
type State map[string]any

// Clone returns a shallow copy of the state. Values are shared, keys are not.
func (s State) Clone() State {
	next := make(State, len(s))
	for k, v := range s {
		next[k] = v
	}
	return next
}

// Keys returns the state keys in sorted order.
func (s State) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Transform replaces a state with a new one. It receives a private copy of the
// current state that it may mutate and return.
type Transform func(State) State

// Store is the shared key-value collaborator the query engine reads from and
// writes to. It is the single source of truth for cached entries across every
// consumer in the process.
//
// Contract:
//   - GetState returns a snapshot that callers must not mutate.
//   - SetState applies transform synchronously, atomically with respect to other
//     SetState calls, and notifies every subscriber once after the new state is
//     visible. Listeners are invoked outside of any store lock so they may call
//     back into the store.
//   - Subscribe returns an idempotent unsubscribe function.
type Store interface {
	GetState() State
	SetState(transform Transform)
	Subscribe(listener func()) (unsubscribe func())
}

// MemoryStore is a copy-on-write in-memory Store.
// Reads never block: the current state is swapped atomically on every write.
type MemoryStore struct {
	writeMu   sync.Mutex
	state     atomic.Pointer[State]
	listeners *cacheinfra.Listeners
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{listeners: cacheinfra.NewListeners()}
	empty := State{}
	s.state.Store(&empty)
	return s
}

// GetState returns the current snapshot.
func (s *MemoryStore) GetState() State {
	return *s.state.Load()
}

// SetState applies transform to a copy of the current state and publishes the result.
func (s *MemoryStore) SetState(transform Transform) {
	s.writeMu.Lock()
	next := transform(s.GetState().Clone())
	if next == nil {
		next = State{}
	}
	s.state.Store(&next)
	s.writeMu.Unlock()

	s.listeners.Notify()
}

// Subscribe registers a change listener.
func (s *MemoryStore) Subscribe(listener func()) func() {
	return s.listeners.Add(listener)
}

// Subscribers returns the number of registered listeners.
func (s *MemoryStore) Subscribers() int {
	return s.listeners.Len()
}

var _ Store = (*MemoryStore)(nil)

package cacheinfra

import (
	"sort"
	"sync"
)

// Listeners is a registry of store change subscribers. Store implementations
// embed it to honour the Subscribe contract.
type Listeners struct {
	mu        sync.RWMutex
	nextID    uint64
	listeners map[uint64]func()
}

// NewListeners creates an empty listener registry.
func NewListeners() *Listeners {
	return &Listeners{listeners: make(map[uint64]func())}
}

// Add registers fn and returns an idempotent unsubscribe function.
func (l *Listeners) Add(fn func()) func() {
	l.mu.Lock()
	id := l.nextID
	l.nextID++
	l.listeners[id] = fn
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.listeners, id)
			l.mu.Unlock()
		})
	}
}

// Notify calls every listener in subscription order. It holds no lock while a
// listener runs, and a listener removed mid-notification is skipped.
func (l *Listeners) Notify() {
	l.mu.RLock()
	ids := make([]uint64, 0, len(l.listeners))
	for id := range l.listeners {
		ids = append(ids, id)
	}
	l.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		l.mu.RLock()
		fn, ok := l.listeners[id]
		l.mu.RUnlock()
		if ok {
			fn()
		}
	}
}

// Len returns the number of registered listeners.
func (l *Listeners) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.listeners)
}

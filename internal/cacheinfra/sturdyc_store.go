package cacheinfra

import (
	"sync"

	"github.com/viccon/sturdyc"
)

// SturdycStore keeps the shared key-space in a sturdyc client so the store is
// bounded by capacity and sharded for concurrent reads.
//
// Writes are serialized by a mutex and applied key by key: a reader that races
// a SetState may see part of it, subscribers are only notified once the whole
// transform has been applied.
type SturdycStore struct {
	writeMu   sync.Mutex
	client    *sturdyc.Client[any]
	listeners *Listeners
}

// NewSturdycStore validates cfg and creates a sturdyc client with it.
func NewSturdycStore(cfg Config) (*SturdycStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := sturdyc.New[any](
		cfg.Capacity,
		cfg.NumShards,
		cfg.Retention,
		cfg.EvictionPercentage,
		cfg.sturdycOptions()...,
	)

	return &SturdycStore{
		client:    client,
		listeners: NewListeners(),
	}, nil
}

// GetState collects every live key into a new map.
func (s *SturdycStore) GetState() map[string]any {
	keys := s.client.ScanKeys()
	state := make(map[string]any, len(keys))
	for _, key := range keys {
		if value, ok := s.client.Get(key); ok {
			state[key] = value
		}
	}
	return state
}

// SetState applies transform to the current key-space and writes back the
// difference: removed keys are deleted, new or replaced values are set.
func (s *SturdycStore) SetState(transform func(map[string]any) map[string]any) {
	s.writeMu.Lock()
	prev := s.GetState()

	working := make(map[string]any, len(prev))
	for k, v := range prev {
		working[k] = v
	}
	next := transform(working)

	for key := range prev {
		if _, ok := next[key]; !ok {
			s.client.Delete(key)
		}
	}
	for key, value := range next {
		if old, ok := prev[key]; ok && sameValue(old, value) {
			continue
		}
		s.client.Set(key, value)
	}
	s.writeMu.Unlock()

	s.listeners.Notify()
}

// Subscribe registers a change listener.
func (s *SturdycStore) Subscribe(listener func()) func() {
	return s.listeners.Add(listener)
}

// Size returns the number of entries held by sturdyc.
func (s *SturdycStore) Size() int {
	return s.client.Size()
}

// sameValue compares two stored values by identity. Values whose dynamic type
// is not comparable are reported as different and get rewritten.
func sameValue(a, b any) (same bool) {
	defer func() {
		if recover() != nil {
			same = false
		}
	}()
	return a == b
}

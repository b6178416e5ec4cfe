package cache

import "time"

// DefaultCacheTime is the freshness window applied when a query does not configure one.
const DefaultCacheTime = 60 * time.Second

// Entry wraps a stored value with the time it was written.
// Entries are replaced wholesale, never merged.
type Entry struct {
	Data      any       `json:"data"`
	WrittenAt time.Time `json:"written_at"`
}

// NewEntry wraps data written at now.
func NewEntry(data any, now time.Time) Entry {
	return Entry{Data: data, WrittenAt: now}
}

// Age returns how long ago the entry was written, relative to now.
func (e Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.WrittenAt)
}

// IsFresh reports whether now - WrittenAt < ttl. The freshness window is a
// read-time argument, so two callers with different windows may disagree.
func (e Entry) IsFresh(now time.Time, ttl time.Duration) bool {
	return e.Age(now) < ttl
}

// Lookup returns the entry stored under key. Values that are not an Entry are
// reported as missing.
func Lookup(state State, key string) (Entry, bool) {
	v, ok := state[key]
	if !ok {
		return Entry{}, false
	}
	switch e := v.(type) {
	case Entry:
		return e, true
	case *Entry:
		if e == nil {
			return Entry{}, false
		}
		return *e, true
	default:
		return Entry{}, false
	}
}

// Data returns the typed payload of the entry stored under key.
// The second return value is false when the key is missing or holds another type.
func Data[T any](state State, key string) (T, bool) {
	var zero T
	entry, ok := Lookup(state, key)
	if !ok {
		return zero, false
	}
	if entry.Data == nil {
		return zero, true
	}
	data, ok := entry.Data.(T)
	if !ok {
		return zero, false
	}
	return data, true
}

// Put replaces the value under key, leaving the rest of the key-space untouched.
func Put(store Store, key string, value any) {
	store.SetState(func(state State) State {
		state[key] = value
		return state
	})
}

// Evict removes key from the store. Evicting a missing key still notifies subscribers.
func Evict(store Store, key string) {
	store.SetState(func(state State) State {
		delete(state, key)
		return state
	})
}

// EvictIfUnchanged removes key only while it still holds the entry written at
// writtenAt, and reports whether it did. A newer entry written since the caller
// looked survives.
func EvictIfUnchanged(store Store, key string, writtenAt time.Time) bool {
	removed := false
	store.SetState(func(state State) State {
		if entry, ok := Lookup(state, key); ok && entry.WrittenAt.Equal(writtenAt) {
			delete(state, key)
			removed = true
		}
		return state
	})
	return removed
}

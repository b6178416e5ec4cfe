package querycache

import (
	"sort"

	"github.com/puzpuzpuz/xsync/v3"
)

// invalidationRegistry is the process-wide set of keys flagged for a forced
// refresh. Flags are per key: flagging twice keeps one flag, and Consume lets
// exactly one caller win.
type invalidationRegistry struct {
	flags *xsync.MapOf[string, struct{}]
}

func newInvalidationRegistry() *invalidationRegistry {
	return &invalidationRegistry{flags: xsync.NewMapOf[string, struct{}]()}
}

// Flag marks key and reports whether it was not flagged before.
func (r *invalidationRegistry) Flag(key string) bool {
	_, loaded := r.flags.LoadOrStore(key, struct{}{})
	return !loaded
}

// Consume clears the flag on key and reports whether this call cleared it.
func (r *invalidationRegistry) Consume(key string) bool {
	_, loaded := r.flags.LoadAndDelete(key)
	return loaded
}

func (r *invalidationRegistry) Flagged(key string) bool {
	_, ok := r.flags.Load(key)
	return ok
}

// Keys returns the flagged keys in sorted order.
func (r *invalidationRegistry) Keys() []string {
	keys := make([]string, 0, r.flags.Size())
	r.flags.Range(func(key string, _ struct{}) bool {
		keys = append(keys, key)
		return true
	})
	sort.Strings(keys)
	return keys
}

// activeKeys counts the open observers per key, so prefix invalidation also
// reaches keys that currently hold no entry.
type activeKeys struct {
	refs *xsync.MapOf[string, int]
}

func newActiveKeys() *activeKeys {
	return &activeKeys{refs: xsync.NewMapOf[string, int]()}
}

func (a *activeKeys) Track(key string) {
	a.refs.Compute(key, func(n int, _ bool) (int, bool) {
		return n + 1, false
	})
}

func (a *activeKeys) Untrack(key string) {
	a.refs.Compute(key, func(n int, loaded bool) (int, bool) {
		if !loaded || n <= 1 {
			return 0, true
		}
		return n - 1, false
	})
}

func (a *activeKeys) Range(fn func(key string)) {
	a.refs.Range(func(key string, _ int) bool {
		fn(key)
		return true
	})
}

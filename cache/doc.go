// Package cache holds the shared key-space used by the query engine.
//
// # Overview
//
// The package exports the building blocks the querycache package works on:
//
//   - Store: a whole-state key-value store with transform writes and change subscriptions
//   - Entry: a cached value paired with the time it was written
//   - KeySerializer: reduces a key tuple to a stable string key
//
// Two Store backends are available. MemoryStore is a copy-on-write map suited to
// most processes. The sturdyc backend bounds the key-space by capacity and shards
// it for concurrent access. NewStore picks one from a Config, which can be loaded
// from QUERYCACHE_* environment variables with LoadConfig.
//
// # Keys
//
// A key tuple is an endpoint name followed by optional parameters:
//
//	key, err := cache.HashKey(cache.NewDefaultKeySerializer(), "users", map[string]any{"page": 1})
//	// users::map[1]:{"page"=1}
//
// The default serializer walks values with reflection:
//
//   - Strings are quoted so separators inside them cannot fake segments
//   - Scalars other than int, bool and string carry their type name
//   - Maps are rendered with sorted keys
//   - Structs render their exported fields
//   - Functions and channels use their pointer and are stable only within a process
//
// Two tuples produce the same key exactly when they are structurally equal.
// MatchesPrefix tells whether a key belongs to a tuple prefix, which is how
// prefix invalidation selects keys.
//
// NewDigestKeySerializer keeps the endpoint readable and replaces the parameter
// segments with an xxhash digest. Prefix matching on digested keys only works
// for whole endpoints.
//
// # Freshness
//
// Entries do not carry a TTL. Freshness is decided at read time:
//
//	entry, ok := cache.Lookup(store.GetState(), key)
//	fresh := ok && entry.IsFresh(time.Now(), 30*time.Second)
//
// # See Also
//
// The querycache package implements the stale-while-revalidate policy on top of
// this package.
package cache

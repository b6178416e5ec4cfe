// Package querycache implements a keyed stale-while-revalidate cache in front
// of fetch and mutate functions.
//
// # Overview
//
// A Client is attached to a cache.Store with Initialize. Queries and mutations
// are built on the client, directly or through an API registry:
//
//	client := querycache.NewClient(querycache.WithLogger(logger))
//	if err := client.Initialize(cache.NewMemoryStore()); err != nil {
//		return err
//	}
//
//	api := querycache.NewAPI(client)
//	users, _ := querycache.RegisterQuery(api, "users", listUsers, querycache.QueryConfig[[]User]{
//		CacheTime: 30 * time.Second,
//	})
//
//	obs, err := users.Observe(ctx, querycache.ObserveOptions[[]User]{Params: querycache.Params{"page": 1}})
//	res := obs.Result()
//
// # Revalidation
//
// Every observer runs the policy on mount, when its params change and on Read:
//
//   - no entry, or an entry older than CacheTime: the entry is evicted and a
//     blocking fetch runs (IsLoading)
//   - a fresh entry on the first read of a cycle: the entry is served and a
//     background fetch is dispatched (IsFetching)
//   - a fresh entry later in the cycle: the entry is served as is
//
// Freshness is judged at read time with the observer's own CacheTime, so two
// observers of one key may disagree.
//
// # Errors
//
// A fetch the caller waits for (the mount or Read blocking fetch, Refetch)
// returns its error. Background fetches report only through Result.Error and
// OnError. Mutations always return their error. Failed fetches and mutations
// never write the store.
//
// # Invalidation
//
// Invalidate flags a key and evicts its entry. The first observer of the key
// to see the resulting store notification consumes the flag and refetches in
// the background. InvalidatePrefix does the same for every key under a tuple
// prefix.
//
// Concurrent fetches of one key race and the last write wins, unless the client
// is built WithInFlightDedupe.
package querycache

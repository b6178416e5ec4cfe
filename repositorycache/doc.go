// Package repositorycache exposes go-repository-bun repositories as cached
// query and mutation endpoints.
//
// # Overview
//
// Register binds a repository to a querycache.API under an endpoint name:
//
//	api := querycache.NewAPI(client)
//	users, err := repositorycache.Register[User](api, "users", userRepo, repositorycache.Config[User]{
//		List:         querycache.QueryConfig[repositorycache.ListResult[User]]{CacheTime: 30 * time.Second},
//		DefaultLimit: 50,
//	})
//
//	page, err := users.List.Observe(ctx, querycache.ObserveOptions[repositorycache.ListResult[User]]{
//		Params: repositorycache.ListParams(50, 0),
//	})
//
// The list query passes limit and offset to the repository as bun criteria.
// The get query reads one record by its id param.
//
// # Invalidation
//
// Write endpoints run the repository call and, on success, invalidate what the
// write made stale:
//
//   - create invalidates every cached list of the endpoint
//   - update and delete also invalidate the cached get of the record, found by
//     its ID field, or every cached get when the record has no readable ID
//
// Observers of invalidated keys refetch in the background, the way any
// querycache invalidation works.
//
// Other endpoints affected by a write can be named on the context:
//
//	ctx = repositorycache.WithCacheTags(ctx, "projects")
//	_, err = createObserver.Mutate(ctx, user)
//
// # Endpoint Names
//
// An empty name falls back to EndpointName, the pluralized snake_case type
// name (User becomes users, HTTPRoute becomes http_routes).
package repositorycache

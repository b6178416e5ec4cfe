package querycache

import (
	"fmt"
	"sort"
	"sync"
)

// API is a registry of named queries and mutations sharing one client.
// Queries and mutations live in separate namespaces.
type API struct {
	client *Client

	mu        sync.RWMutex
	queries   map[string]any
	mutations map[string]any
}

// NewAPI creates an empty registry. A nil client means the default client.
func NewAPI(client *Client) *API {
	if client == nil {
		client = defaultClient
	}
	return &API{
		client:    client,
		queries:   map[string]any{},
		mutations: map[string]any{},
	}
}

// Client returns the client the registered endpoints run on.
func (a *API) Client() *Client {
	return a.client
}

// RegisterQuery registers fn under endpoint. The key tuple of the query is
// the endpoint followed by the call params.
func RegisterQuery[T any](api *API, endpoint string, fn QueryFn[T], cfg QueryConfig[T]) (*Query[T], error) {
	q, err := NewQuery(api.client, []any{endpoint}, fn, cfg)
	if err != nil {
		return nil, err
	}
	if err := api.register(api.queries, endpoint, q); err != nil {
		return nil, err
	}
	return q, nil
}

// RegisterMutation registers fn under endpoint. Results are stored under the
// endpoint key.
func RegisterMutation[In, Out any](api *API, endpoint string, fn MutationFn[In, Out], cfg MutationConfig[Out]) (*Mutation[In, Out], error) {
	m, err := NewMutation(api.client, []any{endpoint}, fn, cfg)
	if err != nil {
		return nil, err
	}
	if err := api.register(api.mutations, endpoint, m); err != nil {
		return nil, err
	}
	return m, nil
}

// LookupQuery returns the query registered under endpoint.
func LookupQuery[T any](api *API, endpoint string) (*Query[T], error) {
	v, err := api.lookup(api.queries, endpoint)
	if err != nil {
		return nil, err
	}
	q, ok := v.(*Query[T])
	if !ok {
		return nil, fmt.Errorf("%w: query %q is a %T", ErrEndpointType, endpoint, v)
	}
	return q, nil
}

// LookupMutation returns the mutation registered under endpoint.
func LookupMutation[In, Out any](api *API, endpoint string) (*Mutation[In, Out], error) {
	v, err := api.lookup(api.mutations, endpoint)
	if err != nil {
		return nil, err
	}
	m, ok := v.(*Mutation[In, Out])
	if !ok {
		return nil, fmt.Errorf("%w: mutation %q is a %T", ErrEndpointType, endpoint, v)
	}
	return m, nil
}

// Queries returns the registered query endpoints in sorted order.
func (a *API) Queries() []string {
	return a.names(a.queries)
}

// Mutations returns the registered mutation endpoints in sorted order.
func (a *API) Mutations() []string {
	return a.names(a.mutations)
}

func (a *API) register(table map[string]any, endpoint string, v any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, exists := table[endpoint]; exists {
		return fmt.Errorf("%w: %s", ErrEndpointExists, endpoint)
	}
	table[endpoint] = v
	return nil
}

func (a *API) lookup(table map[string]any, endpoint string) (any, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	v, ok := table[endpoint]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEndpointNotFound, endpoint)
	}
	return v, nil
}

func (a *API) names(table map[string]any) []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	names := make([]string, 0, len(table))
	for name := range table {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

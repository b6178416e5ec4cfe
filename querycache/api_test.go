package querycache

import (
	"context"
	"testing"

	"github.com/goliatone/go-query-cache/pkg/testsupport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPI_RegisterAndLookup(t *testing.T) {
	h := newHarness(t)
	api := NewAPI(h.client)

	users := testsupport.NewFetcher(testsupport.Values([]string{"ada"}))
	q, err := RegisterQuery[[]string](api, "users", users.Fetch, QueryConfig[[]string]{})
	require.NoError(t, err)

	m, err := RegisterMutation(api, "users", func(_ context.Context, name string) (string, error) {
		return name, nil
	}, MutationConfig[string]{})
	require.NoError(t, err, "queries and mutations have separate namespaces")

	gotQ, err := LookupQuery[[]string](api, "users")
	require.NoError(t, err)
	assert.Same(t, q, gotQ)

	gotM, err := LookupMutation[string, string](api, "users")
	require.NoError(t, err)
	assert.Same(t, m, gotM)

	obs, err := gotQ.Observe(context.Background(), ObserveOptions[[]string]{})
	require.NoError(t, err)
	defer obs.Close()
	assert.Equal(t, []string{"ada"}, obs.Result().Data)
}

func TestAPI_Errors(t *testing.T) {
	h := newHarness(t)
	api := NewAPI(h.client)
	fetch := testsupport.NewFetcher(testsupport.Values(1))

	_, err := RegisterQuery[int](api, "count", fetch.Fetch, QueryConfig[int]{})
	require.NoError(t, err)

	_, err = RegisterQuery[int](api, "count", fetch.Fetch, QueryConfig[int]{})
	assert.ErrorIs(t, err, ErrEndpointExists)

	_, err = RegisterQuery[int](api, "", fetch.Fetch, QueryConfig[int]{})
	assert.Error(t, err)

	_, err = LookupQuery[int](api, "missing")
	assert.ErrorIs(t, err, ErrEndpointNotFound)

	_, err = LookupQuery[string](api, "count")
	assert.ErrorIs(t, err, ErrEndpointType)

	_, err = LookupMutation[int, int](api, "count")
	assert.ErrorIs(t, err, ErrEndpointNotFound)
}

func TestAPI_Listing(t *testing.T) {
	h := newHarness(t)
	api := NewAPI(h.client)
	fetch := testsupport.NewFetcher(testsupport.Values(1))
	noop := func(context.Context, int) (int, error) { return 0, nil }

	for _, name := range []string{"todos", "users", "projects"} {
		_, err := RegisterQuery[int](api, name, fetch.Fetch, QueryConfig[int]{})
		require.NoError(t, err)
	}
	_, err := RegisterMutation(api, "todos/create", noop, MutationConfig[int]{})
	require.NoError(t, err)

	assert.Equal(t, []string{"projects", "todos", "users"}, api.Queries())
	assert.Equal(t, []string{"todos/create"}, api.Mutations())
	assert.Same(t, h.client, api.Client())
}

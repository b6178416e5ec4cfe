package querycache

import (
	"context"
	"errors"
	"testing"

	"github.com/goliatone/go-query-cache/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type user struct {
	ID   string
	Name string
}

func TestMutation_ResultVisibleInStore(t *testing.T) {
	h := newHarness(t)

	var succeeded []user
	m, err := NewMutation(h.client, []any{"createUser"}, func(_ context.Context, name string) (user, error) {
		return user{ID: "1", Name: name}, nil
	}, MutationConfig[user]{
		OnSuccess: func(u user) { succeeded = append(succeeded, u) },
	})
	require.NoError(t, err)

	obs, err := m.Observe()
	require.NoError(t, err)

	got, err := obs.Mutate(context.Background(), "ada")
	require.NoError(t, err)
	assert.Equal(t, user{ID: "1", Name: "ada"}, got)

	stored, ok := cache.Data[user](h.store.GetState(), "createUser")
	require.True(t, ok)
	assert.Equal(t, got, stored)

	entry, _ := h.entry(t, "createUser")
	assert.Equal(t, epoch, entry.WrittenAt)

	assert.Equal(t, MutationStatus{IsSuccess: true}, obs.Status())
	assert.Equal(t, []user{got}, succeeded)
}

func TestMutation_ConflictScenario(t *testing.T) {
	h := newHarness(t)
	prior := cache.NewEntry(user{ID: "1", Name: "ada"}, epoch)
	cache.Put(h.store, "updateUser", prior)

	conflict := errors.New("conflict")
	var reported error
	m, err := NewMutation(h.client, []any{"updateUser"}, func(context.Context, user) (user, error) {
		return user{}, conflict
	}, MutationConfig[user]{
		OnError: func(err error) { reported = err },
	})
	require.NoError(t, err)

	obs, err := m.Observe()
	require.NoError(t, err)

	_, err = obs.Mutate(context.Background(), user{ID: "1", Name: "grace"})
	assert.Same(t, conflict, err)
	assert.Same(t, conflict, reported)

	status := obs.Status()
	assert.True(t, status.IsError)
	assert.False(t, status.IsSuccess)
	assert.False(t, status.IsLoading)
	assert.EqualError(t, status.Error, "conflict")

	entry, ok := h.entry(t, "updateUser")
	require.True(t, ok)
	assert.Equal(t, prior, entry, "a failed mutation leaves the prior entry alone")
}

func TestMutation_StatusResetsEachCall(t *testing.T) {
	h := newHarness(t)

	fail := true
	m, err := NewMutation(h.client, []any{"toggle"}, func(context.Context, int) (int, error) {
		if fail {
			return 0, errors.New("nope")
		}
		return 1, nil
	}, MutationConfig[int]{})
	require.NoError(t, err)

	obs, err := m.Observe()
	require.NoError(t, err)

	_, err = obs.Mutate(context.Background(), 0)
	require.Error(t, err)
	assert.True(t, obs.Status().IsError)

	fail = false
	_, err = obs.Mutate(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, MutationStatus{IsSuccess: true}, obs.Status())
}

func TestMutation_LoadingDuringCall(t *testing.T) {
	h := newHarness(t)

	var obs *MutationObserver[int, int]
	var during MutationStatus
	m, err := NewMutation(h.client, []any{"slow"}, func(context.Context, int) (int, error) {
		during = obs.Status()
		return 1, nil
	}, MutationConfig[int]{})
	require.NoError(t, err)

	obs, err = m.Observe()
	require.NoError(t, err)

	_, err = obs.Mutate(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, MutationStatus{IsLoading: true}, during)
}

func TestMutation_Invalidates(t *testing.T) {
	h := newHarness(t)
	cache.Put(h.store, "users", cache.NewEntry([]string{"ada"}, epoch))
	cache.Put(h.store, `users::map[1]:{"page"=2}`, cache.NewEntry([]string{"grace"}, epoch))

	m, err := NewMutation(h.client, []any{"users/create"}, func(_ context.Context, name string) (string, error) {
		return name, nil
	}, MutationConfig[string]{Invalidates: [][]any{{"users"}}})
	require.NoError(t, err)

	obs, err := m.Observe()
	require.NoError(t, err)
	_, err = obs.Mutate(context.Background(), "linus")
	require.NoError(t, err)

	state := h.store.GetState()
	assert.NotContains(t, state, "users")
	assert.NotContains(t, state, `users::map[1]:{"page"=2}`)
	assert.Contains(t, state, "users/create")
}

func TestMutation_Validation(t *testing.T) {
	h := newHarness(t)

	_, err := NewMutation[int, int](h.client, []any{"x"}, nil, MutationConfig[int]{})
	assert.ErrorIs(t, err, ErrNilFunc)

	fn := func(context.Context, int) (int, error) { return 0, nil }
	_, err = NewMutation(h.client, nil, fn, MutationConfig[int]{})
	assert.ErrorIs(t, err, cache.ErrEmptyKey)

	_, err = NewMutation(h.client, []any{"x"}, fn, MutationConfig[int]{Invalidates: [][]any{{}}})
	assert.Error(t, err)
}

func TestMutation_ObserveBeforeInitialize(t *testing.T) {
	client := NewClient()
	m, err := NewMutation(client, []any{"x"}, func(context.Context, int) (int, error) { return 0, nil }, MutationConfig[int]{})
	require.NoError(t, err)

	_, err = m.Observe()
	assert.ErrorIs(t, err, ErrNotInitialized)
}

package repositorycache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-query-cache/cache"
	"github.com/goliatone/go-query-cache/querycache"
)

// TestUser represents a test entity
type TestUser struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// mockRepository tracks method calls and returns canned results
type mockRepository[T any] struct {
	mu            sync.Mutex
	calls         []string
	criteria      int
	getByIDResult T
	getByIDError  error
	listRecords   []T
	listTotal     int
	listError     error
	createResult  T
	createError   error
	updateResult  T
	updateError   error
	deleteError   error
}

func (m *mockRepository[T]) recordCall(method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, method)
}

func (m *mockRepository[T]) getCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *mockRepository[T]) GetByID(ctx context.Context, id string, criteria ...repository.SelectCriteria) (T, error) {
	m.recordCall("GetByID:" + id)
	return m.getByIDResult, m.getByIDError
}

func (m *mockRepository[T]) List(ctx context.Context, criteria ...repository.SelectCriteria) ([]T, int, error) {
	m.recordCall("List")
	m.mu.Lock()
	m.criteria = len(criteria)
	m.mu.Unlock()
	return m.listRecords, m.listTotal, m.listError
}

func (m *mockRepository[T]) Create(ctx context.Context, record T, criteria ...repository.InsertCriteria) (T, error) {
	m.recordCall("Create")
	return m.createResult, m.createError
}

func (m *mockRepository[T]) Update(ctx context.Context, record T, criteria ...repository.UpdateCriteria) (T, error) {
	m.recordCall("Update")
	return m.updateResult, m.updateError
}

func (m *mockRepository[T]) Delete(ctx context.Context, record T) error {
	m.recordCall("Delete")
	return m.deleteError
}

type fixture struct {
	api   *querycache.API
	store *cache.MemoryStore
	repo  *mockRepository[TestUser]
	users *Endpoints[TestUser]
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := cache.NewMemoryStore()
	client := querycache.NewClient()
	require.NoError(t, client.Initialize(store))
	api := querycache.NewAPI(client)

	repo := &mockRepository[TestUser]{
		listRecords:   []TestUser{{ID: "1", Name: "ada"}, {ID: "2", Name: "grace"}},
		listTotal:     2,
		getByIDResult: TestUser{ID: "1", Name: "ada"},
	}
	users, err := Register[TestUser](api, "users", repo, Config[TestUser]{DefaultLimit: 25})
	require.NoError(t, err)

	return &fixture{api: api, store: store, repo: repo, users: users}
}

func TestRegister_Endpoints(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, []string{"users", "users/get"}, f.api.Queries())
	assert.Equal(t, []string{"users/create", "users/delete", "users/update"}, f.api.Mutations())

	q, err := querycache.LookupQuery[ListResult[TestUser]](f.api, "users")
	require.NoError(t, err)
	assert.Same(t, f.users.List, q)

	_, err = Register[TestUser](f.api, "users", f.repo, Config[TestUser]{})
	assert.ErrorIs(t, err, querycache.ErrEndpointExists)
}

func TestRegister_DefaultName(t *testing.T) {
	client := querycache.NewClient()
	api := querycache.NewAPI(client)

	ep, err := Register[TestUser](api, "", &mockRepository[TestUser]{}, Config[TestUser]{})
	require.NoError(t, err)
	assert.Equal(t, "test_users", ep.Name)
	assert.Contains(t, api.Queries(), "test_users/get")
}

func TestList_CachesAndPaginates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	obs, err := f.users.List.Observe(ctx, querycache.ObserveOptions[ListResult[TestUser]]{
		Params: ListParams(10, 20),
	})
	require.NoError(t, err)
	defer obs.Close()

	res := obs.Result()
	assert.Equal(t, 2, res.Data.Total)
	assert.Len(t, res.Data.Records, 2)
	assert.Equal(t, 1, f.repo.criteria)

	// same page, served from cache in the same cycle
	_, err = obs.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"List"}, f.repo.getCalls())
}

func TestList_InvalidParams(t *testing.T) {
	f := newFixture(t)

	obs, err := f.users.List.Observe(context.Background(), querycache.ObserveOptions[ListResult[TestUser]]{
		Params: querycache.Params{"limit": "ten"},
	})
	require.NotNil(t, obs)
	defer obs.Close()
	assert.ErrorIs(t, err, ErrInvalidParam)
	assert.Empty(t, f.repo.getCalls())
}

func TestGet(t *testing.T) {
	f := newFixture(t)

	obs, err := f.users.Get.Observe(context.Background(), querycache.ObserveOptions[TestUser]{
		Params: GetParams("1"),
	})
	require.NoError(t, err)
	defer obs.Close()

	assert.Equal(t, TestUser{ID: "1", Name: "ada"}, obs.Result().Data)
	assert.Equal(t, []string{"GetByID:1"}, f.repo.getCalls())

	missing, err := f.users.Get.Observe(context.Background(), querycache.ObserveOptions[TestUser]{})
	require.NotNil(t, missing)
	defer missing.Close()
	assert.ErrorIs(t, err, ErrMissingID)
}

func TestCreate_InvalidatesLists(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	list, err := f.users.List.Observe(ctx, querycache.ObserveOptions[ListResult[TestUser]]{Params: ListParams(10, 0)})
	require.NoError(t, err)
	defer list.Close()
	get, err := f.users.Get.Observe(ctx, querycache.ObserveOptions[TestUser]{Params: GetParams("1")})
	require.NoError(t, err)
	defer get.Close()

	f.repo.createResult = TestUser{ID: "3", Name: "linus"}
	create, err := f.users.Create.Observe()
	require.NoError(t, err)

	created, err := create.Mutate(ctx, TestUser{Name: "linus"})
	require.NoError(t, err)
	assert.Equal(t, "3", created.ID)
	list.Wait()
	get.Wait()

	calls := f.repo.getCalls()
	assert.Equal(t, []string{"List", "GetByID:1", "Create", "List"}, calls, "only the list is refetched")

	stored, ok := cache.Data[TestUser](f.store.GetState(), "users/create")
	assert.True(t, ok)
	assert.Equal(t, created, stored)
}

func TestUpdate_InvalidatesRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	one, err := f.users.Get.Observe(ctx, querycache.ObserveOptions[TestUser]{Params: GetParams("1")})
	require.NoError(t, err)
	defer one.Close()
	two, err := f.users.Get.Observe(ctx, querycache.ObserveOptions[TestUser]{Params: GetParams("2")})
	require.NoError(t, err)
	defer two.Close()

	f.repo.updateResult = TestUser{ID: "1", Name: "ada lovelace"}
	f.repo.getByIDResult = TestUser{ID: "1", Name: "ada lovelace"}
	update, err := f.users.Update.Observe()
	require.NoError(t, err)

	_, err = update.Mutate(ctx, TestUser{ID: "1", Name: "ada lovelace"})
	require.NoError(t, err)
	one.Wait()
	two.Wait()

	assert.Equal(t, []string{"GetByID:1", "GetByID:2", "Update", "GetByID:1"}, f.repo.getCalls())
	assert.Equal(t, "ada lovelace", one.Result().Data.Name)
}

func TestDelete_Failure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	get, err := f.users.Get.Observe(ctx, querycache.ObserveOptions[TestUser]{Params: GetParams("1")})
	require.NoError(t, err)
	defer get.Close()

	f.repo.deleteError = errors.New("conflict")
	del, err := f.users.Delete.Observe()
	require.NoError(t, err)

	_, err = del.Mutate(ctx, TestUser{ID: "1"})
	assert.EqualError(t, err, "conflict")
	assert.True(t, del.Status().IsError)

	res := get.Result()
	assert.True(t, res.HasData, "a failed delete invalidates nothing")
	assert.Equal(t, []string{"GetByID:1", "Delete"}, f.repo.getCalls())
}

func TestWithCacheTags_InvalidatesOtherEndpoints(t *testing.T) {
	f := newFixture(t)
	cache.Put(f.store, "projects", cache.NewEntry([]string{"p1"}, time.Now()))

	create, err := f.users.Create.Observe()
	require.NoError(t, err)

	ctx := WithCacheTags(context.Background(), "projects", "projects", "")
	_, err = create.Mutate(ctx, TestUser{Name: "linus"})
	require.NoError(t, err)

	assert.NotContains(t, f.store.GetState(), "projects")
}

func TestWithCacheTags(t *testing.T) {
	ctx := WithCacheTags(context.Background(), "a", "b")
	ctx = WithCacheTags(ctx, "b", "", "c")
	assert.Equal(t, tagSet{"a", "b", "c"}, tagsFrom(ctx))

	assert.Nil(t, tagsFrom(context.Background()))
	base := context.Background()
	assert.Equal(t, base, WithCacheTags(base))
	assert.Equal(t, ctx, WithCacheTags(ctx, "a"), "no new names keeps the context")
}

func TestTagSet_Invalidate(t *testing.T) {
	f := newFixture(t)
	cache.Put(f.store, "projects", cache.NewEntry(1, time.Now()))
	cache.Put(f.store, "teams", cache.NewEntry(2, time.Now()))
	cache.Put(f.store, "orgs", cache.NewEntry(3, time.Now()))

	keys, err := tagSet{"projects", "teams"}.invalidate(f.api.Client())
	require.NoError(t, err)
	assert.Equal(t, []string{"projects", "teams"}, keys)
	assert.Equal(t, []string{"orgs"}, f.store.GetState().Keys())

	_, err = tagSet{"projects"}.invalidate(querycache.NewClient())
	assert.ErrorIs(t, err, querycache.ErrNotInitialized)
}

func TestPageParams(t *testing.T) {
	tests := []struct {
		name          string
		params        querycache.Params
		limit, offset int
		wantErr       bool
	}{
		{name: "none", params: nil},
		{name: "ints", params: ListParams(10, 5), limit: 10, offset: 5},
		{name: "json numbers", params: querycache.Params{"limit": float64(3)}, limit: 3},
		{name: "strings", params: querycache.Params{"limit": "7", "offset": "2"}, limit: 7, offset: 2},
		{name: "bad string", params: querycache.Params{"offset": "x"}, wantErr: true},
		{name: "bad type", params: querycache.Params{"limit": true}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limit, offset, err := pageParams(tt.params)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidParam)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.limit, limit)
			assert.Equal(t, tt.offset, offset)
		})
	}
}

func TestExtractID(t *testing.T) {
	type withID struct{ ID int }
	type withoutID struct{ Name string }

	id, err := extractID(TestUser{ID: "42"})
	require.NoError(t, err)
	assert.Equal(t, "42", id)

	id, err = extractID(&withID{ID: 7})
	require.NoError(t, err)
	assert.Equal(t, "7", id)

	_, err = extractID(withoutID{Name: "x"})
	assert.Error(t, err)

	_, err = extractID(TestUser{})
	assert.Error(t, err)

	_, err = extractID((*TestUser)(nil))
	assert.Error(t, err)

	_, err = extractID("plain")
	assert.Error(t, err)
}

func TestToSnake(t *testing.T) {
	tests := map[string]string{
		"User":             "user",
		"TestUser":         "test_user",
		"HTTPRoute":        "http_route",
		"Page[main.User]":  "page",
		"my-type":          "my_type",
		"_leading":         "leading",
		"Order2":           "order_2",
		"":                 "",
	}

	for in, want := range tests {
		if got := toSnake(in); got != want {
			t.Errorf("toSnake(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestEndpointName(t *testing.T) {
	assert.Equal(t, "test_users", EndpointName[TestUser]())
	assert.Equal(t, "test_users", EndpointName[*TestUser]())
}

package repositorycache

import (
	"context"
	"fmt"
	"reflect"
	"strconv"

	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/jinzhu/inflection"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-query-cache/querycache"
)

// Repository is the part of repository.Repository[T] the endpoints use.
type Repository[T any] interface {
	GetByID(ctx context.Context, id string, criteria ...repository.SelectCriteria) (T, error)
	List(ctx context.Context, criteria ...repository.SelectCriteria) ([]T, int, error)
	Create(ctx context.Context, record T, criteria ...repository.InsertCriteria) (T, error)
	Update(ctx context.Context, record T, criteria ...repository.UpdateCriteria) (T, error)
	Delete(ctx context.Context, record T) error
}

var _ Repository[any] = (repository.Repository[any])(nil)

// Errors returned by the query endpoints for malformed params.
var (
	ErrMissingID    = goerrors.New("repositorycache: id param is required", goerrors.CategoryValidation)
	ErrInvalidParam = goerrors.New("repositorycache: param is not an integer", goerrors.CategoryValidation)
)

// ListResult wraps the tuple result of List so it can be cached as one value.
type ListResult[T any] struct {
	Records []T `json:"records"`
	Total   int `json:"total"`
}

// Config configures the endpoints registered for a repository.
type Config[T any] struct {
	List querycache.QueryConfig[ListResult[T]]
	Get  querycache.QueryConfig[T]
	// DefaultLimit is applied to list calls without a limit param. Zero means no limit.
	DefaultLimit int
}

// Endpoints are the queries and mutations registered for one repository.
//
// Given the name "users" they are:
//
//	users         list, params limit and offset
//	users/get     single record, param id
//	users/create  invalidates users
//	users/update  invalidates users and the updated record
//	users/delete  invalidates users and the deleted record
type Endpoints[T any] struct {
	Name   string
	List   *querycache.Query[ListResult[T]]
	Get    *querycache.Query[T]
	Create *querycache.Mutation[T, T]
	Update *querycache.Mutation[T, T]
	Delete *querycache.Mutation[T, T]
}

// EndpointName derives an endpoint name from T: the pluralized snake_case
// type name, so User becomes users.
func EndpointName[T any]() string {
	rt := reflect.TypeOf((*T)(nil)).Elem()
	for rt.Kind() == reflect.Ptr {
		rt = rt.Elem()
	}
	return inflection.Plural(toSnake(rt.Name()))
}

// Register exposes repo on api under name. An empty name uses EndpointName.
func Register[T any](api *querycache.API, name string, repo Repository[T], cfg Config[T]) (*Endpoints[T], error) {
	if name == "" {
		name = EndpointName[T]()
	}
	ep := &Endpoints[T]{Name: name}
	b := &binding[T]{api: api, name: name, repo: repo, defaultLimit: cfg.DefaultLimit}

	var err error
	if ep.List, err = querycache.RegisterQuery(api, name, b.list, cfg.List); err != nil {
		return nil, err
	}
	if ep.Get, err = querycache.RegisterQuery(api, b.getEndpoint(), b.get, cfg.Get); err != nil {
		return nil, err
	}

	writes := querycache.MutationConfig[T]{Invalidates: [][]any{{name}}}
	if ep.Create, err = querycache.RegisterMutation(api, name+"/create", b.create, writes); err != nil {
		return nil, err
	}
	if ep.Update, err = querycache.RegisterMutation(api, name+"/update", b.update, writes); err != nil {
		return nil, err
	}
	if ep.Delete, err = querycache.RegisterMutation(api, name+"/delete", b.delete, writes); err != nil {
		return nil, err
	}
	return ep, nil
}

// GetParams builds the params of the get query for id.
func GetParams(id string) querycache.Params {
	return querycache.Params{"id": id}
}

// ListParams builds the params of the list query.
func ListParams(limit, offset int) querycache.Params {
	return querycache.Params{"limit": limit, "offset": offset}
}

type binding[T any] struct {
	api          *querycache.API
	name         string
	repo         Repository[T]
	defaultLimit int
}

func (b *binding[T]) getEndpoint() string {
	return b.name + "/get"
}

func (b *binding[T]) list(ctx context.Context, params querycache.Params) (ListResult[T], error) {
	limit, offset, err := pageParams(params)
	if err != nil {
		return ListResult[T]{}, err
	}
	if limit == 0 {
		limit = b.defaultLimit
	}

	records, total, err := b.repo.List(ctx, pageCriteria(limit, offset))
	if err != nil {
		return ListResult[T]{}, err
	}
	return ListResult[T]{Records: records, Total: total}, nil
}

func (b *binding[T]) get(ctx context.Context, params querycache.Params) (T, error) {
	id, _ := params["id"].(string)
	if id == "" {
		var zero T
		return zero, ErrMissingID
	}
	return b.repo.GetByID(ctx, id)
}

func (b *binding[T]) create(ctx context.Context, record T) (T, error) {
	created, err := b.repo.Create(ctx, record)
	if err != nil {
		return created, err
	}
	b.invalidateTags(ctx)
	return created, nil
}

func (b *binding[T]) update(ctx context.Context, record T) (T, error) {
	updated, err := b.repo.Update(ctx, record)
	if err != nil {
		return updated, err
	}
	b.invalidateRecord(updated)
	b.invalidateTags(ctx)
	return updated, nil
}

func (b *binding[T]) delete(ctx context.Context, record T) (T, error) {
	if err := b.repo.Delete(ctx, record); err != nil {
		var zero T
		return zero, err
	}
	b.invalidateRecord(record)
	b.invalidateTags(ctx)
	return record, nil
}

// invalidateRecord targets the cached get of record when its ID can be read,
// and every cached get otherwise.
func (b *binding[T]) invalidateRecord(record T) {
	client := b.api.Client()
	// the mutation already required an initialized client, errors are not expected
	if id, err := extractID(record); err == nil {
		_, _ = client.InvalidatePrefix(b.getEndpoint(), GetParams(id))
		return
	}
	_, _ = client.InvalidatePrefix(b.getEndpoint())
}

func (b *binding[T]) invalidateTags(ctx context.Context) {
	_, _ = tagsFrom(ctx).invalidate(b.api.Client())
}

func pageCriteria(limit, offset int) repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		if limit > 0 {
			q = q.Limit(limit)
		}
		if offset > 0 {
			q = q.Offset(offset)
		}
		return q
	}
}

func pageParams(params querycache.Params) (limit, offset int, err error) {
	if limit, err = intParam(params, "limit"); err != nil {
		return 0, 0, err
	}
	if offset, err = intParam(params, "offset"); err != nil {
		return 0, 0, err
	}
	return limit, offset, nil
}

func intParam(params querycache.Params, name string) (int, error) {
	v, ok := params[name]
	if !ok || v == nil {
		return 0, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	case string:
		i, err := strconv.Atoi(n)
		if err != nil {
			return 0, fmt.Errorf("%w: %s", ErrInvalidParam, name)
		}
		return i, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrInvalidParam, name)
	}
}

// extractID attempts to extract an ID field from a record using reflection
func extractID(record any) (string, error) {
	v := reflect.ValueOf(record)
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return "", fmt.Errorf("nil record")
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return "", fmt.Errorf("record is a %s, not a struct", v.Kind())
	}

	for _, fieldName := range []string{"ID", "Id"} {
		field := v.FieldByName(fieldName)
		if field.IsValid() && field.CanInterface() {
			id := fmt.Sprintf("%v", field.Interface())
			if id == "" {
				return "", fmt.Errorf("empty ID field")
			}
			return id, nil
		}
	}
	return "", fmt.Errorf("no ID field found in record")
}

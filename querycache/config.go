package querycache

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"
)

// QueryConfig configures a query. Zero fields inherit: a zero CacheTime means
// the client default and nil callbacks are skipped.
type QueryConfig[T any] struct {
	// CacheTime is the freshness window. Must not be negative.
	CacheTime time.Duration
	OnSuccess func(T)
	OnError   func(error)
}

// Validate checks the configuration.
func (c QueryConfig[T]) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.CacheTime, validation.Min(time.Duration(0))),
	)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid query config")
	}
	return nil
}

// Merge returns c with every non-zero field of override applied.
func (c QueryConfig[T]) Merge(override QueryConfig[T]) QueryConfig[T] {
	if override.CacheTime != 0 {
		c.CacheTime = override.CacheTime
	}
	if override.OnSuccess != nil {
		c.OnSuccess = override.OnSuccess
	}
	if override.OnError != nil {
		c.OnError = override.OnError
	}
	return c
}

func (c QueryConfig[T]) cacheTime(fallback time.Duration) time.Duration {
	if c.CacheTime == 0 {
		return fallback
	}
	return c.CacheTime
}

// MutationConfig configures a mutation.
type MutationConfig[T any] struct {
	OnSuccess func(T)
	OnError   func(error)
	// Invalidates lists key prefixes invalidated after every successful run.
	Invalidates [][]any
}

// Validate checks that every invalidation prefix starts with an endpoint.
func (c MutationConfig[T]) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Invalidates, validation.Each(validation.Required, validation.By(validEndpointTuple))),
	)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid mutation config")
	}
	return nil
}

func validEndpointTuple(value any) error {
	tuple, _ := value.([]any)
	if len(tuple) == 0 {
		return validation.NewError("validation_key_tuple", "must not be empty")
	}
	if endpoint, ok := tuple[0].(string); !ok || endpoint == "" {
		return validation.NewError("validation_key_tuple", "must start with an endpoint name")
	}
	return nil
}

package cacheinfra

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"
	"github.com/viccon/sturdyc"
)

// Config sizes the sturdyc client behind SturdycStore.
//
// Retention bounds memory only. Whether an entry may be served is decided by
// the query engine from the entry timestamp, so Retention should be well above
// the longest freshness window in use.
type Config struct {
	Capacity           int
	NumShards          int
	Retention          time.Duration
	EvictionPercentage int
	// EvictionInterval is how often expired values are swept. Zero keeps the
	// sturdyc default.
	EvictionInterval time.Duration
}

// DefaultConfig returns the sizing used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Capacity:           10_000,
		NumShards:          256,
		Retention:          24 * time.Hour,
		EvictionPercentage: 10,
	}
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Capacity, validation.Required, validation.Min(1)),
		validation.Field(&c.NumShards, validation.Required, validation.Min(1)),
		validation.Field(&c.Retention, validation.Required, validation.Min(time.Nanosecond)),
		validation.Field(&c.EvictionPercentage, validation.Required, validation.Min(1), validation.Max(100)),
		validation.Field(&c.EvictionInterval, validation.Min(time.Duration(0))),
	)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid store config")
	}
	return nil
}

// sturdycOptions returns the options beyond the positional sturdyc.New arguments.
func (c Config) sturdycOptions() []sturdyc.Option {
	if c.EvictionInterval <= 0 {
		return nil
	}
	return []sturdyc.Option{sturdyc.WithEvictionInterval(c.EvictionInterval)}
}

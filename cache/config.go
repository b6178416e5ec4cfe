package cache

import (
	"time"

	"github.com/caarlos0/env/v11"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-query-cache/internal/cacheinfra"
)

// Store backends understood by NewStore.
const (
	BackendMemory  = "memory"
	BackendSturdyc = "sturdyc"
)

// EnvPrefix prefixes every environment variable read by LoadConfig.
const EnvPrefix = "QUERYCACHE_"

// Config exposes store configuration options for consumers of the cache package.
type Config struct {
	Backend            string        `env:"BACKEND"`
	Capacity           int           `env:"CAPACITY"`
	NumShards          int           `env:"NUM_SHARDS"`
	Retention          time.Duration `env:"RETENTION"`
	EvictionPercentage int           `env:"EVICTION_PERCENTAGE"`
	EvictionInterval   time.Duration `env:"EVICTION_INTERVAL"`
	// KeyDigest reduces parameter segments of cache keys to an xxhash digest.
	KeyDigest bool `env:"KEY_DIGEST"`
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() Config {
	cfg := convertFromInternal(cacheinfra.DefaultConfig())
	cfg.Backend = BackendMemory
	return cfg
}

// LoadConfig starts from DefaultConfig and overrides fields from QUERYCACHE_*
// environment variables.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, goerrors.Wrap(err, goerrors.CategoryValidation, "failed to parse cache config from environment")
	}
	return cfg, cfg.Validate()
}

// Validate checks whether the configuration values are valid. Capacity and
// sharding settings are only checked for the sturdyc backend.
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Backend, validation.Required, validation.In(BackendMemory, BackendSturdyc)),
	)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid cache config")
	}
	if c.Backend == BackendSturdyc {
		return c.toInternal().Validate()
	}
	return nil
}

// NewStore constructs the Store selected by cfg.Backend.
func NewStore(cfg Config) (Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Backend {
	case BackendMemory:
		return NewMemoryStore(), nil
	case BackendSturdyc:
		inner, err := cacheinfra.NewSturdycStore(cfg.toInternal())
		if err != nil {
			return nil, err
		}
		return &sturdycStore{inner: inner}, nil
	default:
		return nil, ErrUnknownBackend
	}
}

// NewKeySerializer returns the serializer matching cfg.KeyDigest.
func NewKeySerializer(cfg Config) KeySerializer {
	if cfg.KeyDigest {
		return NewDigestKeySerializer(NewDefaultKeySerializer())
	}
	return NewDefaultKeySerializer()
}

func (c Config) toInternal() cacheinfra.Config {
	return cacheinfra.Config{
		Capacity:           c.Capacity,
		NumShards:          c.NumShards,
		Retention:          c.Retention,
		EvictionPercentage: c.EvictionPercentage,
		EvictionInterval:   c.EvictionInterval,
	}
}

func convertFromInternal(cfg cacheinfra.Config) Config {
	return Config{
		Capacity:           cfg.Capacity,
		NumShards:          cfg.NumShards,
		Retention:          cfg.Retention,
		EvictionPercentage: cfg.EvictionPercentage,
		EvictionInterval:   cfg.EvictionInterval,
	}
}

// sturdycStore adapts cacheinfra.SturdycStore to the Store contract.
type sturdycStore struct {
	inner *cacheinfra.SturdycStore
}

func (s *sturdycStore) GetState() State {
	return State(s.inner.GetState())
}

func (s *sturdycStore) SetState(transform Transform) {
	s.inner.SetState(func(m map[string]any) map[string]any {
		return transform(State(m))
	})
}

func (s *sturdycStore) Subscribe(listener func()) func() {
	return s.inner.Subscribe(listener)
}

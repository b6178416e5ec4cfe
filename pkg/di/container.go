package di

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/goliatone/go-query-cache/cache"
	"github.com/goliatone/go-query-cache/internal/httpapi"
	"github.com/goliatone/go-query-cache/querycache"
	"github.com/goliatone/go-query-cache/repositorycache"
)

// Container wires the query cache for an application. It builds the store
// selected by the config, a client attached to it and an API to register
// endpoints on, and hands out the same instances on every call.
type Container struct {
	store         cache.Store
	keySerializer cache.KeySerializer
	client        *querycache.Client
	api           *querycache.API
	config        cache.Config
	logger        zerolog.Logger
}

// Option customizes a Container.
type Option func(*containerOptions)

type containerOptions struct {
	logger zerolog.Logger
	client []querycache.Option
}

// WithLogger sets the logger shared by the client and the admin handler.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *containerOptions) {
		o.logger = logger
	}
}

// WithClientOptions passes extra options to the querycache client, such as
// querycache.WithMeter or querycache.WithInFlightDedupe.
func WithClientOptions(opts ...querycache.Option) Option {
	return func(o *containerOptions) {
		o.client = append(o.client, opts...)
	}
}

// NewContainer creates a new DI container with the provided cache configuration.
// The config is validated before any component is built.
func NewContainer(config cache.Config, opts ...Option) (*Container, error) {
	o := containerOptions{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}

	store, err := cache.NewStore(config)
	if err != nil {
		return nil, err
	}
	keySerializer := cache.NewKeySerializer(config)

	clientOpts := append([]querycache.Option{
		querycache.WithLogger(o.logger),
		querycache.WithKeySerializer(keySerializer),
	}, o.client...)
	client := querycache.NewClient(clientOpts...)
	if err := client.Initialize(store); err != nil {
		return nil, err
	}

	o.logger.Debug().
		Str("backend", config.Backend).
		Bool("key_digest", config.KeyDigest).
		Msg("querycache container ready")

	return &Container{
		store:         store,
		keySerializer: keySerializer,
		client:        client,
		api:           querycache.NewAPI(client),
		config:        config,
		logger:        o.logger,
	}, nil
}

// NewContainerWithDefaults creates a container over an in-memory store.
func NewContainerWithDefaults(opts ...Option) (*Container, error) {
	return NewContainer(cache.DefaultConfig(), opts...)
}

// NewContainerFromEnv creates a container from QUERYCACHE_* environment variables.
func NewContainerFromEnv(opts ...Option) (*Container, error) {
	config, err := cache.LoadConfig()
	if err != nil {
		return nil, err
	}
	return NewContainer(config, opts...)
}

// Store returns the shared store.
func (c *Container) Store() cache.Store {
	return c.store
}

// KeySerializer returns the serializer the client derives keys with.
func (c *Container) KeySerializer() cache.KeySerializer {
	return c.keySerializer
}

// Client returns the initialized client.
func (c *Container) Client() *querycache.Client {
	return c.client
}

// API returns the endpoint registry bound to the client.
func (c *Container) API() *querycache.API {
	return c.api
}

// Config returns a copy of the cache configuration used by this container.
func (c *Container) Config() cache.Config {
	return c.config
}

// AdminHandler returns the admin HTTP surface over the client.
func (c *Container) AdminHandler() http.Handler {
	return httpapi.New(c.client, c.logger)
}

// RegisterRepository exposes repo as cached endpoints on the container API.
//
// Since Go methods cannot have type parameters, this is provided as a package-level function.
// Example: RegisterRepository[User](container, "users", userRepository, repositorycache.Config[User]{})
func RegisterRepository[T any](container *Container, name string, repo repositorycache.Repository[T], cfg repositorycache.Config[T]) (*repositorycache.Endpoints[T], error) {
	return repositorycache.Register(container.api, name, repo, cfg)
}

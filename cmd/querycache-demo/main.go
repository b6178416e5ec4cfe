package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/goliatone/go-query-cache/pkg/di"
	"github.com/goliatone/go-query-cache/querycache"
	"github.com/goliatone/go-query-cache/repositorycache"
)

// User represents a simple user entity for demonstration purposes
type User struct {
	ID    string `json:"id" bun:",pk"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type demoConfig struct {
	Addr     string        `env:"ADDR" envDefault:":8080"`
	Serve    bool          `env:"SERVE"`
	LogLevel string        `env:"LOG_LEVEL" envDefault:"info"`
	Latency  time.Duration `env:"LATENCY" envDefault:"100ms"`
}

// fakeUserRepository simulates a database repository with artificial latency
type fakeUserRepository struct {
	mu      sync.RWMutex
	users   map[string]User
	latency time.Duration
	logger  zerolog.Logger
}

func newFakeUserRepository(latency time.Duration, logger zerolog.Logger) *fakeUserRepository {
	return &fakeUserRepository{
		users: map[string]User{
			"1": {ID: "1", Name: "John Doe", Email: "john@example.com"},
			"2": {ID: "2", Name: "Jane Smith", Email: "jane@example.com"},
			"3": {ID: "3", Name: "Bob Johnson", Email: "bob@example.com"},
		},
		latency: latency,
		logger:  logger.With().Str("component", "fake_db").Logger(),
	}
}

func (r *fakeUserRepository) query(ctx context.Context, op string) error {
	r.logger.Info().Str("op", op).Dur("latency", r.latency).Msg("database query")
	select {
	case <-time.After(r.latency):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *fakeUserRepository) GetByID(ctx context.Context, id string, criteria ...repository.SelectCriteria) (User, error) {
	if err := r.query(ctx, "get_by_id"); err != nil {
		return User{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if user, exists := r.users[id]; exists {
		return user, nil
	}
	return User{}, fmt.Errorf("user not found: %s", id)
}

func (r *fakeUserRepository) List(ctx context.Context, criteria ...repository.SelectCriteria) ([]User, int, error) {
	if err := r.query(ctx, "list"); err != nil {
		return nil, 0, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	users := make([]User, 0, len(r.users))
	for _, user := range r.users {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Name < users[j].Name })
	return users, len(users), nil
}

func (r *fakeUserRepository) Create(ctx context.Context, user User, criteria ...repository.InsertCriteria) (User, error) {
	if err := r.query(ctx, "create"); err != nil {
		return User{}, err
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	r.mu.Lock()
	r.users[user.ID] = user
	r.mu.Unlock()
	return user, nil
}

func (r *fakeUserRepository) Update(ctx context.Context, user User, criteria ...repository.UpdateCriteria) (User, error) {
	if err := r.query(ctx, "update"); err != nil {
		return User{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.users[user.ID]; !exists {
		return User{}, fmt.Errorf("user not found: %s", user.ID)
	}
	r.users[user.ID] = user
	return user, nil
}

func (r *fakeUserRepository) Delete(ctx context.Context, user User) error {
	if err := r.query(ctx, "delete"); err != nil {
		return err
	}
	r.mu.Lock()
	delete(r.users, user.ID)
	r.mu.Unlock()
	return nil
}

func main() {
	var cfg demoConfig
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "QUERYCACHE_DEMO_"}); err != nil {
		fmt.Fprintf(os.Stderr, "invalid demo config: %v\n", err)
		os.Exit(1)
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}).
		Level(level).
		With().Timestamp().Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("demo failed")
	}
}

func run(ctx context.Context, cfg demoConfig, logger zerolog.Logger) error {
	container, err := di.NewContainerFromEnv(di.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("build container: %w", err)
	}

	repo := newFakeUserRepository(cfg.Latency, logger)
	users, err := di.RegisterRepository[User](container, "", repo, repositorycache.Config[User]{
		List: querycache.QueryConfig[repositorycache.ListResult[User]]{
			CacheTime: 30 * time.Second,
			OnSuccess: func(res repositorycache.ListResult[User]) {
				logger.Info().Int("total", res.Total).Msg("user list refreshed")
			},
		},
		Get:          querycache.QueryConfig[User]{CacheTime: time.Minute},
		DefaultLimit: 20,
	})
	if err != nil {
		return fmt.Errorf("register users: %w", err)
	}

	logger.Info().Str("backend", container.Config().Backend).Strs("queries", container.API().Queries()).Msg("endpoints registered")

	if err := demo(ctx, users, logger); err != nil {
		return err
	}

	if !cfg.Serve {
		return nil
	}
	return serve(ctx, cfg.Addr, container.AdminHandler(), logger)
}

func demo(ctx context.Context, users *repositorycache.Endpoints[User], logger zerolog.Logger) error {
	start := time.Now()
	list, err := users.List.Observe(ctx, querycache.ObserveOptions[repositorycache.ListResult[User]]{})
	if err != nil {
		return fmt.Errorf("observe users: %w", err)
	}
	defer list.Close()
	logger.Info().Dur("took", time.Since(start)).Int("total", list.Result().Data.Total).Msg("first mount fetched the list")

	start = time.Now()
	second, err := users.List.Observe(ctx, querycache.ObserveOptions[repositorycache.ListResult[User]]{})
	if err != nil {
		return fmt.Errorf("observe users: %w", err)
	}
	defer second.Close()
	logger.Info().Dur("took", time.Since(start)).Bool("fetching", second.Result().IsFetching).Msg("second mount served the cached list")
	second.Wait()

	start = time.Now()
	if _, err := list.Read(ctx); err != nil {
		return err
	}
	logger.Info().Dur("took", time.Since(start)).Msg("read within the cycle hit the cache")

	create, err := users.Create.Observe()
	if err != nil {
		return err
	}
	created, err := create.Mutate(ctx, User{Name: "Alice Wonder", Email: "alice@example.com"})
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	logger.Info().Str("id", created.ID).Msg("user created, list invalidated")

	list.Wait()
	second.Wait()
	logger.Info().Int("total", list.Result().Data.Total).Msg("observers refetched after the mutation")
	return nil
}

func serve(ctx context.Context, addr string, handler http.Handler, logger zerolog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("admin server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

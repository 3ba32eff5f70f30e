package di

import (
	"log/slog"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-pager/cache"
	"github.com/goliatone/go-repository-pager/internal/logging"
	"github.com/goliatone/go-repository-pager/pager"
	"github.com/goliatone/go-repository-pager/pkg/config"
	"github.com/goliatone/go-repository-pager/retry"
	"github.com/goliatone/go-repository-pager/store"
	"go.opentelemetry.io/otel/trace"
)

// Config selects the shared components a Container builds.
type Config struct {
	Cache cache.Config
	// DisableCache builds paginators that always read through to the store.
	DisableCache bool
	Retry        retry.Policy
	// Logger defaults to a no op logger when nil.
	Logger *slog.Logger
	// TracerProvider defaults to the global OpenTelemetry provider when nil.
	TracerProvider trace.TracerProvider
}

// DefaultConfig uses the unbounded memory cache and three attempts two seconds apart.
func DefaultConfig() Config {
	return Config{
		Cache: cache.DefaultConfig(),
		Retry: retry.DefaultPolicy(),
	}
}

// Container provides dependency injection for paginator components.
// It holds the singleton cache service, key serializer and retrier, and
// provides factory methods that wire them into paginators.
type Container struct {
	cacheService  cache.CacheService
	keySerializer cache.KeySerializer
	retrier       *retry.Retrier
	logger        logging.Logger
	config        Config

	source   *store.SQLConfig
	pageSize int
}

// NewContainer validates cfg and builds the shared components.
func NewContainer(cfg Config) (*Container, error) {
	logger := logging.Logger(logging.NewNopLogger())
	if cfg.Logger != nil {
		logger = logging.NewSlogAdapter(cfg.Logger)
	}

	retrier, err := retry.New(cfg.Retry, retry.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	var svc cache.CacheService
	if !cfg.DisableCache {
		if svc, err = cache.NewCacheService(cfg.Cache); err != nil {
			return nil, err
		}
	}

	return &Container{
		cacheService:  svc,
		keySerializer: cache.NewDefaultKeySerializer(),
		retrier:       retrier,
		logger:        logger,
		config:        cfg,
	}, nil
}

// NewContainerWithDefaults creates a container from DefaultConfig.
func NewContainerWithDefaults() (*Container, error) {
	return NewContainer(DefaultConfig())
}

// FromConfig builds a container from a loaded configuration file. The
// source and page size are kept for SourcePaginator.
func FromConfig(cfg config.Config) (*Container, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c, err := NewContainer(Config{
		Cache:        cfg.CacheConfig(),
		DisableCache: !cfg.Cache.Enabled,
		Retry:        cfg.RetryPolicy(),
		Logger:       logging.New(cfg.LogOptions()),
	})
	if err != nil {
		return nil, err
	}

	source := cfg.SQLConfig()
	c.source = &source
	c.pageSize = cfg.PageSize
	return c, nil
}

// CacheService returns the shared cache, or nil when caching is disabled.
func (c *Container) CacheService() cache.CacheService {
	return c.cacheService
}

// KeySerializer returns the serializer paginators build cache keys with.
func (c *Container) KeySerializer() cache.KeySerializer {
	return c.keySerializer
}

// Retrier returns the shared retrier.
func (c *Container) Retrier() *retry.Retrier {
	return c.retrier
}

// Logger returns the container logger.
func (c *Container) Logger() logging.Logger {
	return c.logger
}

// Config returns a copy of the configuration used by this container.
func (c *Container) Config() Config {
	return c.config
}

// PagerOptions returns the options that wire the shared components into a
// paginator: retrier, cache when enabled, key serializer, logger and tracer.
func (c *Container) PagerOptions() []pager.Option {
	opts := []pager.Option{
		pager.WithRetrier(c.retrier),
		pager.WithKeySerializer(c.keySerializer),
		pager.WithLogger(c.logger),
		pager.WithTracer(c.config.TracerProvider),
	}
	if c.cacheService != nil {
		opts = append(opts, pager.WithCache(c.cacheService))
	}
	return opts
}

// NewPaginator wraps any store with the container components. Options in
// opts are applied after the container ones and win.
//
// Since Go methods cannot have type parameters, this is provided as a package-level function.
// Example: NewPaginator[User](container, userStore, 100)
func NewPaginator[T any](c *Container, s store.Store[T], pageSize int, opts ...pager.Option) (*pager.Paginator[T], error) {
	return pager.New(s, pageSize, append(c.PagerOptions(), opts...)...)
}

// NewSQLPaginator opens a SQLStore for cfg, logging through the container
// logger, and wraps it in a paginator.
func (c *Container) NewSQLPaginator(cfg store.SQLConfig, pageSize int, opts ...store.SQLOption) (*pager.Paginator[store.Record], error) {
	s, err := store.NewSQLStore(cfg, append([]store.SQLOption{store.WithLogger(c.logger)}, opts...)...)
	if err != nil {
		return nil, err
	}
	return NewPaginator[store.Record](c, s, pageSize)
}

// NewPgxPaginator reads cfg from PostgreSQL through pgx, dialing connString
// once per page. An empty cfg.Source is filled from connString so paginators
// over the same database share cached pages.
func (c *Container) NewPgxPaginator(cfg store.PgxConfig, connString string, pageSize int) (*pager.Paginator[store.Record], error) {
	if cfg.Source == "" {
		cfg.Source = store.PgxSource(connString)
	}
	s, err := store.NewPgxStore(cfg, store.PgxDialer(connString), c.logger)
	if err != nil {
		return nil, err
	}
	return NewPaginator[store.Record](c, s, pageSize)
}

// NewRepositoryPaginator pages through a go-repository-bun repository.
func NewRepositoryPaginator[T any](c *Container, repo store.Lister[T], pageSize int, opts ...store.RepositoryOption) (*pager.Paginator[T], error) {
	opts = append([]store.RepositoryOption{store.WithRepositoryLogger(c.logger)}, opts...)
	s, err := store.NewRepositoryStore(repo, opts...)
	if err != nil {
		return nil, err
	}
	return NewPaginator[T](c, s, pageSize)
}

// SourcePaginator builds the SQL paginator described by the configuration
// file the container was created from.
func (c *Container) SourcePaginator() (*pager.Paginator[store.Record], error) {
	if c.source == nil {
		return nil, goerrors.New("container was not built from a configuration file", goerrors.CategoryBadInput)
	}
	return c.NewSQLPaginator(*c.source, c.pageSize)
}

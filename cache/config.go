package cache

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-pager/internal/cacheinfra"
)

// Supported cache backends.
const (
	// BackendMemory keeps every entry for the life of the process.
	BackendMemory = "memory"
	// BackendSturdyc bounds the cache by capacity and TTL.
	BackendSturdyc = "sturdyc"
)

// Config selects and configures a cache backend. The sizing fields only apply
// to BackendSturdyc.
type Config struct {
	Backend              string              `json:"backend" yaml:"backend" toml:"backend"`
	Capacity             int                 `json:"capacity" yaml:"capacity" toml:"capacity"`
	NumShards            int                 `json:"num_shards" yaml:"num_shards" toml:"num_shards"`
	TTL                  time.Duration       `json:"ttl" yaml:"ttl" toml:"ttl"`
	EvictionPercentage   int                 `json:"eviction_percentage" yaml:"eviction_percentage" toml:"eviction_percentage"`
	EarlyRefresh         *EarlyRefreshConfig `json:"early_refresh" yaml:"early_refresh" toml:"early_refresh"`
	MissingRecordStorage bool                `json:"missing_record_storage" yaml:"missing_record_storage" toml:"missing_record_storage"`
	EvictionInterval     time.Duration       `json:"eviction_interval" yaml:"eviction_interval" toml:"eviction_interval"`
}

// EarlyRefreshConfig mirrors the underlying sturdyc early refresh options.
type EarlyRefreshConfig struct {
	MinAsyncRefreshTime time.Duration `json:"min_async_refresh_time" yaml:"min_async_refresh_time" toml:"min_async_refresh_time"`
	MaxAsyncRefreshTime time.Duration `json:"max_async_refresh_time" yaml:"max_async_refresh_time" toml:"max_async_refresh_time"`
	SyncRefreshTime     time.Duration `json:"sync_refresh_time" yaml:"sync_refresh_time" toml:"sync_refresh_time"`
	RetryBaseDelay      time.Duration `json:"retry_base_delay" yaml:"retry_base_delay" toml:"retry_base_delay"`
}

// DefaultConfig returns the unbounded memory backend together with the
// sturdyc sizing used when Backend is switched to BackendSturdyc.
func DefaultConfig() Config {
	cfg := convertFromInternal(cacheinfra.DefaultConfig())
	cfg.Backend = BackendMemory
	return cfg
}

// Validate checks whether the configuration values are valid.
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Backend, validation.In(BackendMemory, BackendSturdyc).Error("must be memory or sturdyc")),
	)
	if err != nil {
		return goerrors.FromOzzoValidation(err, "invalid cache config")
	}
	if c.backend() == BackendSturdyc {
		return c.toInternal().Validate()
	}
	return nil
}

// NewCacheService constructs the backend selected by cfg.Backend. An empty
// backend means BackendMemory.
func NewCacheService(cfg Config) (CacheService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.backend() == BackendSturdyc {
		svc, err := cacheinfra.NewSturdycService(cfg.toInternal())
		if err != nil {
			return nil, err
		}
		return svc, nil
	}
	return cacheinfra.NewMemoryService(), nil
}

func (c Config) backend() string {
	if c.Backend == "" {
		return BackendMemory
	}
	return c.Backend
}

func (c Config) toInternal() cacheinfra.Config {
	var early *cacheinfra.EarlyRefreshConfig
	if c.EarlyRefresh != nil {
		early = &cacheinfra.EarlyRefreshConfig{
			MinAsyncRefreshTime: c.EarlyRefresh.MinAsyncRefreshTime,
			MaxAsyncRefreshTime: c.EarlyRefresh.MaxAsyncRefreshTime,
			SyncRefreshTime:     c.EarlyRefresh.SyncRefreshTime,
			RetryBaseDelay:      c.EarlyRefresh.RetryBaseDelay,
		}
	}

	return cacheinfra.Config{
		Capacity:             c.Capacity,
		NumShards:            c.NumShards,
		TTL:                  c.TTL,
		EvictionPercentage:   c.EvictionPercentage,
		EarlyRefresh:         early,
		MissingRecordStorage: c.MissingRecordStorage,
		EvictionInterval:     c.EvictionInterval,
	}
}

func convertFromInternal(cfg cacheinfra.Config) Config {
	var early *EarlyRefreshConfig
	if cfg.EarlyRefresh != nil {
		early = &EarlyRefreshConfig{
			MinAsyncRefreshTime: cfg.EarlyRefresh.MinAsyncRefreshTime,
			MaxAsyncRefreshTime: cfg.EarlyRefresh.MaxAsyncRefreshTime,
			SyncRefreshTime:     cfg.EarlyRefresh.SyncRefreshTime,
			RetryBaseDelay:      cfg.EarlyRefresh.RetryBaseDelay,
		}
	}

	return Config{
		Capacity:             cfg.Capacity,
		NumShards:            cfg.NumShards,
		TTL:                  cfg.TTL,
		EvictionPercentage:   cfg.EvictionPercentage,
		EarlyRefresh:         early,
		MissingRecordStorage: cfg.MissingRecordStorage,
		EvictionInterval:     cfg.EvictionInterval,
	}
}

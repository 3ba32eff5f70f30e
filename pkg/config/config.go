// Package config loads the settings needed to wire a paginator from a YAML or
// TOML file, a .env file and DB_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-pager/cache"
	"github.com/goliatone/go-repository-pager/internal/logging"
	"github.com/goliatone/go-repository-pager/retry"
	"github.com/goliatone/go-repository-pager/store"
	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration written as a Go duration string ("2s", "150ms").
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the file representation of a paginator setup.
type Config struct {
	Database store.ConnConfig `yaml:"database" toml:"database"`
	Source   SourceConfig     `yaml:"source" toml:"source"`
	PageSize int              `yaml:"page_size" toml:"page_size"`
	Retry    RetryConfig      `yaml:"retry" toml:"retry"`
	Cache    CacheConfig      `yaml:"cache" toml:"cache"`
	Logging  LoggingConfig    `yaml:"logging" toml:"logging"`
}

// SourceConfig names the table to page through.
type SourceConfig struct {
	Table      string         `yaml:"table" toml:"table"`
	PrimaryKey string         `yaml:"primary_key" toml:"primary_key"`
	Columns    []string       `yaml:"columns" toml:"columns"`
	Filters    []store.Filter `yaml:"filters" toml:"filters"`
	Timeout    Duration       `yaml:"timeout" toml:"timeout"`
}

// RetryConfig mirrors retry.Policy.
type RetryConfig struct {
	MaxAttempts int      `yaml:"max_attempts" toml:"max_attempts"`
	Delay       Duration `yaml:"delay" toml:"delay"`
}

// CacheConfig mirrors cache.Config. Caching is skipped when Enabled is false.
type CacheConfig struct {
	Enabled            bool     `yaml:"enabled" toml:"enabled"`
	Backend            string   `yaml:"backend" toml:"backend"`
	Capacity           int      `yaml:"capacity" toml:"capacity"`
	NumShards          int      `yaml:"num_shards" toml:"num_shards"`
	TTL                Duration `yaml:"ttl" toml:"ttl"`
	EvictionPercentage int      `yaml:"eviction_percentage" toml:"eviction_percentage"`
	EvictionInterval   Duration `yaml:"eviction_interval" toml:"eviction_interval"`
}

// LoggingConfig mirrors logging.Options.
type LoggingConfig struct {
	Verbose bool `yaml:"verbose" toml:"verbose"`
	JSON    bool `yaml:"json" toml:"json"`
}

// Default returns a configuration reading the users table of a local SQLite
// file, three attempts two seconds apart and the unbounded memory cache.
func Default() Config {
	policy := retry.DefaultPolicy()
	cc := cache.DefaultConfig()
	return Config{
		Database: store.ConnConfig{Driver: store.DriverSQLite3, Path: "users.db"},
		Source:   SourceConfig{Table: "users", PrimaryKey: store.DefaultPrimaryKey},
		PageSize: 100,
		Retry:    RetryConfig{MaxAttempts: policy.MaxAttempts, Delay: Duration(policy.Delay)},
		Cache: CacheConfig{
			Enabled:            true,
			Backend:            cc.Backend,
			Capacity:           cc.Capacity,
			NumShards:          cc.NumShards,
			TTL:                Duration(cc.TTL),
			EvictionPercentage: cc.EvictionPercentage,
		},
	}
}

// Validate checks every section.
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Database),
		validation.Field(&c.PageSize, validation.Required, validation.Min(1)),
	)
	if err != nil {
		return goerrors.FromOzzoValidation(err, "invalid config")
	}
	if err := c.SQLConfig().Validate(); err != nil {
		return goerrors.FromOzzoValidation(err, "invalid source config")
	}
	if err := c.RetryPolicy().Validate(); err != nil {
		return goerrors.FromOzzoValidation(err, "invalid retry config")
	}
	if c.Cache.Enabled {
		return c.CacheConfig().Validate()
	}
	return nil
}

// SQLConfig converts the database and source sections for store.NewSQLStore.
func (c Config) SQLConfig() store.SQLConfig {
	return store.SQLConfig{
		Conn:       c.Database,
		Table:      c.Source.Table,
		PrimaryKey: c.Source.PrimaryKey,
		Columns:    c.Source.Columns,
		Filters:    c.Source.Filters,
		Timeout:    c.Source.Timeout.Std(),
	}
}

// RetryPolicy converts the retry section.
func (c Config) RetryPolicy() retry.Policy {
	return retry.Policy{MaxAttempts: c.Retry.MaxAttempts, Delay: c.Retry.Delay.Std()}
}

// CacheConfig converts the cache section.
func (c Config) CacheConfig() cache.Config {
	return cache.Config{
		Backend:            c.Cache.Backend,
		Capacity:           c.Cache.Capacity,
		NumShards:          c.Cache.NumShards,
		TTL:                c.Cache.TTL.Std(),
		EvictionPercentage: c.Cache.EvictionPercentage,
		EvictionInterval:   c.Cache.EvictionInterval.Std(),
	}
}

// LogOptions converts the logging section.
func (c Config) LogOptions() logging.Options {
	return logging.Options{Verbose: c.Logging.Verbose, JSON: c.Logging.JSON}
}

// Load reads path on top of Default. The format follows the extension:
// .yaml, .yml or .toml. The result is validated.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	case ".toml":
		err = toml.Unmarshal(data, &cfg)
	default:
		return Config{}, goerrors.New(fmt.Sprintf("unsupported config format %q", ext), goerrors.CategoryBadInput)
	}
	if err != nil {
		return Config{}, goerrors.Wrap(err, goerrors.CategoryBadInput, "decode config "+path)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadEnv loads files into the process environment with godotenv, then
// applies the DB_* variables to cfg. Without files a missing ./.env is not an
// error. Variables already set in the environment win over .env values.
func LoadEnv(cfg *Config, files ...string) error {
	if len(files) == 0 {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return goerrors.Wrap(err, goerrors.CategoryBadInput, "load .env")
		}
	} else if err := godotenv.Load(files...); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "load env files")
	}
	return ApplyEnv(cfg, os.LookupEnv)
}

// ApplyEnv overrides the database section from DB_DRIVER, DB_HOST, DB_PORT,
// DB_USER, DB_PASSWORD, DB_NAME and DB_PATH.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}

	set("DB_DRIVER", &cfg.Database.Driver)
	set("DB_HOST", &cfg.Database.Host)
	set("DB_USER", &cfg.Database.User)
	set("DB_PASSWORD", &cfg.Database.Password)
	set("DB_NAME", &cfg.Database.Database)
	set("DB_PATH", &cfg.Database.Path)

	if v, ok := lookup("DB_PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return goerrors.New("DB_PORT must be a number", goerrors.CategoryValidation).
				WithMetadata(map[string]any{"value": v})
		}
		cfg.Database.Port = port
	}
	return nil
}

package di

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/goliatone/go-repository-pager/cache"
	"github.com/goliatone/go-repository-pager/pager"
	"github.com/goliatone/go-repository-pager/pkg/config"
	"github.com/goliatone/go-repository-pager/retry"
	"github.com/goliatone/go-repository-pager/store"
)

func TestNewContainer(t *testing.T) {
	cfg := Config{
		Cache: cache.Config{
			Backend:            cache.BackendSturdyc,
			Capacity:           1000,
			NumShards:          256,
			TTL:                5 * time.Minute,
			EvictionPercentage: 10,
			EarlyRefresh: &cache.EarlyRefreshConfig{
				MinAsyncRefreshTime: 10 * time.Second,
				MaxAsyncRefreshTime: 20 * time.Second,
				SyncRefreshTime:     30 * time.Second,
				RetryBaseDelay:      100 * time.Millisecond,
			},
		},
		Retry:  retry.Policy{MaxAttempts: 5, Delay: time.Second},
		Logger: slog.Default(),
	}

	container, err := NewContainer(cfg)
	if err != nil {
		t.Fatalf("NewContainer() failed: %v", err)
	}

	if container.CacheService() == nil {
		t.Error("Container should have a non-nil cache service")
	}
	if container.KeySerializer() == nil {
		t.Error("Container should have a non-nil key serializer")
	}
	if container.Logger() == nil {
		t.Error("Container should have a logger")
	}
	if got := container.Retrier().Policy(); got != cfg.Retry {
		t.Errorf("Expected retry policy %+v, got %+v", cfg.Retry, got)
	}

	stored := container.Config()
	if stored.Cache.Capacity != cfg.Cache.Capacity || stored.Cache.TTL != cfg.Cache.TTL {
		t.Errorf("Expected cache config %+v, got %+v", cfg.Cache, stored.Cache)
	}
}

func TestNewContainerWithDefaults(t *testing.T) {
	container, err := NewContainerWithDefaults()
	if err != nil {
		t.Fatalf("NewContainerWithDefaults() failed: %v", err)
	}

	if container.Config().Cache.Backend != cache.BackendMemory {
		t.Errorf("Expected the memory backend by default, got %q", container.Config().Cache.Backend)
	}
	if got := container.Retrier().Policy(); got != retry.DefaultPolicy() {
		t.Errorf("Expected the default retry policy, got %+v", got)
	}
	if len(container.PagerOptions()) != 5 {
		t.Errorf("Expected retrier, serializer, logger, tracer and cache options, got %d", len(container.PagerOptions()))
	}
}

func TestNewContainer_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"zero attempts", Config{Cache: cache.DefaultConfig(), Retry: retry.Policy{}}},
		{"unknown backend", Config{Cache: cache.Config{Backend: "redis"}, Retry: retry.DefaultPolicy()}},
		{"bad sturdyc capacity", Config{Cache: cache.Config{Backend: cache.BackendSturdyc}, Retry: retry.DefaultPolicy()}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewContainer(tt.cfg); err == nil {
				t.Error("NewContainer() should fail")
			}
		})
	}
}

func TestNewContainer_DisableCache(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DisableCache = true
	cfg.Cache = cache.Config{Backend: "ignored when disabled"}

	container, err := NewContainer(cfg)
	if err != nil {
		t.Fatalf("NewContainer() failed: %v", err)
	}
	if container.CacheService() != nil {
		t.Error("Expected no cache service")
	}
	if len(container.PagerOptions()) != 4 {
		t.Errorf("Expected no cache option, got %d options", len(container.PagerOptions()))
	}
}

func TestFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Cache.Enabled = false
	cfg.Retry.MaxAttempts = 2

	container, err := FromConfig(cfg)
	if err != nil {
		t.Fatalf("FromConfig() failed: %v", err)
	}
	if container.CacheService() != nil {
		t.Error("cache disabled in the file should not build a cache")
	}
	if container.Retrier().Policy().MaxAttempts != 2 {
		t.Errorf("unexpected policy %+v", container.Retrier().Policy())
	}

	cfg.PageSize = 0
	if _, err := FromConfig(cfg); err == nil {
		t.Error("FromConfig() should validate the file config")
	}
}

func TestSourcePaginator_RequiresConfigFile(t *testing.T) {
	container, err := NewContainerWithDefaults()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := container.SourcePaginator(); err == nil {
		t.Error("SourcePaginator() without a config file should fail")
	}
}

func TestNewPaginator_CallerOptionsWin(t *testing.T) {
	container, err := NewContainerWithDefaults()
	if err != nil {
		t.Fatal(err)
	}

	failing := store.NewMemoryStore("users", []string{"ada"}).
		WithFault(store.FailTimes(1, store.Unavailable(nil, "flaky")))
	noRetry, err := retry.New(retry.Policy{MaxAttempts: 1})
	if err != nil {
		t.Fatal(err)
	}

	p, err := NewPaginator[string](container, failing, 10, pager.WithRetrier(noRetry))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.NextPage(context.Background()); !retry.IsExhausted(err) {
		t.Errorf("the caller retrier should replace the container one, got %v", err)
	}
	if failing.Calls() != 1 {
		t.Errorf("expected a single attempt, got %d", failing.Calls())
	}
}

func TestNewPgxPaginator_InvalidConfig(t *testing.T) {
	container, err := NewContainerWithDefaults()
	if err != nil {
		t.Fatal(err)
	}
	_, err = container.NewPgxPaginator(store.PgxConfig{Table: "users; drop"}, "postgres://localhost/app", 10)
	if !store.IsInvalidQuery(err) {
		t.Errorf("expected InvalidQuery, got %v", err)
	}
}

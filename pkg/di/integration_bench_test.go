package di

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/goliatone/go-repository-pager/pager"
	"github.com/goliatone/go-repository-pager/pkg/seed"
	"github.com/goliatone/go-repository-pager/pkg/testsupport"
	"github.com/goliatone/go-repository-pager/store"
)

// TestConcurrentPaginators walks the same store from many goroutines through
// one shared cache. Every walk must see every record exactly once.
func TestConcurrentPaginators(t *testing.T) {
	container, err := NewContainerWithDefaults()
	if err != nil {
		t.Fatalf("Failed to create DI container: %v", err)
	}

	names := make([]string, 100)
	for i := range names {
		names[i] = fmt.Sprintf("user-%03d", i)
	}
	s := store.NewMemoryStore("users", names)

	const numGoroutines = 50
	var wg sync.WaitGroup
	errs := make(chan error, numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			p, err := NewPaginator[string](container, s, 7)
			if err != nil {
				errs <- err
				return
			}
			got, err := p.Collect(context.Background())
			if err != nil {
				errs <- err
				return
			}
			if len(got) != len(names) || got[0] != names[0] || got[99] != names[99] {
				errs <- fmt.Errorf("walk returned %d records", len(got))
			}
		}()
	}

	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	// 15 pages of 7 plus the empty one, fetched at most once each per racer
	if s.Calls() > 16*numGoroutines {
		t.Errorf("unexpected number of store calls: %d", s.Calls())
	}
	if container.CacheService().Size() != 16 {
		t.Errorf("expected 16 cached pages, got %d", container.CacheService().Size())
	}
}

func BenchmarkPaginator_MemoryStore(b *testing.B) {
	benchmarkWalk(b, false)
}

func BenchmarkPaginator_MemoryStoreCached(b *testing.B) {
	benchmarkWalk(b, true)
}

func benchmarkWalk(b *testing.B, cached bool) {
	cfg := DefaultConfig()
	cfg.DisableCache = !cached
	container, err := NewContainer(cfg)
	if err != nil {
		b.Fatal(err)
	}
	s := store.NewMemoryStore("users", testsupport.Users(1000))
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p, err := NewPaginator[seed.User](container, s, 50)
		if err != nil {
			b.Fatal(err)
		}
		if _, err := p.Collect(ctx); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkPaginator_SQLite(b *testing.B) {
	conn := testsupport.SQLiteUsers(b, store.DriverSQLite3, testsupport.Users(500))
	cfg := DefaultConfig()
	cfg.DisableCache = true
	container, err := NewContainer(cfg)
	if err != nil {
		b.Fatal(err)
	}
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p, err := container.NewSQLPaginator(testsupport.UsersSource(conn), 100)
		if err != nil {
			b.Fatal(err)
		}
		avg, n, err := pager.Average(ctx, p, pager.Column("age"))
		if err != nil || n != 500 {
			b.Fatalf("average = %s over %d records: %v", avg, n, err)
		}
	}
}

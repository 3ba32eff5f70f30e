package pager

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-repository-pager/cache"
	"github.com/goliatone/go-repository-pager/retry"
	"github.com/goliatone/go-repository-pager/store"
	"github.com/google/go-cmp/cmp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func fiveUsers() *store.MemoryStore[string] {
	return store.NewMemoryStore("users", []string{"ada", "grace", "linus", "ken", "rob"})
}

func newPaginator[T any](t *testing.T, s store.Store[T], pageSize int, opts ...Option) *Paginator[T] {
	t.Helper()
	p, err := New(s, pageSize, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return p
}

func TestPaginator_WalksStoreThenExhausts(t *testing.T) {
	s := fiveUsers()
	p := newPaginator[string](t, s, 2)
	ctx := context.Background()

	var sizes []int
	var offsets []int
	for p.State() == Ready {
		offsets = append(offsets, p.Offset())
		page, err := p.NextPage(ctx)
		if err != nil {
			t.Fatalf("NextPage() error = %v", err)
		}
		sizes = append(sizes, page.Len())
	}

	if diff := cmp.Diff([]int{2, 2, 1, 0}, sizes); diff != "" {
		t.Errorf("page sizes mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{0, 2, 4, 6}, offsets); diff != "" {
		t.Errorf("offsets mismatch (-want +got):\n%s", diff)
	}
	if p.State() != Exhausted {
		t.Errorf("expected exhausted, got %s", p.State())
	}

	calls := s.Calls()
	if _, err := p.NextPage(ctx); !errors.Is(err, ErrExhausted) {
		t.Errorf("expected ErrExhausted, got %v", err)
	}
	if s.Calls() != calls {
		t.Errorf("an exhausted paginator must not fetch")
	}
}

func TestPaginator_ErrorLeavesStateUnchanged(t *testing.T) {
	boom := store.InvalidQuery(nil, "boom")
	s := fiveUsers().WithFault(func(call, _, offset int) error {
		if call == 2 {
			return boom
		}
		return nil
	})
	p := newPaginator[string](t, s, 2)
	ctx := context.Background()

	if _, err := p.NextPage(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := p.NextPage(ctx); err != boom {
		t.Fatalf("expected the store error unchanged, got %v", err)
	}
	if p.Offset() != 2 || p.State() != Ready {
		t.Fatalf("state moved after an error: offset=%d state=%s", p.Offset(), p.State())
	}

	page, err := p.NextPage(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"linus", "ken"}, page.Records); diff != "" {
		t.Errorf("retry after error fetched the wrong page (-want +got):\n%s", diff)
	}
}

func TestPaginator_WithRetrier(t *testing.T) {
	s := fiveUsers().WithFault(store.FailTimes(2, store.Unavailable(nil, "flaky")))
	r, err := retry.New(retry.Policy{MaxAttempts: 3, Delay: time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}
	p := newPaginator[string](t, s, 5, WithRetrier(r))

	page, err := p.NextPage(context.Background())
	if err != nil {
		t.Fatalf("expected the retrier to absorb two failures, got %v", err)
	}
	if page.Len() != 5 || s.Calls() != 3 {
		t.Errorf("got %d records after %d calls", page.Len(), s.Calls())
	}
}

func TestPaginator_RetrierExhausted(t *testing.T) {
	s := fiveUsers().WithFault(store.FailTimes(10, store.Unavailable(nil, "down")))
	r, err := retry.New(retry.Policy{MaxAttempts: 3})
	if err != nil {
		t.Fatal(err)
	}
	p := newPaginator[string](t, s, 2, WithRetrier(r))

	_, err = p.NextPage(context.Background())
	if !retry.IsExhausted(err) {
		t.Fatalf("expected ExhaustedRetries, got %v", err)
	}
	if s.Calls() != 3 {
		t.Errorf("expected 3 attempts, got %d", s.Calls())
	}
	if p.Offset() != 0 || p.State() != Ready {
		t.Errorf("failed fetch moved the paginator")
	}
}

func TestPaginator_WithCache(t *testing.T) {
	svc, err := cache.NewCacheService(cache.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	s := fiveUsers()
	ctx := context.Background()

	first, err := newPaginator[string](t, s, 2, WithCache(svc)).Collect(ctx)
	if err != nil {
		t.Fatal(err)
	}
	callsAfterFirst := s.Calls()

	second, err := newPaginator[string](t, s, 2, WithCache(svc)).Collect(ctx)
	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("cached walk differs (-first +second):\n%s", diff)
	}
	if s.Calls() != callsAfterFirst {
		t.Errorf("second walk hit the store %d times", s.Calls()-callsAfterFirst)
	}
	if svc.Size() != 4 {
		t.Errorf("expected 4 cached pages including the empty one, got %d", svc.Size())
	}

	// a different page size is a different signature
	if _, err := newPaginator[string](t, s, 3, WithCache(svc)).NextPage(ctx); err != nil {
		t.Fatal(err)
	}
	if s.Calls() != callsAfterFirst+1 {
		t.Errorf("page size 3 should miss the cache")
	}
}

func TestPaginator_Invalidate(t *testing.T) {
	svc, err := cache.NewCacheService(cache.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	users := fiveUsers()
	orders := store.NewMemoryStore("orders", []string{"o1"})
	ctx := context.Background()

	p := newPaginator[string](t, users, 2, WithCache(svc))
	if _, err := p.Collect(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := newPaginator[string](t, orders, 2, WithCache(svc)).Collect(ctx); err != nil {
		t.Fatal(err)
	}

	if err := p.Invalidate(ctx); err != nil {
		t.Fatal(err)
	}
	if svc.Size() != 2 {
		t.Errorf("only the orders pages should remain, got %d entries", svc.Size())
	}

	users.Append("barbara")
	if _, err := p.NextPage(ctx); !errors.Is(err, ErrExhausted) {
		t.Errorf("invalidation must not restart an exhausted paginator, got %v", err)
	}
	got, err := newPaginator[string](t, users, 2, WithCache(svc)).Collect(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 6 {
		t.Errorf("expected fresh pages after invalidation, got %v", got)
	}

	if err := newPaginator[string](t, users, 2).Invalidate(ctx); err != nil {
		t.Errorf("invalidate without a cache should be a no op, got %v", err)
	}
}

func TestPaginator_ExhaustedIsTerminal(t *testing.T) {
	s := fiveUsers()
	p := newPaginator[string](t, s, 5)
	ctx := context.Background()

	if _, err := p.Collect(ctx); err != nil {
		t.Fatal(err)
	}
	s.Append("barbara")
	calls := s.Calls()

	for i := 0; i < 3; i++ {
		if _, err := p.NextPage(ctx); !errors.Is(err, ErrExhausted) {
			t.Fatalf("call %d: expected ErrExhausted, got %v", i, err)
		}
	}
	if got, err := p.Collect(ctx); err != nil || len(got) != 0 {
		t.Errorf("collecting an exhausted paginator returned %v, %v", got, err)
	}
	if p.State() != Exhausted || s.Calls() != calls {
		t.Errorf("exhausted paginator moved: state=%s calls=%d", p.State(), s.Calls()-calls)
	}
}

func TestPaginator_StoresSharingANameDoNotShareCache(t *testing.T) {
	svc, err := cache.NewCacheService(cache.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	names := store.NewMemoryStore("users", []string{"ada", "grace", "linus"})
	others := store.NewMemoryStore("users", []string{"ken"})
	ages := store.NewMemoryStore("users", []int{36, 45, 52})

	gotNames, err := newPaginator[string](t, names, 2, WithCache(svc)).Collect(ctx)
	if err != nil {
		t.Fatal(err)
	}
	gotOthers, err := newPaginator[string](t, others, 2, WithCache(svc)).Collect(ctx)
	if err != nil {
		t.Fatal(err)
	}
	gotAges, err := newPaginator[int](t, ages, 2, WithCache(svc)).Collect(ctx)
	if err != nil {
		t.Fatalf("a store of another record type must not read cached strings: %v", err)
	}

	if diff := cmp.Diff([]string{"ada", "grace", "linus"}, gotNames); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"ken"}, gotOthers); diff != "" {
		t.Errorf("others mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{36, 45, 52}, gotAges); diff != "" {
		t.Errorf("ages mismatch (-want +got):\n%s", diff)
	}
	if others.Calls() != 2 || ages.Calls() != 3 {
		t.Errorf("every store should have been read: others=%d ages=%d", others.Calls(), ages.Calls())
	}
}

func TestPaginator_InvalidateLongStoreName(t *testing.T) {
	svc, err := cache.NewCacheService(cache.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	name := strings.Repeat("quarterly_customer_accounts_", 10)
	long := store.NewMemoryStore(name, []string{"ada", "grace", "linus"})
	orders := store.NewMemoryStore("orders", []string{"o1"})
	ctx := context.Background()

	p := newPaginator[string](t, long, 2, WithCache(svc))
	if _, err := p.Collect(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := newPaginator[string](t, orders, 2, WithCache(svc)).Collect(ctx); err != nil {
		t.Fatal(err)
	}
	if svc.Size() != 5 {
		t.Fatalf("expected 5 cached pages, got %d", svc.Size())
	}

	if err := p.Invalidate(ctx); err != nil {
		t.Fatal(err)
	}
	if svc.Size() != 2 {
		t.Errorf("pages of the long named store survived invalidation, %d entries left", svc.Size())
	}
}

func TestPaginator_StartOffset(t *testing.T) {
	got, err := newPaginator[string](t, fiveUsers(), 2, WithStartOffset(3)).Collect(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"ken", "rob"}, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New[string](nil, 2); !store.IsInvalidQuery(err) {
		t.Errorf("nil store: %v", err)
	}
	if _, err := New[string](fiveUsers(), 0); !store.IsInvalidQuery(err) {
		t.Errorf("zero page size: %v", err)
	}
	if _, err := New[string](fiveUsers(), 2, WithStartOffset(-1)); !store.IsInvalidQuery(err) {
		t.Errorf("negative offset: %v", err)
	}
}

func TestPaginator_Tracing(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	s := store.NewMemoryStore("users", []string{"ada"}).WithFault(func(call, _, _ int) error {
		if call == 1 {
			return store.InvalidQuery(nil, "bad")
		}
		return nil
	})
	p := newPaginator[string](t, s, 1, WithTracer(tp))
	ctx := context.Background()

	_, _ = p.NextPage(ctx)
	_, _ = p.NextPage(ctx)
	_, _ = p.NextPage(ctx)
	_, _ = p.NextPage(ctx) // exhausted, no span

	spans := recorder.Ended()
	if len(spans) != 3 {
		t.Fatalf("expected 3 spans, got %d", len(spans))
	}
	for _, span := range spans {
		if span.Name() != "pager.NextPage" {
			t.Errorf("unexpected span name %q", span.Name())
		}
	}
	if spans[0].Status().Code != codes.Error {
		t.Errorf("failed fetch should mark the span as error")
	}

	attrs := map[attribute.Key]attribute.Value{}
	for _, kv := range spans[2].Attributes() {
		attrs[kv.Key] = kv.Value
	}
	if attrs["pager.store"].AsString() != "users" || attrs["pager.offset"].AsInt64() != 1 {
		t.Errorf("unexpected attributes %v", attrs)
	}
	if !attrs["pager.exhausted"].AsBool() {
		t.Errorf("last span should flag exhaustion")
	}
}

func TestState_String(t *testing.T) {
	if Ready.String() != "ready" || Exhausted.String() != "exhausted" || State(9).String() != "unknown" {
		t.Error("unexpected state names")
	}
}

type prefixedKeys struct{ calls int }

func (k *prefixedKeys) SerializeKey(method string, args ...any) string {
	k.calls++
	return cache.NewDefaultKeySerializer().SerializeKey(method, append([]any{"v2"}, args...)...)
}

func TestPaginator_WithKeySerializer(t *testing.T) {
	svc, err := cache.NewCacheService(cache.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	keys := &prefixedKeys{}
	p := newPaginator[string](t, fiveUsers(), 2, WithCache(svc), WithKeySerializer(keys))
	ctx := context.Background()

	if _, err := p.NextPage(ctx); err != nil {
		t.Fatal(err)
	}
	if keys.calls != 1 {
		t.Errorf("expected the custom serializer to build the key, got %d calls", keys.calls)
	}

	if err := p.Invalidate(ctx); err != nil {
		t.Fatal(err)
	}
	if svc.Size() != 0 {
		t.Errorf("keys starting with the operation must still be invalidated, %d left", svc.Size())
	}
}

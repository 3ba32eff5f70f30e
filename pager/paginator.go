// Package pager walks a record store one fixed size page at a time.
//
// A Paginator starts Ready at its start offset. Each NextPage call fetches a
// single page; a non empty page advances the offset by the page size, an
// empty page moves the paginator to Exhausted, which is terminal. Failed
// fetches leave the state untouched so the caller may simply call again.
//
// Fetches optionally go through a retry.Retrier and a cache.CacheService.
// The cache sits in front of the retrier: a hit never touches the store, a
// miss is retried and only successful pages are stored.
package pager

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/goliatone/go-repository-pager/cache"
	"github.com/goliatone/go-repository-pager/internal/logging"
	"github.com/goliatone/go-repository-pager/retry"
	"github.com/goliatone/go-repository-pager/store"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrExhausted is returned by NextPage once the end of the store was reached.
var ErrExhausted = errors.New("pager: no more pages")

// State is the position of a Paginator in its lifecycle.
type State int

const (
	// Ready means the next call to NextPage will fetch a page.
	Ready State = iota
	// Exhausted means an empty page was seen.
	Exhausted
)

func (s State) String() string {
	switch s {
	case Ready:
		return "ready"
	case Exhausted:
		return "exhausted"
	}
	return "unknown"
}

// Paginator lazily fetches pages from a store. It is safe for concurrent use;
// calls to NextPage are serialized.
type Paginator[T any] struct {
	mu       sync.Mutex
	store    store.Store[T]
	pageSize int
	offset   int
	state    State
	identity map[string]any

	retrier *retry.Retrier
	cache   cache.CacheService
	keys    cache.KeySerializer
	logger  logging.Logger
	tracer  trace.Tracer
}

// New builds a Paginator over s. pageSize must be positive.
func New[T any](s store.Store[T], pageSize int, opts ...Option) (*Paginator[T], error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	if s == nil {
		return nil, store.InvalidQuery(nil, "paginator requires a store")
	}
	if err := store.ValidateWindow(pageSize, o.offset); err != nil {
		return nil, err
	}

	provider := o.provider
	if provider == nil {
		provider = otel.GetTracerProvider()
	}

	return &Paginator[T]{
		store:    s,
		pageSize: pageSize,
		offset:   o.offset,
		state:    Ready,
		identity: identity(s),
		retrier:  o.retrier,
		cache:    o.cache,
		keys:     o.keys,
		logger:   logging.OrNop(o.logger).With("store", s.Name(), "page_size", pageSize),
		tracer:   provider.Tracer(InstrumentationName),
	}, nil
}

// NextPage returns the page at the current offset. After the paginator is
// exhausted it returns ErrExhausted without touching the store.
func (p *Paginator[T]) NextPage(ctx context.Context) (store.Page[T], error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == Exhausted {
		return store.Page[T]{}, ErrExhausted
	}

	offset := p.offset
	ctx, span := p.tracer.Start(ctx, "pager.NextPage", trace.WithAttributes(
		attribute.String("pager.store", p.store.Name()),
		attribute.Int("pager.page_size", p.pageSize),
		attribute.Int("pager.offset", offset),
	))
	defer span.End()

	page, err := p.fetch(ctx, offset)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logging.WithError(p.logger, err).Warn("page fetch failed", "offset", offset)
		return store.Page[T]{}, err
	}

	span.SetAttributes(attribute.Int("pager.records", page.Len()))
	if page.Empty() {
		p.state = Exhausted
		span.SetAttributes(attribute.Bool("pager.exhausted", true))
		p.logger.Debug("store exhausted", "offset", offset)
		return page, nil
	}

	p.offset = offset + p.pageSize
	p.logger.Debug("fetched page", "offset", offset, "records", page.Len())
	return page, nil
}

func (p *Paginator[T]) fetch(ctx context.Context, offset int) (store.Page[T], error) {
	load := func(ctx context.Context) (store.Page[T], error) {
		return p.store.FetchPage(ctx, p.pageSize, offset)
	}

	if p.retrier != nil {
		direct := load
		load = func(ctx context.Context) (store.Page[T], error) {
			return retry.Do(ctx, p.retrier, direct)
		}
	}

	if p.cache != nil {
		return cache.GetOrFetch(ctx, p.cache, p.signature(offset).KeyWith(p.keys), load)
	}
	return load(ctx)
}

// signature keys a page by store name, page size and offset. The identity
// params keep stores that share a name apart: different filters, columns,
// databases or record types never read each other's pages.
func (p *Paginator[T]) signature(offset int) cache.Signature {
	return cache.NewSignature(p.operation(), p.pageSize, offset).WithParams(p.identity)
}

func (p *Paginator[T]) operation() string {
	return "page:" + p.store.Name()
}

func identity[T any](s store.Store[T]) map[string]any {
	id := map[string]any{
		"records": reflect.TypeFor[T]().String(),
		"store":   fmt.Sprintf("%T", s),
	}
	if ider, ok := s.(store.Identifier); ok {
		id["source"] = ider.Identity()
	}
	return id
}

// State returns the current state.
func (p *Paginator[T]) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Offset returns the offset the next fetch will use.
func (p *Paginator[T]) Offset() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.offset
}

// PageSize returns the fixed page size.
func (p *Paginator[T]) PageSize() int {
	return p.pageSize
}

// Invalidate drops every cached page of every store sharing this store's
// name, whatever the page size or identity. It is a no op without a cache.
// The paginator itself does not move: an exhausted paginator stays
// exhausted, and walking the fresh data takes a new Paginator.
func (p *Paginator[T]) Invalidate(ctx context.Context) error {
	if p.cache == nil {
		return nil
	}
	return p.cache.DeleteByPrefix(ctx, cache.NewSignature(p.operation()).Prefix())
}

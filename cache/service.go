package cache

import (
	"context"
	"errors"
	"fmt"
)

// KeySerializer builds a cache key from an operation name and arbitrary args.
// It is responsible for producing stable keys across calls.
type KeySerializer interface {
	SerializeKey(method string, args ...any) string
}

// FetchFn computes a value on a cache miss.
type FetchFn[T any] func(ctx context.Context) (T, error)

// CacheService is a read through store of computed results keyed by string.
// Implementations keep at most one value per key: when two callers race on a
// miss, the first stored result wins and both receive it. Errors returned by
// fetchFn are never stored.
type CacheService interface {
	GetOrFetch(ctx context.Context, key string, fetchFn func(ctx context.Context) (any, error)) (any, error)
	Delete(ctx context.Context, key string) error
	DeleteByPrefix(ctx context.Context, prefix string) error
	Size() int
}

// ErrInvalidResultType is returned when a cached value cannot be converted to
// the type requested by the caller.
var ErrInvalidResultType = errors.New("cache: cached value has unexpected type")

// GetOrFetch is the type safe wrapper around CacheService.GetOrFetch.
func GetOrFetch[T any](ctx context.Context, service CacheService, key string, fetchFn FetchFn[T]) (T, error) {
	var zero T
	result, err := service.GetOrFetch(ctx, key, func(ctx context.Context) (any, error) {
		return fetchFn(ctx)
	})
	if err != nil {
		return zero, err
	}

	// a nil interface cannot be asserted, it stands for the zero value of T
	if result == nil {
		return zero, nil
	}

	typed, ok := result.(T)
	if !ok {
		return zero, fmt.Errorf("%w: key %q holds %T, want %T", ErrInvalidResultType, key, result, zero)
	}
	return typed, nil
}

// GetOrCompute returns the cached result for sig, invoking fn only on a miss.
func GetOrCompute[T any](ctx context.Context, service CacheService, sig Signature, fn FetchFn[T]) (T, error) {
	return GetOrFetch(ctx, service, sig.Key(), fn)
}

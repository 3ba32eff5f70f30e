package cacheinfra

import (
	"context"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/puzpuzpuz/xsync/v3"
)

// FetchFunc produces the value for a missing key.
type FetchFunc = func(ctx context.Context) (any, error)

// ErrNilFetch is returned when GetOrFetch is called without a fetch function.
var ErrNilFetch = goerrors.New("fetch function cannot be nil", goerrors.CategoryBadInput)

// memoryService is an unbounded process lifetime cache. Entries never expire
// and are only removed through Delete, DeleteByPrefix or Clear.
type memoryService struct {
	entries *xsync.MapOf[string, any]
}

// NewMemoryService creates an empty unbounded cache.
func NewMemoryService() *memoryService {
	return &memoryService{entries: xsync.NewMapOf[string, any]()}
}

// GetOrFetch returns the stored value for key, running fetchFn on a miss.
// Concurrent misses may all run fetchFn, but only the first result is kept
// and every caller receives that stored value. Errors are not cached.
func (s *memoryService) GetOrFetch(ctx context.Context, key string, fetchFn FetchFunc) (any, error) {
	if fetchFn == nil {
		return nil, ErrNilFetch
	}
	if v, ok := s.entries.Load(key); ok {
		return v, nil
	}

	v, err := fetchFn(ctx)
	if err != nil {
		return nil, err
	}

	actual, _ := s.entries.LoadOrStore(key, v)
	return actual, nil
}

// Delete removes a single key.
func (s *memoryService) Delete(ctx context.Context, key string) error {
	s.entries.Delete(key)
	return nil
}

// DeleteByPrefix removes every key starting with prefix.
func (s *memoryService) DeleteByPrefix(ctx context.Context, prefix string) error {
	var keys []string
	s.entries.Range(func(key string, _ any) bool {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return true
	})
	for _, key := range keys {
		s.entries.Delete(key)
	}
	return nil
}

// Size returns the number of stored entries.
func (s *memoryService) Size() int {
	return s.entries.Size()
}

// Clear drops every entry.
func (s *memoryService) Clear() {
	s.entries.Clear()
}

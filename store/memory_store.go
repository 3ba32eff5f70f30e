package store

import (
	"context"
	"sync"
	"sync/atomic"
)

// FaultFunc is consulted before every MemoryStore fetch. A non nil error is
// returned to the caller instead of the page. call starts at 1.
type FaultFunc func(call int, pageSize, offset int) error

// MemoryStore serves pages from an in memory slice. It is used in tests and
// for small fixed data sets.
type MemoryStore[T any] struct {
	id    uint64
	name  string
	mu    sync.RWMutex
	items []T
	fault FaultFunc
	calls atomic.Int64
}

var (
	_ Store[any] = (*MemoryStore[any])(nil)
	_ Identifier = (*MemoryStore[any])(nil)
)

// NewMemoryStore copies items into a new store named name.
func NewMemoryStore[T any](name string, items []T) *MemoryStore[T] {
	cp := make([]T, len(items))
	copy(cp, items)
	return &MemoryStore[T]{id: instanceID(), name: name, items: cp}
}

// Name returns the store name.
func (s *MemoryStore[T]) Name() string { return s.name }

// Identity tells stores with the same name apart. Paginators over the same
// MemoryStore share cached pages.
func (s *MemoryStore[T]) Identity() map[string]any {
	return map[string]any{"instance": s.id}
}

// WithFault installs fault and returns s.
func (s *MemoryStore[T]) WithFault(fault FaultFunc) *MemoryStore[T] {
	s.mu.Lock()
	s.fault = fault
	s.mu.Unlock()
	return s
}

// Append adds items to the end of the store.
func (s *MemoryStore[T]) Append(items ...T) {
	s.mu.Lock()
	s.items = append(s.items, items...)
	s.mu.Unlock()
}

// Calls returns the number of FetchPage invocations, failed ones included.
func (s *MemoryStore[T]) Calls() int { return int(s.calls.Load()) }

// Len returns the number of stored items.
func (s *MemoryStore[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// FetchPage returns a copy of items[offset:offset+pageSize].
func (s *MemoryStore[T]) FetchPage(ctx context.Context, pageSize, offset int) (Page[T], error) {
	call := int(s.calls.Add(1))

	if err := ctx.Err(); err != nil {
		return Page[T]{}, err
	}
	if err := ValidateWindow(pageSize, offset); err != nil {
		return Page[T]{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.fault != nil {
		if err := s.fault(call, pageSize, offset); err != nil {
			return Page[T]{}, err
		}
	}

	records := []T{}
	if offset < len(s.items) {
		end := min(offset+pageSize, len(s.items))
		records = make([]T, end-offset)
		copy(records, s.items[offset:end])
	}
	return Page[T]{Records: records, Offset: offset, Size: pageSize}, nil
}

// FailTimes returns a FaultFunc failing the first n calls with err.
func FailTimes(n int, err error) FaultFunc {
	return func(call, _, _ int) error {
		if call <= n {
			return err
		}
		return nil
	}
}

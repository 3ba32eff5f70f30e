package pager

import (
	"context"
	"errors"
	"iter"

	"github.com/goliatone/go-repository-pager/store"
)

// Pages yields non empty pages until the store is exhausted. A fetch error is
// yielded once and ends the sequence; the paginator stays at the failed
// offset so a new range picks up from there.
func (p *Paginator[T]) Pages(ctx context.Context) iter.Seq2[store.Page[T], error] {
	return func(yield func(store.Page[T], error) bool) {
		for {
			page, err := p.NextPage(ctx)
			if errors.Is(err, ErrExhausted) {
				return
			}
			if err != nil {
				yield(store.Page[T]{}, err)
				return
			}
			if page.Empty() {
				return
			}
			if !yield(page, nil) {
				return
			}
		}
	}
}

// Records yields one record at a time, fetching pages as needed.
func (p *Paginator[T]) Records(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for page, err := range p.Pages(ctx) {
			if err != nil {
				var zero T
				yield(zero, err)
				return
			}
			for _, record := range page.Records {
				if !yield(record, nil) {
					return
				}
			}
		}
	}
}

// Collect drains the paginator into a slice.
func (p *Paginator[T]) Collect(ctx context.Context) ([]T, error) {
	var out []T
	for record, err := range p.Records(ctx) {
		if err != nil {
			return out, err
		}
		out = append(out, record)
	}
	return out, nil
}

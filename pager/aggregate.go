package pager

import (
	"context"
	"fmt"

	"github.com/goliatone/go-repository-pager/store"
	"github.com/shopspring/decimal"
)

// ValueFunc extracts the number to aggregate from a record.
type ValueFunc[T any] func(T) (decimal.Decimal, error)

// Column reads a numeric column from a store.Record.
func Column(name string) ValueFunc[store.Record] {
	return func(r store.Record) (decimal.Decimal, error) {
		return r.Decimal(name)
	}
}

// Sum streams the remaining records of p and adds up value. It returns the
// sum and the number of records seen.
func Sum[T any](ctx context.Context, p *Paginator[T], value ValueFunc[T]) (decimal.Decimal, int, error) {
	sum := decimal.Zero
	n := 0
	for record, err := range p.Records(ctx) {
		if err != nil {
			return decimal.Zero, n, err
		}
		v, err := value(record)
		if err != nil {
			return decimal.Zero, n, fmt.Errorf("record %d: %w", n, err)
		}
		sum = sum.Add(v)
		n++
	}
	return sum, n, nil
}

// Average streams the remaining records of p and returns the mean of value
// together with the record count. An empty stream averages to zero.
func Average[T any](ctx context.Context, p *Paginator[T], value ValueFunc[T]) (decimal.Decimal, int, error) {
	sum, n, err := Sum(ctx, p, value)
	if err != nil || n == 0 {
		return decimal.Zero, n, err
	}
	return sum.Div(decimal.NewFromInt(int64(n))), n, nil
}

// Package store adapts row oriented backends to a uniform offset/limit page fetch.
//
// Every adapter acquires its connection at the start of FetchPage and releases
// it before returning, on success and on every error path. There is no pooling:
// the adapters target low throughput batch reads.
//
// Failures are reported with the typed errors defined in errors.go:
// StoreUnavailable and StoreTimeout are retryable, InvalidQuery is not.
package store

import (
	"context"
	"fmt"
	"reflect"
	"regexp"
	"sync/atomic"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"
)

// Store fetches a window of records ordered by primary key.
type Store[T any] interface {
	// FetchPage returns at most pageSize records starting at offset.
	FetchPage(ctx context.Context, pageSize, offset int) (Page[T], error)
	// Name identifies the underlying collection, used to namespace cache keys.
	Name() string
}

// Window is the (page size, offset) pair of a fetch.
type Window struct {
	PageSize int `json:"page_size"`
	Offset   int `json:"offset"`
}

// Validate checks the window bounds.
func (w Window) Validate() error {
	return validation.ValidateStruct(&w,
		validation.Field(&w.PageSize, validation.Required.Error("must be a positive integer"), validation.Min(1)),
		validation.Field(&w.Offset, validation.Min(0).Error("must be a non-negative integer")),
	)
}

// ValidateWindow returns an InvalidQuery error when pageSize or offset are out of range.
func ValidateWindow(pageSize, offset int) error {
	w := Window{PageSize: pageSize, Offset: offset}
	if err := w.Validate(); err != nil {
		return InvalidQuery(goerrors.FromOzzoValidation(err, "invalid page window"), "invalid page window")
	}
	return nil
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// ValidIdentifier reports whether name is safe to use as a table or column identifier.
func ValidIdentifier(name string) bool {
	return identifierPattern.MatchString(name)
}

// Operator is a comparison operator usable in a Filter.
type Operator string

const (
	OpEq  Operator = "="
	OpNe  Operator = "!="
	OpLt  Operator = "<"
	OpLte Operator = "<="
	OpGt  Operator = ">"
	OpGte Operator = ">="
)

func (o Operator) valid() bool {
	switch o {
	case OpEq, OpNe, OpLt, OpLte, OpGt, OpGte:
		return true
	}
	return false
}

// Filter restricts a store to rows where Column Op Value holds.
type Filter struct {
	Column string   `json:"column" yaml:"column" toml:"column"`
	Op     Operator `json:"op" yaml:"op" toml:"op"`
	Value  any      `json:"value" yaml:"value" toml:"value"`
}

// Validate checks that the filter can be rendered safely.
func (f Filter) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.Column, validation.Required, validation.By(identifierRule)),
		validation.Field(&f.Op, validation.Required, validation.By(func(value any) error {
			if op, _ := value.(Operator); !op.valid() {
				return fmt.Errorf("unsupported operator %q", value)
			}
			return nil
		})),
	)
}

func identifierRule(value any) error {
	name, _ := value.(string)
	if !ValidIdentifier(name) {
		return fmt.Errorf("%q is not a valid identifier", name)
	}
	return nil
}

// Params returns the filters as named parameters, suitable for a cache
// signature. Repeated column and operator pairs collect their values in
// filter order.
func Params(filters []Filter) map[string]any {
	if len(filters) == 0 {
		return nil
	}
	values := make(map[string]repeated, len(filters))
	for _, f := range filters {
		name := f.Column + " " + string(f.Op)
		values[name] = append(values[name], f.Value)
	}
	out := make(map[string]any, len(values))
	for name, vs := range values {
		if len(vs) == 1 {
			out[name] = vs[0]
			continue
		}
		out[name] = vs
	}
	return out
}

// repeated keeps the values of one column and operator pair apart from a
// single slice valued filter.
type repeated []any

// Identifier is implemented by stores whose Name alone does not tell two
// stores apart. Identity returns whatever selects the records a store
// returns; paginators fold it into their cache keys.
type Identifier interface {
	Identity() map[string]any
}

var instances atomic.Uint64

// instanceID returns a process unique id for a store that cannot describe
// its contents.
func instanceID() uint64 {
	return instances.Add(1)
}

// addressOf identifies v by type and, for reference kinds, by address.
func addressOf(v any) string {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return fmt.Sprintf("%T@%#x", v, rv.Pointer())
	}
	return fmt.Sprintf("%T", v)
}

package store

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// Record is a single row keyed by column name.
type Record map[string]any

// Key returns the value stored under the primary key column.
func (r Record) Key(primaryKey string) (any, bool) {
	v, ok := r[primaryKey]
	return v, ok
}

// Decimal converts the scalar stored under column into a decimal.Decimal.
// Drivers hand back DECIMAL columns as int64, float64, string or []byte
// depending on the engine, so every one of those shapes is accepted.
func (r Record) Decimal(column string) (decimal.Decimal, error) {
	v, ok := r[column]
	if !ok {
		return decimal.Zero, fmt.Errorf("column %q not present in record", column)
	}

	switch val := v.(type) {
	case decimal.Decimal:
		return val, nil
	case int64:
		return decimal.NewFromInt(val), nil
	case int:
		return decimal.NewFromInt(int64(val)), nil
	case int32:
		return decimal.NewFromInt32(val), nil
	case float64:
		return decimal.NewFromFloat(val), nil
	case float32:
		return decimal.NewFromFloat32(val), nil
	case string:
		return decimal.NewFromString(val)
	case []byte:
		return decimal.NewFromString(string(val))
	case nil:
		return decimal.Zero, fmt.Errorf("column %q is NULL", column)
	default:
		return decimal.NewFromString(fmt.Sprint(val))
	}
}

// String renders the value under column as a string, decoding []byte values.
func (r Record) String(column string) string {
	switch val := r[column].(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	case int64:
		return strconv.FormatInt(val, 10)
	default:
		return fmt.Sprint(val)
	}
}

// Page is an ordered slice of records produced by one fetch.
// An empty page marks the end of the stream.
type Page[T any] struct {
	Records []T `json:"records"`
	Offset  int `json:"offset"`
	Size    int `json:"size"`
}

// Len returns the number of records in the page.
func (p Page[T]) Len() int { return len(p.Records) }

// Empty reports whether the page carries no records.
func (p Page[T]) Empty() bool { return len(p.Records) == 0 }

// Next returns the offset of the page following this one.
func (p Page[T]) Next() int { return p.Offset + p.Size }

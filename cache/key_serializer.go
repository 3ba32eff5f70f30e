package cache

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// KeySeparator defines the delimiter used between cache key segments.
const KeySeparator = "::"

// defaultKeySerializer implements KeySerializer using reflection based serialization.
//
// Every segment is self delimiting: strings are quoted, other scalars carry
// their type name and containers carry their length. Two argument lists
// that differ in value, type or arity never produce the same key. Maps are
// written with sorted keys so two calls with the same named parameters
// produce the same key whatever order the caller built them in.
type defaultKeySerializer struct{}

// NewDefaultKeySerializer creates a new instance of the default key serializer.
func NewDefaultKeySerializer() KeySerializer {
	return &defaultKeySerializer{}
}

// SerializeKey builds a cache key from method name and args. The method is
// written verbatim unless it contains KeySeparator, ends with a colon or
// starts with a quote, in which case it is quoted.
func (s *defaultKeySerializer) SerializeKey(method string, args ...any) string {
	method = operationSegment(method)
	if len(args) == 0 {
		return method
	}

	parts := make([]string, 0, len(args)+1)
	parts = append(parts, method)
	for _, arg := range args {
		parts = append(parts, s.serializeValue(arg))
	}

	return strings.Join(parts, KeySeparator)
}

func operationSegment(op string) string {
	if strings.Contains(op, KeySeparator) || strings.HasSuffix(op, ":") || strings.HasPrefix(op, `"`) {
		return strconv.Quote(op)
	}
	return op
}

func (s *defaultKeySerializer) serializeValue(v any) string {
	if v == nil {
		return "nil"
	}

	rv := reflect.ValueOf(v)
	rt := rv.Type()

	switch rt.Kind() {
	case reflect.Func:
		// stable for the life of the process only
		return fmt.Sprintf("func:%p", v)
	case reflect.Chan:
		return fmt.Sprintf("chan:%p", v)
	case reflect.UnsafePointer:
		return fmt.Sprintf("unsafe:%p", v)
	case reflect.Ptr:
		if rv.IsNil() {
			return "nil"
		}
		return s.serializeValue(rv.Elem().Interface())
	case reflect.Interface:
		if rv.IsNil() {
			return "interface:nil"
		}
		return s.serializeValue(rv.Elem().Interface())
	case reflect.Slice:
		if rv.IsNil() {
			return "slice:nil"
		}
		return "slice:" + rt.String() + s.serializeElems(rv)
	case reflect.Array:
		return "array:" + rt.String() + s.serializeElems(rv)
	case reflect.Map:
		if rv.IsNil() {
			return "map:nil"
		}
		return s.serializeMap(rv)
	case reflect.Struct:
		// decimal.Decimal, time.Time and friends keep their state unexported
		if str, ok := v.(fmt.Stringer); ok {
			return rt.String() + ":" + strconv.Quote(str.String())
		}
		return s.serializeStruct(v, rv, rt)
	}

	if scalar, ok := serializeScalar(rv); ok {
		return scalar
	}

	return s.msgpackFallback(v, rt)
}

// serializeScalar writes plain strings quoted and every other basic kind as
// type:value, so "1", 1 and int64(1) stay apart.
func serializeScalar(rv reflect.Value) (string, bool) {
	rt := rv.Type()

	var value string
	switch rt.Kind() {
	case reflect.String:
		if rt.PkgPath() == "" {
			return strconv.Quote(rv.String()), true
		}
		value = strconv.Quote(rv.String())
	case reflect.Bool:
		value = strconv.FormatBool(rv.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		value = strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		value = strconv.FormatUint(rv.Uint(), 10)
	case reflect.Float32:
		value = strconv.FormatFloat(rv.Float(), 'g', -1, 32)
	case reflect.Float64:
		value = strconv.FormatFloat(rv.Float(), 'g', -1, 64)
	case reflect.Complex64:
		value = strconv.FormatComplex(rv.Complex(), 'g', -1, 64)
	case reflect.Complex128:
		value = strconv.FormatComplex(rv.Complex(), 'g', -1, 128)
	default:
		return "", false
	}
	return rt.String() + ":" + value, true
}

func (s *defaultKeySerializer) serializeElems(rv reflect.Value) string {
	n := rv.Len()
	parts := make([]string, n)
	for i := 0; i < n; i++ {
		parts[i] = s.serializeValue(rv.Index(i).Interface())
	}
	return fmt.Sprintf("[%d]{%s}", n, strings.Join(parts, ","))
}

func (s *defaultKeySerializer) serializeMap(rv reflect.Value) string {
	type pair struct{ key, value string }

	pairs := make([]pair, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		pairs = append(pairs, pair{
			key:   s.serializeValue(iter.Key().Interface()),
			value: s.serializeValue(iter.Value().Interface()),
		})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].key < pairs[j].key })

	out := make([]string, len(pairs))
	for i, p := range pairs {
		out[i] = p.key + "=" + p.value
	}
	return fmt.Sprintf("map[%d]{%s}", len(out), strings.Join(out, ","))
}

// serializeStruct encodes exported fields with msgpack. Structs msgpack cannot
// encode, for instance ones holding funcs, are walked field by field instead.
func (s *defaultKeySerializer) serializeStruct(v any, rv reflect.Value, rt reflect.Type) string {
	if encoded, err := encodeMsgpack(v); err == nil {
		return fmt.Sprintf("struct:%s:%s", rt.String(), encoded)
	}

	parts := make([]string, 0, rv.NumField())
	for i := 0; i < rv.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		fv := rv.Field(i)
		if !fv.CanInterface() {
			continue
		}
		parts = append(parts, field.Name+":"+s.serializeValue(fv.Interface()))
	}
	return fmt.Sprintf("struct:%s{%s}", rt.String(), strings.Join(parts, ","))
}

func (s *defaultKeySerializer) msgpackFallback(v any, rt reflect.Type) string {
	encoded, err := encodeMsgpack(v)
	if err != nil {
		return "fallback:" + rt.String() + ":" + strconv.Quote(fmt.Sprintf("%#v", v))
	}
	return "msgpack:" + rt.String() + ":" + encoded
}

func encodeMsgpack(v any) (string, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf.Bytes()), nil
}

package cache

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// KeySeparator defines the delimiter used between cache key segments.
const KeySeparator = "::"

// KeySerializer builds a cache key from an endpoint name and its parameters.
// Structurally equal arguments must produce the same key.
type KeySerializer interface {
	SerializeKey(endpoint string, args ...any) string
}

// HashKey reduces a key tuple to its cache key. The first element of the tuple
// names the endpoint and must be a non-empty string without KeySeparator, since
// the endpoint is written unquoted.
func HashKey(serializer KeySerializer, tuple ...any) (string, error) {
	if len(tuple) == 0 {
		return "", ErrEmptyKey
	}
	endpoint, ok := tuple[0].(string)
	if !ok || endpoint == "" || strings.Contains(endpoint, KeySeparator) {
		return "", ErrInvalidKey
	}
	return serializer.SerializeKey(endpoint, tuple[1:]...), nil
}

// MatchesPrefix reports whether key was derived from a tuple that starts with
// the tuple serialized as prefix.
func MatchesPrefix(key, prefix string) bool {
	return key == prefix || strings.HasPrefix(key, prefix+KeySeparator)
}

// defaultKeySerializer implements KeySerializer using reflection-based serialization.
// Basic values carry a type tag unless they are int, bool or string, so values
// that are not deep-equal never share a representation.
type defaultKeySerializer struct{}

// NewDefaultKeySerializer creates a new instance of the default key serializer.
func NewDefaultKeySerializer() KeySerializer {
	return &defaultKeySerializer{}
}

// SerializeKey builds a cache key from the endpoint and args.
func (s *defaultKeySerializer) SerializeKey(endpoint string, args ...any) string {
	if len(args) == 0 {
		return endpoint
	}

	parts := make([]string, 0, len(args)+1)
	parts = append(parts, endpoint)

	for _, arg := range args {
		parts = append(parts, s.serializeValue(arg))
	}

	return strings.Join(parts, KeySeparator)
}

// serializeValue handles individual argument serialization based on type.
func (s *defaultKeySerializer) serializeValue(v any) string {
	if v == nil {
		return "nil"
	}

	rv := reflect.ValueOf(v)
	rt := reflect.TypeOf(v)

	switch rt.Kind() {
	case reflect.Func:
		// stable only within a single process
		return fmt.Sprintf("func:%p", v)
	case reflect.Chan:
		return fmt.Sprintf("chan:%p", v)
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
		return s.serializeList("slice", rv)
	case reflect.Array:
		return s.serializeList("array", rv)
	case reflect.Map:
		if rv.IsNil() {
			return "map:nil"
		}
		return s.serializeMap(rv)
	case reflect.Struct:
		return s.serializeStruct(rv, rt)
	}

	if s.isBasicType(rt.Kind()) {
		return s.serializeBasic(rv, rt)
	}

	return s.jsonFallback(v)
}

// serializeBasic renders scalars. Strings are quoted so separators inside them
// cannot fake extra segments.
func (s *defaultKeySerializer) serializeBasic(rv reflect.Value, rt reflect.Type) string {
	var out string
	switch rt.Kind() {
	case reflect.String:
		out = strconv.Quote(rv.String())
	case reflect.Bool:
		out = strconv.FormatBool(rv.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		out = strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		out = strconv.FormatUint(rv.Uint(), 10)
	case reflect.Float32:
		out = strconv.FormatFloat(rv.Float(), 'g', -1, 32)
	case reflect.Float64:
		out = strconv.FormatFloat(rv.Float(), 'g', -1, 64)
	default:
		out = fmt.Sprintf("%v", rv.Interface())
	}

	switch rt {
	case reflect.TypeOf(""), reflect.TypeOf(0), reflect.TypeOf(false):
		return out
	}
	return out + ":" + rt.String()
}

// serializeList handles slices and arrays recursively.
func (s *defaultKeySerializer) serializeList(kind string, rv reflect.Value) string {
	length := rv.Len()
	parts := make([]string, length)

	for i := 0; i < length; i++ {
		parts[i] = s.serializeValue(rv.Index(i).Interface())
	}

	return fmt.Sprintf("%s[%d]:{%s}", kind, length, strings.Join(parts, ","))
}

// serializeMap handles map serialization with sorted keys for determinism.
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

	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = p.key + "=" + p.value
	}

	return fmt.Sprintf("map[%d]:{%s}", len(parts), strings.Join(parts, ","))
}

// serializeStruct handles struct serialization with field names.
// Unexported fields are not part of the key.
func (s *defaultKeySerializer) serializeStruct(rv reflect.Value, rt reflect.Type) string {
	numFields := rv.NumField()
	parts := make([]string, 0, numFields)

	for i := 0; i < numFields; i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}

		fieldValue := rv.Field(i)
		if !fieldValue.CanInterface() {
			continue
		}

		parts = append(parts, fmt.Sprintf("%s:%s", field.Name, s.serializeValue(fieldValue.Interface())))
	}

	return fmt.Sprintf("struct %s:{%s}", rt.String(), strings.Join(parts, ","))
}

// isBasicType checks if a kind represents a basic Go type
func (s *defaultKeySerializer) isBasicType(kind reflect.Kind) bool {
	switch kind {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64,
		reflect.Complex64, reflect.Complex128,
		reflect.String:
		return true
	default:
		return false
	}
}

// jsonFallback provides JSON serialization as a last resort
func (s *defaultKeySerializer) jsonFallback(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("fallback:%s", reflect.TypeOf(v).String())
	}
	return fmt.Sprintf("json:%s", string(data))
}

// digestKeySerializer keeps the endpoint readable and replaces the argument
// segments with their xxhash digest. Prefix invalidation on such keys can only
// match whole endpoints.
type digestKeySerializer struct {
	base KeySerializer
}

// NewDigestKeySerializer wraps base so argument segments are reduced to a
// fixed-width 64-bit digest. Useful when parameters are large.
func NewDigestKeySerializer(base KeySerializer) KeySerializer {
	if base == nil {
		base = NewDefaultKeySerializer()
	}
	return &digestKeySerializer{base: base}
}

// SerializeKey implements KeySerializer.
func (s *digestKeySerializer) SerializeKey(endpoint string, args ...any) string {
	if len(args) == 0 {
		return endpoint
	}
	full := s.base.SerializeKey(endpoint, args...)
	sum := xxhash.Sum64String(strings.TrimPrefix(full, endpoint))
	return endpoint + KeySeparator + fmt.Sprintf("%016x", sum)
}

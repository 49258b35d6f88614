package engine

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"time"

	"github.com/google/uuid"
)

var (
	timeType     = reflect.TypeOf(time.Time{})
	uuidType     = reflect.TypeOf(uuid.UUID{})
	rawJSONType  = reflect.TypeOf(json.RawMessage(nil))
	emptyStruct  = reflect.TypeOf(struct{}{})
	stringerType = reflect.TypeOf((*fmt.Stringer)(nil)).Elem()
)

// Normalize converts v into plain JSON values: strings, float64/int numbers,
// bools, nil, []any and map[string]any. Ids become strings, times RFC 3339,
// string enums their tag and sets sorted slices. Raw JSON passes through.
func Normalize(v any) any {
	if v == nil {
		return nil
	}
	return normalizeValue(reflect.ValueOf(v))
}

// NormalizeMap is Normalize for the argument maps handed to a backend.
func NormalizeMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = Normalize(v)
	}
	return out
}

func normalizeValue(rv reflect.Value) any {
	if !rv.IsValid() {
		return nil
	}
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}

	switch rv.Type() {
	case timeType:
		return rv.Interface().(time.Time).Format(time.RFC3339Nano)
	case uuidType:
		return rv.Interface().(uuid.UUID).String()
	case rawJSONType:
		return rv.Interface().(json.RawMessage)
	}

	switch rv.Kind() {
	case reflect.String:
		return rv.String()
	case reflect.Bool:
		return rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint()
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	}

	if rv.Type().Implements(stringerType) && rv.Kind() != reflect.Map && rv.Kind() != reflect.Slice {
		return rv.Interface().(fmt.Stringer).String()
	}

	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Elem() == emptyStruct {
			return normalizeSet(rv)
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[mapKey(iter.Key())] = normalizeValue(iter.Value())
		}
		return out
	case reflect.Slice:
		if rv.IsNil() {
			return []any{}
		}
		fallthrough
	case reflect.Array:
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = normalizeValue(rv.Index(i))
		}
		return out
	case reflect.Struct:
		return normalizeStruct(rv)
	}
	return fmt.Sprint(rv.Interface())
}

func mapKey(k reflect.Value) string {
	switch n := normalizeValue(k).(type) {
	case string:
		return n
	default:
		return fmt.Sprint(n)
	}
}

func normalizeSet(rv reflect.Value) []any {
	keys := make([]any, 0, rv.Len())
	for _, k := range rv.MapKeys() {
		keys = append(keys, normalizeValue(k))
	}
	sort.Slice(keys, func(i, j int) bool { return lessScalar(keys[i], keys[j]) })
	return keys
}

func lessScalar(a, b any) bool {
	switch x := a.(type) {
	case int64:
		if y, ok := b.(int64); ok {
			return x < y
		}
	case uint64:
		if y, ok := b.(uint64); ok {
			return x < y
		}
	case float64:
		if y, ok := b.(float64); ok {
			return x < y
		}
	}
	return fmt.Sprint(a) < fmt.Sprint(b)
}

// normalizeStruct renders the struct through its JSON encoding so field tags
// decide the keys, then normalizes the decoded tree.
func normalizeStruct(rv reflect.Value) any {
	b, err := json.Marshal(rv.Interface())
	if err != nil {
		return fmt.Sprint(rv.Interface())
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return string(b)
	}
	return out
}

// Package document holds the in-memory form of a decoded schema document.
//
// YAML and JSON documents are decoded into Map values so that the order of
// keys in the source survives decoding. Everything downstream that needs a
// plain Go value (JSON Schema validation, kin-openapi) goes through Plain.
package document

import (
	"bytes"
	"encoding/json"
	"sort"

	"github.com/spf13/cast"
)

// Field is one key/value pair of a Map.
type Field struct {
	Key   string
	Value any
}

// Map is an ordered mapping. Values are scalars, []any, or nested Maps.
type Map []Field

// Get returns the value stored under key.
func (m Map) Get(key string) (any, bool) {
	for _, f := range m {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// Keys returns the keys in document order.
func (m Map) Keys() []string {
	keys := make([]string, len(m))
	for i, f := range m {
		keys[i] = f.Key
	}
	return keys
}

// MarshalJSON encodes the map as a JSON object, keeping key order.
func (m Map) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range m {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Fields returns the fields of any supported mapping value. Plain Go maps are
// returned in sorted key order. The second result is false when v is not a
// mapping.
func Fields(v any) (Map, bool) {
	switch m := v.(type) {
	case Map:
		return m, true
	case map[string]any:
		return sortedFields(m), true
	case map[any]any:
		sm, err := cast.ToStringMapE(m)
		if err != nil {
			return nil, false
		}
		return sortedFields(sm), true
	default:
		return nil, false
	}
}

func sortedFields(m map[string]any) Map {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make(Map, 0, len(keys))
	for _, k := range keys {
		out = append(out, Field{Key: k, Value: m[k]})
	}
	return out
}

// Plain converts v recursively into map[string]any / []any values.
func Plain(v any) any {
	if fields, ok := Fields(v); ok {
		out := make(map[string]any, len(fields))
		for _, f := range fields {
			out[f.Key] = Plain(f.Value)
		}
		return out
	}
	if list, ok := v.([]any); ok {
		out := make([]any, len(list))
		for i, item := range list {
			out[i] = Plain(item)
		}
		return out
	}
	return v
}

// PlainMap is Plain for values known to be mappings. It returns nil when v is
// not a mapping.
func PlainMap(v any) map[string]any {
	if _, ok := Fields(v); !ok {
		return nil
	}
	return Plain(v).(map[string]any)
}

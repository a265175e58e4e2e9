// Package value models dynamically-typed tool parameters as a tagged union,
// so sanitization and scoring can dispatch on the variant kind instead of
// reflecting over arbitrary interface values.
package value

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Kind identifies the variant held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindMap
	KindList
)

// String returns the lowercase kind name.
func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindMap:
		return "map"
	case KindList:
		return "list"
	default:
		return "null"
	}
}

// Value is an immutable tagged union: String | Number | Bool | Map | List | Null.
// The zero value is Null.
type Value struct {
	kind Kind
	str  string
	num  float64
	b    bool
	m    map[string]Value
	l    []Value
}

// Null returns the null value.
func Null() Value { return Value{} }

// String wraps a string.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Number wraps a float64.
func Number(n float64) Value { return Value{kind: KindNumber, num: n} }

// Bool wraps a bool.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Map wraps a map. The map is used as-is; callers must not mutate it afterwards.
func Map(m map[string]Value) Value { return Value{kind: KindMap, m: m} }

// List wraps a list. The slice is used as-is; callers must not mutate it afterwards.
func List(l []Value) Value { return Value{kind: KindList, l: l} }

// Kind returns the variant kind.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the value is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Str returns the string payload and whether the value is a string.
func (v Value) Str() (string, bool) { return v.str, v.kind == KindString }

// Num returns the numeric payload and whether the value is a number.
func (v Value) Num() (float64, bool) { return v.num, v.kind == KindNumber }

// Boolean returns the bool payload and whether the value is a bool.
func (v Value) Boolean() (bool, bool) { return v.b, v.kind == KindBool }

// MapValue returns the map payload and whether the value is a map.
func (v Value) MapValue() (map[string]Value, bool) { return v.m, v.kind == KindMap }

// ListValue returns the list payload and whether the value is a list.
func (v Value) ListValue() ([]Value, bool) { return v.l, v.kind == KindList }

// Interface converts the value to plain Go types (string, float64, bool,
// map[string]any, []any, nil) for JSON-schema validation and serialization.
func (v Value) Interface() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return v.num
	case KindBool:
		return v.b
	case KindMap:
		out := make(map[string]any, len(v.m))
		for k, child := range v.m {
			out[k] = child.Interface()
		}
		return out
	case KindList:
		out := make([]any, len(v.l))
		for i, child := range v.l {
			out[i] = child.Interface()
		}
		return out
	default:
		return nil
	}
}

// FromInterface converts plain Go values (as produced by encoding/json) into a
// Value. Unrecognized types become their fmt representation as a string.
func FromInterface(in any) Value {
	switch t := in.(type) {
	case nil:
		return Null()
	case string:
		return String(t)
	case float64:
		return Number(t)
	case float32:
		return Number(float64(t))
	case int:
		return Number(float64(t))
	case int64:
		return Number(float64(t))
	case bool:
		return Bool(t)
	case map[string]any:
		m := make(map[string]Value, len(t))
		for k, child := range t {
			m[k] = FromInterface(child)
		}
		return Map(m)
	case []any:
		l := make([]Value, len(t))
		for i, child := range t {
			l[i] = FromInterface(child)
		}
		return List(l)
	default:
		return String(fmt.Sprintf("%v", t))
	}
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = FromInterface(raw)
	return nil
}

// Preview renders a compact single-line representation for audit previews.
// Map keys are sorted so the output is stable.
func (v Value) Preview() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%f", v.num), "0"), ".")
	case KindBool:
		return fmt.Sprintf("%t", v.b)
	case KindMap:
		keys := make([]string, 0, len(v.m))
		for k := range v.m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + "=" + v.m[k].Preview()
		}
		return "{" + strings.Join(parts, " ") + "}"
	case KindList:
		parts := make([]string, len(v.l))
		for i, child := range v.l {
			parts[i] = child.Preview()
		}
		return "[" + strings.Join(parts, " ") + "]"
	default:
		return "null"
	}
}

// Package answers holds a submission's working data: field id to value.
//
// On disk the map is a flat JSON object of strings. List values (multi-select
// checkboxes) are stored as a JSON array encoded inside the string.
package answers

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

type Kind uint8

const (
	KindNull Kind = iota
	KindScalar
	KindList
)

// Value is one answer. The zero value is Null.
type Value struct {
	kind   Kind
	scalar string
	list   []string
}

func Null() Value { return Value{} }
func Scalar(s string) Value { return Value{kind: KindScalar, scalar: s} }
func List(items ...string) Value { return Value{kind: KindList, list: append([]string{}, items...)} }

func (v Value) Kind() Kind { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }
func (v Value) Items() []string { return v.list }

// String is the stored form of the value.
func (v Value) String() string {
	switch v.kind {
	case KindScalar:
		return v.scalar
	case KindList:
		b, _ := json.Marshal(v.list)
		return string(b)
	default:
		return ""
	}
}

// Blank reports whether the value carries no answer: null, whitespace only, or an empty list.
func (v Value) Blank() bool {
	switch v.kind {
	case KindScalar:
		return strings.TrimSpace(v.scalar) == ""
	case KindList:
		for _, item := range v.list {
			if strings.TrimSpace(item) != "" {
				return false
			}
		}
		return true
	default:
		return true
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	if v.kind == KindNull {
		return []byte("null"), nil
	}
	return json.Marshal(v.String())
}

// UnmarshalJSON accepts strings, null, arrays of strings and bare scalars (numbers, bools)
// so payloads from older clients still load.
func (v *Value) UnmarshalJSON(b []byte) error {
	var raw interface{}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	switch t := raw.(type) {
	case nil:
		*v = Null()
	case string:
		*v = Scalar(t)
	case bool, float64:
		*v = Scalar(strings.TrimSpace(string(b)))
	case []interface{}:
		items := make([]string, 0, len(t))
		for _, item := range t {
			s, ok := item.(string)
			if !ok {
				return fmt.Errorf("answer list items must be strings, got %T", item)
			}
			items = append(items, s)
		}
		*v = List(items...)
	default:
		return fmt.Errorf("unsupported answer value %T", raw)
	}
	return nil
}

// Map is the answer set for one submission.
type Map map[string]Value

// Decode parses a stored answer blob. Empty input yields an empty map.
func Decode(data []byte) (Map, error) {
	m := Map{}
	if len(strings.TrimSpace(string(data))) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("malformed answer data: %w", err)
	}
	return m, nil
}

// DecodeString is Decode for text callers.
func DecodeString(s string) (Map, error) {
	return Decode([]byte(s))
}

// FromStrings builds a map of scalars, the shape submitted by HTML forms.
func FromStrings(in map[string]string) Map {
	m := make(Map, len(in))
	for k, v := range in {
		m[k] = Scalar(v)
	}
	return m
}

func (m Map) Encode() ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// Get returns the value for id, Null when absent.
func (m Map) Get(id string) (Value, bool) {
	v, ok := m[id]
	return v, ok
}

// Merge returns a new map with incoming keys overwriting existing ones. Keys absent from
// incoming are kept, including ones the current schema no longer declares.
func Merge(existing, incoming Map) Map {
	out := make(Map, len(existing)+len(incoming))
	for k, v := range existing {
		out[k] = v
	}
	for k, v := range incoming {
		out[k] = v
	}
	return out
}

// Keys lists ids in sorted order.
func (m Map) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

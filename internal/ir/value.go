package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"unicode/utf16"
)

// Value is a sealed interface over the JSON-shaped values allowed in
// canonical documents: Str, Int, Bool, Arr, Obj. There is deliberately
// no float type; fingerprints must be bit-stable and floats are not.
type Value interface {
	irValue()
}

// Str is a string value.
type Str string

func (Str) irValue() {}

// Int is an integer value. Always int64, never float64.
type Int int64

func (Int) irValue() {}

// Bool is a boolean value.
type Bool bool

func (Bool) irValue() {}

// Arr is an array of values.
type Arr []Value

func (Arr) irValue() {}

// Obj is a string-keyed map of values. Use SortedKeys for
// deterministic iteration.
type Obj map[string]Value

func (Obj) irValue() {}

// StrArr builds an Arr from a string slice.
func StrArr(ss []string) Arr {
	arr := make(Arr, len(ss))
	for i, s := range ss {
		arr[i] = Str(s)
	}
	return arr
}

// SortedKeys returns the object's keys in RFC 8785 canonical order,
// which sorts by UTF-16 code units. Go's sort.Strings compares UTF-8
// bytes and produces a different order for strings outside the BMP.
func (o Obj) SortedKeys() []string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareUTF16)
	return keys
}

// compareUTF16 orders strings by UTF-16 code units. utf16.Encode
// handles surrogate pairs; byte-wise comparison would not.
func compareUTF16(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))
	n := min(len(a16), len(b16))
	for i := 0; i < n; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	}
	return 0
}

// FromJSON decodes JSON into a Value, rejecting floats and null.
// This is the strict boundary for externally supplied documents.
func FromJSON(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return toValue(raw)
}

func toValue(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return nil, fmt.Errorf("null is forbidden: only string, int, bool, array, object allowed")
	case Value:
		return val, nil
	case bool:
		return Bool(val), nil
	case string:
		return Str(val), nil
	case json.Number:
		s := string(val)
		if strings.ContainsAny(s, ".eE") {
			return nil, fmt.Errorf("floats are forbidden in canonical documents: %s", s)
		}
		n, err := val.Int64()
		if err != nil {
			return nil, fmt.Errorf("number out of int64 range: %s", s)
		}
		return Int(n), nil
	case int:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case []any:
		arr := make(Arr, len(val))
		for i, elem := range val {
			e, err := toValue(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			arr[i] = e
		}
		return arr, nil
	case map[string]any:
		obj := make(Obj, len(val))
		for k, elem := range val {
			e, err := toValue(elem)
			if err != nil {
				return nil, fmt.Errorf("object[%q]: %w", k, err)
			}
			obj[k] = e
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

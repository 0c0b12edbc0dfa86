// Package config holds the key/value model shared by the ConfigStore
// adapters. Keys are dotted paths ("retrieval.caps.per_source"); values keep
// whatever type the decoder or caller produced and are coerced on read.
package config

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Values is a flat set of dotted configuration keys.
type Values map[string]any

// String returns key as a string, or "" when absent or not a string.
func (v Values) String(key string) string {
	s, _ := v[key].(string)
	return s
}

// Int returns key as an int. TOML decodes integers as int64 and JSON as
// float64, so both are accepted.
func (v Values) Int(key string) int {
	switch n := v[key].(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}

// Float returns key as a float64, widening integers.
func (v Values) Float(key string) float64 {
	switch n := v[key].(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}

// Bool returns key as a bool, or false.
func (v Values) Bool(key string) bool {
	b, _ := v[key].(bool)
	return b
}

// StringSlice returns key as a []string. Non-string elements of a decoded
// array are dropped.
func (v Values) StringSlice(key string) []string {
	switch s := v[key].(type) {
	case []string:
		return s
	case []any:
		out := make([]string, 0, len(s))
		for _, item := range s {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}

// Flatten turns nested tables into dotted keys:
// {"a": {"b": 1}} becomes {"a.b": 1}.
func Flatten(tables map[string]any) Values {
	out := make(Values)
	flattenInto(out, tables, "")
	return out
}

func flattenInto(out Values, tables map[string]any, prefix string) {
	for key, value := range tables {
		if prefix != "" {
			key = prefix + "." + key
		}
		if nested, ok := value.(map[string]any); ok {
			flattenInto(out, nested, key)
			continue
		}
		out[key] = value
	}
}

// Nest is the inverse of Flatten. A key that is both a value and a table
// prefix ("a" and "a.b") cannot be written as TOML and is an error.
func (v Values) Nest() (map[string]any, error) {
	root := make(map[string]any)
	for _, key := range sortedKeys(v) {
		parts := strings.Split(key, ".")
		table := root
		for _, part := range parts[:len(parts)-1] {
			next, exists := table[part]
			if !exists {
				child := make(map[string]any)
				table[part] = child
				table = child
				continue
			}
			child, ok := next.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("config key %q conflicts with value at %q", key, part)
			}
			table = child
		}
		table[parts[len(parts)-1]] = v[key]
	}
	return root, nil
}

// sortedKeys orders shallower paths first so a parent value is placed before
// its would-be children and conflicts are reported deterministically.
func sortedKeys(v Values) []string {
	keys := slices.Collect(maps.Keys(v))
	slices.SortFunc(keys, func(a, b string) int {
		if c := cmp.Compare(strings.Count(a, "."), strings.Count(b, ".")); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	return keys
}

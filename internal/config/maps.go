package config

import (
	"fmt"
	"reflect"
	"sort"
)

// FlattenMap flattens a nested map into a single-level map with dot-separated keys.
// Nested maps decoded by YAML (map[any]any) and string maps are flattened too.
func FlattenMap(data map[string]any) map[string]any {
	result := make(map[string]any)
	flattenInto(data, "", result)
	return result
}

func flattenInto(data map[string]any, prefix string, result map[string]any) {
	for key, val := range data {
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "." + key
		}

		switch nested := val.(type) {
		case map[string]any:
			flattenInto(nested, fullKey, result)
		case map[any]any:
			converted := make(map[string]any, len(nested))
			for k, v := range nested {
				converted[fmt.Sprint(k)] = v
			}
			flattenInto(converted, fullKey, result)
		case map[string]string:
			for k, v := range nested {
				result[fullKey+"."+k] = v
			}
		default:
			result[fullKey] = val
		}
	}
}

// DiffKeys returns the sorted keys that were added, removed, or modified
// between two flat maps.
func DiffKeys(old, new map[string]any) []string {
	var changed []string
	for key, newVal := range new {
		oldVal, exists := old[key]
		if !exists || !valuesEqual(oldVal, newVal) {
			changed = append(changed, key)
		}
	}
	for key := range old {
		if _, exists := new[key]; !exists {
			changed = append(changed, key)
		}
	}
	sort.Strings(changed)
	return changed
}

// valuesEqual compares two values for equality.
func valuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	if ta.Comparable() {
		return a == b
	}
	return reflect.DeepEqual(a, b)
}

func cloneFlat(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortStrings(s []string) {
	sort.Strings(s)
}

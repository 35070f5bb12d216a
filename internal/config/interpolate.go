package config

import (
	"slices"
	"strings"
)

const (
	placeholderOpen  = "${"
	placeholderClose = "}"
)

// Interpolate substitutes ${key} placeholders in s with values resolved from scope.
// Substituted values are interpolated recursively. Placeholders naming keys that
// scope does not define are left in place.
func Interpolate(scope Node, s string) (string, error) {
	out, _, err := interpolate(scope, s, nil)
	return out, err
}

// Placeholders returns the names of the ${...} placeholders in s, in order of
// first appearance.
func Placeholders(s string) []string {
	var names []string
	for {
		start := strings.Index(s, placeholderOpen)
		if start < 0 {
			return names
		}
		end := strings.Index(s[start:], placeholderClose)
		if end < 0 {
			return names
		}
		name := s[start+len(placeholderOpen) : start+end]
		if !slices.Contains(names, name) {
			names = append(names, name)
		}
		s = s[start+end+1:]
	}
}

// interpolate expands s. chain holds the keys currently being expanded and is
// used to detect cycles. The returned refs list every key consulted,
// including keys that scope does not define.
func interpolate(scope Node, s string, chain []string) (string, []string, error) {
	if !strings.Contains(s, placeholderOpen) {
		return s, nil, nil
	}

	var (
		b    strings.Builder
		refs []string
	)
	for {
		start := strings.Index(s, placeholderOpen)
		if start < 0 {
			b.WriteString(s)
			break
		}
		end := strings.Index(s[start:], placeholderClose)
		if end < 0 {
			b.WriteString(s)
			break
		}
		end += start

		b.WriteString(s[:start])
		name := s[start+len(placeholderOpen) : end]
		s = s[end+1:]

		if slices.Contains(chain, name) {
			cycle := append(slices.Clone(chain), name)
			return "", refs, &InterpolationCycleError{Chain: cycle}
		}

		// Unresolved names are still reported so callers can watch for them.
		refs = append(refs, name)
		raw, ok := scope.Raw(name)
		if !ok {
			b.WriteString(placeholderOpen + name + placeholderClose)
			continue
		}

		str, err := ToString(raw)
		if err != nil {
			return "", refs, err
		}
		expanded, nested, err := interpolate(scope, str, append(slices.Clone(chain), name))
		refs = append(refs, nested...)
		if err != nil {
			return "", refs, err
		}
		b.WriteString(expanded)
	}
	return b.String(), refs, nil
}

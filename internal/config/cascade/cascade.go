// Package cascade expands a base resource name into environment-specific
// candidate names.
//
// A Resolver pairs a Strategy with an ordered list of variable names. Given
// a base name and a Context holding variable values, it returns candidate
// names ordered from most specific to least specific, always ending with
// the base name itself:
//
//	r := cascade.NewResolver(cascade.Concat("-"), "env", "region")
//	r.Resolve("app", cascade.Map{"env": "prod", "region": "us"})
//	// [app-prod-us app-prod app]
//
// Resolution performs no I/O. Callers load whichever candidates exist.
package cascade

import (
	"fmt"
	"slices"
	"strings"

	"github.com/dshills/strata/internal/config"
)

// DefaultSeparator joins a base name and its suffixes.
const DefaultSeparator = "-"

// Context supplies variable values during resolution.
type Context interface {
	Lookup(name string) (string, bool)
}

// Map is a Context backed by a map.
type Map map[string]string

// Lookup implements Context.
func (m Map) Lookup(name string) (string, bool) {
	v, ok := m[name]
	return v, ok
}

// LookupFunc adapts a function to a Context.
type LookupFunc func(name string) (string, bool)

// Lookup implements Context.
func (f LookupFunc) Lookup(name string) (string, bool) {
	return f(name)
}

// FromNode returns a Context that reads variables from a configuration node,
// interpolating ${...} references along the way. A value that still holds
// an unresolved reference counts as missing.
func FromNode(n config.Node) Context {
	r := config.NewReader(n)
	return LookupFunc(func(name string) (string, bool) {
		v, err := r.GetString(name)
		if err != nil || len(config.Placeholders(v)) > 0 {
			return "", false
		}
		return v, true
	})
}

// Resolver expands base names using a Strategy and a list of variables.
type Resolver struct {
	strategy Strategy
	vars     []string
}

// NewResolver returns a Resolver. Variables may be given bare ("env") or as
// placeholders ("${env}"). A nil strategy uses Concat with the default
// separator.
func NewResolver(strategy Strategy, vars ...string) *Resolver {
	if strategy == nil {
		strategy = Concat(DefaultSeparator)
	}
	names := make([]string, 0, len(vars))
	for _, v := range vars {
		if v = variableName(v); v != "" {
			names = append(names, v)
		}
	}
	return &Resolver{strategy: strategy, vars: names}
}

// Variables returns the variable names in declared order.
func (r *Resolver) Variables() []string {
	return slices.Clone(r.vars)
}

// Strategy returns the resolver's strategy.
func (r *Resolver) Strategy() Strategy {
	return r.strategy
}

// Resolve returns candidate names for base, most specific first. Variables
// that are missing from ctx or empty are skipped. Duplicate candidates keep
// their first position.
func (r *Resolver) Resolve(base string, ctx Context) []string {
	var values []string
	for _, name := range r.vars {
		if ctx == nil {
			break
		}
		v, ok := ctx.Lookup(name)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		values = append(values, strings.TrimSpace(v))
	}

	candidates := r.strategy.Expand(base, values)
	out := make([]string, 0, len(candidates))
	seen := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

func variableName(v string) string {
	v = strings.TrimSpace(v)
	if strings.HasPrefix(v, "${") && strings.HasSuffix(v, "}") {
		v = v[2 : len(v)-1]
	}
	return strings.TrimSpace(v)
}

// ByName returns the strategy registered under name: "concat", "suffix",
// "cross", or "none".
func ByName(name, separator string) (Strategy, error) {
	if separator == "" {
		separator = DefaultSeparator
	}
	switch strings.ToLower(name) {
	case "", "concat":
		return Concat(separator), nil
	case "suffix":
		return Suffix(separator), nil
	case "cross", "crossproduct", "cross-product":
		return CrossProduct(separator), nil
	case "none":
		return None(), nil
	default:
		return nil, fmt.Errorf("unknown cascade strategy %q", name)
	}
}

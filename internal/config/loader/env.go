package loader

import (
	"os"
	"strings"
)

// Env loads configuration from environment variables.
//
// With a prefix, only variables starting with it are read and their names
// become dotted keys: STRATA_DB_HOST becomes db.host, and a doubled
// underscore keeps a literal one (STRATA_MAX__CONNS becomes max_conns).
// Without a prefix every variable is read under its own name. Explicit
// mappings take precedence over the derived key. Values stay strings.
type Env struct {
	prefix  string
	mapping map[string]string
	environ func() []string
}

// NewEnv creates an environment loader. The prefix should include the
// trailing underscore (e.g., "STRATA_").
func NewEnv(prefix string) *Env {
	return &Env{
		prefix:  prefix,
		mapping: make(map[string]string),
		environ: os.Environ,
	}
}

// NewEnvWithMapping creates a loader with explicit variable-to-key mappings.
func NewEnvWithMapping(prefix string, mapping map[string]string) *Env {
	e := NewEnv(prefix)
	for env, key := range mapping {
		e.mapping[env] = key
	}
	return e
}

// AddMapping maps an environment variable to a configuration key.
func (e *Env) AddMapping(envVar, key string) {
	e.mapping[envVar] = key
}

// RemoveMapping removes an environment variable mapping.
func (e *Env) RemoveMapping(envVar string) {
	delete(e.mapping, envVar)
}

// Prefix returns the variable prefix.
func (e *Env) Prefix() string {
	return e.prefix
}

// Load reads environment variables and returns a flat configuration map.
// Empty values are kept; they are set, not unset.
func (e *Env) Load() (map[string]any, error) {
	out := make(map[string]any)
	for _, kv := range e.environ() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || name == "" {
			continue
		}
		if key, mapped := e.mapping[name]; mapped {
			out[key] = value
			continue
		}
		if e.prefix != "" && !strings.HasPrefix(name, e.prefix) {
			continue
		}
		if key := e.KeyFor(name); key != "" {
			out[key] = value
		}
	}
	return out, nil
}

// KeyFor returns the configuration key derived from an environment variable
// name, or "" when the name lacks the prefix.
func (e *Env) KeyFor(name string) string {
	if e.prefix == "" {
		return name
	}
	rest, ok := strings.CutPrefix(name, e.prefix)
	if !ok || rest == "" {
		return ""
	}
	parts := strings.Split(rest, "__")
	for i, p := range parts {
		parts[i] = strings.ReplaceAll(strings.ToLower(p), "_", ".")
	}
	return strings.Join(parts, "_")
}

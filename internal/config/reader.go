package config

import (
	"errors"
	"strings"
	"time"
)

// Reader provides typed getters over a Node.
// String values are interpolated against the reader's scope before coercion.
type Reader struct {
	node  Node
	scope Node
}

// NewReader returns a Reader that reads and interpolates through n.
func NewReader(n Node) Reader {
	return Reader{node: n, scope: n}
}

// NewScopedReader returns a Reader that reads keys from n and resolves
// ${...} placeholders through scope.
func NewScopedReader(n, scope Node) Reader {
	return Reader{node: n, scope: scope}
}

// Resolve returns the interpolated value for key and the keys consulted
// while interpolating it.
func (r Reader) Resolve(key string) (any, []string, error) {
	raw, ok := r.node.Raw(key)
	if !ok {
		return nil, nil, &KeyNotFoundError{Key: key}
	}
	s, isString := raw.(string)
	if !isString || !strings.Contains(s, placeholderOpen) {
		return raw, nil, nil
	}
	out, refs, err := interpolate(r.scope, s, []string{key})
	if err != nil {
		return nil, refs, err
	}
	return out, refs, nil
}

// Get returns the interpolated value for key.
func (r Reader) Get(key string) (any, error) {
	v, _, err := r.Resolve(key)
	return v, err
}

// GetString returns the value for key as a string.
func (r Reader) GetString(key string) (string, error) {
	v, err := r.Get(key)
	if err != nil {
		return "", err
	}
	s, err := ToString(v)
	return s, withKey(key, err)
}

// GetInt returns the value for key as an int.
func (r Reader) GetInt(key string) (int, error) {
	v, err := r.Get(key)
	if err != nil {
		return 0, err
	}
	n, err := ToInt(v)
	return n, withKey(key, err)
}

// GetInt64 returns the value for key as an int64.
func (r Reader) GetInt64(key string) (int64, error) {
	v, err := r.Get(key)
	if err != nil {
		return 0, err
	}
	n, err := ToInt64(v)
	return n, withKey(key, err)
}

// GetFloat64 returns the value for key as a float64.
func (r Reader) GetFloat64(key string) (float64, error) {
	v, err := r.Get(key)
	if err != nil {
		return 0, err
	}
	f, err := ToFloat64(v)
	return f, withKey(key, err)
}

// GetBool returns the value for key as a bool.
func (r Reader) GetBool(key string) (bool, error) {
	v, err := r.Get(key)
	if err != nil {
		return false, err
	}
	b, err := ToBool(v)
	return b, withKey(key, err)
}

// GetDuration returns the value for key as a time.Duration.
func (r Reader) GetDuration(key string) (time.Duration, error) {
	v, err := r.Get(key)
	if err != nil {
		return 0, err
	}
	d, err := ToDuration(v)
	return d, withKey(key, err)
}

// GetStringSlice returns the value for key as a slice of strings.
func (r Reader) GetStringSlice(key string) ([]string, error) {
	v, err := r.Get(key)
	if err != nil {
		return nil, err
	}
	s, err := ToStringSlice(v)
	return s, withKey(key, err)
}

// GetStringOr returns the string value for key, or def if it cannot be read.
func (r Reader) GetStringOr(key, def string) string {
	return or(r.GetString, key, def)
}

// GetIntOr returns the int value for key, or def if it cannot be read.
func (r Reader) GetIntOr(key string, def int) int {
	return or(r.GetInt, key, def)
}

// GetInt64Or returns the int64 value for key, or def if it cannot be read.
func (r Reader) GetInt64Or(key string, def int64) int64 {
	return or(r.GetInt64, key, def)
}

// GetFloat64Or returns the float64 value for key, or def if it cannot be read.
func (r Reader) GetFloat64Or(key string, def float64) float64 {
	return or(r.GetFloat64, key, def)
}

// GetBoolOr returns the bool value for key, or def if it cannot be read.
func (r Reader) GetBoolOr(key string, def bool) bool {
	return or(r.GetBool, key, def)
}

// GetDurationOr returns the duration value for key, or def if it cannot be read.
func (r Reader) GetDurationOr(key string, def time.Duration) time.Duration {
	return or(r.GetDuration, key, def)
}

// GetStringSliceOr returns the list value for key, or def if it cannot be read.
func (r Reader) GetStringSliceOr(key string, def []string) []string {
	return or(r.GetStringSlice, key, def)
}

func or[T any](get func(string) (T, error), key string, def T) T {
	v, err := get(key)
	if err != nil {
		return def
	}
	return v
}

// withKey records key on coercion errors produced by the To* helpers.
func withKey(key string, err error) error {
	if err == nil {
		return nil
	}
	var ce *TypeCoercionError
	if errors.As(err, &ce) && ce.Key == "" {
		copied := *ce
		copied.Key = key
		return &copied
	}
	return err
}

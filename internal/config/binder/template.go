package binder

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/dshills/strata/internal/config"
)

// ErrArgumentCount indicates the number of arguments does not match the
// template's declared parameters.
var ErrArgumentCount = errors.New("argument count mismatch")

// Template is a key prefix with ${name} placeholders and an ordered list of
// declared parameter names. Templates are immutable.
type Template struct {
	raw    string
	params []string
}

// NewTemplate returns a template. params name the placeholders that are
// filled from arguments, in argument order.
func NewTemplate(raw string, params ...string) Template {
	return Template{raw: raw, params: slices.Clone(params)}
}

// String returns the unresolved template.
func (t Template) String() string {
	return t.raw
}

// Params returns the declared parameter names.
func (t Template) Params() []string {
	return slices.Clone(t.params)
}

// Resolve substitutes every placeholder. Declared parameters take the
// matching argument; other placeholders are looked up as keys in ctx.
// A placeholder found in neither yields an UnresolvedPlaceholderError.
func (t Template) Resolve(args []string, ctx config.Node) (string, error) {
	if len(args) != len(t.params) {
		return "", fmt.Errorf("%w: template %q declares %d parameter(s), got %d", ErrArgumentCount, t.raw, len(t.params), len(args))
	}

	var reader config.Reader
	if ctx != nil {
		reader = config.NewReader(ctx)
	}

	// Substituted values are written once and never rescanned.
	var b strings.Builder
	s := t.raw
	for {
		start := strings.Index(s, "${")
		if start < 0 {
			break
		}
		end := strings.Index(s[start:], "}")
		if end < 0 {
			break
		}
		end += start

		value, err := t.lookup(s[start+2:end], args, ctx, reader)
		if err != nil {
			return "", err
		}
		b.WriteString(s[:start])
		b.WriteString(value)
		s = s[end+1:]
	}
	b.WriteString(s)
	return b.String(), nil
}

func (t Template) lookup(name string, args []string, ctx config.Node, reader config.Reader) (string, error) {
	if i := slices.Index(t.params, name); i >= 0 {
		return args[i], nil
	}
	if ctx != nil && ctx.ContainsKey(name) {
		return reader.GetString(name)
	}
	return "", &config.UnresolvedPlaceholderError{Template: t.raw, Placeholder: name}
}

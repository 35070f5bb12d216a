package cascade

import (
	"math/bits"
	"slices"
	"strings"
)

// Strategy turns a base name and the present variable values, in declared
// order, into candidate names ordered most specific first.
type Strategy interface {
	Expand(base string, values []string) []string
}

// StrategyFunc adapts a function to a Strategy.
type StrategyFunc func(base string, values []string) []string

// Expand implements Strategy.
func (f StrategyFunc) Expand(base string, values []string) []string {
	return f(base, values)
}

// Concat accumulates suffixes in declared order:
// app, {env, region} → [app-prod-us, app-prod, app].
func Concat(sep string) Strategy {
	return StrategyFunc(func(base string, values []string) []string {
		out := make([]string, 0, len(values)+1)
		name := base
		out = append(out, name)
		for _, v := range values {
			name = name + sep + v
			out = append(out, name)
		}
		slices.Reverse(out)
		return out
	})
}

// Suffix applies one suffix per variable, later variables first:
// app, {env, region} → [app-us, app-prod, app].
func Suffix(sep string) Strategy {
	return StrategyFunc(func(base string, values []string) []string {
		out := make([]string, 0, len(values)+1)
		for i := len(values) - 1; i >= 0; i-- {
			out = append(out, base+sep+values[i])
		}
		return append(out, base)
	})
}

// MaxCrossVariables bounds the values CrossProduct combines. Values past
// the limit are ignored.
const MaxCrossVariables = 10

// CrossProduct applies every subset of suffixes, larger subsets first and
// subsets containing later variables before earlier ones:
// app, {env, region} → [app-prod-us, app-us, app-prod, app].
// Only the first MaxCrossVariables values take part.
func CrossProduct(sep string) Strategy {
	return StrategyFunc(func(base string, values []string) []string {
		if len(values) > MaxCrossVariables {
			values = values[:MaxCrossVariables]
		}
		n := len(values)
		masks := make([]uint, 0, 1<<n)
		for m := uint(0); m < 1<<n; m++ {
			masks = append(masks, m)
		}
		slices.SortFunc(masks, func(a, b uint) int {
			if ca, cb := bits.OnesCount(a), bits.OnesCount(b); ca != cb {
				return cb - ca
			}
			switch {
			case a > b:
				return -1
			case a < b:
				return 1
			}
			return 0
		})

		out := make([]string, 0, len(masks))
		for _, m := range masks {
			var b strings.Builder
			b.WriteString(base)
			for i, v := range values {
				if m&(1<<i) != 0 {
					b.WriteString(sep)
					b.WriteString(v)
				}
			}
			out = append(out, b.String())
		}
		return out
	})
}

// None performs no cascading; the base name is the only candidate.
func None() Strategy {
	return StrategyFunc(func(base string, _ []string) []string {
		return []string{base}
	})
}

package property

import (
	"reflect"
	"sync"

	"github.com/dshills/strata/internal/config"
)

// Property is a live handle onto one configuration key.
// Handles for the same key and type share a cached value; each handle keeps
// its own default.
type Property[T any] struct {
	cell *cell[T]
	def  T
}

// Get returns a handle for key that yields def while the key is undefined.
func Get[T any](f *Factory, key string, def T) *Property[T] {
	return &Property[T]{cell: cellFor[T](f, key), def: def}
}

// Key returns the bound key.
func (p *Property[T]) Key() string {
	return p.cell.key
}

// Default returns the handle's default value.
func (p *Property[T]) Default() T {
	return p.def
}

// Get returns the current value, the last good value after a failed
// decode, or the default.
func (p *Property[T]) Get() T {
	st := p.cell.load()
	if !st.present {
		return p.def
	}
	return st.value
}

// Value returns the same value as Get along with the error of the most
// recent resolution, if any.
func (p *Property[T]) Value() (T, error) {
	st := p.cell.load()
	if !st.present {
		return p.def, st.err
	}
	return st.value, st.err
}

// Err returns the error of the most recent resolution, or nil.
func (p *Property[T]) Err() error {
	return p.cell.load().err
}

// IsSet reports whether the key currently resolves to a value.
func (p *Property[T]) IsSet() bool {
	return p.cell.load().present
}

// Require returns the current value, ignoring the default. It fails with a
// KeyNotFoundError when the key is undefined.
func (p *Property[T]) Require() (T, error) {
	st := p.cell.load()
	if st.err != nil {
		return st.value, st.err
	}
	if !st.present {
		var zero T
		return zero, &config.KeyNotFoundError{Key: p.cell.key}
	}
	return st.value, nil
}

// OnChange registers fn to run with the new value whenever the value seen
// through this handle changes. It returns a function that removes fn.
func (p *Property[T]) OnChange(fn func(T)) func() {
	var mu sync.Mutex
	last := p.Get()
	return p.cell.watch(func() {
		cur := p.Get()
		mu.Lock()
		changed := !reflect.DeepEqual(last, cur)
		last = cur
		mu.Unlock()
		if changed {
			fn(cur)
		}
	})
}

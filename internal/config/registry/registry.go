// Package registry holds named instances that configuration can select
// by name.
//
// When a bound field has an interface type, the configured value names
// the implementation to inject:
//
//	reg := registry.New()
//	reg.MustRegister("memory", func() (any, error) { return cache.NewMemory(), nil })
//	reg.MustRegister("redis", newRedisCache)
//	// cache.impl=redis selects the redis factory when binding.
package registry

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"
)

var (
	// ErrAlreadyRegistered indicates a name is already taken.
	ErrAlreadyRegistered = errors.New("instance already registered")

	// ErrNotRegistered indicates no instance is registered under a name.
	ErrNotRegistered = errors.New("instance not registered")

	// ErrTypeMismatch indicates the instance does not have the requested type.
	ErrTypeMismatch = errors.New("instance type mismatch")
)

// Factory creates an instance.
type Factory func() (any, error)

type entry struct {
	factory   Factory
	singleton bool

	once     sync.Once
	instance any
	err      error
}

func (e *entry) get() (any, error) {
	if !e.singleton {
		return e.factory()
	}
	e.once.Do(func() {
		e.instance, e.err = e.factory()
	})
	return e.instance, e.err
}

// Registry maps names to instance factories.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Register adds a factory invoked on every Resolve.
func (r *Registry) Register(name string, factory Factory) error {
	return r.add(name, &entry{factory: factory})
}

// RegisterSingleton adds a factory invoked once; later resolutions reuse
// its result.
func (r *Registry) RegisterSingleton(name string, factory Factory) error {
	return r.add(name, &entry{factory: factory, singleton: true})
}

// RegisterInstance adds a ready-made instance.
func (r *Registry) RegisterInstance(name string, instance any) error {
	return r.add(name, &entry{factory: func() (any, error) { return instance, nil }, singleton: true})
}

// MustRegister registers a factory and panics on error.
// Useful for wiring implementations at init time.
func (r *Registry) MustRegister(name string, factory Factory) {
	if err := r.Register(name, factory); err != nil {
		panic(err)
	}
}

func (r *Registry) add(name string, e *entry) error {
	if e.factory == nil {
		return fmt.Errorf("registry: nil factory for %q", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[name]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, name)
	}
	r.entries[name] = e
	return nil
}

// Has checks if a name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.entries[name]
	return exists
}

// Names returns all registered names sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]string, 0, len(r.entries))
	for name := range r.entries {
		result = append(result, name)
	}
	sort.Strings(result)
	return result
}

// Resolve returns the instance registered under name.
func (r *Registry) Resolve(name string) (any, error) {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, name)
	}

	instance, err := e.get()
	if err != nil {
		return nil, fmt.Errorf("registry: create %s: %w", name, err)
	}
	return instance, nil
}

// ResolveType returns the instance registered under name, checking that it
// is assignable to typ.
func (r *Registry) ResolveType(name string, typ reflect.Type) (reflect.Value, error) {
	instance, err := r.Resolve(name)
	if err != nil {
		return reflect.Value{}, err
	}
	v := reflect.ValueOf(instance)
	if !v.IsValid() || !v.Type().AssignableTo(typ) {
		return reflect.Value{}, fmt.Errorf("%w: %s is %T, want %s", ErrTypeMismatch, name, instance, typ)
	}
	return v, nil
}

// Resolve returns the instance registered under name as a T.
func Resolve[T any](r *Registry, name string) (T, error) {
	var zero T
	v, err := r.ResolveType(name, reflect.TypeFor[T]())
	if err != nil {
		return zero, err
	}
	return v.Interface().(T), nil
}

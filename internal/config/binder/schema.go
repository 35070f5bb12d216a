package binder

import "github.com/dshills/strata/internal/config/property"

// Schema lists the bindable fields of T explicitly, without reflection.
//
//	schema := binder.NewSchema[Server]()
//	binder.Add(schema, "port", func(s *Server, v int) { s.Port = v })
//	binder.AddNamed(schema, "store", func(s *Server, v Store) { s.Store = v })
//	err := b.Bind(schema.For(&srv), binder.NewTemplate("server"))
type Schema[T any] struct {
	fields []func(*T) Field
}

// NewSchema returns an empty schema.
func NewSchema[T any]() *Schema[T] {
	return &Schema[T]{}
}

// Add declares a field decoded as V.
func Add[T, V any](s *Schema[T], name string, set func(*T, V)) *Schema[T] {
	s.fields = append(s.fields, func(target *T) Field {
		return Value(name, func(v V) { set(target, v) })
	})
	return s
}

// AddNamed declares a field whose value names a registry instance of type V.
func AddNamed[T, V any](s *Schema[T], name string, set func(*T, V)) *Schema[T] {
	s.fields = append(s.fields, func(target *T) Field {
		return Named(name, func(v V) { set(target, v) })
	})
	return s
}

// AddProperty declares a field holding a live property handle.
func AddProperty[T, V any](s *Schema[T], name string, def V, set func(*T, *property.Property[V])) *Schema[T] {
	s.fields = append(s.fields, func(target *T) Field {
		return PropertyField(name, def, func(p *property.Property[V]) { set(target, p) })
	})
	return s
}

// Fields returns the schema's fields bound to target.
func (s *Schema[T]) Fields(target *T) []Field {
	out := make([]Field, len(s.fields))
	for i, f := range s.fields {
		out[i] = f(target)
	}
	return out
}

// For returns target as a Bindable using the schema's fields.
func (s *Schema[T]) For(target *T) Bindable {
	return bindableFunc(func() []Field { return s.Fields(target) })
}

type bindableFunc func() []Field

func (f bindableFunc) ConfigFields() []Field { return f() }

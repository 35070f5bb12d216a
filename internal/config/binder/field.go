package binder

import (
	"fmt"
	"reflect"

	"github.com/dshills/strata/internal/config"
	"github.com/dshills/strata/internal/config/property"
	"github.com/dshills/strata/internal/config/registry"
)

// Field is one bindable field. Name is the key relative to the bound prefix.
type Field struct {
	Name string

	// always marks fields assigned even when their key is undefined.
	always bool
	assign func(s *session, key string) error
}

// Bindable is implemented by targets that enumerate their own fields.
type Bindable interface {
	ConfigFields() []Field
}

// session carries what field assignment needs for one bind.
type session struct {
	node     *config.PrefixedNode
	decoders *property.Decoders
	registry *registry.Registry
	factory  *property.Factory
}

// Value returns a field that decodes the key's value as T and passes it to set.
func Value[T any](name string, set func(T)) Field {
	return Field{Name: name, assign: func(s *session, key string) error {
		raw, err := s.node.Get(key)
		if err != nil {
			return err
		}
		v, err := property.DecodeAs[T](s.decoders, raw)
		if err != nil {
			return &config.TypeCoercionError{Key: key, Value: raw, Target: reflect.TypeFor[T]().String(), Err: err}
		}
		set(v)
		return nil
	}}
}

// Named returns a field whose value names an instance in the binder's
// registry. The resolved instance is passed to set.
func Named[T any](name string, set func(T)) Field {
	return Field{Name: name, assign: func(s *session, key string) error {
		if s.registry == nil {
			return fmt.Errorf("no registry configured for named field")
		}
		instance, err := s.node.GetString(key)
		if err != nil {
			return err
		}
		v, err := registry.Resolve[T](s.registry, instance)
		if err != nil {
			return err
		}
		set(v)
		return nil
	}}
}

// Func returns a field that passes the interpolated raw value to fn.
func Func(name string, fn func(raw any) error) Field {
	return Field{Name: name, assign: func(s *session, key string) error {
		raw, err := s.node.Get(key)
		if err != nil {
			return err
		}
		return fn(raw)
	}}
}

// PropertyField returns a field that receives a live property handle for
// the key. The handle is assigned whether or not the key is defined.
func PropertyField[T any](name string, def T, set func(*property.Property[T])) Field {
	return Field{Name: name, always: true, assign: func(s *session, key string) error {
		if s.factory == nil {
			return fmt.Errorf("no property factory configured for property field")
		}
		set(property.Get(s.factory, s.node.FullKey(key), def))
		return nil
	}}
}

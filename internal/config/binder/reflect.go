package binder

import (
	"encoding"
	"fmt"
	"reflect"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/dshills/strata/internal/config"
)

// TagName is the struct tag read by Reflect.
const TagName = "cfg"

// Reflect discovers the fields of target, which must be a pointer to a
// struct. Exported fields bind to the key named by their `cfg` tag, or to
// the field name with a lowercase first letter. A tag of "-" skips the
// field. Nested structs bind beneath their own name. Interface-typed fields
// are resolved by name through the registry.
func Reflect(target any) ([]Field, error) {
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Pointer || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return nil, fmt.Errorf("binder: target must be a non-nil pointer to a struct, got %T", target)
	}
	return reflectStruct(v.Elem(), ""), nil
}

var (
	timeType            = reflect.TypeFor[time.Time]()
	textUnmarshalerType = reflect.TypeFor[encoding.TextUnmarshaler]()
)

func reflectStruct(sv reflect.Value, prefix string) []Field {
	var fields []Field
	st := sv.Type()
	for i := range st.NumField() {
		sf := st.Field(i)
		if !sf.IsExported() {
			continue
		}
		name, skip := fieldKey(sf)
		if skip {
			continue
		}
		if prefix != "" {
			name = prefix + "." + name
		}

		fv := sv.Field(i)
		switch {
		case sf.Type.Kind() == reflect.Struct && sf.Type != timeType && !hasTextUnmarshaler(sf.Type):
			fields = append(fields, reflectStruct(fv, name)...)
		case sf.Type.Kind() == reflect.Interface:
			fields = append(fields, namedReflectField(name, fv))
		default:
			fields = append(fields, valueReflectField(name, fv))
		}
	}
	return fields
}

func fieldKey(sf reflect.StructField) (string, bool) {
	tag := sf.Tag.Get(TagName)
	if tag == "-" {
		return "", true
	}
	if name, _, _ := strings.Cut(tag, ","); name != "" {
		return name, false
	}
	return lowerFirst(sf.Name), false
}

func lowerFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToLower(r)) + s[size:]
}

func hasTextUnmarshaler(t reflect.Type) bool {
	return reflect.PointerTo(t).Implements(textUnmarshalerType)
}

func valueReflectField(name string, fv reflect.Value) Field {
	return Field{Name: name, assign: func(s *session, key string) error {
		raw, err := s.node.Get(key)
		if err != nil {
			return err
		}
		decoded, err := s.decoders.Decode(raw, fv.Type())
		if err != nil {
			return &config.TypeCoercionError{Key: key, Value: raw, Target: fv.Type().String(), Err: err}
		}
		fv.Set(reflect.ValueOf(decoded))
		return nil
	}}
}

func namedReflectField(name string, fv reflect.Value) Field {
	return Field{Name: name, assign: func(s *session, key string) error {
		if s.registry == nil {
			return fmt.Errorf("no registry configured for interface field")
		}
		instance, err := s.node.GetString(key)
		if err != nil {
			return err
		}
		v, err := s.registry.ResolveType(instance, fv.Type())
		if err != nil {
			return err
		}
		fv.Set(v)
		return nil
	}}
}

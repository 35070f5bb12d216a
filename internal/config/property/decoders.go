package property

import (
	"encoding"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/dshills/strata/internal/config"
)

// DecodeFunc converts a raw configuration value to a typed value.
type DecodeFunc func(raw any) (any, error)

// Decoders maps target types to decode functions.
//
// Lookup order for a type: a registered function, direct assignment when
// the raw value already has the type, encoding.TextUnmarshaler, basic kinds
// (including named types such as `type Level string`), then slices of any
// decodable element type split from comma-separated strings.
type Decoders struct {
	mu    sync.RWMutex
	funcs map[reflect.Type]DecodeFunc
}

var textUnmarshalerType = reflect.TypeFor[encoding.TextUnmarshaler]()

// NewDecoders returns a registry holding the built-in decoders.
func NewDecoders() *Decoders {
	d := &Decoders{funcs: make(map[reflect.Type]DecodeFunc)}
	Register(d, config.ToString)
	Register(d, config.ToInt)
	Register(d, config.ToInt64)
	Register(d, config.ToFloat64)
	Register(d, config.ToBool)
	Register(d, config.ToDuration)
	Register(d, config.ToStringSlice)
	Register(d, func(raw any) (time.Time, error) {
		if t, ok := raw.(time.Time); ok {
			return t, nil
		}
		s, err := config.ToString(raw)
		if err != nil {
			return time.Time{}, err
		}
		return time.Parse(time.RFC3339, s)
	})
	return d
}

// Register installs fn as the decoder for T, replacing any previous one.
func Register[T any](d *Decoders, fn func(raw any) (T, error)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.funcs[reflect.TypeFor[T]()] = func(raw any) (any, error) {
		return fn(raw)
	}
}

// Has reports whether a value of typ can be decoded.
func (d *Decoders) Has(typ reflect.Type) bool {
	d.mu.RLock()
	_, ok := d.funcs[typ]
	d.mu.RUnlock()
	if ok {
		return true
	}
	if reflect.PointerTo(typ).Implements(textUnmarshalerType) {
		return true
	}
	switch typ.Kind() {
	case reflect.String, reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	case reflect.Slice:
		return d.Has(typ.Elem())
	}
	return false
}

// Decode converts raw to a value of typ.
func (d *Decoders) Decode(raw any, typ reflect.Type) (any, error) {
	d.mu.RLock()
	fn, ok := d.funcs[typ]
	d.mu.RUnlock()
	if ok {
		return fn(raw)
	}

	if raw != nil && reflect.TypeOf(raw) == typ {
		return raw, nil
	}

	if ptr := reflect.PointerTo(typ); ptr.Implements(textUnmarshalerType) {
		s, err := config.ToString(raw)
		if err != nil {
			return nil, err
		}
		v := reflect.New(typ)
		if err := v.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(s)); err != nil {
			return nil, err
		}
		return v.Elem().Interface(), nil
	}

	return d.decodeKind(raw, typ)
}

func (d *Decoders) decodeKind(raw any, typ reflect.Type) (any, error) {
	out := reflect.New(typ).Elem()
	switch typ.Kind() {
	case reflect.String:
		s, err := config.ToString(raw)
		if err != nil {
			return nil, err
		}
		out.SetString(s)
	case reflect.Bool:
		b, err := config.ToBool(raw)
		if err != nil {
			return nil, err
		}
		out.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := config.ToInt64(raw)
		if err != nil {
			return nil, err
		}
		if out.OverflowInt(n) {
			return nil, fmt.Errorf("%d overflows %s", n, typ)
		}
		out.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := config.ToInt64(raw)
		if err != nil {
			return nil, err
		}
		if n < 0 || out.OverflowUint(uint64(n)) {
			return nil, fmt.Errorf("%d overflows %s", n, typ)
		}
		out.SetUint(uint64(n))
	case reflect.Float32, reflect.Float64:
		f, err := config.ToFloat64(raw)
		if err != nil {
			return nil, err
		}
		out.SetFloat(f)
	case reflect.Slice:
		items, err := config.ToStringSlice(raw)
		if err != nil {
			return nil, err
		}
		out = reflect.MakeSlice(typ, 0, len(items))
		for _, item := range items {
			v, err := d.Decode(item, typ.Elem())
			if err != nil {
				return nil, fmt.Errorf("element %q: %w", item, err)
			}
			out = reflect.Append(out, reflect.ValueOf(v))
		}
	default:
		return nil, fmt.Errorf("no decoder for %s", typ)
	}
	return out.Interface(), nil
}

// DecodeAs converts raw to T using d.
func DecodeAs[T any](d *Decoders, raw any) (T, error) {
	var zero T
	v, err := d.Decode(raw, reflect.TypeFor[T]())
	if err != nil {
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("decoder returned %T, want %s", v, reflect.TypeFor[T]())
	}
	return typed, nil
}

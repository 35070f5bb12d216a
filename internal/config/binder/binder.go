// Package binder maps configuration subtrees onto structured values.
//
// Binding runs in three steps. The prefix template is resolved, filling
// ${name} placeholders from declared parameters and then from configuration
// keys. The target's fields are enumerated through a Schema, the Bindable
// interface, or struct tags. Each field whose key exists under the prefix
// is decoded and assigned; missing keys leave fields untouched.
//
//	type Pool struct {
//	    Size    int           `cfg:"size"`
//	    Timeout time.Duration `cfg:"timeout"`
//	}
//
//	b := binder.New(root)
//	var p Pool
//	err := b.Bind(&p, binder.NewTemplate("db.${name}.pool", "name"), "orders")
//
// Every field failure of one bind is collected into a single
// config.MappingError.
package binder

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/dshills/strata/internal/config"
	"github.com/dshills/strata/internal/config/property"
	"github.com/dshills/strata/internal/config/registry"
)

// Binder assigns configuration values to fields.
type Binder struct {
	src      config.Node
	decoders *property.Decoders
	registry *registry.Registry
	factory  *property.Factory
	logger   *slog.Logger
}

// Option configures a Binder.
type Option func(*Binder)

// WithDecoders sets the decoder registry used for field values.
func WithDecoders(d *property.Decoders) Option {
	return func(b *Binder) {
		if d != nil {
			b.decoders = d
		}
	}
}

// WithRegistry sets the registry used for named and interface fields.
func WithRegistry(r *registry.Registry) Option {
	return func(b *Binder) { b.registry = r }
}

// WithFactory sets the factory used for property fields. Its decoders
// become the binder's decoders unless WithDecoders is also given.
func WithFactory(f *property.Factory) Option {
	return func(b *Binder) { b.factory = f }
}

// WithLogger sets the binder logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Binder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// New returns a Binder reading from src.
func New(src config.Node, opts ...Option) *Binder {
	b := &Binder{src: src, logger: slog.Default()}
	for _, opt := range opts {
		opt(b)
	}
	if b.decoders == nil {
		if b.factory != nil {
			b.decoders = b.factory.Decoders()
		} else {
			b.decoders = property.NewDecoders()
		}
	}
	b.logger = b.logger.With("component", "binder")
	return b
}

// ResolvePrefix resolves tmpl with args against the binder's source.
func (b *Binder) ResolvePrefix(tmpl Template, args ...string) (string, error) {
	return tmpl.Resolve(args, b.src)
}

// Bind assigns every field of target found under the resolved prefix.
// target is either a Bindable or a pointer to a struct.
func (b *Binder) Bind(target any, tmpl Template, args ...string) error {
	prefix, err := b.ResolvePrefix(tmpl, args...)
	if err != nil {
		return err
	}
	fields, err := discover(target)
	if err != nil {
		return err
	}
	return b.bind(fmt.Sprintf("%T", target), prefix, fields, nil)
}

// BindFields assigns fields found under prefix.
func (b *Binder) BindFields(prefix string, fields ...Field) error {
	return b.bind(prefix, prefix, fields, nil)
}

func discover(target any) ([]Field, error) {
	if bindable, ok := target.(Bindable); ok {
		return bindable.ConfigFields(), nil
	}
	return Reflect(target)
}

// bind assigns fields under prefix. A non-nil only restricts assignment to
// the fields whose names it contains.
func (b *Binder) bind(target, prefix string, fields []Field, only *config.KeySet) error {
	s := &session{
		node:     config.Prefixed(b.src, prefix),
		decoders: b.decoders,
		registry: b.registry,
		factory:  b.factory,
	}

	var failures []*config.FieldError
	for _, f := range fields {
		if only != nil && !only.Has(f.Name) {
			continue
		}
		if !f.always && !s.node.ContainsKey(f.Name) {
			continue
		}
		if err := f.assign(s, f.Name); err != nil {
			failures = append(failures, &config.FieldError{Field: f.Name, Key: s.node.FullKey(f.Name), Err: err})
		}
	}

	if len(failures) > 0 {
		return &config.MappingError{Target: target, Fields: failures}
	}
	return nil
}

// Binding is a live binding created by Watch.
type Binding struct {
	prefix string
	sub    *config.Subscription

	mu      sync.Mutex
	lastErr error
}

// Prefix returns the resolved prefix.
func (bd *Binding) Prefix() string {
	return bd.prefix
}

// Err returns the error of the most recent rebind, or nil.
func (bd *Binding) Err() error {
	bd.mu.Lock()
	defer bd.mu.Unlock()
	return bd.lastErr
}

// Close stops updating the target.
func (bd *Binding) Close() {
	bd.sub.Unsubscribe()
}

// Watch binds target once and then re-assigns fields whenever their keys
// change. The prefix is resolved once. The initial bind error, if any, is
// returned together with the binding. Updates run on the goroutine that
// made the change; callers must synchronize access to target.
func (b *Binder) Watch(target any, tmpl Template, args ...string) (*Binding, error) {
	prefix, err := b.ResolvePrefix(tmpl, args...)
	if err != nil {
		return nil, err
	}
	fields, err := discover(target)
	if err != nil {
		return nil, err
	}
	name := fmt.Sprintf("%T", target)

	bd := &Binding{prefix: prefix}
	bindErr := b.bind(name, prefix, fields, nil)
	bd.lastErr = bindErr

	view := config.Prefixed(b.src, prefix)
	bd.sub = view.AddListener(config.ListenerFunc(func(ev config.Event) {
		if ev.Kind == config.EventError {
			return
		}
		var only *config.KeySet
		if !ev.Keys.Unknown() {
			only = &ev.Keys
		}
		err := b.bind(name, prefix, fields, only)
		if err != nil {
			b.logger.Warn("rebind failed", "prefix", prefix, "error", err)
		}
		bd.mu.Lock()
		bd.lastErr = err
		bd.mu.Unlock()
	}))
	if bd.sub == nil {
		return nil, fmt.Errorf("binder: source %T does not report changes", b.src)
	}
	return bd, bindErr
}

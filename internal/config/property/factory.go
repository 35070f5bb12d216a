// Package property provides live, typed handles onto configuration keys.
//
// A Factory wraps an observable configuration source. Handles obtained with
// Get share one cached decode per key and type; a change to the key, or to
// any key its value interpolates, marks the cache stale and the next read
// re-resolves it.
//
//	f := property.NewFactory(root)
//	timeout := property.Get(f, "client.timeout", 5*time.Second)
//	d := timeout.Get() // cached until client.timeout changes
package property

import (
	"log/slog"
	"reflect"
	"sync"

	"github.com/dshills/strata/internal/config"
	"github.com/dshills/strata/internal/config/notify"
)

// Source is a configuration view that reports its changes.
type Source interface {
	config.Node
	config.Observable
}

// Observer receives property resolution statistics.
type Observer interface {
	PropertyResolved(key string)
	PropertyCacheHit(key string)
	PropertyDecodeFailed(key string, err error)
}

type nopObserver struct{}

func (nopObserver) PropertyResolved(string)            {}
func (nopObserver) PropertyCacheHit(string)            {}
func (nopObserver) PropertyDecodeFailed(string, error) {}

type cellKey struct {
	key string
	typ reflect.Type
}

// invalidator is implemented by every cell regardless of its type.
type invalidator interface {
	invalidate()
	close()
}

// Factory creates and caches property handles for a Source.
type Factory struct {
	src      Source
	reader   config.Reader
	decoders *Decoders
	observer Observer
	logger   *slog.Logger

	notifier *notify.Notifier
	sub      *config.Subscription

	mu    sync.Mutex
	cells map[cellKey]invalidator
}

// Option configures a Factory.
type Option func(*Factory)

// WithDecoders sets the decoder registry. The default is NewDecoders().
func WithDecoders(d *Decoders) Option {
	return func(f *Factory) {
		if d != nil {
			f.decoders = d
		}
	}
}

// WithObserver sets the observer notified of resolutions and cache hits.
func WithObserver(o Observer) Option {
	return func(f *Factory) {
		if o != nil {
			f.observer = o
		}
	}
}

// WithLogger sets the factory logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Factory) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// NewFactory returns a Factory reading from src.
func NewFactory(src Source, opts ...Option) *Factory {
	f := &Factory{
		src:      src,
		reader:   config.NewReader(src),
		decoders: NewDecoders(),
		observer: nopObserver{},
		logger:   slog.Default(),
		cells:    make(map[cellKey]invalidator),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = f.logger.With("component", "property")
	f.notifier = notify.New(notify.WithLogger(f.logger))
	f.sub = src.AddListener(config.ListenerFunc(f.route))
	return f
}

// Decoders returns the factory's decoder registry.
func (f *Factory) Decoders() *Decoders {
	return f.decoders
}

// Source returns the configuration the factory reads.
func (f *Factory) Source() Source {
	return f.src
}

// Close detaches the factory from its source. Existing handles keep their
// last resolved values and no longer observe changes.
func (f *Factory) Close() {
	f.sub.Unsubscribe()
	f.mu.Lock()
	cells := f.cells
	f.cells = make(map[cellKey]invalidator)
	f.mu.Unlock()
	for _, c := range cells {
		c.close()
	}
	f.notifier.Close()
}

// route translates a source event into key-level notifications.
func (f *Factory) route(ev config.Event) {
	switch {
	case ev.Kind == config.EventError:
		f.logger.Debug("source reported error", "layer", ev.Name, "error", ev.Err)
	case ev.Keys.Unknown():
		f.notifier.NotifyReload(ev.Name)
	default:
		batch := f.notifier.NewBatch()
		for _, key := range ev.Keys.Keys() {
			if f.src.ContainsKey(key) {
				batch.Set(key, ev.Name)
			} else {
				batch.Delete(key, ev.Name)
			}
		}
		batch.Commit()
	}
}

// cellFor returns the shared cell for key and T, creating it on first use.
func cellFor[T any](f *Factory, key string) *cell[T] {
	k := cellKey{key: key, typ: reflect.TypeFor[T]()}

	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.cells[k]; ok {
		return c.(*cell[T])
	}
	c := newCell[T](f, key)
	f.cells[k] = c
	return c
}

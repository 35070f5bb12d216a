package property

import (
	"errors"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/dshills/strata/internal/config"
	"github.com/dshills/strata/internal/config/notify"
)

// cellState is an immutable resolution result.
type cellState[T any] struct {
	version uint64
	value   T
	present bool
	err     error
}

// cell caches the decoded value of one key for one type.
type cell[T any] struct {
	f   *Factory
	key string

	version atomic.Uint64
	state   atomic.Pointer[cellState[T]]

	mu       sync.Mutex
	subs     map[string]*notify.Subscription
	watchers map[uint64]func()
	nextID   uint64
}

func newCell[T any](f *Factory, key string) *cell[T] {
	c := &cell[T]{
		f:        f,
		key:      key,
		subs:     make(map[string]*notify.Subscription),
		watchers: make(map[uint64]func()),
	}
	c.subs[key] = f.notifier.SubscribeKey(key, func(notify.Change) { c.invalidate() })
	return c
}

// load returns the current state, resolving it if stale.
func (c *cell[T]) load() *cellState[T] {
	ver := c.version.Load()
	st := c.state.Load()
	if st != nil && st.version == ver {
		c.f.observer.PropertyCacheHit(c.key)
		return st
	}
	return c.resolve(ver, st)
}

func (c *cell[T]) resolve(ver uint64, prev *cellState[T]) *cellState[T] {
	c.f.observer.PropertyResolved(c.key)

	next := &cellState[T]{version: ver}
	raw, refs, err := c.f.reader.Resolve(c.key)
	c.track(refs)

	switch {
	case errors.Is(err, config.ErrKeyNotFound):
	case err != nil:
		next.err = err
	default:
		v, derr := DecodeAs[T](c.f.decoders, raw)
		if derr != nil {
			next.err = &config.DecodeError{Key: c.key, Type: reflect.TypeFor[T]().String(), Err: derr}
		} else {
			next.value = v
			next.present = true
		}
	}

	if next.err != nil {
		c.f.observer.PropertyDecodeFailed(c.key, next.err)
		c.f.logger.Warn("property resolution failed", "key", c.key, "error", next.err)
		if prev != nil && prev.present {
			next.value = prev.value
			next.present = true
		}
	}

	// A newer resolution may have been stored meanwhile; keep it.
	if !c.state.CompareAndSwap(prev, next) {
		if cur := c.state.Load(); cur != nil && cur.version >= ver {
			return cur
		}
	}
	return next
}

// track subscribes to keys referenced through interpolation.
func (c *cell[T]) track(refs []string) {
	if len(refs) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ref := range refs {
		if _, ok := c.subs[ref]; ok || c.subs == nil {
			continue
		}
		c.subs[ref] = c.f.notifier.SubscribeKey(ref, func(notify.Change) { c.invalidate() })
	}
}

// invalidate marks the cached value stale and runs change watchers.
func (c *cell[T]) invalidate() {
	c.version.Add(1)

	c.mu.Lock()
	watchers := make([]func(), 0, len(c.watchers))
	for _, w := range c.watchers {
		watchers = append(watchers, w)
	}
	c.mu.Unlock()

	for _, w := range watchers {
		w()
	}
}

func (c *cell[T]) watch(fn func()) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	id := c.nextID
	c.watchers[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.watchers, id)
	}
}

func (c *cell[T]) close() {
	c.mu.Lock()
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()
	for _, s := range subs {
		s.Unsubscribe()
	}
}

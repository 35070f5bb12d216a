package config

import (
	"sync"
	"sync/atomic"
)

// Settable is a mutable node, typically installed as the highest-precedence
// layer for programmatic overrides. Every change notifies listeners before
// the mutating call returns.
type Settable struct {
	Reader

	mu        sync.Mutex
	data      atomic.Pointer[map[string]any]
	listeners Listeners
}

// NewSettable returns an empty Settable.
func NewSettable() *Settable {
	s := &Settable{}
	empty := map[string]any{}
	s.data.Store(&empty)
	s.Reader = NewReader(s)
	return s
}

func (s *Settable) current() map[string]any {
	return *s.data.Load()
}

// Raw implements Node.
func (s *Settable) Raw(key string) (any, bool) {
	v, ok := s.current()[key]
	return v, ok
}

// ContainsKey implements Node.
func (s *Settable) ContainsKey(key string) bool {
	_, ok := s.current()[key]
	return ok
}

// Keys implements Node. Keys are returned sorted.
func (s *Settable) Keys() []string {
	return sortedKeys(s.current())
}

// IsEmpty implements Node.
func (s *Settable) IsEmpty() bool {
	return len(s.current()) == 0
}

// Snapshot returns a copy of the current values.
func (s *Settable) Snapshot() map[string]any {
	return cloneFlat(s.current())
}

// AddListener implements Observable.
func (s *Settable) AddListener(l Listener) *Subscription {
	return s.listeners.Add(l)
}

// SetProperty sets key to value. A nil value clears the key.
func (s *Settable) SetProperty(key string, value any) {
	s.SetProperties(map[string]any{key: value})
}

// SetProperties sets every entry of values and emits a single update event
// for the keys that actually changed. Nested maps are flattened and nil
// values clear their key.
func (s *Settable) SetProperties(values map[string]any) {
	flat := FlattenMap(values)
	s.mutate(func(next map[string]any) {
		for k, v := range flat {
			if v == nil {
				delete(next, k)
			} else {
				next[k] = v
			}
		}
	})
}

// ClearProperty removes key.
func (s *Settable) ClearProperty(key string) {
	s.mutate(func(next map[string]any) {
		delete(next, key)
	})
}

// Clear removes every key.
func (s *Settable) Clear() {
	s.mutate(func(next map[string]any) {
		clear(next)
	})
}

// mutate applies fn to a copy of the current values, publishes the copy and
// notifies listeners of the changed keys.
func (s *Settable) mutate(fn func(next map[string]any)) {
	s.mu.Lock()
	prev := s.current()
	next := cloneFlat(prev)
	fn(next)
	changed := DiffKeys(prev, next)
	if len(changed) == 0 {
		s.mu.Unlock()
		return
	}
	s.data.Store(&next)
	s.mu.Unlock()

	s.listeners.Dispatch(Event{Kind: EventUpdated, Node: s, Keys: NewKeySet(changed...)})
}

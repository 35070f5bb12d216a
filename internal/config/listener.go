package config

import (
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
)

// EventKind identifies what happened to a node.
type EventKind int

const (
	// EventAdded indicates a layer was added.
	EventAdded EventKind = iota + 1

	// EventRemoved indicates a layer was removed.
	EventRemoved

	// EventUpdated indicates values changed within a layer.
	EventUpdated

	// EventError indicates a failure while producing or delivering a change.
	EventError
)

// String returns the event kind name.
func (k EventKind) String() string {
	switch k {
	case EventAdded:
		return "added"
	case EventRemoved:
		return "removed"
	case EventUpdated:
		return "updated"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event describes a change delivered to listeners.
type Event struct {
	Kind EventKind

	// Node is the layer the event concerns.
	Node Node

	// Name is the layer name, when the event comes from a Composite.
	Name string

	// Keys holds the keys whose resolved values may have changed.
	Keys KeySet

	// Err is set for EventError.
	Err error
}

// Listener receives change notifications from an Observable node.
type Listener interface {
	OnAdded(node Node)
	OnRemoved(node Node)
	OnUpdated(node Node, keys KeySet)
	OnError(err error, node Node)
}

// EventHandler is implemented by listeners that want the whole Event.
// When a listener implements it, HandleEvent replaces the per-kind callbacks.
type EventHandler interface {
	HandleEvent(ev Event)
}

// NopListener implements Listener with no-op methods.
// Embed it to override only the callbacks you need.
type NopListener struct{}

// OnAdded implements Listener.
func (NopListener) OnAdded(Node) {}

// OnRemoved implements Listener.
func (NopListener) OnRemoved(Node) {}

// OnUpdated implements Listener.
func (NopListener) OnUpdated(Node, KeySet) {}

// OnError implements Listener.
func (NopListener) OnError(error, Node) {}

// ListenerFunc adapts a function to a Listener receiving tagged events.
type ListenerFunc func(ev Event)

// HandleEvent implements EventHandler.
func (f ListenerFunc) HandleEvent(ev Event) { f(ev) }

// OnAdded implements Listener.
func (f ListenerFunc) OnAdded(node Node) {
	f(Event{Kind: EventAdded, Node: node, Keys: keysOf(node)})
}

// OnRemoved implements Listener.
func (f ListenerFunc) OnRemoved(node Node) {
	f(Event{Kind: EventRemoved, Node: node, Keys: keysOf(node)})
}

// OnUpdated implements Listener.
func (f ListenerFunc) OnUpdated(node Node, keys KeySet) {
	f(Event{Kind: EventUpdated, Node: node, Keys: keys})
}

// OnError implements Listener.
func (f ListenerFunc) OnError(err error, node Node) {
	f(Event{Kind: EventError, Node: node, Err: err})
}

// Subscription represents an active listener registration.
type Subscription struct {
	id       uint64
	listener Listener
	active   atomic.Bool
	owner    *Listeners
}

// Unsubscribe removes the listener. It is safe to call more than once,
// and safe to call from inside a callback.
func (s *Subscription) Unsubscribe() {
	if s == nil || !s.active.CompareAndSwap(true, false) {
		return
	}
	if s.owner != nil {
		s.owner.remove(s.id)
	}
}

// Active reports whether the subscription still receives events.
func (s *Subscription) Active() bool {
	return s != nil && s.active.Load()
}

// Listeners is a registry of listeners with synchronous fan-out.
// The zero value is ready to use.
type Listeners struct {
	mu     sync.Mutex
	nextID uint64
	subs   atomic.Pointer[[]*Subscription]
	logger atomic.Pointer[slog.Logger]
}

// SetLogger sets the logger used to report listener panics.
func (l *Listeners) SetLogger(logger *slog.Logger) {
	l.logger.Store(logger)
}

// Add registers a listener.
func (l *Listeners) Add(listener Listener) *Subscription {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.nextID++
	sub := &Subscription{id: l.nextID, listener: listener, owner: l}
	sub.active.Store(true)

	var next []*Subscription
	if cur := l.subs.Load(); cur != nil {
		next = slices.Clone(*cur)
	}
	next = append(next, sub)
	l.subs.Store(&next)
	return sub
}

func (l *Listeners) remove(id uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cur := l.subs.Load()
	if cur == nil {
		return
	}
	next := slices.DeleteFunc(slices.Clone(*cur), func(s *Subscription) bool {
		return s.id == id
	})
	l.subs.Store(&next)
}

// Len returns the number of registered listeners.
func (l *Listeners) Len() int {
	if cur := l.subs.Load(); cur != nil {
		return len(*cur)
	}
	return 0
}

// Clear unsubscribes every listener.
func (l *Listeners) Clear() {
	l.mu.Lock()
	cur := l.subs.Swap(nil)
	l.mu.Unlock()
	if cur == nil {
		return
	}
	for _, s := range *cur {
		s.active.Store(false)
	}
}

// Dispatch delivers ev to every active listener on the calling goroutine.
// A listener that panics is reported to the remaining listeners through
// OnError and never stops delivery.
func (l *Listeners) Dispatch(ev Event) {
	cur := l.subs.Load()
	if cur == nil {
		return
	}
	subs := *cur

	type failure struct {
		sub *Subscription
		err error
	}
	var failures []failure

	for _, s := range subs {
		if !s.active.Load() {
			continue
		}
		if err := deliver(s.listener, ev); err != nil {
			l.log().Error("listener panicked", "kind", ev.Kind.String(), "layer", ev.Name, "error", err)
			if ev.Kind != EventError {
				failures = append(failures, failure{sub: s, err: err})
			}
		}
	}

	for _, f := range failures {
		errEv := Event{Kind: EventError, Node: ev.Node, Name: ev.Name, Keys: ev.Keys, Err: f.err}
		for _, s := range subs {
			if s == f.sub || !s.active.Load() {
				continue
			}
			if err := deliver(s.listener, errEv); err != nil {
				l.log().Error("error listener panicked", "layer", ev.Name, "error", err)
			}
		}
	}
}

func (l *Listeners) log() *slog.Logger {
	if lg := l.logger.Load(); lg != nil {
		return lg
	}
	return slog.Default()
}

// deliver invokes the callback matching ev.Kind, converting a panic to an error.
func deliver(listener Listener, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &ListenerPanicError{Kind: ev.Kind, Value: r}
		}
	}()

	if h, ok := listener.(EventHandler); ok {
		h.HandleEvent(ev)
		return nil
	}
	switch ev.Kind {
	case EventAdded:
		listener.OnAdded(ev.Node)
	case EventRemoved:
		listener.OnRemoved(ev.Node)
	case EventUpdated:
		listener.OnUpdated(ev.Node, ev.Keys)
	case EventError:
		listener.OnError(ev.Err, ev.Node)
	}
	return nil
}

func keysOf(n Node) KeySet {
	if n == nil {
		return NewKeySet()
	}
	return NewKeySet(n.Keys()...)
}

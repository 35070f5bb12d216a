// Package notify routes key-level configuration changes to observers.
//
// Observers subscribe to a key and also receive changes to keys beneath
// it, so a subscriber to "db" sees "db.host" and a subscriber to "" sees
// every key. Reload changes carry no key and reach every observer. The
// property factory uses a Notifier to invalidate exactly the handles bound
// to the keys that changed.
package notify

import (
	"log/slog"
	"sync"
)

// ChangeType represents the type of configuration change.
type ChangeType int

const (
	// ChangeSet indicates a key was added or its value changed.
	ChangeSet ChangeType = iota

	// ChangeDelete indicates a key was removed.
	ChangeDelete

	// ChangeReload indicates any key may have changed.
	ChangeReload
)

// String returns the change type name.
func (c ChangeType) String() string {
	switch c {
	case ChangeSet:
		return "set"
	case ChangeDelete:
		return "delete"
	case ChangeReload:
		return "reload"
	default:
		return "unknown"
	}
}

// Change represents a configuration change event.
type Change struct {
	// Key is the dotted key that changed. Empty for reload events.
	Key string

	// Type is the type of change.
	Type ChangeType

	// Layer names the layer the change came from, when known.
	Layer string
}

// Observer is called when configuration changes occur.
type Observer func(change Change)

// Subscription represents an active observer subscription.
type Subscription struct {
	id       uint64
	key      string
	notifier *Notifier
}

// Unsubscribe removes this subscription. It is safe to call more than once.
func (s *Subscription) Unsubscribe() {
	if s != nil && s.notifier != nil {
		s.notifier.unsubscribe(s.key, s.id)
	}
}

// Notifier manages key subscriptions. Delivery is synchronous on the
// notifying goroutine.
type Notifier struct {
	mu        sync.RWMutex
	observers map[string]map[uint64]Observer
	nextID    uint64
	closed    bool

	logger *slog.Logger
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithLogger sets the logger used to report observer panics.
func WithLogger(logger *slog.Logger) Option {
	return func(n *Notifier) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// New creates a new Notifier.
func New(opts ...Option) *Notifier {
	n := &Notifier{
		observers: make(map[string]map[uint64]Observer),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}
	n.logger = n.logger.With("component", "notify")
	return n
}

// SubscribeKey registers an observer for changes to key and to keys beneath it.
func (n *Notifier) SubscribeKey(key string, observer Observer) *Subscription {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.nextID
	n.nextID++

	if n.observers[key] == nil {
		n.observers[key] = make(map[uint64]Observer)
	}
	n.observers[key][id] = observer

	return &Subscription{id: id, key: key, notifier: n}
}

// Notify sends a change to every matching observer. It does nothing after
// Close.
func (n *Notifier) Notify(change Change) {
	n.mu.RLock()
	if n.closed {
		n.mu.RUnlock()
		return
	}

	var observers []Observer
	for key, keyObs := range n.observers {
		if change.Key != "" && key != change.Key && !isParentKey(key, change.Key) {
			continue
		}
		for _, obs := range keyObs {
			observers = append(observers, obs)
		}
	}
	n.mu.RUnlock()

	// Call observers outside the lock
	for _, obs := range observers {
		n.safeCall(obs, change)
	}
}

// NotifyReload tells every observer that any key may have changed.
func (n *Notifier) NotifyReload(layer string) {
	n.Notify(Change{Type: ChangeReload, Layer: layer})
}

// Close drops every subscription. Later notifications are ignored.
// It is safe to call Close multiple times.
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = true
	n.observers = make(map[string]map[uint64]Observer)
}

func (n *Notifier) unsubscribe(key string, id uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()

	observers, ok := n.observers[key]
	if !ok {
		return
	}
	delete(observers, id)
	if len(observers) == 0 {
		delete(n.observers, key)
	}
}

// safeCall invokes an observer, recovering from panics.
func (n *Notifier) safeCall(obs Observer, change Change) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("observer panicked", "key", change.Key, "type", change.Type.String(), "panic", r)
		}
	}()
	obs(change)
}

// isParentKey reports whether parent is a strict ancestor of child.
// "db" is a parent of "db.host"; "" is a parent of every key.
func isParentKey(parent, child string) bool {
	if len(parent) >= len(child) {
		return false
	}
	if parent == "" {
		return true
	}
	return child[:len(parent)] == parent && child[len(parent)] == '.'
}

// Batch collects changes and delivers them together on Commit.
type Batch struct {
	notifier *Notifier
	changes  []Change
	mu       sync.Mutex
}

// NewBatch creates a new batch for collecting changes.
func (n *Notifier) NewBatch() *Batch {
	return &Batch{notifier: n}
}

func (b *Batch) add(change Change) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.changes = append(b.changes, change)
}

// Set adds a set change to the batch.
func (b *Batch) Set(key, layer string) {
	b.add(Change{Key: key, Type: ChangeSet, Layer: layer})
}

// Delete adds a delete change to the batch.
func (b *Batch) Delete(key, layer string) {
	b.add(Change{Key: key, Type: ChangeDelete, Layer: layer})
}

// Commit sends all batched changes to observers and empties the batch.
func (b *Batch) Commit() {
	b.mu.Lock()
	changes := b.changes
	b.changes = nil
	b.mu.Unlock()

	for _, change := range changes {
		b.notifier.Notify(change)
	}
}

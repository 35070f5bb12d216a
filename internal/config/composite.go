package config

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
)

// layerEntry is a named node plus the subscription forwarding its changes.
type layerEntry struct {
	name string
	node Node
	sub  *Subscription
}

// Composite combines named layers into one view. Lookups walk the layers in
// order and the first layer defining a key wins.
//
// Reads use an immutable snapshot of the layer list and never block.
// Mutations are serialized and publish a new snapshot atomically.
type Composite struct {
	Reader

	name   string
	logger *slog.Logger

	mu        sync.Mutex
	layers    atomic.Pointer[[]layerEntry]
	listeners Listeners
}

// Option configures a Composite.
type Option func(*Composite)

// WithLogger sets the logger used for layer changes and listener failures.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Composite) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewComposite returns an empty Composite.
func NewComposite(name string, opts ...Option) *Composite {
	c := &Composite{
		name:   name,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "composite", "composite", name)
	c.listeners.SetLogger(c.logger)
	c.layers.Store(&[]layerEntry{})
	c.Reader = NewReader(c)
	return c
}

// Name returns the composite's name.
func (c *Composite) Name() string {
	return c.name
}

func (c *Composite) entries() []layerEntry {
	return *c.layers.Load()
}

// Raw implements Node by walking layers in precedence order.
func (c *Composite) Raw(key string) (any, bool) {
	for _, e := range c.entries() {
		if v, ok := e.node.Raw(key); ok {
			return v, true
		}
	}
	return nil, false
}

// ContainsKey implements Node.
func (c *Composite) ContainsKey(key string) bool {
	for _, e := range c.entries() {
		if e.node.ContainsKey(key) {
			return true
		}
	}
	return false
}

// Keys implements Node. Keys of higher-precedence layers come first; each
// key appears once.
func (c *Composite) Keys() []string {
	seen := make(map[string]struct{})
	var keys []string
	for _, e := range c.entries() {
		layerKeys := e.node.Keys()
		slices.Sort(layerKeys)
		for _, k := range layerKeys {
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
	}
	return keys
}

// IsEmpty implements Node.
func (c *Composite) IsEmpty() bool {
	for _, e := range c.entries() {
		if !e.node.IsEmpty() {
			return false
		}
	}
	return true
}

// WhichLayer returns the name of the layer that supplies key.
func (c *Composite) WhichLayer(key string) (string, bool) {
	for _, e := range c.entries() {
		if e.node.ContainsKey(key) {
			return e.name, true
		}
	}
	return "", false
}

// Node returns the layer registered under name.
func (c *Composite) Node(name string) (Node, bool) {
	for _, e := range c.entries() {
		if e.name == name {
			return e.node, true
		}
	}
	return nil, false
}

// Names returns layer names in precedence order.
func (c *Composite) Names() []string {
	entries := c.entries()
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.name
	}
	return names
}

// Layers returns the layers in precedence order.
func (c *Composite) Layers() []NamedNode {
	entries := c.entries()
	out := make([]NamedNode, len(entries))
	for i, e := range entries {
		out[i] = NamedNode{Name: e.name, Node: e.node}
	}
	return out
}

// Len returns the number of layers.
func (c *Composite) Len() int {
	return len(c.entries())
}

// AddListener implements Observable.
func (c *Composite) AddListener(l Listener) *Subscription {
	return c.listeners.Add(l)
}

// Add appends node at the lowest precedence.
func (c *Composite) Add(name string, node Node) error {
	return c.insert(-1, name, node)
}

// AddFirst inserts node at the highest precedence.
func (c *Composite) AddFirst(name string, node Node) error {
	return c.insert(0, name, node)
}

// AddAt inserts node at index, where 0 is the highest precedence and
// Len() is the lowest.
func (c *Composite) AddAt(index int, name string, node Node) error {
	if index < 0 {
		return fmt.Errorf("%w: index %d out of range", ErrInvalidLayer, index)
	}
	return c.insert(index, name, node)
}

func (c *Composite) insert(index int, name string, node Node) error {
	if node == nil {
		return fmt.Errorf("%w: nil node for %q", ErrInvalidLayer, name)
	}

	c.mu.Lock()
	index, err := c.insertLocked(index, name, node)
	c.mu.Unlock()
	if err != nil {
		return err
	}

	c.added(index, name, node)
	return nil
}

// insertLocked publishes a snapshot with node at index and returns the index
// used. c.mu must be held.
func (c *Composite) insertLocked(index int, name string, node Node) (int, error) {
	cur := c.entries()
	if slices.ContainsFunc(cur, func(e layerEntry) bool { return e.name == name }) {
		return 0, &DuplicateNameError{Name: name}
	}
	if index < 0 {
		index = len(cur)
	}
	if index > len(cur) {
		return 0, fmt.Errorf("%w: index %d out of range [0,%d]", ErrInvalidLayer, index, len(cur))
	}
	entry := layerEntry{name: name, node: node, sub: c.watch(name, node)}
	next := slices.Insert(slices.Clone(cur), index, entry)
	c.layers.Store(&next)
	return index, nil
}

func (c *Composite) added(index int, name string, node Node) {
	c.logger.Debug("layer added", "layer", name, "index", index)
	c.listeners.Dispatch(Event{Kind: EventAdded, Node: node, Name: name, Keys: keysOf(node)})
}

// Replace swaps the layer registered under name for node, keeping its
// position. Listeners receive an update event scoped to the keys whose values
// differ between the old and new node. A name that is not registered is
// appended at the lowest precedence.
func (c *Composite) Replace(name string, node Node) error {
	if node == nil {
		return fmt.Errorf("%w: nil node for %q", ErrInvalidLayer, name)
	}

	c.mu.Lock()
	cur := c.entries()
	idx := slices.IndexFunc(cur, func(e layerEntry) bool { return e.name == name })
	if idx < 0 {
		index, err := c.insertLocked(-1, name, node)
		c.mu.Unlock()
		if err != nil {
			return err
		}
		c.added(index, name, node)
		return nil
	}
	old := cur[idx]
	next := slices.Clone(cur)
	next[idx] = layerEntry{name: name, node: node, sub: c.watch(name, node)}
	c.layers.Store(&next)
	c.mu.Unlock()

	old.sub.Unsubscribe()
	changed := DiffKeys(snapshot(old.node), snapshot(node))
	c.logger.Debug("layer replaced", "layer", name, "changed", len(changed))
	if len(changed) == 0 {
		return nil
	}
	c.listeners.Dispatch(Event{Kind: EventUpdated, Node: node, Name: name, Keys: NewKeySet(changed...)})
	return nil
}

// Remove detaches the layer registered under name and returns it.
// Removing an unknown name does nothing.
func (c *Composite) Remove(name string) (Node, bool) {
	c.mu.Lock()
	cur := c.entries()
	idx := slices.IndexFunc(cur, func(e layerEntry) bool { return e.name == name })
	if idx < 0 {
		c.mu.Unlock()
		return nil, false
	}
	old := cur[idx]
	next := slices.Delete(slices.Clone(cur), idx, idx+1)
	c.layers.Store(&next)
	c.mu.Unlock()

	old.sub.Unsubscribe()
	c.logger.Debug("layer removed", "layer", name)
	c.listeners.Dispatch(Event{Kind: EventRemoved, Node: old.node, Name: name, Keys: keysOf(old.node)})
	return old.node, true
}

// watch subscribes to changes of an observable layer so they propagate to
// this composite's listeners.
func (c *Composite) watch(name string, node Node) *Subscription {
	obs, ok := node.(Observable)
	if !ok {
		return nil
	}
	return obs.AddListener(&layerForwarder{parent: c, name: name, node: node})
}

// layerForwarder re-dispatches a layer's events as events of the parent.
type layerForwarder struct {
	NopListener
	parent *Composite
	name   string
	node   Node
}

func (f *layerForwarder) HandleEvent(ev Event) {
	out := Event{Kind: EventUpdated, Node: f.node, Name: f.name, Keys: ev.Keys}
	if ev.Kind == EventError {
		out.Kind = EventError
		out.Err = ev.Err
	} else if out.Keys.Empty() {
		return
	}
	f.parent.listeners.Dispatch(out)
}

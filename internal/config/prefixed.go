package config

import "strings"

// PrefixedNode is a read-only view of the keys beneath a prefix.
// Keys are relative to the prefix; placeholders resolve through the parent.
type PrefixedNode struct {
	Reader
	parent Node
	prefix string
}

// Prefixed returns a view of the keys of parent that start with prefix + ".".
// An empty prefix yields a view of the whole parent.
func Prefixed(parent Node, prefix string) *PrefixedNode {
	p := &PrefixedNode{parent: parent, prefix: strings.TrimSuffix(prefix, ".")}
	p.Reader = NewScopedReader(p, parent)
	return p
}

// Prefix returns the view's prefix.
func (p *PrefixedNode) Prefix() string {
	return p.prefix
}

// FullKey returns the parent key for a key relative to the view.
func (p *PrefixedNode) FullKey(key string) string {
	if p.prefix == "" {
		return key
	}
	return p.prefix + "." + key
}

// Raw implements Node.
func (p *PrefixedNode) Raw(key string) (any, bool) {
	return p.parent.Raw(p.FullKey(key))
}

// ContainsKey implements Node.
func (p *PrefixedNode) ContainsKey(key string) bool {
	return p.parent.ContainsKey(p.FullKey(key))
}

// Keys implements Node.
func (p *PrefixedNode) Keys() []string {
	var keys []string
	for _, k := range p.parent.Keys() {
		if rel, ok := p.relative(k); ok {
			keys = append(keys, rel)
		}
	}
	return keys
}

// IsEmpty implements Node.
func (p *PrefixedNode) IsEmpty() bool {
	return len(p.Keys()) == 0
}

// AddListener implements Observable when the parent is observable. Events are
// filtered to keys under the prefix, which are reported relative to it.
func (p *PrefixedNode) AddListener(l Listener) *Subscription {
	obs, ok := p.parent.(Observable)
	if !ok {
		return nil
	}
	return obs.AddListener(&prefixFilter{view: p, target: l})
}

func (p *PrefixedNode) relative(key string) (string, bool) {
	if p.prefix == "" {
		return key, true
	}
	rest, ok := strings.CutPrefix(key, p.prefix+".")
	if !ok || rest == "" {
		return "", false
	}
	return rest, true
}

// prefixFilter narrows parent events to a prefixed view.
type prefixFilter struct {
	NopListener
	view   *PrefixedNode
	target Listener
}

func (f *prefixFilter) HandleEvent(ev Event) {
	out := Event{Kind: EventUpdated, Node: f.view, Name: ev.Name, Err: ev.Err}
	if ev.Kind == EventError {
		out.Kind = EventError
	} else if ev.Keys.Unknown() {
		out.Keys = AllKeys()
	} else {
		var keys []string
		for _, k := range ev.Keys.Keys() {
			if rel, ok := f.view.relative(k); ok {
				keys = append(keys, rel)
			}
		}
		if len(keys) == 0 {
			return
		}
		out.Keys = NewKeySet(keys...)
	}

	if h, ok := f.target.(EventHandler); ok {
		h.HandleEvent(out)
		return
	}
	if out.Kind == EventError {
		f.target.OnError(out.Err, out.Node)
		return
	}
	f.target.OnUpdated(out.Node, out.Keys)
}

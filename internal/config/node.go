package config

// Node is a source of configuration values keyed by dotted names.
// Values are kept in their original form and coerced when read.
type Node interface {
	// Raw returns the uninterpreted value stored for key.
	Raw(key string) (any, bool)

	// ContainsKey reports whether key is defined.
	ContainsKey(key string) bool

	// Keys returns every defined key.
	Keys() []string

	// IsEmpty reports whether the node defines no keys.
	IsEmpty() bool
}

// Observable is implemented by nodes whose contents change after creation.
type Observable interface {
	AddListener(l Listener) *Subscription
}

// NamedNode pairs a layer with its name inside a Composite.
type NamedNode struct {
	Name string
	Node Node
}

// snapshot copies every key of n into a flat map.
func snapshot(n Node) map[string]any {
	if n == nil {
		return map[string]any{}
	}
	keys := n.Keys()
	out := make(map[string]any, len(keys))
	for _, k := range keys {
		if v, ok := n.Raw(k); ok {
			out[k] = v
		}
	}
	return out
}

// Snapshot copies every key of n into a flat map of raw values.
func Snapshot(n Node) map[string]any {
	return snapshot(n)
}

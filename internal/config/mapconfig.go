package config

// MapConfig is an immutable node backed by a flat map.
type MapConfig struct {
	Reader
	data map[string]any
	keys []string
}

// NewMap returns a node holding data. Nested maps are flattened to dotted keys.
func NewMap(data map[string]any) *MapConfig {
	m := &MapConfig{data: FlattenMap(data)}
	m.keys = sortedKeys(m.data)
	m.Reader = NewReader(m)
	return m
}

// FromStrings returns a node holding string values.
func FromStrings(data map[string]string) *MapConfig {
	values := make(map[string]any, len(data))
	for k, v := range data {
		values[k] = v
	}
	return NewMap(values)
}

// Empty returns a node with no keys.
func Empty() *MapConfig {
	return NewMap(nil)
}

// Raw implements Node.
func (m *MapConfig) Raw(key string) (any, bool) {
	v, ok := m.data[key]
	return v, ok
}

// ContainsKey implements Node.
func (m *MapConfig) ContainsKey(key string) bool {
	_, ok := m.data[key]
	return ok
}

// Keys implements Node. Keys are returned sorted.
func (m *MapConfig) Keys() []string {
	return append([]string(nil), m.keys...)
}

// IsEmpty implements Node.
func (m *MapConfig) IsEmpty() bool {
	return len(m.data) == 0
}

// MapBuilder accumulates values for a MapConfig.
type MapBuilder struct {
	data map[string]any
}

// NewMapBuilder returns an empty builder.
func NewMapBuilder() *MapBuilder {
	return &MapBuilder{data: make(map[string]any)}
}

// Put sets key to value and returns the builder.
func (b *MapBuilder) Put(key string, value any) *MapBuilder {
	b.data[key] = value
	return b
}

// PutAll copies every entry of values into the builder.
func (b *MapBuilder) PutAll(values map[string]any) *MapBuilder {
	for k, v := range FlattenMap(values) {
		b.data[k] = v
	}
	return b
}

// Build returns a MapConfig holding the accumulated values.
func (b *MapBuilder) Build() *MapConfig {
	return NewMap(cloneFlat(b.data))
}

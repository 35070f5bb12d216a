package loader

import (
	"github.com/magiconair/properties"
)

// Properties parses Java-style .properties files: key=value or key: value
// pairs, '#' and '!' comments, and lines continued with a trailing
// backslash. Values are kept as strings. ${...} references are left for
// the configuration layer to interpolate.
type Properties struct{}

// Name implements Format.
func (Properties) Name() string { return "properties" }

// Extensions implements Format.
func (Properties) Extensions() []string { return []string{".properties"} }

// Parse implements Format.
func (Properties) Parse(data []byte) (map[string]any, error) {
	l := &properties.Loader{Encoding: properties.UTF8, DisableExpansion: true}
	p, err := l.LoadBytes(data)
	if err != nil {
		return nil, &ParseError{Format: "properties", Message: err.Error(), Err: err}
	}

	out := make(map[string]any, p.Len())
	for _, key := range p.Keys() {
		value, _ := p.Get(key)
		out[key] = value
	}
	return out, nil
}

package loader

import (
	"gopkg.in/yaml.v3"
)

// YAML parses YAML documents whose root is a mapping.
type YAML struct{}

// Name implements Format.
func (YAML) Name() string { return "yaml" }

// Extensions implements Format.
func (YAML) Extensions() []string { return []string{".yaml", ".yml"} }

// Parse implements Format.
func (YAML) Parse(data []byte) (map[string]any, error) {
	var out map[string]any
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, &ParseError{Format: "yaml", Message: err.Error(), Err: err}
	}
	return out, nil
}

package loader

import (
	"errors"

	"github.com/pelletier/go-toml/v2"
)

// TOML parses TOML documents.
type TOML struct{}

// Name implements Format.
func (TOML) Name() string { return "toml" }

// Extensions implements Format.
func (TOML) Extensions() []string { return []string{".toml"} }

// Parse implements Format.
func (TOML) Parse(data []byte) (map[string]any, error) {
	var out map[string]any
	if err := toml.Unmarshal(data, &out); err != nil {
		perr := &ParseError{Format: "toml", Message: err.Error(), Err: err}
		var de *toml.DecodeError
		if errors.As(err, &de) {
			perr.Line, perr.Column = de.Position()
		}
		return nil, perr
	}
	return out, nil
}

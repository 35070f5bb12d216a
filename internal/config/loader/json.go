package loader

import (
	"errors"
	"strings"

	"github.com/tidwall/gjson"
)

var errJSONRoot = errors.New("root must be an object")

// JSON parses JSON documents whose root is an object. Integral numbers
// decode as int64 and other numbers as float64.
type JSON struct{}

// Name implements Format.
func (JSON) Name() string { return "json" }

// Extensions implements Format.
func (JSON) Extensions() []string { return []string{".json"} }

// Parse implements Format.
func (JSON) Parse(data []byte) (map[string]any, error) {
	if !gjson.ValidBytes(data) {
		return nil, &ParseError{Format: "json", Message: "invalid JSON"}
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, &ParseError{Format: "json", Message: errJSONRoot.Error(), Err: errJSONRoot}
	}
	return jsonObject(root), nil
}

func jsonObject(r gjson.Result) map[string]any {
	out := make(map[string]any)
	r.ForEach(func(key, value gjson.Result) bool {
		if v, ok := jsonValue(value); ok {
			out[key.String()] = v
		}
		return true
	})
	return out
}

func jsonValue(r gjson.Result) (any, bool) {
	switch r.Type {
	case gjson.String:
		return r.Str, true
	case gjson.True, gjson.False:
		return r.Bool(), true
	case gjson.Number:
		if strings.ContainsAny(r.Raw, ".eE") {
			return r.Float(), true
		}
		return r.Int(), true
	case gjson.JSON:
		if r.IsObject() {
			return jsonObject(r), true
		}
		var items []any
		r.ForEach(func(_, item gjson.Result) bool {
			if v, ok := jsonValue(item); ok {
				items = append(items, v)
			}
			return true
		})
		return items, true
	default:
		return nil, false
	}
}

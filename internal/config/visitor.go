package config

import (
	"fmt"
	"io"
	"strings"
)

// Visitor walks the layers of a Composite.
type Visitor interface {
	// VisitLayer is called for each layer. path holds the names of the
	// enclosing composites followed by the layer name. Returning false skips
	// the layer's keys.
	VisitLayer(path []string, node Node) bool

	// VisitKey is called for each key of a visited layer with its raw value.
	VisitKey(path []string, key string, value any)
}

// Accept walks every layer depth-first in precedence order.
func (c *Composite) Accept(v Visitor) {
	c.accept(v, nil)
}

func (c *Composite) accept(v Visitor, parent []string) {
	for _, e := range c.entries() {
		path := append(append([]string(nil), parent...), e.name)
		if !v.VisitLayer(path, e.node) {
			continue
		}
		if child, ok := e.node.(*Composite); ok {
			child.accept(v, path)
			continue
		}
		keys := e.node.Keys()
		sortStrings(keys)
		for _, k := range keys {
			if raw, ok := e.node.Raw(k); ok {
				v.VisitKey(path, k, raw)
			}
		}
	}
}

// PrintVisitor writes an indented listing of layers and their values.
type PrintVisitor struct {
	W io.Writer
}

// VisitLayer implements Visitor.
func (p PrintVisitor) VisitLayer(path []string, node Node) bool {
	fmt.Fprintf(p.W, "%s[%s]\n", indent(len(path)-1), path[len(path)-1])
	return true
}

// VisitKey implements Visitor.
func (p PrintVisitor) VisitKey(path []string, key string, value any) {
	fmt.Fprintf(p.W, "%s%s = %v\n", indent(len(path)), key, value)
}

func indent(depth int) string {
	return strings.Repeat("  ", depth)
}

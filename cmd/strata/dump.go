package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"
	"golang.org/x/term"

	"github.com/dshills/strata/internal/config"
)

func newDumpCmd(opts *globalOptions) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Print every layer or the resolved configuration",
		Long: `Print configuration. The text format lists every layer in precedence
order with its raw values. The json format prints the resolved values
as a nested document, colored when writing to a terminal.

Example:
  strata dump --dir ./conf --app app --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			root, err := opts.openRoot()
			if err != nil {
				return err
			}
			defer root.Close()

			switch format {
			case "text":
				root.Accept(config.PrintVisitor{W: opts.stdout})
				return nil
			case "json":
				doc, err := resolvedJSON(root)
				if err != nil {
					return err
				}
				return writeJSON(opts.stdout, doc)
			default:
				return fmt.Errorf("unknown format %q (must be text or json)", format)
			}
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format (text, json)")
	return cmd
}

// resolvedJSON builds a nested JSON document from every resolved key. A
// key that is both a value and a parent keeps the value set last in key
// order.
func resolvedJSON(n config.Node) ([]byte, error) {
	r := config.NewReader(n)
	keys := n.Keys()
	sort.Strings(keys)

	doc := []byte("{}")
	for _, key := range keys {
		value, err := r.Get(key)
		if err != nil {
			return nil, fmt.Errorf("resolving %s: %w", key, err)
		}
		doc, err = sjson.SetBytes(doc, jsonPath(key), value)
		if err != nil {
			return nil, fmt.Errorf("encoding %s: %w", key, err)
		}
	}
	return doc, nil
}

// jsonPath escapes the characters sjson treats as path syntax, other than
// the dot separators.
func jsonPath(key string) string {
	var b strings.Builder
	for _, r := range key {
		switch r {
		case '*', '?', '|', '#', '@', '!', '\\', ':':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func writeJSON(w io.Writer, doc []byte) error {
	out := pretty.Pretty(doc)
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		out = pretty.Color(out, nil)
	}
	_, err := w.Write(out)
	return err
}

package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/strata/internal/config"
)

func newGetCmd(opts *globalOptions) *cobra.Command {
	var (
		def       string
		showLayer bool
	)
	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Resolve one key",
		Long: `Resolve a key through every layer and print its value with ${...}
references expanded. A missing key is an error unless --default is given.

Example:
  strata get db.url --dir ./conf --app app --var env=prod --layer`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := opts.openRoot()
			if err != nil {
				return err
			}
			defer root.Close()

			key := args[0]
			value, err := root.GetString(key)
			if errors.Is(err, config.ErrKeyNotFound) && cmd.Flags().Changed("default") {
				fmt.Fprintln(opts.stdout, def)
				return nil
			}
			if err != nil {
				return err
			}
			if !showLayer {
				fmt.Fprintln(opts.stdout, value)
				return nil
			}
			name, _ := root.WhichLayer(key)
			fmt.Fprintf(opts.stdout, "%s\t(%s)\n", value, layerPath(root.Composite, name, key))
			return nil
		},
	}
	cmd.Flags().StringVar(&def, "default", "", "Value printed when the key is undefined")
	cmd.Flags().BoolVar(&showLayer, "layer", false, "Also print the layer that supplied the value")
	return cmd
}

// layerPath follows nested composites down to the layer defining key.
func layerPath(c *config.Composite, name, key string) string {
	path := name
	for {
		node, ok := c.Node(name)
		if !ok {
			return path
		}
		child, ok := node.(*config.Composite)
		if !ok {
			return path
		}
		next, ok := child.WhichLayer(key)
		if !ok {
			return path
		}
		path += "/" + next
		c, name = child, next
	}
}

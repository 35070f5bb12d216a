package main

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dshills/strata/internal/config"
	"github.com/dshills/strata/internal/config/binder"
)

func newBindCmd(opts *globalOptions) *cobra.Command {
	var params []string
	cmd := &cobra.Command{
		Use:   "bind <template>",
		Short: "Resolve a prefix template and print the keys beneath it",
		Long: `Resolve a prefix template the way the binder does, filling ${name}
placeholders from --param values first and configuration keys second,
then print every key beneath the resolved prefix.

Example:
  strata bind 'db.${name}.pool' --param name=orders --dir ./conf --app app`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			names, values, err := parsePairs(params, "param")
			if err != nil {
				return err
			}

			root, err := opts.openRoot()
			if err != nil {
				return err
			}
			defer root.Close()

			tmpl := binder.NewTemplate(args[0], names...)
			prefix, err := root.Binder().ResolvePrefix(tmpl, values...)
			if err != nil {
				return err
			}
			fmt.Fprintf(opts.stdout, "# %s\n", prefix)

			view := config.Prefixed(root, prefix)
			tw := tabwriter.NewWriter(opts.stdout, 0, 4, 1, ' ', 0)
			keys := view.Keys()
			sort.Strings(keys)
			for _, key := range keys {
				value, err := view.Get(key)
				if err != nil {
					return fmt.Errorf("resolving %s: %w", view.FullKey(key), err)
				}
				fmt.Fprintf(tw, "%s\t= %v\n", key, value)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "Template parameter as name=value (repeatable)")
	return cmd
}

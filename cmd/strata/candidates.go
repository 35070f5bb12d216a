package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dshills/strata/internal/config/cascade"
	"github.com/dshills/strata/internal/config/loader"
)

func newCandidatesCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "candidates <base>",
		Short: "Print the cascade candidates for a resource name",
		Long: `Print the resource names a cascade expands base into, most specific
first. With --dir, the file each candidate would load from is shown too.

Example:
  strata candidates app --var env=prod --var region=us --strategy cross`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			names, given, err := opts.cascadeVars()
			if err != nil {
				return err
			}
			strategy, err := cascade.ByName(opts.strategy, opts.separator)
			if err != nil {
				return err
			}
			resolver := cascade.NewResolver(strategy, names...)
			candidates := resolver.Resolve(args[0], cascade.Map(given))

			var resources *loader.Resources
			if len(opts.dirs) > 0 {
				resources = loader.NewResources(opts.dirs, loader.WithLogger(opts.logger))
			}

			tw := tabwriter.NewWriter(opts.stdout, 0, 4, 2, ' ', 0)
			for _, c := range candidates {
				if resources == nil {
					fmt.Fprintln(tw, c)
					continue
				}
				path, ok := resources.Locate(c)
				if !ok {
					path = "-"
				}
				fmt.Fprintf(tw, "%s\t%s\n", c, path)
			}
			return tw.Flush()
		},
	}
}

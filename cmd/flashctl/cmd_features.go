package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ZanzyTHEbar/flash/internal/features"
)

func (c *cli) newFeaturesCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "features",
		Short: "List the canonical input features in column order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			schema := features.Schema()
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), schema)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "#\tNAME\tGROUP\tKIND\tRANGE")
			for i, f := range schema {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", i+1, f.Name, f.Group, f.Kind, describeRange(f))
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the schema as JSON")
	return cmd
}

func describeRange(f features.Feature) string {
	if len(f.Categories) > 0 {
		return strings.Join(f.Categories, ", ")
	}
	return fmt.Sprintf("[%g, %g]", f.Min, f.Max)
}
